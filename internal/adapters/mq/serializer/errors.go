package serializer

import "errors"

// Sentinel kinds for serializer errors.
var (
	// ErrUnauthorized means the provider rejected our credentials. It is
	// permanent: no retry will be attempted.
	ErrUnauthorized = errors.New("provider credentials rejected")
	// ErrRetryable wraps statuses worth another attempt.
	ErrRetryable = errors.New("retryable provider response")
	// ErrStopped means the serializer was shut down before the call ran.
	ErrStopped = errors.New("serializer stopped")
)
