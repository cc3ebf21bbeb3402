package serializer

import (
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/duet/pkg/logger"
)

// Option applies a configuration option to the Serializer.
type Option func(s *Serializer, queueSize *int)

// WithQueueSize bounds the pending job queue.
func WithQueueSize(n int) Option {
	return func(s *Serializer, queueSize *int) {
		if n > 0 {
			*queueSize = n
		}
	}
}

// WithRateLimit paces outbound calls. limit is calls per second.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(s *Serializer, _ *int) {
		if limit > 0 && burst > 0 {
			s.limiter = rate.NewLimiter(limit, burst)
		}
	}
}

// WithMaxAttempts sets the attempt budget per call, first try included.
func WithMaxAttempts(n int) Option {
	return func(s *Serializer, _ *int) {
		if n > 0 {
			s.maxAttempts = n
		}
	}
}

// WithBackoffIntervals sets the exponential backoff bounds between attempts.
func WithBackoffIntervals(initial, max time.Duration) Option {
	return func(s *Serializer, _ *int) {
		if initial > 0 {
			s.initialInterval = initial
		}
		if max > 0 {
			s.maxInterval = max
		}
	}
}

// WithLogger sets a custom logger for the serializer.
func WithLogger(l logger.Logger) Option {
	return func(s *Serializer, _ *int) {
		if l != nil {
			s.logger = l
		}
	}
}

// CallOption tunes a single submitted call.
type CallOption func(*job)

// WithRetryNotFound opts this call into retrying 404 responses. Useful for
// freshly published resources that propagate slowly on the provider side.
func WithRetryNotFound() CallOption {
	return func(j *job) {
		j.retryNotFound = true
	}
}
