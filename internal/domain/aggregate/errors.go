package aggregate

import "errors"

// Sentinel kinds for scheduler errors.
var (
	// ErrStopped means the scheduler was shut down before the artist
	// could be queued.
	ErrStopped = errors.New("aggregate scheduler stopped")
)
