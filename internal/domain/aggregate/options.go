package aggregate

import (
	"time"

	"github.com/okian/duet/pkg/logger"
)

// Option applies a configuration option to the Scheduler.
type Option func(s *Scheduler, queueSize *int)

// WithCooldown sets the minimum gap between recomputes of one artist.
func WithCooldown(d time.Duration) Option {
	return func(s *Scheduler, _ *int) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithQueueSize bounds the pending artist queue.
func WithQueueSize(n int) Option {
	return func(s *Scheduler, queueSize *int) {
		if n > 0 {
			*queueSize = n
		}
	}
}

// WithNow injects the clock, for deterministic cooldown tests.
func WithNow(now func() time.Time) Option {
	return func(s *Scheduler, _ *int) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the scheduler.
func WithLogger(l logger.Logger) Option {
	return func(s *Scheduler, _ *int) {
		if l != nil {
			s.logger = l
		}
	}
}
