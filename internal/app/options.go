package service

import (
	"time"

	"github.com/okian/duet/internal/adapters/provider"
	"github.com/okian/duet/internal/adapters/repository"
	"github.com/okian/duet/internal/domain/dedupe"
	"github.com/okian/duet/internal/domain/rating"
	"github.com/okian/duet/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore injects the backing store. Defaults to the in-memory store.
func WithStore(st repository.Store) Option {
	return func(s *Service) {
		if st != nil {
			s.store = st
		}
	}
}

// WithSolver injects the rating solver.
func WithSolver(sv rating.Solver) Option {
	return func(s *Service) {
		if sv != nil {
			s.solver = sv
		}
	}
}

// WithDeduper injects the dedupe engine.
func WithDeduper(e *dedupe.Engine) Option {
	return func(s *Service) {
		if e != nil {
			s.deduper = e
		}
	}
}

// WithProvider injects the catalog client used to enrich songs at session
// creation. Without one, enrichment is skipped.
func WithProvider(c *provider.Client) Option {
	return func(s *Service) {
		s.catalog = c
	}
}

// WithRecomputeEvery sets how many duels trigger an inline session
// recompute.
func WithRecomputeEvery(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recomputeEvery = n
		}
	}
}

// WithAggregateCooldown sets the minimum gap between global recomputes of
// one artist.
func WithAggregateCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.aggregateCooldown = d
		}
	}
}

// WithAggregateQueueSize bounds the aggregation scheduler's pending artist
// queue.
func WithAggregateQueueSize(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.aggregateQueueSize = n
		}
	}
}

// WithLeaderboardCacheTTL sets how long leaderboard reads are served from
// cache.
func WithLeaderboardCacheTTL(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cacheTTL = d
		}
	}
}

// WithMaxLeaderboardLimit caps leaderboard page sizes.
func WithMaxLeaderboardLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithNow injects the clock, for deterministic tests.
func WithNow(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
