// Package aggregate schedules global per-artist rating recomputes. Each
// artist partition is recomputed by at most one run at a time: a compare-and-
// swap on the artist's state word is the only way into the queue, so
// concurrent triggers collapse into a single run instead of piling up.
package aggregate

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/duet/internal/adapters/repository"
	"github.com/okian/duet/internal/domain/model"
	"github.com/okian/duet/internal/domain/rating"
	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// Artist aggregation states. Transitions: IDLE -> QUEUED -> RUNNING -> IDLE.
const (
	stateIdle int32 = iota
	stateQueued
	stateRunning
)

// Default scheduler configuration constants.
const (
	defaultCooldown  = 10 * time.Minute
	defaultQueueSize = 1024
)

// Trigger names the code path that asked for a recompute, for logs.
type Trigger string

const (
	TriggerSessionRecompute Trigger = "session_recompute"
	TriggerLeaderboardRead  Trigger = "leaderboard_read"
)

// Scheduler owns the executor goroutine and the per-artist state words.
type Scheduler struct {
	store  repository.Store
	solver rating.Solver

	states   sync.Map // artistKey -> *atomic.Int32
	queue    chan string
	quit     chan struct{}
	wg       sync.WaitGroup
	started  sync.Once
	stopOnce sync.Once
	cancel   context.CancelFunc

	cooldown time.Duration
	now      func() time.Time
	logger   logger.Logger
}

// NewScheduler creates a scheduler with configuration options. Start must be
// called before MaybeQueue.
func NewScheduler(store repository.Store, solver rating.Solver, opts ...Option) *Scheduler {
	s := &Scheduler{
		store:    store,
		solver:   solver,
		cooldown: defaultCooldown,
		now:      time.Now,
		logger:   logger.Named("aggregate"),
		quit:     make(chan struct{}),
	}
	queueSize := defaultQueueSize
	for _, opt := range opts {
		opt(s, &queueSize)
	}
	s.queue = make(chan string, queueSize)
	return s
}

// Start launches the executor goroutine.
func (s *Scheduler) Start() {
	s.started.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.wg.Add(1)
		go s.execute(ctx)
	})
}

// Stop shuts the executor down after the in-flight run finishes. Queued
// artists are reset to idle so a later Start-less trigger path stays sane.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() {
		close(s.quit)
		if s.cancel != nil {
			s.cancel()
		}
	})
	s.wg.Wait()
	for {
		select {
		case key := <-s.queue:
			s.stateFor(key).Store(stateIdle)
		default:
			return
		}
	}
}

// Pending returns how many of the artist's duels the last aggregation run
// has not seen. Never negative: a merge can shrink the partition below the
// processed count.
func (s *Scheduler) Pending(ctx context.Context, artistKey string) (int, error) {
	total, err := s.store.CountArtistDuels(ctx, artistKey)
	if err != nil {
		return 0, fmt.Errorf("count duels: %w", err)
	}
	st, err := s.store.AggregateState(ctx, artistKey)
	if err != nil {
		return 0, fmt.Errorf("aggregate state: %w", err)
	}
	pending := total - st.ProcessedDuelCount
	if pending < 0 {
		pending = 0
	}
	metrics.UpdatePendingComparisons(artistKey, pending)
	return pending, nil
}

// MaybeQueue asks for a recompute of the artist partition. It declines when
// there is nothing pending, when the cooldown has not elapsed, or when a run
// is already queued or in flight. Returns whether the artist was queued.
func (s *Scheduler) MaybeQueue(ctx context.Context, artistKey string, trigger Trigger) (bool, error) {
	select {
	case <-s.quit:
		return false, ErrStopped
	default:
	}

	pending, err := s.Pending(ctx, artistKey)
	if err != nil {
		return false, err
	}
	if pending == 0 {
		return false, nil
	}

	st, err := s.store.AggregateState(ctx, artistKey)
	if err != nil {
		return false, fmt.Errorf("aggregate state: %w", err)
	}
	if !st.LastUpdateAt.IsZero() && s.now().Sub(st.LastUpdateAt) < s.cooldown {
		s.logger.Debug(ctx, "recompute declined, cooling down",
			logger.String("artist", artistKey),
			logger.String("trigger", string(trigger)),
			logger.Int("pending", pending),
		)
		return false, nil
	}

	state := s.stateFor(artistKey)
	if !state.CompareAndSwap(stateIdle, stateQueued) {
		// Someone else already holds the slot for this artist.
		metrics.RecordAggregateRaceLost()
		return false, nil
	}

	// Re-check after winning the slot: a run finishing between the first
	// read and the CAS refreshes LastUpdateAt, and queueing on the stale
	// value would sneak a recompute inside the cooldown window.
	st, err = s.store.AggregateState(ctx, artistKey)
	if err != nil {
		state.Store(stateIdle)
		return false, fmt.Errorf("aggregate state: %w", err)
	}
	if !st.LastUpdateAt.IsZero() && s.now().Sub(st.LastUpdateAt) < s.cooldown {
		state.Store(stateIdle)
		return false, nil
	}

	select {
	case s.queue <- artistKey:
		metrics.UpdateAggregateQueueDepth(len(s.queue))
		s.logger.Info(ctx, "recompute queued",
			logger.String("artist", artistKey),
			logger.String("trigger", string(trigger)),
			logger.Int("pending", pending),
		)
		return true, nil
	case <-s.quit:
		state.Store(stateIdle)
		return false, ErrStopped
	case <-ctx.Done():
		state.Store(stateIdle)
		return false, ctx.Err()
	}
}

func (s *Scheduler) stateFor(artistKey string) *atomic.Int32 {
	v, _ := s.states.LoadOrStore(artistKey, new(atomic.Int32))
	return v.(*atomic.Int32)
}

func (s *Scheduler) execute(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case <-s.quit:
			return
		case key := <-s.queue:
			metrics.UpdateAggregateQueueDepth(len(s.queue))
			state := s.stateFor(key)
			state.Store(stateRunning)
			if err := s.run(ctx, key); err != nil {
				metrics.RecordAggregateFailure()
				s.logger.Error(ctx, "recompute failed",
					logger.String("artist", key),
					logger.Error(err),
				)
			}
			state.Store(stateIdle)
		}
	}
}

// run recomputes one artist partition end to end: snapshot duels, solve with
// the current global strengths as warm start, apply in bulk, advance the
// processed watermark.
func (s *Scheduler) run(ctx context.Context, artistKey string) error {
	start := s.now()

	total, err := s.store.CountArtistDuels(ctx, artistKey)
	if err != nil {
		return fmt.Errorf("count duels: %w", err)
	}
	duels, err := s.store.ListArtistDuels(ctx, artistKey)
	if err != nil {
		return fmt.Errorf("list duels: %w", err)
	}
	songs, err := s.store.ListArtistSongs(ctx, artistKey)
	if err != nil {
		return fmt.Errorf("list songs: %w", err)
	}

	ids := make([]string, len(songs))
	warm := make(map[string]float64, len(songs))
	for i, song := range songs {
		ids[i] = song.ID
		if song.GlobalStrength > 0 {
			warm[song.ID] = song.GlobalStrength
		}
	}

	comparisons := make([]rating.Comparison, len(duels))
	for i, d := range duels {
		comparisons[i] = rating.Comparison{
			SongA:             d.SongA,
			SongB:             d.SongB,
			Winner:            d.Winner,
			IsTie:             d.IsTie,
			DecisionLatencyMs: d.DecisionLatencyMs,
		}
	}

	res, err := s.solver.Solve(ctx, ids, comparisons, warm)
	if err != nil {
		return fmt.Errorf("solve: %w", err)
	}

	updates := make([]repository.GlobalUpdate, 0, len(ids))
	for _, id := range ids {
		updates = append(updates, repository.GlobalUpdate{
			SongID:    id,
			Strength:  res.Strengths[id],
			Rating:    res.Ratings[id],
			VoteCount: res.VoteCounts[id],
		})
	}
	if err := s.store.BulkUpdateGlobalRatings(ctx, updates); err != nil {
		return fmt.Errorf("bulk update: %w", err)
	}

	if err := s.store.SaveAggregateState(ctx, model.ArtistState{
		ArtistKey:          artistKey,
		LastUpdateAt:       s.now(),
		ProcessedDuelCount: total,
	}); err != nil {
		return fmt.Errorf("save state: %w", err)
	}

	metrics.RecordAggregateRun(float64(s.now().Sub(start).Milliseconds()))
	metrics.UpdatePendingComparisons(artistKey, 0)
	s.logger.Info(ctx, "recompute finished",
		logger.String("artist", artistKey),
		logger.Int("duels", total),
		logger.Int("songs", len(ids)),
		logger.Int("iterations", res.Iterations),
		logger.Bool("converged", res.Converged),
	)
	return nil
}
