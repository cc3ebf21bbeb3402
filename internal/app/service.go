// Package service wires the duel ranking system together: session
// lifecycle, duel recording with periodic session recomputes, and cached
// global leaderboards backed by the aggregation scheduler.
package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	gocache "github.com/patrickmn/go-cache"
	"golang.org/x/sync/singleflight"

	"github.com/okian/duet/internal/adapters/provider"
	"github.com/okian/duet/internal/adapters/repository"
	"github.com/okian/duet/internal/domain/aggregate"
	"github.com/okian/duet/internal/domain/convergence"
	"github.com/okian/duet/internal/domain/dedupe"
	"github.com/okian/duet/internal/domain/model"
	"github.com/okian/duet/internal/domain/rating"
	"github.com/okian/duet/internal/domain/types"
	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultRecomputeEvery    = 5
	defaultAggregateCooldown = 10 * time.Minute
	defaultCacheTTL          = 120 * time.Second
	defaultMaxLimit          = 100
)

// Service implements the duel ranking system.
type Service struct {
	mu sync.RWMutex

	store     repository.Store
	solver    rating.Solver
	deduper   *dedupe.Engine
	scheduler *aggregate.Scheduler
	catalog   *provider.Client

	recomputeEvery     int
	aggregateCooldown  time.Duration
	aggregateQueueSize int
	cacheTTL           time.Duration
	maxLimit           int
	now                func() time.Time

	boards *gocache.Cache
	group  singleflight.Group

	started bool
	logger  logger.Logger
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		recomputeEvery:    defaultRecomputeEvery,
		aggregateCooldown: defaultAggregateCooldown,
		cacheTTL:          defaultCacheTTL,
		maxLimit:          defaultMaxLimit,
		now:               time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes missing components and launches the aggregation
// executor.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	if s.store == nil {
		s.store = repository.NewMemStore()
		s.logger.Info(ctx, "using in-memory store")
	}
	if s.solver == nil {
		s.solver = rating.NewMMSolver()
	}
	if s.deduper == nil {
		s.deduper = dedupe.NewEngine()
	}
	s.boards = gocache.New(s.cacheTTL, 2*s.cacheTTL)
	s.scheduler = aggregate.NewScheduler(s.store, s.solver,
		aggregate.WithCooldown(s.aggregateCooldown),
		aggregate.WithQueueSize(s.aggregateQueueSize),
		aggregate.WithNow(s.now),
	)
	s.scheduler.Start()

	s.started = true
	s.logger.Info(ctx, "duel ranking service started",
		logger.Int("recomputeEvery", s.recomputeEvery),
		logger.Duration("aggregateCooldown", s.aggregateCooldown),
		logger.Duration("cacheTTL", s.cacheTTL),
	)
	return nil
}

// Stop gracefully shuts the service down.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.started {
		return
	}
	s.scheduler.Stop()
	s.started = false
	s.logger.Info(context.Background(), "duel ranking service stopped")
}

// CreateSession deduplicates the submitted catalog, enriches it when a
// catalog client is configured, and opens a new ranking session.
func (s *Service) CreateSession(ctx context.Context, userID, artist string, songs []model.Song) (types.SessionInfo, error) {
	if err := s.ready(); err != nil {
		return types.SessionInfo{}, err
	}

	if s.catalog != nil {
		songs = s.catalog.EnrichSongs(ctx, songs)
	}

	res := s.deduper.Deduplicate(ctx, songs)
	if len(res.Canonical) < 2 {
		return types.SessionInfo{}, ErrTooFewSongs
	}
	if err := s.store.UpsertSongs(ctx, res.Canonical); err != nil {
		return types.SessionInfo{}, fmt.Errorf("upsert songs: %w", err)
	}

	sessionSongs := make([]model.SessionSong, len(res.Canonical))
	for i, song := range res.Canonical {
		sessionSongs[i] = model.SessionSong{
			SongID:        song.ID,
			LocalStrength: 1.0,
			LocalRating:   rating.BaselineRating,
		}
	}

	sess := model.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		Artist:    artist,
		Songs:     sessionSongs,
		Status:    model.SessionActive,
		CreatedAt: s.now(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return types.SessionInfo{}, fmt.Errorf("create session: %w", err)
	}

	dedupe.SortSuggestions(res.Suggestions)
	info := types.SessionInfo{
		SessionID: sess.ID,
		SongCount: len(sessionSongs),
	}
	for _, sug := range res.Suggestions {
		info.Suggestions = append(info.Suggestions, types.MergeReview(sug))
	}

	s.logger.Info(ctx, "session created",
		logger.String("session", sess.ID),
		logger.String("artist", artist),
		logger.Int("songs", len(sessionSongs)),
		logger.Int("merged", len(res.AutoMerged)),
		logger.Int("suggestions", len(res.Suggestions)),
	)
	return info, nil
}

// RecordDuel appends one duel to the session. Every Nth duel triggers an
// inline session recompute; the global recompute is always asynchronous.
func (s *Service) RecordDuel(ctx context.Context, sessionID, songA, songB, winner string, isTie bool, decisionLatencyMs int) (types.DuelResult, error) {
	if err := s.ready(); err != nil {
		return types.DuelResult{}, err
	}

	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return types.DuelResult{}, err
	}
	if sess.Status == model.SessionComplete {
		metrics.RecordDuelRejected()
		return types.DuelResult{}, repository.ErrSessionComplete
	}
	if err := validateDuel(sess, songA, songB, winner, isTie); err != nil {
		metrics.RecordDuelRejected()
		return types.DuelResult{}, err
	}

	artistKey := model.ArtistKey(sess.Artist)
	duel := model.Duel{
		ID:                uuid.NewString(),
		SessionID:         sessionID,
		SongA:             songA,
		SongB:             songB,
		Winner:            winner,
		IsTie:             isTie,
		DecisionLatencyMs: decisionLatencyMs,
		RecordedAt:        s.now(),
	}
	if err := s.store.AppendDuel(ctx, artistKey, duel); err != nil {
		return types.DuelResult{}, fmt.Errorf("append duel: %w", err)
	}
	metrics.RecordDuelRecorded()

	duels, err := s.store.ListSessionDuels(ctx, sessionID)
	if err != nil {
		return types.DuelResult{}, fmt.Errorf("list session duels: %w", err)
	}
	duelCount := len(duels)

	result := types.DuelResult{
		SessionID:        sessionID,
		DuelCount:        duelCount,
		ConvergenceScore: sess.ConvergenceScore,
	}

	// Exact counter, not "at least": only the Nth duel pays the solve.
	if duelCount%s.recomputeEvery == 0 {
		score, ratings, err := s.recomputeSession(ctx, sess, duels)
		if err != nil {
			return types.DuelResult{}, err
		}
		result.Recomputed = true
		result.ConvergenceScore = score
		result.Ratings = ratings

		// A session recompute is the only duel-path moment that nudges the
		// global aggregation; it never blocks, the scheduler applies its own
		// cooldown and single-flight rules.
		if _, err := s.scheduler.MaybeQueue(ctx, artistKey, aggregate.TriggerSessionRecompute); err != nil {
			s.logger.Warn(ctx, "global recompute trigger failed",
				logger.String("artist", artistKey),
				logger.Error(err),
			)
		}
	}

	return result, nil
}

func validateDuel(sess model.Session, songA, songB, winner string, isTie bool) error {
	if songA == songB {
		return fmt.Errorf("%w: song duels itself", ErrInvalidDuel)
	}
	inSession := make(map[string]bool, len(sess.Songs))
	for _, ss := range sess.Songs {
		inSession[ss.SongID] = true
	}
	if !inSession[songA] || !inSession[songB] {
		return ErrSongNotInSession
	}
	switch {
	case isTie && winner != "":
		return fmt.Errorf("%w: tie cannot name a winner", ErrInvalidDuel)
	case !isTie && winner != songA && winner != songB:
		return fmt.Errorf("%w: winner must be one of the pair", ErrInvalidDuel)
	}
	return nil
}

// recomputeSession solves the session partition and persists the snapshot.
func (s *Service) recomputeSession(ctx context.Context, sess model.Session, duels []model.Duel) (float64, []types.SessionRating, error) {
	ids := make([]string, len(sess.Songs))
	warm := make(map[string]float64, len(sess.Songs))
	for i, ss := range sess.Songs {
		ids[i] = ss.SongID
		if ss.LocalStrength > 0 {
			warm[ss.SongID] = ss.LocalStrength
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
		return 0, nil, fmt.Errorf("solve session: %w", err)
	}

	topNow := convergence.TopIDs(res.Strengths, convergence.TopK)
	score := convergence.Score(len(duels), len(ids), sess.PreviousTopK, topNow)

	songs := make([]model.SessionSong, len(ids))
	ratings := make([]types.SessionRating, len(ids))
	for i, id := range ids {
		songs[i] = model.SessionSong{
			SongID:        id,
			LocalStrength: res.Strengths[id],
			LocalRating:   res.Ratings[id],
		}
		ratings[i] = types.SessionRating{
			SongID:   id,
			Strength: res.Strengths[id],
			Rating:   res.Ratings[id],
		}
	}
	sort.Slice(ratings, func(i, j int) bool { return ratings[i].Rating > ratings[j].Rating })

	if err := s.store.UpdateSessionRatings(ctx, sess.ID, songs, len(duels), score, topNow); err != nil {
		return 0, nil, fmt.Errorf("update session ratings: %w", err)
	}
	metrics.RecordSessionRecompute()

	s.logger.Debug(ctx, "session recomputed",
		logger.String("session", sess.ID),
		logger.Int("duels", len(duels)),
		logger.Float64("convergence", score),
		logger.Bool("ready", convergence.Ready(score)),
	)
	return score, ratings, nil
}

// CompleteSession freezes a session. Frozen sessions reject further duels
// and rating updates.
func (s *Service) CompleteSession(ctx context.Context, sessionID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	return s.store.MarkSessionComplete(ctx, sessionID)
}

// Session returns the current session snapshot.
func (s *Service) Session(ctx context.Context, sessionID string) (model.Session, error) {
	if err := s.ready(); err != nil {
		return model.Session{}, err
	}
	return s.store.GetSession(ctx, sessionID)
}

// Leaderboard returns the global ranking for an artist. Reads are cached;
// a cache miss rebuilds the view once per key via single-flight and lazily
// nudges the aggregation scheduler.
func (s *Service) Leaderboard(ctx context.Context, artist string, limit int) (types.Leaderboard, error) {
	if err := s.ready(); err != nil {
		return types.Leaderboard{}, err
	}
	if limit <= 0 || limit > s.maxLimit {
		limit = s.maxLimit
	}
	key := model.ArtistKey(artist)
	cacheKey := fmt.Sprintf("%s|%d", key, limit)
	metrics.RecordLeaderboardRead()

	if cached, ok := s.boards.Get(cacheKey); ok {
		metrics.RecordLeaderboardCacheHit()
		return cached.(types.Leaderboard), nil
	}

	v, err, _ := s.group.Do(cacheKey, func() (any, error) {
		board, err := s.buildLeaderboard(ctx, key, limit)
		if err != nil {
			return nil, err
		}
		s.boards.Set(cacheKey, board, gocache.DefaultExpiration)
		return board, nil
	})
	if err != nil {
		return types.Leaderboard{}, err
	}

	// Lazy trigger: a read is a fine moment to catch up on a backlog.
	if _, err := s.scheduler.MaybeQueue(ctx, key, aggregate.TriggerLeaderboardRead); err != nil {
		s.logger.Warn(ctx, "lazy recompute trigger failed",
			logger.String("artist", key),
			logger.Error(err),
		)
	}

	return v.(types.Leaderboard), nil
}

func (s *Service) buildLeaderboard(ctx context.Context, artistKey string, limit int) (types.Leaderboard, error) {
	songs, err := s.store.TopSongs(ctx, artistKey, limit)
	if err != nil {
		return types.Leaderboard{}, fmt.Errorf("top songs: %w", err)
	}
	total, err := s.store.CountArtistDuels(ctx, artistKey)
	if err != nil {
		return types.Leaderboard{}, fmt.Errorf("count duels: %w", err)
	}
	state, err := s.store.AggregateState(ctx, artistKey)
	if err != nil {
		return types.Leaderboard{}, fmt.Errorf("aggregate state: %w", err)
	}
	pending := total - state.ProcessedDuelCount
	if pending < 0 {
		pending = 0
	}

	board := types.Leaderboard{
		Artist:             artistKey,
		Entries:            make([]types.LeaderboardEntry, len(songs)),
		TotalComparisons:   total,
		PendingComparisons: pending,
		LastUpdatedAt:      state.LastUpdateAt,
	}
	for i, song := range songs {
		board.Entries[i] = types.LeaderboardEntry{
			SongID:    song.ID,
			Title:     song.Title,
			Artist:    song.Artist,
			Album:     song.Album,
			Rating:    song.GlobalRating,
			Strength:  song.GlobalStrength,
			VoteCount: song.GlobalVoteCount,
		}
	}
	assignRanksWithTies(board.Entries)
	return board, nil
}

// assignRanksWithTies gives equal ratings equal rank; the next distinct
// rating resumes at its positional rank (1, 2, 2, 4).
func assignRanksWithTies(entries []types.LeaderboardEntry) {
	for i := range entries {
		if i > 0 && entries[i].Rating == entries[i-1].Rating {
			entries[i].Rank = entries[i-1].Rank
			continue
		}
		entries[i].Rank = i + 1
	}
}

// ApplyMerge collapses a duplicate song pair, typically after a reviewer
// confirms a suggestion, and drops stale leaderboard views.
func (s *Service) ApplyMerge(ctx context.Context, keepID, removeID string) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.store.MergeSongs(ctx, keepID, removeID); err != nil {
		return err
	}
	s.boards.Flush()
	s.logger.Info(ctx, "merge applied",
		logger.String("keep", keepID),
		logger.String("remove", removeID),
	)
	return nil
}

// PendingComparisons reports the artist's unprocessed duel backlog.
func (s *Service) PendingComparisons(ctx context.Context, artist string) (int, error) {
	if err := s.ready(); err != nil {
		return 0, err
	}
	return s.scheduler.Pending(ctx, model.ArtistKey(artist))
}

func (s *Service) ready() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}
