// Package simulate drives the ranking system with a synthetic catalog whose
// true strengths are known, so recovered rankings can be checked against
// ground truth end to end.
package simulate

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/okian/duet/internal/domain/model"
	"github.com/okian/duet/pkg/logger"
)

// Default simulation constants.
const (
	defaultSongCount = 10
	defaultDuelCount = 60
	// strengthSpread is the log-strength gap between adjacent songs in the
	// synthetic catalog. Larger means an easier ranking to recover.
	strengthSpread = 0.35
	// tieProbability is how often a duel ends undecided, so the tie path
	// sees traffic too.
	tieProbability = 0.05

	fastLatencyMs = 1500
	slowLatencyMs = 12000
)

// Config controls one simulation run.
type Config struct {
	Artist    string
	SongCount int
	DuelCount int
	Seed      int64
}

// Result summarizes how well the recovered ranking matches ground truth.
type Result struct {
	SessionID        string
	DuelCount        int
	TieCount         int
	ConvergenceScore float64
	// PairAgreement is the fraction of song pairs whose recovered order
	// matches their true strength order. 1.0 is a perfect recovery.
	PairAgreement float64
}

// Ranker is the slice of the service the simulator drives.
type Ranker interface {
	CreateSession(ctx context.Context, userID, artist string, songs []model.Song) (sessionID string, err error)
	RecordDuel(ctx context.Context, sessionID, songA, songB, winner string, isTie bool, decisionLatencyMs int) (convergenceScore float64, err error)
	SessionRatings(ctx context.Context, sessionID string) (map[string]float64, error)
}

// Runner generates duels against a hidden-strength catalog.
type Runner struct {
	ranker Ranker
	cfg    Config
	rng    *rand.Rand
	logger logger.Logger
}

// NewRunner creates a simulation runner. Zero config fields fall back to
// defaults; a zero seed stays deterministic on purpose.
func NewRunner(ranker Ranker, cfg Config) *Runner {
	if cfg.Artist == "" {
		cfg.Artist = "Simulated Artist"
	}
	if cfg.SongCount <= 1 {
		cfg.SongCount = defaultSongCount
	}
	if cfg.DuelCount <= 0 {
		cfg.DuelCount = defaultDuelCount
	}
	return &Runner{
		ranker: ranker,
		cfg:    cfg,
		rng:    rand.New(rand.NewSource(cfg.Seed)), //nolint:gosec // deterministic simulation, not crypto
		logger: logger.Named("simulate"),
	}
}

// Run plays the configured number of duels and scores the recovery.
func (r *Runner) Run(ctx context.Context) (Result, error) {
	songs, truth := r.catalog()

	sessionID, err := r.ranker.CreateSession(ctx, "simulator", r.cfg.Artist, songs)
	if err != nil {
		return Result{}, fmt.Errorf("create session: %w", err)
	}
	r.logger.Info(ctx, "simulation session opened",
		logger.String("session", sessionID),
		logger.Int("songs", r.cfg.SongCount),
		logger.Int("duels", r.cfg.DuelCount),
	)

	var lastScore float64
	ties := 0
	for i := 0; i < r.cfg.DuelCount; i++ {
		a, b := r.pickPair()
		winner, isTie := r.decide(truth[songs[a].ID], truth[songs[b].ID], songs[a].ID, songs[b].ID)
		if isTie {
			ties++
		}
		score, err := r.ranker.RecordDuel(ctx, sessionID, songs[a].ID, songs[b].ID, winner, isTie, r.latency())
		if err != nil {
			return Result{}, fmt.Errorf("duel %d: %w", i+1, err)
		}
		if score > 0 {
			lastScore = score
		}
	}

	ratings, err := r.ranker.SessionRatings(ctx, sessionID)
	if err != nil {
		return Result{}, fmt.Errorf("session ratings: %w", err)
	}

	return Result{
		SessionID:        sessionID,
		DuelCount:        r.cfg.DuelCount,
		TieCount:         ties,
		ConvergenceScore: lastScore,
		PairAgreement:    pairAgreement(songs, truth, ratings),
	}, nil
}

// catalog builds songs with geometrically spaced hidden strengths, shuffled
// so input order carries no signal.
func (r *Runner) catalog() ([]model.Song, map[string]float64) {
	songs := make([]model.Song, r.cfg.SongCount)
	truth := make(map[string]float64, r.cfg.SongCount)
	for i := range songs {
		id := fmt.Sprintf("sim-%03d", i)
		songs[i] = model.Song{
			ID:     id,
			Title:  fmt.Sprintf("Track %03d", i),
			Artist: r.cfg.Artist,
		}
		truth[id] = math.Exp(strengthSpread * float64(i))
	}
	r.rng.Shuffle(len(songs), func(i, j int) {
		songs[i], songs[j] = songs[j], songs[i]
	})
	return songs, truth
}

func (r *Runner) pickPair() (int, int) {
	a := r.rng.Intn(r.cfg.SongCount)
	b := r.rng.Intn(r.cfg.SongCount - 1)
	if b >= a {
		b++
	}
	return a, b
}

// decide samples the duel outcome: an occasional tie, otherwise a winner
// drawn from the Bradley-Terry win probability.
func (r *Runner) decide(strengthA, strengthB float64, idA, idB string) (string, bool) {
	if r.rng.Float64() < tieProbability {
		return "", true
	}
	pA := strengthA / (strengthA + strengthB)
	if r.rng.Float64() < pA {
		return idA, false
	}
	return idB, false
}

func (r *Runner) latency() int {
	return fastLatencyMs + r.rng.Intn(slowLatencyMs-fastLatencyMs)
}

// pairAgreement counts ordered pairs the recovered ratings got right.
func pairAgreement(songs []model.Song, truth map[string]float64, ratings map[string]float64) float64 {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	sort.Strings(ids)

	var agree, total float64
	for i := 0; i < len(ids); i++ {
		for j := i + 1; j < len(ids); j++ {
			total++
			trueOrder := truth[ids[i]] > truth[ids[j]]
			gotOrder := ratings[ids[i]] > ratings[ids[j]]
			if trueOrder == gotOrder {
				agree++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return agree / total
}
