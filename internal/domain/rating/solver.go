package rating

import (
	"context"
	"math"
	"time"

	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// Default solver configuration constants.
const (
	defaultTolerance     = 1e-4
	defaultMaxIterations = 100

	// Laplace smoothing: every unordered pair plays one virtual game,
	// half a win to each side. Virtual games are never latency-weighted.
	// This keeps every strength finite and strictly positive, even for
	// items with no observed duels or an unbroken win streak.
	virtualGame = 1.0
	virtualWin  = 0.5

	strengthFloor = 1e-6
)

// Comparison is one duel as seen by the solver. Winner is empty for a tie.
type Comparison struct {
	SongA             string
	SongB             string
	Winner            string
	IsTie             bool
	DecisionLatencyMs int
}

// Result holds the solved strengths and derived ratings for a partition.
type Result struct {
	Strengths  map[string]float64
	Ratings    map[string]float64
	VoteCounts map[string]int
	Iterations int
	Converged  bool
}

// Solver estimates strengths for a set of items from a duel multiset.
type Solver interface {
	// Solve honors ctx for cancellation between iterations. warmStart may
	// be nil; known strengths in it seed the iteration.
	Solve(ctx context.Context, songIDs []string, duels []Comparison, warmStart map[string]float64) (Result, error)
}

// MMSolver implements Solver with the minorization-maximization update.
type MMSolver struct {
	tolerance     float64
	maxIterations int
	logger        logger.Logger
}

// NewMMSolver creates a solver with configuration options.
func NewMMSolver(opts ...Option) *MMSolver {
	s := &MMSolver{
		tolerance:     defaultTolerance,
		maxIterations: defaultMaxIterations,
		logger:        logger.Named("solver"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Solve runs the MM iteration. It never fails on degenerate input: an empty
// duel set yields baseline strengths, and hitting the iteration cap returns
// best-effort values with Converged=false.
func (s *MMSolver) Solve(ctx context.Context, songIDs []string, duels []Comparison, warmStart map[string]float64) (Result, error) {
	start := time.Now()
	n := len(songIDs)
	res := Result{
		Strengths:  make(map[string]float64, n),
		Ratings:    make(map[string]float64, n),
		VoteCounts: make(map[string]int, n),
		Converged:  true,
	}
	if n == 0 {
		return res, nil
	}

	idx := make(map[string]int, n)
	for i, id := range songIDs {
		idx[id] = i
	}

	p := make([]float64, n)
	for i, id := range songIDs {
		p[i] = 1.0
		if v, ok := warmStart[id]; ok && v > 0 {
			p[i] = math.Max(v, strengthFloor)
		}
	}

	// Observed wins and pair game counts, latency-weighted.
	wins := make([]float64, n)
	votes := make([]int, n)
	type pairKey struct{ lo, hi int }
	games := make(map[pairKey]float64)

	for _, d := range duels {
		ia, okA := idx[d.SongA]
		ib, okB := idx[d.SongB]
		if !okA || !okB || ia == ib {
			continue // unknown or degenerate pairing, not part of this partition
		}
		w := DuelWeight(d.DecisionLatencyMs)
		switch {
		case d.IsTie:
			wins[ia] += 0.5 * w
			wins[ib] += 0.5 * w
		case d.Winner == d.SongA:
			wins[ia] += w
		case d.Winner == d.SongB:
			wins[ib] += w
		default:
			continue // winner not part of the pair; malformed, skip
		}
		votes[ia]++
		votes[ib]++
		key := pairKey{lo: ia, hi: ib}
		if key.lo > key.hi {
			key.lo, key.hi = key.hi, key.lo
		}
		games[key] += w
	}

	// Smoothing prior: half a virtual win against each other item.
	for i := range wins {
		wins[i] += virtualWin * float64(n-1)
	}

	if n < 2 {
		// Single item: nothing to compare against, stay at baseline.
		res.Strengths[songIDs[0]] = p[0]
		res.Ratings[songIDs[0]] = DisplayRating(p[0])
		res.VoteCounts[songIDs[0]] = 0
		return res, nil
	}

	iterations := 0
	converged := false
	denom := make([]float64, n)
	next := make([]float64, n)

	for iterations < s.maxIterations {
		select {
		case <-ctx.Done():
			return Result{}, ctx.Err()
		default:
		}
		iterations++

		for i := range denom {
			denom[i] = 0
		}
		// Virtual games contribute for every pair; observed games on top.
		for i := 0; i < n; i++ {
			for j := i + 1; j < n; j++ {
				share := virtualGame / (p[i] + p[j])
				denom[i] += share
				denom[j] += share
			}
		}
		for key, g := range games {
			share := g / (p[key.lo] + p[key.hi])
			denom[key.lo] += share
			denom[key.hi] += share
		}

		maxRel := 0.0
		for i := 0; i < n; i++ {
			next[i] = wins[i] / denom[i]
			rel := math.Abs(next[i]-p[i]) / p[i]
			if rel > maxRel {
				maxRel = rel
			}
		}

		// Geometric-mean normalization keeps the arbitrary scale anchored
		// so strength 1.0 stays the partition average.
		logSum := 0.0
		for i := 0; i < n; i++ {
			logSum += math.Log(math.Max(next[i], strengthFloor))
		}
		gm := math.Exp(logSum / float64(n))
		for i := 0; i < n; i++ {
			p[i] = next[i] / gm
		}

		if maxRel < s.tolerance {
			converged = true
			break
		}
	}

	if !converged {
		s.logger.Warn(ctx, "iteration cap hit, returning best-effort strengths",
			logger.Int("iterations", iterations),
			logger.Int("items", n),
			logger.Int("duels", len(duels)),
		)
	}

	for i, id := range songIDs {
		res.Strengths[id] = p[i]
		res.Ratings[id] = DisplayRating(p[i])
		res.VoteCounts[id] = votes[i]
	}
	res.Iterations = iterations
	res.Converged = converged

	metrics.RecordSolverRun(iterations, float64(time.Since(start).Milliseconds()), converged)
	return res, nil
}
