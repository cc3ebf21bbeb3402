// Package rating estimates item strengths from pairwise duels using the
// Bradley-Terry model solved with minorization-maximization, and converts
// strengths to an Elo-like display rating.
package rating

import "math"

// Display rating scale. A strength of 1.0 maps to the baseline rating that
// new items receive before any duels.
const (
	BaselineRating = 1500.0
	ratingScale    = 400.0

	// Defensive fallback for non-positive strengths, which the solver
	// never produces but external warm-start data might.
	invalidStrengthRating = 1000.0
)

// Decision-latency weighting. Snap judgments carry more signal than slow,
// uncertain ones.
const (
	fastDecisionMs   = 3000
	slowDecisionMs   = 10000
	fastDuelWeight   = 1.5
	slowDuelWeight   = 0.5
	normalDuelWeight = 1.0
)

// DisplayRating converts a Bradley-Terry strength to the Elo-like scale:
// rating = 400*log10(strength) + 1500.
func DisplayRating(strength float64) float64 {
	if strength <= 0 {
		return invalidStrengthRating
	}
	return ratingScale*math.Log10(strength) + BaselineRating
}

// DuelWeight returns the likelihood weight for a duel given its decision
// latency in milliseconds. Non-positive latency means unmeasured.
func DuelWeight(decisionLatencyMs int) float64 {
	if decisionLatencyMs <= 0 {
		return normalDuelWeight
	}
	if decisionLatencyMs < fastDecisionMs {
		return fastDuelWeight
	}
	if decisionLatencyMs > slowDecisionMs {
		return slowDuelWeight
	}
	return normalDuelWeight
}
