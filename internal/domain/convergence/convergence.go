// Package convergence scores how settled a session ranking is, blending
// duel quantity with top-list stability across successive recomputes.
package convergence

import (
	"math"
	"sort"
)

const (
	// ReadyThreshold is the score at or above which a session ranking is
	// considered stable enough to surface as final.
	ReadyThreshold = 0.9

	// TopK is the slice of the ranking whose stability is measured.
	TopK = 10

	duelsPerItem     = 2.5
	membershipWeight = 0.4
	positionWeight   = 0.6
	quantityBlend    = 0.5
	stabilityBlend   = 0.5
)

// TopIDs returns the song IDs of the top k entries by strength, descending.
// Equal strengths break ties by ID so the cut is deterministic.
func TopIDs(strengths map[string]float64, k int) []string {
	ids := make([]string, 0, len(strengths))
	for id := range strengths {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		si, sj := strengths[ids[i]], strengths[ids[j]]
		if si != sj {
			return si > sj
		}
		return ids[i] < ids[j]
	})
	if len(ids) > k {
		ids = ids[:k]
	}
	return ids
}

// Quantity measures duel coverage: duels relative to items*2.5, capped at 1.
// Zero items yields zero, not a division error.
func Quantity(duelCount, itemCount int) float64 {
	if itemCount <= 0 || duelCount <= 0 {
		return 0
	}
	q := float64(duelCount) / (float64(itemCount) * duelsPerItem)
	return math.Min(1, q)
}

// Stability compares the current top list with the previous one. Membership
// overlap counts 40%; position agreement, weighted toward the head of the
// list, counts 60%. An empty previous list means nothing to be stable
// against and scores zero.
func Stability(previous, current []string) float64 {
	if len(previous) == 0 || len(current) == 0 {
		return 0
	}

	prevPos := make(map[string]int, len(previous))
	for i, id := range previous {
		prevPos[id] = i
	}

	overlap := 0
	for _, id := range current {
		if _, ok := prevPos[id]; ok {
			overlap++
		}
	}
	membership := float64(overlap) / float64(len(current))

	// Position agreement: each held position contributes its head-weighted
	// share; a song that moved or dropped out contributes nothing.
	var held, total float64
	for i, id := range current {
		w := float64(TopK-i) / float64(TopK)
		if w < 0 {
			w = 0
		}
		total += w
		if p, ok := prevPos[id]; ok && p == i {
			held += w
		}
	}
	position := 0.0
	if total > 0 {
		position = held / total
	}

	return membershipWeight*membership + positionWeight*position
}

// Score blends quantity and stability equally.
func Score(duelCount, itemCount int, previousTop, currentTop []string) float64 {
	return quantityBlend*Quantity(duelCount, itemCount) + stabilityBlend*Stability(previousTop, currentTop)
}

// Ready reports whether a score has crossed the readiness threshold.
func Ready(score float64) bool {
	return score >= ReadyThreshold
}
