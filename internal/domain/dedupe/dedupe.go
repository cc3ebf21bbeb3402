// Package dedupe collapses duplicate songs in a catalog using exact ISRC
// identity and fuzzy title matching, and surfaces borderline pairs as merge
// suggestions for human review.
package dedupe

import (
	"context"
	"sort"

	"github.com/okian/duet/internal/domain/model"
	"github.com/okian/duet/pkg/logger"
	"github.com/okian/duet/pkg/metrics"
)

// Merge confidence thresholds on the 0..100 similarity scale.
const (
	// isrcConfidence marks an exact recording-code match. It is never
	// downgraded by a weaker fuzzy score on the same pair.
	isrcConfidence = 100

	defaultAutoMergeThreshold  = 90
	defaultSuggestionThreshold = 70
)

// Result is the outcome of deduplicating a catalog slice.
type Result struct {
	// Canonical holds one survivor per duplicate cluster, input order
	// preserved by first appearance.
	Canonical []model.Song
	// AutoMerged records every collapse that happened, keep/remove pairs
	// with the confidence that drove them.
	AutoMerged []model.MergeSuggestion
	// Suggestions are borderline pairs between surviving canonicals,
	// confident enough to flag but not to merge.
	Suggestions []model.MergeSuggestion
}

// Engine deduplicates song catalogs.
type Engine struct {
	autoMergeThreshold  float64
	suggestionThreshold float64
	logger              logger.Logger
}

// NewEngine creates a dedupe engine with configuration options.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		autoMergeThreshold:  defaultAutoMergeThreshold,
		suggestionThreshold: defaultSuggestionThreshold,
		logger:              logger.Named("dedupe"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Deduplicate clusters the given songs, merges confident duplicates, and
// reports borderline pairs. Input is not mutated; canonical songs carry the
// normalized name used for matching.
func (e *Engine) Deduplicate(ctx context.Context, songs []model.Song) Result {
	n := len(songs)
	if n == 0 {
		return Result{}
	}

	normalized := make([]string, n)
	for i := range songs {
		normalized[i] = Normalize(songs[i].Title)
	}

	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(i int) int {
		for parent[i] != i {
			parent[i] = parent[parent[i]]
			i = parent[i]
		}
		return i
	}
	// Confidence of the strongest match that pulled each index into its
	// cluster. ISRC identity wins over any fuzzy score.
	confidence := make(map[int]float64, n)
	union := func(i, j int, conf float64) {
		ri, rj := find(i), find(j)
		if ri != rj {
			parent[rj] = ri
		}
		if conf > confidence[j] {
			confidence[j] = conf
		}
		if conf > confidence[i] {
			confidence[i] = conf
		}
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if songs[i].ISRC != "" && songs[i].ISRC == songs[j].ISRC {
				union(i, j, isrcConfidence)
				continue
			}
			// Fuzzy matching only applies within one artist; a shared
			// title across artists is a different song.
			if model.ArtistKey(songs[i].Artist) != model.ArtistKey(songs[j].Artist) {
				continue
			}
			ratio := SimilarityRatio(normalized[i], normalized[j])
			if ratio > e.autoMergeThreshold {
				union(i, j, ratio)
			}
		}
	}

	clusters := make(map[int][]int, n)
	order := make([]int, 0, n)
	for i := 0; i < n; i++ {
		root := find(i)
		if _, seen := clusters[root]; !seen {
			order = append(order, root)
		}
		clusters[root] = append(clusters[root], i)
	}

	res := Result{Canonical: make([]model.Song, 0, len(order))}
	canonicalIdx := make([]int, 0, len(order))
	for _, root := range order {
		members := clusters[root]
		keep := pickCanonical(songs, members)
		song := songs[keep]
		song.NormalizedName = normalized[keep]
		res.Canonical = append(res.Canonical, song)
		canonicalIdx = append(canonicalIdx, keep)

		for _, m := range members {
			if m == keep {
				continue
			}
			conf := confidence[m]
			if conf == 0 {
				conf = confidence[keep]
			}
			res.AutoMerged = append(res.AutoMerged, model.MergeSuggestion{
				KeepID:     song.ID,
				RemoveID:   songs[m].ID,
				Confidence: conf,
			})
			metrics.RecordDedupeAutoMerge()
			e.logger.Info(ctx, "merged duplicate song",
				logger.String("keep", song.ID),
				logger.String("remove", songs[m].ID),
				logger.Float64("confidence", conf),
			)
		}
	}

	// Borderline pairs among survivors only; anything already merged is
	// settled.
	for a := 0; a < len(canonicalIdx); a++ {
		for b := a + 1; b < len(canonicalIdx); b++ {
			i, j := canonicalIdx[a], canonicalIdx[b]
			if model.ArtistKey(songs[i].Artist) != model.ArtistKey(songs[j].Artist) {
				continue
			}
			ratio := SimilarityRatio(normalized[i], normalized[j])
			if ratio >= e.suggestionThreshold && ratio <= e.autoMergeThreshold {
				res.Suggestions = append(res.Suggestions, model.MergeSuggestion{
					KeepID:     songs[i].ID,
					RemoveID:   songs[j].ID,
					Confidence: ratio,
				})
				metrics.RecordDedupeSuggestion()
			}
		}
	}

	return res
}

// pickCanonical chooses the cluster survivor: most identity signals first,
// then the shorter title, then lexicographic ID for determinism.
func pickCanonical(songs []model.Song, members []int) int {
	best := members[0]
	for _, m := range members[1:] {
		bs, ms := songs[best].IdentitySignals(), songs[m].IdentitySignals()
		switch {
		case ms > bs:
			best = m
		case ms == bs && len(songs[m].Title) < len(songs[best].Title):
			best = m
		case ms == bs && len(songs[m].Title) == len(songs[best].Title) && songs[m].ID < songs[best].ID:
			best = m
		}
	}
	return best
}

// SortSuggestions orders suggestions by confidence descending so reviewers
// see the most likely duplicates first.
func SortSuggestions(suggestions []model.MergeSuggestion) {
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Confidence != suggestions[j].Confidence {
			return suggestions[i].Confidence > suggestions[j].Confidence
		}
		return suggestions[i].RemoveID < suggestions[j].RemoveID
	})
}
