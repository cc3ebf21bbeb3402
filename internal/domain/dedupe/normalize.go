package dedupe

import (
	"regexp"
	"sort"
	"strings"

	"github.com/agnivade/levenshtein"
)

var (
	parentheticalRe = regexp.MustCompile(`\([^)]*\)|\[[^\]]*\]`)
	nonAlnumRe      = regexp.MustCompile(`[^a-z0-9\s]`)
	spaceRe         = regexp.MustCompile(`\s+`)
)

// Qualifier tokens that describe a release variant rather than the song
// itself. Stripped so "Song (2011 Remaster)" and "Song" normalize alike.
var qualifierTokens = map[string]struct{}{
	"remaster":   {},
	"remastered": {},
	"remix":      {},
	"mix":        {},
	"live":       {},
	"acoustic":   {},
	"demo":       {},
	"version":    {},
	"edit":       {},
	"edition":    {},
	"deluxe":     {},
	"mono":       {},
	"stereo":     {},
	"single":     {},
	"bonus":      {},
	"feat":       {},
	"featuring":  {},
	"ft":         {},
}

// Normalize reduces a title to its comparable core: lowercase, parenthetical
// and bracketed segments removed, variant qualifiers dropped, punctuation
// stripped, whitespace collapsed.
func Normalize(title string) string {
	s := strings.ToLower(title)
	s = parentheticalRe.ReplaceAllString(s, " ")
	s = nonAlnumRe.ReplaceAllString(s, " ")

	fields := strings.Fields(s)
	kept := fields[:0]
	for _, f := range fields {
		if _, drop := qualifierTokens[f]; !drop {
			kept = append(kept, f)
		}
	}
	return spaceRe.ReplaceAllString(strings.TrimSpace(strings.Join(kept, " ")), " ")
}

// tokenSort rebuilds a normalized string with its tokens in sorted order, so
// word reordering ("Hello World" vs "World Hello") does not defeat matching.
func tokenSort(normalized string) string {
	fields := strings.Fields(normalized)
	sort.Strings(fields)
	return strings.Join(fields, " ")
}

// SimilarityRatio scores two normalized titles 0..100 using Levenshtein
// distance over their token-sorted forms.
func SimilarityRatio(a, b string) float64 {
	sa, sb := tokenSort(a), tokenSort(b)
	if sa == sb {
		return 100
	}
	longest := len(sa)
	if len(sb) > longest {
		longest = len(sb)
	}
	if longest == 0 {
		return 0
	}
	dist := levenshtein.ComputeDistance(sa, sb)
	return 100 * (1 - float64(dist)/float64(longest))
}
