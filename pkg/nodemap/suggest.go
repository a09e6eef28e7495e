package nodemap

import (
	"cmp"
	"slices"
	"strings"

	"github.com/agext/levenshtein"
)

const (
	maxSuggestions = 16
	minSimilarity  = 0.15

	// substringScore is the floor for candidates that contain the query,
	// so short partial names ("Exp") still rank ExposureTime and friends.
	substringScore = 0.5
)

// Suggest returns up to 16 candidates similar to name, best match first.
func Suggest(name string, candidates []string) []string {
	type scored struct {
		name  string
		score float64
	}
	q := strings.ToLower(name)
	var matches []scored
	for _, c := range candidates {
		lc := strings.ToLower(c)
		s := levenshtein.Similarity(q, lc, nil)
		if q != "" && strings.Contains(lc, q) {
			s = max(s, substringScore)
		}
		if s >= minSimilarity {
			matches = append(matches, scored{name: c, score: s})
		}
	}
	slices.SortFunc(matches, func(a, b scored) int {
		if c := cmp.Compare(b.score, a.score); c != 0 {
			return c
		}
		return cmp.Compare(a.name, b.name)
	})
	if len(matches) > maxSuggestions {
		matches = matches[:maxSuggestions]
	}
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = m.name
	}
	return out
}
