package lexical

import (
	"strings"

	"github.com/agext/levenshtein"
)

// ratio is the normalized Levenshtein similarity scaled to 0..100.
func ratio(a, b string) float64 {
	if a == "" && b == "" {
		return 100
	}
	if a == "" || b == "" {
		return 0
	}
	return levenshtein.Similarity(a, b, nil) * 100
}

// TokenSetRatio compares the sorted intersection and differences of two
// token sets so word order and repeated words do not matter.
func TokenSetRatio(a, b []string) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	setA, setB := tokenSet(a), tokenSet(b)

	inter := make(map[string]struct{})
	diffA := make(map[string]struct{})
	diffB := make(map[string]struct{})
	for t := range setA {
		if _, ok := setB[t]; ok {
			inter[t] = struct{}{}
		} else {
			diffA[t] = struct{}{}
		}
	}
	for t := range setB {
		if _, ok := setA[t]; !ok {
			diffB[t] = struct{}{}
		}
	}

	t0 := strings.Join(sortedKeys(inter), " ")
	t1 := strings.TrimSpace(t0 + " " + strings.Join(sortedKeys(diffA), " "))
	t2 := strings.TrimSpace(t0 + " " + strings.Join(sortedKeys(diffB), " "))

	best := ratio(t1, t2)
	if t0 != "" {
		best = max(best, ratio(t0, t1), ratio(t0, t2))
	}
	return best
}

// TextSimilarity is TokenSetRatio over raw strings.
func TextSimilarity(a, b string) float64 {
	return TokenSetRatio(Tokens(a), Tokens(b))
}
