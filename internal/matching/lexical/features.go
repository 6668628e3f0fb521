package lexical

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/boq-matcher/constants"
)

// Features are structured construction signals pulled out of a description.
type Features struct {
	WorkType   constants.WorkType
	Materials  []string
	Grade      string
	MixRatio   string
	Dimensions []string
}

var (
	gradeRe = regexp.MustCompile(`(?i)\b(c\d{2}(?:/\d{2})?|m\d{2}|fe\s?\d{3}|grade\s?\d{2,3}|class\s?[a-z0-9]+)\b`)
	mixRe   = regexp.MustCompile(`\b\d+(?:\.\d+)?\s*:\s*\d+(?:\.\d+)?(?:\s*:\s*\d+(?:\.\d+)?)?\b`)
	sizeRe  = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:mm|cm|m)\b`)
	crossRe = regexp.MustCompile(`(?i)\b\d+\s*x\s*\d+(?:\s*x\s*\d+)?\b`)
	spaceIn = strings.NewReplacer(" ", "", "\t", "")
)

var materialSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(constants.Materials))
	for _, m := range constants.Materials {
		set[m] = struct{}{}
	}
	return set
}()

// ExtractFeatures detects work type, materials, grade, mix ratio and dimensions.
func ExtractFeatures(text string) Features {
	lower := strings.ToLower(text)
	v := buildVariants(text, nil)
	return extractFeatures(lower, v)
}

func extractFeatures(lower string, v textVariants) Features {
	f := Features{WorkType: dominantWorkType(v.industry)}

	seen := make(map[string]struct{})
	for _, t := range v.industry {
		if _, ok := materialSet[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		f.Materials = append(f.Materials, t)
	}

	if m := gradeRe.FindString(lower); m != "" {
		f.Grade = spaceIn.Replace(m)
	}
	if m := mixRe.FindString(lower); m != "" {
		f.MixRatio = spaceIn.Replace(m)
	}
	for _, m := range crossRe.FindAllString(lower, -1) {
		f.Dimensions = append(f.Dimensions, spaceIn.Replace(m))
	}
	for _, m := range sizeRe.FindAllString(lower, -1) {
		f.Dimensions = append(f.Dimensions, spaceIn.Replace(m))
	}
	return f
}

// dominantWorkType picks the work type with the most keyword hits; ties go
// to the earlier entry of the taxonomy.
func dominantWorkType(tokens []string) constants.WorkType {
	hits := make(map[constants.WorkType]int)
	for _, t := range tokens {
		if wt, ok := constants.LookupKeyword(t); ok {
			hits[wt]++
		}
	}
	best, bestHits := constants.OtherWorkType, 0
	for _, wt := range constants.WorkTypes() {
		if hits[wt] > bestHits {
			best, bestHits = wt, hits[wt]
		}
	}
	return best
}

// domainKeywords returns the taxonomy keywords present in tokens.
func domainKeywords(tokens []string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, t := range tokens {
		if _, ok := constants.LookupKeyword(t); ok {
			out[t] = struct{}{}
		}
	}
	return out
}

func sharesAny(a, b []string) bool {
	for _, x := range a {
		for _, y := range b {
			if x == y {
				return true
			}
		}
	}
	return false
}

// featureScore rates two feature sets out of 30.
func featureScore(q, c Features) float64 {
	var s float64
	if q.WorkType != constants.OtherWorkType && q.WorkType == c.WorkType {
		s += 12
	}
	if sharesAny(q.Materials, c.Materials) {
		s += 8
	}
	if q.Grade != "" && q.Grade == c.Grade {
		s += 6
	}
	if q.MixRatio != "" && q.MixRatio == c.MixRatio {
		s += 2
	}
	if sharesAny(q.Dimensions, c.Dimensions) {
		s += 2
	}
	return s
}
