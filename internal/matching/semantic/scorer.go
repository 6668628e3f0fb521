package semantic

import (
	"math"
	"sort"

	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/units"
)

const (
	unitRankBonus  = 0.1
	exactUnitBoost = 0.05
	maxConfidence  = 0.99
)

// Cosine is dot(a,b)/(|a||b|); 0 when either norm is zero or lengths differ.
func Cosine(a, b []float64) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Candidate is a catalog item with an available vector.
type Candidate struct {
	Item   entity.CatalogItem
	Vector []float64
}

// Ranked is a scored candidate. Similarity is the raw cosine; Adjusted adds
// the unit-compatibility bonus used only for ordering.
type Ranked struct {
	Item       entity.CatalogItem
	Similarity float64
	Adjusted   float64
}

// Rank orders candidates by adjusted similarity, then by id.
func Rank(query []float64, candidates []Candidate, queryUnit string) []Ranked {
	out := make([]Ranked, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Vector) == 0 {
			continue
		}
		sim := Cosine(query, c.Vector)
		adj := sim
		if queryUnit != "" && units.Compatible(queryUnit, c.Item.Unit) {
			adj += unitRankBonus
		}
		out = append(out, Ranked{Item: c.Item, Similarity: sim, Adjusted: adj})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Adjusted != out[j].Adjusted {
			return out[i].Adjusted > out[j].Adjusted
		}
		return out[i].Item.ID < out[j].Item.ID
	})
	return out
}

// Confidence converts the winning similarity into a confidence below 1.
func Confidence(r Ranked, queryUnit string) float64 {
	c := r.Similarity
	if queryUnit != "" && units.Equal(queryUnit, r.Item.Unit) {
		c += exactUnitBoost
	}
	return math.Max(0, math.Min(c, maxConfidence))
}

// Best returns the top candidate and its confidence. ok is false when no
// candidate carried a vector.
func Best(query []float64, candidates []Candidate, queryUnit string) (Ranked, float64, bool) {
	if len(query) == 0 {
		return Ranked{}, 0, false
	}
	ranked := Rank(query, candidates, queryUnit)
	if len(ranked) == 0 {
		return Ranked{}, 0, false
	}
	return ranked[0], Confidence(ranked[0], queryUnit), true
}
