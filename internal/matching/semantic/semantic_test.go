package semantic

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, Cosine([]float64{1, 2, 3}, []float64{2, 4, 6}), 1e-12)
	assert.InDelta(t, 0.0, Cosine([]float64{1, 0}, []float64{0, 1}), 1e-12)
	assert.InDelta(t, -1.0, Cosine([]float64{1, 0}, []float64{-1, 0}), 1e-12)
	assert.Zero(t, Cosine([]float64{0, 0}, []float64{1, 1}))
	assert.Zero(t, Cosine([]float64{1}, []float64{1, 1}))
}

func TestEnrichedTextIsStable(t *testing.T) {
	item := entity.CatalogItem{
		Description: "Excavation in soil",
		Category:    "Earthworks",
		Unit:        "m3",
		Keywords:    []string{"dig", " ", "trench"},
		Code:        "EXC01",
	}
	want := "Excavation in soil\nCategory: Earthworks\nUnit: m3\nKeywords: dig, trench\nCode: EXC01"
	assert.Equal(t, want, ItemText(item))
	assert.Equal(t, ItemText(item), ItemText(item))

	q := QueryText("Excavate trench", "m3", []string{"Substructure", "Earthworks"})
	assert.Equal(t, "Excavate trench\nContext: Substructure > Earthworks\nUnit: m3", q)
}

func TestRankUnitBonusBreaksNearTies(t *testing.T) {
	query := []float64{1, 0, 0}
	cands := []Candidate{
		{Item: entity.CatalogItem{ID: "kg", Unit: "kg"}, Vector: []float64{1, 0.05, 0}},
		{Item: entity.CatalogItem{ID: "sqm", Unit: "sqm"}, Vector: []float64{1, 0.2, 0}},
		{Item: entity.CatalogItem{ID: "none"}},
	}
	ranked := Rank(query, cands, "m2")
	require.Len(t, ranked, 2)
	assert.Equal(t, "sqm", ranked[0].Item.ID)
	assert.Greater(t, ranked[1].Similarity, ranked[0].Similarity)
}

func TestConfidenceNeverReachesOne(t *testing.T) {
	query := []float64{0.3, 0.4}
	cands := []Candidate{{Item: entity.CatalogItem{ID: "A", Unit: "m2"}, Vector: []float64{0.3, 0.4}}}
	best, conf, ok := Best(query, cands, "sqm")
	require.True(t, ok)
	assert.Equal(t, "A", best.Item.ID)
	assert.Equal(t, 0.99, conf)

	neg := Ranked{Item: entity.CatalogItem{ID: "B"}, Similarity: -0.4}
	assert.Zero(t, Confidence(neg, ""))

	_, _, ok = Best(query, []Candidate{{Item: entity.CatalogItem{ID: "C"}}}, "")
	assert.False(t, ok)
	_, _, ok = Best(nil, cands, "")
	assert.False(t, ok)
}
