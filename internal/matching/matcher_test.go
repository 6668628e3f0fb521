package matching

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/catalog"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/embedding"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

type downProvider struct{}

func (downProvider) Name() string    { return "down" }
func (downProvider) MaxBatch() int   { return 8 }
func (downProvider) Dimensions() int { return 0 }
func (downProvider) Embed(context.Context, []string, embedding.Role) ([][]float64, error) {
	return nil, errors.New("connection refused")
}

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{Version: 1, Items: []entity.CatalogItem{
		{ID: "P1", Code: "EXC01", Description: "Excavation in soil", Unit: "M3", Rate: 12.5, Category: "Earthworks"},
		{ID: "P2", Code: "CON01", Description: "Concrete grade C25 in slab", Unit: "m3", Rate: 140, Category: "Concrete"},
		{ID: "P3", Code: "PLA01", Description: "Cement sand plaster to walls 12mm thick", Unit: "m2", Rate: 9.75, Category: "Finishes"},
		{ID: "P4", Code: "PNT01", Description: "Emulsion paint to ceilings two coats", Unit: "m2", Rate: 4.2, Category: "Painting"},
	}}
}

func newTestMatcher(t *testing.T) (*Matcher, *embedding.Registry) {
	t.Helper()
	cache := embedding.NewCache(1000, time.Minute, nil)
	reg := embedding.NewRegistry()
	reg.Register(constants.StrategySemanticLocal, embedding.NewClient(embedding.NewLocalProvider(256), cache, embedding.ClientConfig{}, nil))
	reg.Register(constants.StrategySemanticOpenAI, embedding.NewClient(downProvider{}, cache, embedding.ClientConfig{Retries: 0}, nil))
	return New(reg, NewResultCache(100, time.Minute), Config{LexicalWeight: 0.85, SemanticWeight: 1}, nil), reg
}

func item(row int, desc string, qty float64, unit string, headers ...string) entity.WorkItem {
	return entity.WorkItem{RowNumber: row, Description: desc, Quantity: qty, Unit: unit, ContextHeaders: headers}
}

func TestExactCodeScenario(t *testing.T) {
	m, _ := newTestMatcher(t)
	res, err := m.Match(context.Background(), item(1, "EXC01", 10, ""), constants.StrategyLexical, testSnapshot())
	require.NoError(t, err)
	assert.Equal(t, entity.KindMatched, res.Kind)
	assert.Equal(t, "P1", res.MatchedItemID())
	assert.GreaterOrEqual(t, res.Confidence, 0.9)
	assert.Equal(t, constants.MethodLexical, res.Method)
	assert.InDelta(t, 125.0, res.TotalPrice(), 1e-9)
}

func TestRejectsInvalidInput(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()

	_, err := m.Match(ctx, item(1, "   ", 1, ""), constants.StrategyLexical, testSnapshot())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = m.Match(ctx, item(1, "slab", 1, ""), constants.Strategy("FANCY"), testSnapshot())
	assert.ErrorIs(t, err, common.ErrInvalidInput)

	_, err = m.Match(ctx, item(1, "slab", 1, ""), constants.StrategySemanticOllama, testSnapshot())
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestFallbackMatchesLexical(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()
	line := item(7, "Excavate trench in soil", 12, "m3", "Earthworks")

	lex, err := m.MatchItems(ctx, line, constants.StrategyLexical, testSnapshot().Items)
	require.NoError(t, err)

	fb, err := m.MatchItems(ctx, line, constants.StrategySemanticOpenAI, testSnapshot().Items)
	require.NoError(t, err)
	assert.Equal(t, lex.Confidence, fb.Confidence)
	assert.Equal(t, lex.MatchedItemID(), fb.MatchedItemID())
	assert.Equal(t, constants.MethodLexical, fb.Method)
	assert.Equal(t, constants.StrategySemanticOpenAI, fb.FallbackFrom)
	assert.Contains(t, fb.Notes, "fallback from SEMANTIC_OPENAI")
}

func TestSemanticWithoutCatalogVectorsFallsBack(t *testing.T) {
	m, _ := newTestMatcher(t)
	res, err := m.MatchItems(context.Background(), item(1, "Excavation in soil", 3, "m3"), constants.StrategySemanticLocal, testSnapshot().Items)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodLexical, res.Method)
	assert.Equal(t, constants.StrategySemanticLocal, res.FallbackFrom)
}

func TestSemanticLocalAfterWarm(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()
	snap := testSnapshot()
	require.NoError(t, m.WarmCatalog(ctx, constants.StrategySemanticLocal, snap))

	res, err := m.Match(ctx, item(2, "Excavation in soil", 3, "m3"), constants.StrategySemanticLocal, snap)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodSemanticLocal, res.Method)
	assert.Equal(t, "P1", res.MatchedItemID())
	assert.LessOrEqual(t, res.Confidence, 0.99)
	assert.Empty(t, res.FallbackFrom)
}

func TestHybridPicksWeightedBest(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()
	snap := testSnapshot()
	require.NoError(t, m.WarmCatalog(ctx, constants.StrategySemanticLocal, snap))

	res, err := m.Match(ctx, item(3, "Emulsion paint to ceilings", 40, "m2"), constants.StrategyHybrid, snap)
	require.NoError(t, err)
	assert.Equal(t, constants.MethodHybrid, res.Method)
	assert.Equal(t, "P4", res.MatchedItemID())
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
	assert.LessOrEqual(t, res.Confidence, 1.0)
	assert.Contains(t, res.Notes, "LEXICAL")
}

func TestResultCacheRebasesRows(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()
	snap := testSnapshot()

	first, err := m.Match(ctx, item(1, "Plaster to walls", 10, "m2"), constants.StrategyLexical, snap)
	require.NoError(t, err)
	second, err := m.Match(ctx, item(9, "plaster to walls!", 4, "sqm"), constants.StrategyLexical, snap)
	require.NoError(t, err)

	assert.Equal(t, int64(1), m.results.Hits())
	assert.Equal(t, 9, second.RowNumber)
	assert.Equal(t, 4.0, second.Quantity)
	assert.Equal(t, first.MatchedItemID(), second.MatchedItemID())
	assert.Equal(t, first.Confidence, second.Confidence)

	snap.Version = 2
	_, err = m.Match(ctx, item(1, "Plaster to walls", 10, "m2"), constants.StrategyLexical, snap)
	require.NoError(t, err)
	assert.Equal(t, int64(1), m.results.Hits(), "new catalog version misses")
}

func TestResultCacheHitsDoNotShareState(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()
	snap := testSnapshot()

	first, err := m.Match(ctx, item(1, "Plaster to walls", 10, "m2", "Finishes"), constants.StrategyLexical, snap)
	require.NoError(t, err)
	require.NotEmpty(t, first.Breakdown)
	want := first.Breakdown["total"]
	require.NotNil(t, first.Match)
	wantRate := first.Match.Rate

	second, err := m.Match(ctx, item(2, "Plaster to walls", 3, "m2", "Finishes"), constants.StrategyLexical, snap)
	require.NoError(t, err)
	third, err := m.Match(ctx, item(3, "Plaster to walls", 5, "m2", "Finishes"), constants.StrategyLexical, snap)
	require.NoError(t, err)
	require.Equal(t, int64(2), m.results.Hits())

	first.Breakdown["total"] = -1
	second.Breakdown["total"] = -2
	second.ContextHeaders[0] = "changed"
	second.Match.Rate = -3

	assert.Equal(t, want, third.Breakdown["total"])
	assert.Equal(t, "Finishes", third.ContextHeaders[0])
	assert.Equal(t, wantRate, third.Match.Rate)

	fourth, err := m.Match(ctx, item(4, "Plaster to walls", 1, "m2", "Finishes"), constants.StrategyLexical, snap)
	require.NoError(t, err)
	assert.Equal(t, want, fourth.Breakdown["total"])
	assert.Equal(t, wantRate, fourth.Match.Rate)
}

func TestDeterministicAcrossCalls(t *testing.T) {
	m, _ := newTestMatcher(t)
	ctx := context.Background()
	line := item(5, "Concrete C25 to ground slab", 8, "m3", "Substructure")

	first, err := m.Match(ctx, line, constants.StrategyLexical, testSnapshot())
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		m.PurgeResults()
		again, err := m.Match(ctx, line, constants.StrategyLexical, testSnapshot())
		require.NoError(t, err)
		assert.Equal(t, first.MatchedItemID(), again.MatchedItemID())
		assert.Equal(t, first.Confidence, again.Confidence)
	}
	assert.Equal(t, "P2", first.MatchedItemID())
}

func TestNegativeRateIsInvariantViolation(t *testing.T) {
	m, _ := newTestMatcher(t)
	items := []entity.CatalogItem{{ID: "X", Description: "Broken rate item", Unit: "nr", Rate: -1}}
	_, err := m.MatchItems(context.Background(), item(1, "Broken rate item", 1, "nr"), constants.StrategyLexical, items)
	assert.ErrorIs(t, err, common.ErrInvariantViolation)
}

func TestEmptyCatalogIsUnmatched(t *testing.T) {
	m, _ := newTestMatcher(t)
	res, err := m.MatchItems(context.Background(), item(1, "anything", 1, ""), constants.StrategyLexical, nil)
	require.NoError(t, err)
	assert.Equal(t, entity.KindUnmatched, res.Kind)
	assert.NoError(t, res.Validate())
}
