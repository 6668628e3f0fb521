package export

import (
	"bytes"
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

type stubSource struct {
	snap    entity.JobSnapshot
	results []entity.MatchResult
}

func (s stubSource) GetJobStatus(_ context.Context, id uuid.UUID) (entity.JobSnapshot, error) {
	if id != s.snap.JobID {
		return entity.JobSnapshot{}, common.NotFound("job")
	}
	return s.snap, nil
}

func (s stubSource) Results(context.Context, uuid.UUID) ([]entity.MatchResult, error) {
	return s.results, nil
}

func TestExportJobXLSX(t *testing.T) {
	id := uuid.New()
	header := entity.NewContextHeader(entity.WorkItem{RowNumber: 1, Description: "EARTHWORKS"})
	matched := entity.NewMatched(
		entity.WorkItem{RowNumber: 2, Description: "Excavate trench", Quantity: 10, Unit: "m3", ContextHeaders: []string{"EARTHWORKS"}},
		entity.CatalogItem{ID: "P1", Code: "EXC01", Description: "Excavation in soil", Unit: "m3", Rate: 12.5},
		constants.MethodLexical, 0.8123,
	)
	matched.FallbackFrom = constants.StrategySemanticOpenAI
	matched.Notes = "provider down"

	src := stubSource{
		snap:    entity.JobSnapshot{JobID: id, Status: constants.JobStatusCompleted, ItemCount: 2, MatchedCount: 1, ContextCount: 1},
		results: []entity.MatchResult{header, matched},
	}
	data, err := NewService(src, nil).ExportJobXLSX(context.Background(), id)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(data))
	require.NoError(t, err)
	defer f.Close()

	rows, err := f.GetRows(resultsSheet)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "Description", rows[0][2])
	assert.Equal(t, "CONTEXT", rows[1][10])
	assert.Equal(t, "EXC01", rows[2][5])
	assert.Equal(t, "125", rows[2][9])
	assert.Equal(t, "0.812", rows[2][11])
	assert.Contains(t, rows[2][12], "fallback from SEMANTIC_OPENAI")

	total, err := f.GetCellValue(summarySheet, "B10")
	require.NoError(t, err)
	assert.Equal(t, "125", total)

	_, err = NewService(src, nil).ExportJobXLSX(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestUnitNote(t *testing.T) {
	rebar := entity.CatalogItem{ID: "P4", Code: "REB01", Description: "Steel reinforcement bars", Unit: "t", Rate: 1900}
	match := func(qty float64, unit string, c entity.CatalogItem) entity.MatchResult {
		return entity.NewMatched(entity.WorkItem{RowNumber: 1, Description: "Rebar", Quantity: qty, Unit: unit}, c, constants.MethodLexical, 0.7)
	}

	assert.Equal(t, "2500 kg = 2.5 t", unitNote(match(2500, "kgs", rebar)))
	assert.Equal(t, "", unitNote(match(3, "tonnes", rebar)))
	assert.Equal(t, "unit m2 does not convert to t", unitNote(match(3, "sqm", rebar)))
	assert.Equal(t, `unrecognised unit "bags"`, unitNote(match(3, "bags", rebar)))
	assert.Equal(t, "", unitNote(entity.NewUnmatched(entity.WorkItem{Description: "x", Unit: "kg"}, constants.MethodLexical, "none")))

	r := match(2500, "kg", rebar)
	r.FallbackFrom = constants.StrategySemanticOpenAI
	r.Notes = "provider down"
	assert.Equal(t, "fallback from SEMANTIC_OPENAI; provider down; 2500 kg = 2.5 t", notes(r))
}
