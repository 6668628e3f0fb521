package matching

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

func testConfig() *common.Config {
	return &common.Config{
		Database:  common.DatabaseConfig{Driver: "memory"},
		Scheduler: common.SchedulerConfig{TickInterval: 2 * time.Millisecond, BatchSize: 10, Retention: time.Minute},
		Writer:    common.WriterConfig{ChunkSize: 50, MaxFailures: 3},
		Catalog:   common.CatalogConfig{TTL: time.Minute},
		Cache:     common.CacheConfig{EmbeddingSize: 500, EmbeddingTTL: time.Minute, ResultSize: 100, ResultTTL: time.Minute},
		Matching:  common.MatchingConfig{LexicalWeight: 0.85, SemanticWeight: 1},
		Embedding: common.EmbeddingConfig{LocalDims: 128, Timeout: time.Second},
	}
}

func newRuntime(t *testing.T) *Runtime {
	t.Helper()
	ctx := context.Background()
	rt, err := Open(ctx, testConfig(), nil)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		rt.Close(ctx)
	})
	require.NoError(t, rt.Catalog.UpsertItems(ctx, []entity.CatalogItem{
		{ID: "P1", Code: "EXC01", Description: "Excavation in soil", Unit: "M3", Rate: 12.5, Category: "Earthworks"},
		{ID: "P2", Code: "CON01", Description: "Concrete grade C25 in slab", Unit: "m3", Rate: 140, Category: "Concrete"},
		{ID: "P3", Code: "PLA01", Description: "Cement sand plaster to walls", Unit: "m2", Rate: 9.75, Category: "Finishes"},
	}))
	return rt
}

func waitTerminal(t *testing.T, e *Engine, id uuid.UUID) entity.JobSnapshot {
	t.Helper()
	var snap entity.JobSnapshot
	require.Eventually(t, func() bool {
		var err error
		snap, err = e.GetJobStatus(context.Background(), id)
		return err == nil && snap.Status.IsTerminal()
	}, 3*time.Second, 5*time.Millisecond)
	return snap
}

func TestSubmitJobValidation(t *testing.T) {
	e := newRuntime(t).Engine
	ctx := context.Background()
	line := []entity.WorkItem{{Description: "Excavate", Quantity: 1}}

	cases := map[string]SubmitRequest{
		"missing owner":       {Items: line},
		"no items":            {OwnerID: "o"},
		"blank description":   {OwnerID: "o", Items: []entity.WorkItem{{Description: " ", Quantity: 1}}},
		"negative quantity":   {OwnerID: "o", Items: []entity.WorkItem{{Description: "x", Quantity: -2}}},
		"unknown strategy":    {OwnerID: "o", Items: line, Strategy: "magic"},
		"unconfigured ollama": {OwnerID: "o", Items: line, Strategy: "SEMANTIC_OLLAMA"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := e.SubmitJob(ctx, req)
			assert.ErrorIs(t, err, common.ErrInvalidInput)
		})
	}
}

func TestJobRunsToCompletion(t *testing.T) {
	e := newRuntime(t).Engine
	ctx := context.Background()

	items := []entity.WorkItem{
		{Description: "EARTHWORKS"},
		{Description: "Excavate trench in soil", Quantity: 12, Unit: "m3", ContextHeaders: []string{"EARTHWORKS"}},
		{Description: "CONCRETE WORK"},
		{Description: "Concrete C25 to slab", Quantity: 4.5, Unit: "m3", ContextHeaders: []string{"CONCRETE WORK"}},
		{Description: "Plaster to walls", Quantity: 30, Unit: "sqm"},
	}
	id, err := e.SubmitJob(ctx, SubmitRequest{OwnerID: "owner-1", Name: "block A", Strategy: "hybrid", Items: items})
	require.NoError(t, err)

	snap := waitTerminal(t, e, id)
	assert.Equal(t, constants.JobStatusCompleted, snap.Status)
	assert.Equal(t, constants.StrategyHybrid, snap.Strategy)
	assert.Equal(t, 5, snap.Processed)
	assert.Equal(t, 2, snap.ContextCount)
	assert.Equal(t, snap.Processed, snap.MatchedCount+snap.ContextCount+snap.Unmatched)

	rows, err := e.Results(ctx, id)
	require.NoError(t, err)
	require.Len(t, rows, 5)
	assert.Equal(t, 1, rows[0].RowNumber, "row numbers default to submission order")
	assert.Equal(t, constants.MethodContext, rows[0].Method)
	assert.Equal(t, "P1", rows[1].MatchedItemID())
	assert.Equal(t, constants.MethodHybrid, rows[1].Method)
	assert.Equal(t, "P2", rows[3].MatchedItemID())

	_, events, stop, err := e.Subscribe(ctx, id)
	require.NoError(t, err)
	defer stop()
	_, open := <-events
	assert.False(t, open, "finished jobs have nothing left to stream")
}

func TestMatchSingle(t *testing.T) {
	e := newRuntime(t).Engine
	ctx := context.Background()

	res, err := e.MatchSingle(ctx, MatchRequest{Description: "EXC01"})
	require.NoError(t, err)
	assert.Equal(t, "P1", res.MatchedItemID())
	assert.GreaterOrEqual(t, res.Confidence, 0.9)

	res, err = e.MatchSingle(ctx, MatchRequest{Description: "concrete slab c25", Unit: "m3", Strategy: "local"})
	require.NoError(t, err)
	assert.Equal(t, "P2", res.MatchedItemID())
	assert.Equal(t, constants.MethodSemanticLocal, res.Method)

	_, err = e.MatchSingle(ctx, MatchRequest{Description: ""})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestUnknownJob(t *testing.T) {
	e := newRuntime(t).Engine
	ctx := context.Background()
	_, err := e.GetJobStatus(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, err = e.Results(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	_, _, _, err = e.Subscribe(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.False(t, e.CancelJob(ctx, uuid.New()))
}

func TestQueueStatusAndCancelAll(t *testing.T) {
	e := newRuntime(t).Engine
	ctx := context.Background()

	many := make([]entity.WorkItem, 400)
	for i := range many {
		many[i] = entity.WorkItem{Description: "Excavate trench in soil", Quantity: 1, Unit: "m3"}
	}
	var ids []uuid.UUID
	for i := 0; i < 3; i++ {
		id, err := e.SubmitJob(ctx, SubmitRequest{OwnerID: "o", Items: many})
		require.NoError(t, err)
		ids = append(ids, id)
	}
	st := e.GetQueueStatus(ctx)
	total := 0
	for _, n := range st.Counts {
		total += n
	}
	assert.Equal(t, 3, total)

	e.CancelAllJobs(ctx)
	for _, id := range ids {
		snap := waitTerminal(t, e, id)
		assert.Contains(t, []constants.JobStatus{constants.JobStatusCancelled, constants.JobStatusCompleted}, snap.Status)
	}
	st = e.GetQueueStatus(ctx)
	assert.Zero(t, st.QueueLength)
	assert.False(t, st.IsProcessing)
}
