package repository

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(context.Background(), common.DatabaseConfig{Driver: "sqlite", DSN: ":memory:"}, quietLogger())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close(quietLogger()) })
	return db
}

func TestMigrateIsIdempotent(t *testing.T) {
	db := openTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))
	require.NoError(t, db.HealthCheck(context.Background(), time.Second, quietLogger()))
}

func TestCatalogRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewCatalogRepository(openTestDB(t), quietLogger())

	require.NoError(t, repo.UpsertItems(ctx, []entity.CatalogItem{
		{ID: "P2", Description: "Concrete grade C25", Unit: "m3", Rate: 140, Keywords: []string{"concrete", "slab"}},
		{ID: "P1", Code: "EXC01", Description: "Excavation in soil", Unit: "M3", Rate: 12.5, Category: "Earthworks"},
	}))

	items, err := repo.GetActiveCatalogItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "P1", items[0].ID)
	assert.Equal(t, "EXC01", items[0].Code)
	assert.Equal(t, []string{"concrete", "slab"}, items[1].Keywords)

	require.NoError(t, repo.UpsertItems(ctx, []entity.CatalogItem{{ID: "P1", Description: "Excavation in soil", Unit: "m3", Rate: 13}}))
	require.NoError(t, repo.SaveEmbeddings(ctx, "local:hash4", map[string][]float64{"P1": {0.5, 0.5, 0.5, 0.5}}))
	require.NoError(t, repo.Deactivate(ctx, "P2"))

	items, err = repo.GetActiveCatalogItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, 13.0, items[0].Rate)
	assert.True(t, items[0].HasEmbeddingFrom("local:hash4"))

	n, err := repo.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	err = repo.UpsertItems(ctx, []entity.CatalogItem{{ID: "X", Description: "bad", Rate: -1}})
	assert.ErrorIs(t, err, common.ErrInvalidInput)
}

func TestResultRepositoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := NewResultRepository(openTestDB(t), quietLogger())
	jobID := uuid.New()

	require.NoError(t, repo.UpsertJob(ctx, entity.JobSnapshot{
		JobID: jobID, OwnerID: "owner-1", Status: constants.JobStatusPending,
		Strategy: constants.StrategyLexical, ItemCount: 2, SubmittedAt: time.Now(),
	}))
	require.NoError(t, repo.UpdateJobStatus(ctx, jobID, constants.JobStatusMatching, 40, "batch 1"))

	snap, err := repo.GetJob(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, constants.JobStatusMatching, snap.Status)
	assert.Equal(t, 40, snap.Progress)
	assert.Equal(t, "owner-1", snap.OwnerID)

	header := entity.NewContextHeader(entity.WorkItem{RowNumber: 1, Description: "EARTHWORKS"})
	header.JobID = jobID.String()
	matched := entity.NewMatched(
		entity.WorkItem{RowNumber: 2, Description: "Excavate", Quantity: 4, Unit: "m3", ContextHeaders: []string{"EARTHWORKS"}},
		entity.CatalogItem{ID: "P1", Description: "Excavation in soil", Unit: "M3", Rate: 12.5},
		constants.MethodLexical, 0.8,
	)
	matched.JobID = jobID.String()

	saved, failed, err := repo.SaveResults(ctx, []entity.MatchResult{header, matched})
	require.NoError(t, err)
	assert.Equal(t, 2, saved)
	assert.Zero(t, failed)

	saved, _, err = repo.SaveResults(ctx, []entity.MatchResult{matched})
	require.NoError(t, err)
	assert.Equal(t, 1, saved)

	rows, err := repo.ListResults(ctx, jobID)
	require.NoError(t, err)
	require.Len(t, rows, 2, "re-saving a row upserts it")
	assert.Equal(t, entity.KindContextHeader, rows[0].Kind)
	assert.Nil(t, rows[0].Match)
	assert.Equal(t, "P1", rows[1].MatchedItemID())
	assert.InDelta(t, 50.0, rows[1].TotalPrice(), 1e-9)
	assert.Equal(t, []string{"EARTHWORKS"}, rows[1].ContextHeaders)

	_, err = repo.GetJob(ctx, uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
	assert.ErrorIs(t, repo.UpdateJobStatus(ctx, uuid.New(), constants.JobStatusFailed, 0, ""), common.ErrNotFound)
}

func TestMemoryStoresMatchSQLBehaviour(t *testing.T) {
	ctx := context.Background()
	cat := NewMemoryCatalog(entity.CatalogItem{ID: "b", Description: "B"}, entity.CatalogItem{ID: "a", Description: "A"})
	require.NoError(t, cat.Deactivate(ctx, "b"))
	items, err := cat.GetActiveCatalogItems(ctx)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "a", items[0].ID)

	res := NewMemoryResults()
	id := uuid.New()
	require.NoError(t, res.UpsertJob(ctx, entity.JobSnapshot{JobID: id, Status: constants.JobStatusPending}))
	require.NoError(t, res.UpdateJobStatus(ctx, id, constants.JobStatusCompleted, 100, ""))
	snap, err := res.GetJob(ctx, id)
	require.NoError(t, err)
	assert.NotNil(t, snap.FinishedAt)
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "postgres://***@db:5432/boq", redact("postgres://user:secret@db:5432/boq"))
	assert.Equal(t, "file:boq.db", redact("file:boq.db"))
}
