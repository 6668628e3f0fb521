package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// ResultRepository persists job status and match results.
type ResultRepository interface {
	UpsertJob(ctx context.Context, snap entity.JobSnapshot) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, progress int, message string) error
	GetJob(ctx context.Context, jobID uuid.UUID) (*entity.JobSnapshot, error)
	// SaveResults writes a chunk. saved+failed always equals len(results).
	SaveResults(ctx context.Context, results []entity.MatchResult) (saved, failed int, err error)
	ListResults(ctx context.Context, jobID uuid.UUID) ([]entity.MatchResult, error)
}

type resultRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewResultRepository(db *DB, logger *slog.Logger) ResultRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &resultRepo{db: db, logger: logger}
}

func (r *resultRepo) UpsertJob(ctx context.Context, snap entity.JobSnapshot) error {
	now := time.Now().UnixMilli()
	query, args := r.db.builder().Insert(tableJobs).
		Columns("id", "owner_id", "name", "strategy", "status", "progress",
			"item_count", "processed_count", "matched_count", "message", "created_at", "updated_at").
		Values(snap.JobID.String(), snap.OwnerID, nullable(snap.Name), string(snap.Strategy), string(snap.Status), snap.Progress,
			snap.ItemCount, snap.Processed, snap.MatchedCount, nullable(snap.Message), snap.SubmittedAt.UnixMilli(), now).
		OnConflict(
			entsql.ConflictColumns("id"),
			entsql.ResolveWith(func(u *entsql.UpdateSet) {
				u.SetExcluded("status")
				u.SetExcluded("progress")
				u.SetExcluded("processed_count")
				u.SetExcluded("matched_count")
				u.SetExcluded("message")
				u.SetExcluded("updated_at")
			}),
		).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("match_job upsert failed", "job_id", snap.JobID, "err", err)
		return fmt.Errorf("%w: upsert job: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *resultRepo) UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, progress int, message string) error {
	query, args := r.db.builder().Update(tableJobs).
		Set("status", string(status)).
		Set("progress", progress).
		Set("message", nullable(message)).
		Set("updated_at", time.Now().UnixMilli()).
		Where(entsql.EQ("id", jobID.String())).
		Query()
	res, err := r.db.SQL.ExecContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("match_job status update failed", "job_id", jobID, "status", status, "err", err)
		return fmt.Errorf("%w: update job status: %w", common.ErrDatabase, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return common.NotFound(fmt.Sprintf("job %s", jobID))
	}
	return nil
}

func (r *resultRepo) GetJob(ctx context.Context, jobID uuid.UUID) (*entity.JobSnapshot, error) {
	b := r.db.builder()
	query, args := b.Select("id", "owner_id", "name", "strategy", "status", "progress",
		"item_count", "processed_count", "matched_count", "message", "created_at").
		From(b.Table(tableJobs)).
		Where(entsql.EQ("id", jobID.String())).
		Query()

	var (
		snap             entity.JobSnapshot
		id               string
		owner, name, msg sql.NullString
		strategy, status string
		created          int64
	)
	err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&id, &owner, &name, &strategy, &status,
		&snap.Progress, &snap.ItemCount, &snap.Processed, &snap.MatchedCount, &msg, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.NotFound(fmt.Sprintf("job %s", jobID))
	}
	if err != nil {
		return nil, fmt.Errorf("%w: get job: %w", common.ErrDatabase, err)
	}
	snap.JobID = jobID
	snap.OwnerID, snap.Name, snap.Message = owner.String, name.String, msg.String
	snap.Strategy, snap.Status = constants.Strategy(strategy), constants.JobStatus(status)
	snap.SubmittedAt = time.UnixMilli(created).UTC()
	return &snap, nil
}

var resultColumns = []string{
	"job_id", "row_num", "kind", "description", "quantity", "unit", "context_headers",
	"method", "confidence", "matched_item_id", "matched_description", "matched_code",
	"matched_unit", "matched_rate", "total_price", "fallback_from", "notes", "created_at",
}

// SaveResults writes the chunk as one multi-row upsert keyed by
// (job_id, row_num), so retried chunks never duplicate rows.
func (r *resultRepo) SaveResults(ctx context.Context, results []entity.MatchResult) (int, int, error) {
	if len(results) == 0 {
		return 0, 0, nil
	}
	now := time.Now().UnixMilli()
	ins := r.db.builder().Insert(tableResults).Columns(resultColumns...)
	for _, m := range results {
		var itemID, desc, code, unit, rate any
		if m.Match != nil {
			itemID, desc, code, unit, rate = m.Match.ItemID, m.Match.Description, nullable(m.Match.Code), m.Match.Unit, m.Match.Rate
		}
		ins.Values(m.JobID, m.RowNumber, string(m.Kind), m.Description, m.Quantity, nullable(m.Unit),
			encodeJSON(m.ContextHeaders), string(m.Method), m.Confidence, itemID, desc, code, unit, rate,
			m.TotalPrice(), nullable(string(m.FallbackFrom)), nullable(m.Notes), now)
	}
	query, args := ins.OnConflict(entsql.ConflictColumns("job_id", "row_num"), entsql.ResolveWithNewValues()).Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("match_results save failed", "results", len(results), "err", err)
		return 0, len(results), fmt.Errorf("%w: save results: %w", common.ErrDatabase, err)
	}
	return len(results), 0, nil
}

func (r *resultRepo) ListResults(ctx context.Context, jobID uuid.UUID) ([]entity.MatchResult, error) {
	b := r.db.builder()
	query, args := b.Select(resultColumns[:len(resultColumns)-1]...).
		From(b.Table(tableResults)).
		Where(entsql.EQ("job_id", jobID.String())).
		OrderBy("row_num").
		Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list results: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var out []entity.MatchResult
	for rows.Next() {
		var (
			m                                 entity.MatchResult
			kind, method                      string
			unit, headers, fallback, notes    sql.NullString
			itemID, mDesc, mCode, mUnit       sql.NullString
			quantity, confidence, rate, total sql.NullFloat64
		)
		if err := rows.Scan(&m.JobID, &m.RowNumber, &kind, &m.Description, &quantity, &unit, &headers,
			&method, &confidence, &itemID, &mDesc, &mCode, &mUnit, &rate, &total, &fallback, &notes); err != nil {
			return nil, fmt.Errorf("%w: scan result: %w", common.ErrDatabase, err)
		}
		m.Kind, m.Method = entity.ResultKind(kind), constants.Method(method)
		m.Quantity, m.Confidence = quantity.Float64, confidence.Float64
		m.Unit, m.FallbackFrom, m.Notes = unit.String, constants.Strategy(fallback.String), notes.String
		if err := decodeJSON(headers, &m.ContextHeaders); err != nil {
			r.logger.Warn("match_results.headers.decode_failed", "job_id", jobID, "row", m.RowNumber, "err", err)
		}
		if itemID.Valid {
			m.Match = &entity.CatalogMatch{
				ItemID:      itemID.String,
				Description: mDesc.String,
				Code:        mCode.String,
				Unit:        mUnit.String,
				Rate:        rate.Float64,
			}
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate results: %w", common.ErrDatabase, err)
	}
	return out, nil
}
