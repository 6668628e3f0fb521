package repository

import (
	"context"
	"fmt"
)

const (
	tableCatalog = "catalog_items"
	tableJobs    = "match_jobs"
	tableResults = "match_results"
)

// Portable DDL: the same statements run on Postgres and SQLite. Times are
// unix milliseconds and list fields are JSON text.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS catalog_items (
		id                 TEXT NOT NULL PRIMARY KEY,
		code               TEXT,
		description        TEXT NOT NULL,
		category           TEXT,
		subcategory        TEXT,
		unit               TEXT,
		rate               DOUBLE PRECISION NOT NULL DEFAULT 0,
		keywords           TEXT,
		embedding          TEXT,
		embedding_provider TEXT,
		active             BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at         BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS match_jobs (
		id              TEXT NOT NULL PRIMARY KEY,
		owner_id        TEXT,
		name            TEXT,
		strategy        TEXT,
		status          TEXT NOT NULL,
		progress        INTEGER NOT NULL DEFAULT 0,
		item_count      INTEGER NOT NULL DEFAULT 0,
		processed_count INTEGER NOT NULL DEFAULT 0,
		matched_count   INTEGER NOT NULL DEFAULT 0,
		message         TEXT,
		created_at      BIGINT,
		updated_at      BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS match_results (
		job_id              TEXT NOT NULL,
		row_num             INTEGER NOT NULL,
		kind                TEXT NOT NULL,
		description         TEXT,
		quantity            DOUBLE PRECISION,
		unit                TEXT,
		context_headers     TEXT,
		method              TEXT,
		confidence          DOUBLE PRECISION,
		matched_item_id     TEXT,
		matched_description TEXT,
		matched_code        TEXT,
		matched_unit        TEXT,
		matched_rate        DOUBLE PRECISION,
		total_price         DOUBLE PRECISION,
		fallback_from       TEXT,
		notes               TEXT,
		created_at          BIGINT,
		PRIMARY KEY (job_id, row_num)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_match_results_job ON match_results (job_id)`,
	`CREATE INDEX IF NOT EXISTS idx_catalog_items_active ON catalog_items (active)`,
}

// Migrate creates missing tables. It is idempotent.
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := db.SQL.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
