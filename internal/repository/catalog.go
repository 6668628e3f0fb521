package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// CatalogRepository reads and maintains the priced reference catalog.
type CatalogRepository interface {
	GetActiveCatalogItems(ctx context.Context) ([]entity.CatalogItem, error)
	UpsertItems(ctx context.Context, items []entity.CatalogItem) error
	SaveEmbeddings(ctx context.Context, provider string, vectors map[string][]float64) error
	Deactivate(ctx context.Context, ids ...string) error
	Count(ctx context.Context) (int, error)
}

type catalogRepo struct {
	db     *DB
	logger *slog.Logger
}

func NewCatalogRepository(db *DB, logger *slog.Logger) CatalogRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &catalogRepo{db: db, logger: logger}
}

var catalogColumns = []string{
	"id", "code", "description", "category", "subcategory", "unit",
	"rate", "keywords", "embedding", "embedding_provider",
}

func (r *catalogRepo) GetActiveCatalogItems(ctx context.Context) ([]entity.CatalogItem, error) {
	b := r.db.builder()
	query, args := b.Select(catalogColumns...).
		From(b.Table(tableCatalog)).
		Where(entsql.EQ("active", true)).
		OrderBy("id").
		Query()

	rows, err := r.db.SQL.QueryContext(ctx, query, args...)
	if err != nil {
		r.logger.Error("catalog.list failed", "err", err)
		return nil, fmt.Errorf("%w: list catalog: %w", common.ErrDatabase, err)
	}
	defer rows.Close()

	var items []entity.CatalogItem
	for rows.Next() {
		var (
			it                                     entity.CatalogItem
			code, category, subcategory, unit      sql.NullString
			keywords, embedding, embeddingProvider sql.NullString
		)
		if err := rows.Scan(&it.ID, &code, &it.Description, &category, &subcategory, &unit,
			&it.Rate, &keywords, &embedding, &embeddingProvider); err != nil {
			return nil, fmt.Errorf("%w: scan catalog item: %w", common.ErrDatabase, err)
		}
		it.Code, it.Category, it.Subcategory, it.Unit = code.String, category.String, subcategory.String, unit.String
		it.EmbeddingProvider = embeddingProvider.String
		if err := decodeJSON(keywords, &it.Keywords); err != nil {
			r.logger.Warn("catalog.keywords.decode_failed", "id", it.ID, "err", err)
		}
		if err := decodeJSON(embedding, &it.Embedding); err != nil {
			r.logger.Warn("catalog.embedding.decode_failed", "id", it.ID, "err", err)
			it.Embedding, it.EmbeddingProvider = nil, ""
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: iterate catalog: %w", common.ErrDatabase, err)
	}
	r.logger.Debug("catalog.list", "items", len(items))
	return items, nil
}

func (r *catalogRepo) UpsertItems(ctx context.Context, items []entity.CatalogItem) error {
	if len(items) == 0 {
		return nil
	}
	now := time.Now().UnixMilli()
	ins := r.db.builder().Insert(tableCatalog).
		Columns(append(append([]string{}, catalogColumns...), "active", "updated_at")...)
	for _, it := range items {
		if it.ID == "" || it.Description == "" {
			return common.InvalidInputf("catalog item requires id and description (id=%q)", it.ID)
		}
		if it.Rate < 0 {
			return common.InvalidInputf("catalog item %s has negative rate", it.ID)
		}
		ins.Values(it.ID, nullable(it.Code), it.Description, nullable(it.Category), nullable(it.Subcategory),
			nullable(it.Unit), it.Rate, encodeJSON(it.Keywords), encodeJSON(it.Embedding),
			nullable(it.EmbeddingProvider), true, now)
	}
	query, args := ins.OnConflict(entsql.ConflictColumns("id"), entsql.ResolveWithNewValues()).Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, args...); err != nil {
		r.logger.Error("catalog.upsert failed", "items", len(items), "err", err)
		return fmt.Errorf("%w: upsert catalog: %w", common.ErrDatabase, err)
	}
	r.logger.Info("catalog.upsert", "items", len(items))
	return nil
}

func (r *catalogRepo) SaveEmbeddings(ctx context.Context, provider string, vectors map[string][]float64) error {
	if len(vectors) == 0 {
		return nil
	}
	tx, err := r.db.SQL.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin: %w", common.ErrDatabase, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UnixMilli()
	for id, vec := range vectors {
		query, args := r.db.builder().Update(tableCatalog).
			Set("embedding", encodeJSON(vec)).
			Set("embedding_provider", provider).
			Set("updated_at", now).
			Where(entsql.EQ("id", id)).
			Query()
		if _, err := tx.ExecContext(ctx, query, args...); err != nil {
			return fmt.Errorf("%w: save embedding %s: %w", common.ErrDatabase, id, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit: %w", common.ErrDatabase, err)
	}
	r.logger.Info("catalog.embeddings.saved", "provider", provider, "items", len(vectors))
	return nil
}

func (r *catalogRepo) Deactivate(ctx context.Context, ids ...string) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	query, qargs := r.db.builder().Update(tableCatalog).
		Set("active", false).
		Set("updated_at", time.Now().UnixMilli()).
		Where(entsql.In("id", args...)).
		Query()
	if _, err := r.db.SQL.ExecContext(ctx, query, qargs...); err != nil {
		return fmt.Errorf("%w: deactivate: %w", common.ErrDatabase, err)
	}
	return nil
}

func (r *catalogRepo) Count(ctx context.Context) (int, error) {
	b := r.db.builder()
	query, args := b.Select(entsql.Count("*")).
		From(b.Table(tableCatalog)).
		Where(entsql.EQ("active", true)).
		Query()
	var n int
	if err := r.db.SQL.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count catalog: %w", common.ErrDatabase, err)
	}
	return n, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func encodeJSON[T any](v []T) any {
	if len(v) == 0 {
		return nil
	}
	bs, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return string(bs)
}

func decodeJSON[T any](s sql.NullString, out *[]T) error {
	if !s.Valid || s.String == "" {
		return nil
	}
	return json.Unmarshal([]byte(s.String), out)
}
