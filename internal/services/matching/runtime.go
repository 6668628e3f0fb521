package matching

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/joseph-ayodele/boq-matcher/internal/async"
	"github.com/joseph-ayodele/boq-matcher/internal/catalog"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/core"
	"github.com/joseph-ayodele/boq-matcher/internal/embedding"
	"github.com/joseph-ayodele/boq-matcher/internal/events"
	"github.com/joseph-ayodele/boq-matcher/internal/ingest"
	scoring "github.com/joseph-ayodele/boq-matcher/internal/matching"
	"github.com/joseph-ayodele/boq-matcher/internal/repository"
)

// Runtime is the composition root shared by the daemon and the CLIs.
type Runtime struct {
	Engine     *Engine
	Catalog    repository.CatalogRepository
	Results    repository.ResultRepository
	Embeddings *embedding.Registry
	Hub        *events.Hub

	catalogs *catalog.Cache
	db       *repository.DB
	redis    *events.RedisSink
	log      *slog.Logger
}

// Open wires stores, caches, scorers and the scheduler from cfg.
func Open(ctx context.Context, cfg *common.Config, logger *slog.Logger) (*Runtime, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rt := &Runtime{log: logger}

	switch cfg.Database.Driver {
	case "memory":
		rt.Catalog = repository.NewMemoryCatalog()
		rt.Results = repository.NewMemoryResults()
	default:
		db, err := repository.Open(ctx, cfg.Database, logger)
		if err != nil {
			return nil, fmt.Errorf("open database: %w", err)
		}
		rt.db = db
		rt.Catalog = repository.NewCatalogRepository(db, logger)
		rt.Results = repository.NewResultRepository(db, logger)
	}

	vectors := embedding.NewCache(cfg.Cache.EmbeddingSize, cfg.Cache.EmbeddingTTL, logger)
	rt.Embeddings = embedding.NewRegistryFromConfig(cfg.Embedding, vectors, logger)
	matcher := scoring.New(rt.Embeddings, scoring.NewResultCache(cfg.Cache.ResultSize, cfg.Cache.ResultTTL), scoring.Config{
		LexicalWeight:  cfg.Matching.LexicalWeight,
		SemanticWeight: cfg.Matching.SemanticWeight,
	}, logger)
	catalogs := catalog.NewCache(rt.Catalog, cfg.Catalog.TTL, logger)
	rt.catalogs = catalogs

	rt.Hub = events.NewHub(64, logger)
	publishers := events.Multi{rt.Hub}
	if cfg.Events.RedisURL != "" {
		client, err := events.DialRedis(ctx, cfg.Events.RedisURL)
		if err != nil {
			logger.Warn("redis event sink disabled", "error", err)
		} else {
			rt.redis = events.NewRedisSink(client, events.DefaultStream, cfg.Events.StreamMaxLen, logger)
			publishers = append(publishers, rt.redis)
		}
	}

	proc := core.NewProcessor(logger, matcher, catalogs, rt.Results, publishers, core.Config{
		BatchSize:       cfg.Scheduler.BatchSize,
		InterBatchDelay: cfg.Scheduler.InterBatchDelay,
		Writer: core.WriterConfig{
			ChunkSize:   cfg.Writer.ChunkSize,
			MinSpacing:  cfg.Writer.MinSpacing,
			MaxFailures: cfg.Writer.MaxFailures,
		},
	})
	scheduler := async.NewScheduler(proc, logger,
		async.WithTickInterval(cfg.Scheduler.TickInterval),
		async.WithRetention(cfg.Scheduler.Retention),
	)
	rt.Engine = NewEngine(matcher, catalogs, rt.Results, scheduler, rt.Hub, logger)

	logger.Info("matching runtime ready",
		"driver", cfg.Database.Driver,
		"strategies", rt.Embeddings.Strategies(),
		"redis_events", rt.redis != nil,
	)
	return rt, nil
}

// ImportCatalog upserts the items of a catalog workbook and drops the cached
// snapshot so the next job sees them.
func (rt *Runtime) ImportCatalog(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	items, err := ingest.ParseCatalog(f, ingest.ParseOptions{})
	if err != nil {
		return 0, err
	}
	if err := rt.Catalog.UpsertItems(ctx, items); err != nil {
		return 0, fmt.Errorf("upsert catalog: %w", err)
	}
	rt.catalogs.Invalidate()
	rt.log.Info("catalog imported", "path", path, "items", len(items))
	return len(items), nil
}

// RefreshCatalog drops the cached catalog snapshot.
func (rt *Runtime) RefreshCatalog() { rt.catalogs.Invalidate() }

// DB returns the SQL store, or nil for the in-memory driver.
func (rt *Runtime) DB() *repository.DB { return rt.db }

// Close drains the scheduler and releases connections.
func (rt *Runtime) Close(ctx context.Context) {
	rt.Engine.Shutdown(ctx)
	if rt.redis != nil {
		if err := rt.redis.Close(); err != nil {
			rt.log.Warn("failed to close redis", "error", err)
		}
	}
	if rt.db != nil {
		rt.db.Close(rt.log)
	}
}
