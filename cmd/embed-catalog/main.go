package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/embedding"
	"github.com/joseph-ayodele/boq-matcher/internal/matching/semantic"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

func main() {
	var (
		catalog  = flag.String("catalog", "", "catalog workbook to import first")
		strategy = flag.String("strategy", "SEMANTIC_OPENAI", "semantic strategy whose provider computes the vectors")
		force    = flag.Bool("force", false, "recompute vectors that are already stored")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	logger := common.NewLogger(cfg.Log, os.Stdout)
	slog.SetDefault(logger)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}
	if cfg.Database.Driver == "memory" {
		logger.Error("embed-catalog needs a persistent store, set DB_DRIVER to sqlite or postgres")
		os.Exit(2)
	}

	s, ok := constants.ParseStrategy(*strategy)
	if !ok || !s.IsSemantic() {
		logger.Error("strategy must be semantic", "strategy", *strategy)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	rt, err := matching.Open(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start runtime", "error", err)
		os.Exit(1)
	}
	defer rt.Close(context.Background())

	if *catalog != "" {
		if _, err := rt.ImportCatalog(ctx, *catalog); err != nil {
			logger.Error("catalog import failed", "path", *catalog, "error", err)
			os.Exit(1)
		}
	}

	client, ok := rt.Embeddings.Get(s)
	if !ok {
		logger.Error("provider not configured", "strategy", s)
		os.Exit(2)
	}

	items, err := rt.Catalog.GetActiveCatalogItems(ctx)
	if err != nil {
		logger.Error("failed to load catalog", "error", err)
		os.Exit(1)
	}

	var (
		ids   []string
		texts []string
	)
	for _, it := range items {
		if !*force && it.HasEmbeddingFrom(client.Name()) {
			continue
		}
		ids = append(ids, it.ID)
		texts = append(texts, semantic.ItemText(it))
	}
	logger.Info("embedding catalog", "provider", client.Name(), "items", len(items), "pending", len(ids))
	if len(ids) == 0 {
		return
	}

	start := time.Now()
	vectors, err := client.Embed(ctx, texts, embedding.RoleDocument)
	if err != nil {
		logger.Error("embedding failed", "provider", client.Name(), "error", err)
		os.Exit(1)
	}
	byID := make(map[string][]float64, len(ids))
	for i, id := range ids {
		byID[id] = vectors[i]
	}
	if err := rt.Catalog.SaveEmbeddings(ctx, client.Name(), byID); err != nil {
		logger.Error("failed to store embeddings", "error", err)
		os.Exit(1)
	}
	rt.RefreshCatalog()
	logger.Info("catalog embedded",
		"provider", client.Name(),
		"stored", len(byID),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
}
