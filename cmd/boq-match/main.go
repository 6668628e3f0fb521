package main

import (
	"context"
	"encoding/json"
	"flag"
	"os"
	"strings"
	"time"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

func main() {
	var (
		inmem    = flag.Bool("inmem", false, "use in-memory stores instead of DB_DRIVER")
		catalog  = flag.String("catalog", "", "catalog workbook to import first")
		strategy = flag.String("strategy", "LEXICAL", "matching strategy")
		unit     = flag.String("unit", "", "unit of the line")
		qty      = flag.Float64("qty", 1, "quantity")
		headers  = flag.String("context", "", "section headers, most general first, separated by '>'")
	)
	flag.Parse()

	cfg := common.LoadConfig()
	cfg.Log.Format = "text"
	if *inmem {
		cfg.Database.Driver = "memory"
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)

	description := strings.Join(flag.Args(), " ")
	if strings.TrimSpace(description) == "" {
		logger.Error("usage", "cmd", "boq-match [flags] <description>")
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
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

	var contextHeaders []string
	for _, h := range strings.Split(*headers, ">") {
		if h = strings.TrimSpace(h); h != "" {
			contextHeaders = append(contextHeaders, h)
		}
	}

	start := time.Now()
	res, err := rt.Engine.MatchSingle(ctx, matching.MatchRequest{
		Description:    description,
		Unit:           *unit,
		Quantity:       *qty,
		Strategy:       *strategy,
		ContextHeaders: contextHeaders,
	})
	if err != nil {
		logger.Error("match failed", "error", err)
		os.Exit(1)
	}
	logger.Info("match done", "elapsed_ms", time.Since(start).Milliseconds(), "method", res.Method)

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{"result": res, "total_price": res.TotalPrice()}); err != nil {
		logger.Error("encode", "error", err)
		os.Exit(1)
	}
}
