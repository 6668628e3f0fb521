package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/export"
	"github.com/joseph-ayodele/boq-matcher/internal/ingest"
	"github.com/joseph-ayodele/boq-matcher/internal/services/matching"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		inmem    = flag.Bool("inmem", false, "use in-memory stores instead of DB_DRIVER")
		in       = flag.String("in", "", "BOQ workbook to price (required)")
		sheet    = flag.String("sheet", "", "sheet name (defaults to the first sheet)")
		catalog  = flag.String("catalog", "", "catalog workbook to import before matching")
		strategy = flag.String("strategy", "LEXICAL", "matching strategy")
		owner    = flag.String("owner", "cli", "owner id recorded on the job")
		out      = flag.String("out", "", "output XLSX path (defaults to <in>-priced.xlsx)")
		timeout  = flag.Duration("timeout", 30*time.Minute, "overall time limit")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: --in is required\n")
		os.Exit(1)
	}
	if *out == "" {
		*out = strings.TrimSuffix(*in, filepath.Ext(*in)) + "-priced.xlsx"
	}

	cfg := common.LoadConfig()
	cfg.Log.Format = "text"
	if *inmem {
		cfg.Database.Driver = "memory"
	}
	logger := common.NewLogger(cfg.Log, os.Stderr)
	if err := cfg.Validate(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
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

	items, err := ingest.ParseWorkbookFile(*in, ingest.ParseOptions{Sheet: *sheet})
	if err != nil {
		logger.Error("failed to parse workbook", "path", *in, "error", err)
		os.Exit(1)
	}

	jobID, err := rt.Engine.SubmitJob(ctx, matching.SubmitRequest{
		OwnerID:  *owner,
		Name:     filepath.Base(*in),
		Strategy: *strategy,
		Items:    items,
	})
	if err != nil {
		logger.Error("submit failed", "error", err)
		os.Exit(1)
	}

	snap, events, stop, err := rt.Engine.Subscribe(ctx, jobID)
	if err != nil {
		logger.Error("subscribe failed", "job_id", jobID, "error", err)
		os.Exit(1)
	}
	defer stop()
	for !snap.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			rt.Engine.CancelJob(context.Background(), jobID)
			logger.Error("timed out", "job_id", jobID, "progress", snap.Progress)
			os.Exit(1)
		case ev, open := <-events:
			if open {
				logger.Info("progress", "status", ev.Status, "progress", ev.Progress, "processed", ev.Processed)
			}
			if snap, err = rt.Engine.GetJobStatus(ctx, jobID); err != nil {
				logger.Error("status failed", "error", err)
				os.Exit(1)
			}
			if !open && !snap.Status.IsTerminal() {
				time.Sleep(50 * time.Millisecond)
			}
		}
	}

	data, err := export.NewService(rt.Engine, logger).ExportJobXLSX(ctx, jobID)
	if err != nil {
		logger.Error("export failed", "job_id", jobID, "error", err)
		os.Exit(1)
	}
	if err := os.WriteFile(*out, data, 0o644); err != nil {
		logger.Error("write output", "path", *out, "error", err)
		os.Exit(1)
	}

	fmt.Printf("job %s %s: %d items, %d matched, %d section headers, %d unmatched -> %s\n",
		jobID, snap.Status, snap.ItemCount, snap.MatchedCount, snap.ContextCount, snap.Unmatched, *out)
	if len(snap.Errors) > 0 {
		printError("%d item errors, first: %s\n", len(snap.Errors), snap.Errors[0])
	}
}
