package ingest

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// SubmitFunc queues parsed items as a job.
type SubmitFunc func(ctx context.Context, ownerID, name, strategy string, items []entity.WorkItem) (uuid.UUID, error)

// IntakeConfig configures drop-directory submission.
type IntakeConfig struct {
	Dir      string
	OwnerID  string
	Strategy string
	Debounce time.Duration
}

// IntakeResult is the per-file outcome.
type IntakeResult struct {
	Path         string
	JobID        uuid.UUID
	Items        int
	Deduplicated bool
	HashHex      string
	Err          string
}

// Intake turns workbooks dropped into a directory into jobs. Files with the
// same content are submitted once.
type Intake struct {
	cfg    IntakeConfig
	submit SubmitFunc
	logger *slog.Logger

	mu   sync.Mutex
	seen map[string]uuid.UUID
}

func NewIntake(cfg IntakeConfig, submit SubmitFunc, logger *slog.Logger) *Intake {
	if logger == nil {
		logger = slog.Default()
	}
	return &Intake{cfg: cfg, submit: submit, logger: logger, seen: make(map[string]uuid.UUID)}
}

// Run watches the directory, including files already present, until ctx is
// done.
func (in *Intake) Run(ctx context.Context) error {
	paths, errs, err := StartWatcher(ctx, WatchConfig{
		Roots:       []string{in.cfg.Dir},
		InitialScan: true,
		Debounce:    in.cfg.Debounce,
		Logger:      in.logger,
	})
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	in.logger.Info("intake watching", "dir", in.cfg.Dir, "owner_id", in.cfg.OwnerID, "strategy", in.cfg.Strategy)
	for {
		select {
		case <-ctx.Done():
			return nil
		case p, ok := <-paths:
			if !ok {
				return nil
			}
			res := in.IngestFile(ctx, p)
			if res.Err != "" {
				in.logger.Warn("intake file rejected", "path", p, "error", res.Err)
			}
		case err, ok := <-errs:
			if ok {
				in.logger.Warn("intake watcher error", "error", err)
			}
		}
	}
}

// IngestFile parses one workbook and submits it unless identical content was
// already submitted.
func (in *Intake) IngestFile(ctx context.Context, path string) IntakeResult {
	res := IntakeResult{Path: path}
	sum, err := hashFile(path)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.HashHex = sum

	in.mu.Lock()
	if id, dup := in.seen[sum]; dup {
		in.mu.Unlock()
		res.JobID, res.Deduplicated = id, true
		in.logger.Info("skipping workbook (duplicate)", "path", path, "job_id", id)
		return res
	}
	in.mu.Unlock()

	items, err := ParseWorkbookFile(path, ParseOptions{})
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.Items = len(items)
	id, err := in.submit(ctx, in.cfg.OwnerID, filepath.Base(path), in.cfg.Strategy, items)
	if err != nil {
		res.Err = err.Error()
		return res
	}
	res.JobID = id

	in.mu.Lock()
	in.seen[sum] = id
	in.mu.Unlock()
	in.logger.Info("workbook submitted", "path", path, "job_id", id, "items", len(items))
	return res
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()
	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
