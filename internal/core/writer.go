package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/time/rate"

	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// ResultSink is the part of the result store the writer needs.
type ResultSink interface {
	SaveResults(ctx context.Context, results []entity.MatchResult) (saved int, failed int, err error)
}

// WriterConfig controls flush cadence.
type WriterConfig struct {
	ChunkSize   int
	MinSpacing  time.Duration
	MaxFailures int
}

// ErrFlushFailures is returned once consecutive flushes keep failing.
var ErrFlushFailures = errors.New("result flush failed repeatedly")

// BatchWriter buffers results for one job and flushes them in chunks, never
// more often than MinSpacing. It is not safe for concurrent use.
type BatchWriter struct {
	sink    ResultSink
	cfg     WriterConfig
	limiter *rate.Limiter
	logger  *slog.Logger
	jobID   string

	pending  []entity.MatchResult
	saved    int
	failures int
	lastErr  error
}

func NewBatchWriter(sink ResultSink, jobID string, cfg WriterConfig, logger *slog.Logger) *BatchWriter {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ChunkSize <= 0 {
		cfg.ChunkSize = 50
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = 3
	}
	limit := rate.Inf
	if cfg.MinSpacing > 0 {
		limit = rate.Every(cfg.MinSpacing)
	}
	return &BatchWriter{
		sink:    sink,
		cfg:     cfg,
		limiter: rate.NewLimiter(limit, 1),
		logger:  logger.With("job_id", jobID),
		jobID:   jobID,
	}
}

// Add buffers results and flushes when the chunk threshold is crossed and
// the spacing window allows it. Only repeated failures are returned.
func (w *BatchWriter) Add(ctx context.Context, results ...entity.MatchResult) error {
	w.pending = append(w.pending, results...)
	if len(w.pending) < w.cfg.ChunkSize {
		return nil
	}
	if !w.limiter.Allow() {
		w.logger.Debug("writer.flush.deferred", "pending", len(w.pending))
		return nil
	}
	return w.flush(ctx)
}

// Flush writes everything still buffered, waiting for the spacing window.
// Each attempt that fails counts toward MaxFailures.
func (w *BatchWriter) Flush(ctx context.Context) error {
	for len(w.pending) > 0 {
		if err := w.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("wait for flush window: %w", err)
		}
		if err := w.flush(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (w *BatchWriter) flush(ctx context.Context) error {
	for len(w.pending) > 0 {
		n := min(len(w.pending), w.cfg.ChunkSize)
		chunk := w.pending[:n]
		for i := range chunk {
			chunk[i].JobID = w.jobID
		}
		saved, failed, err := w.sink.SaveResults(ctx, chunk)
		if err == nil && failed > 0 {
			err = fmt.Errorf("%d of %d results rejected", failed, n)
		}
		if err != nil {
			w.failures++
			w.lastErr = err
			w.logger.Warn("writer.flush.failed", "pending", len(w.pending), "attempt", w.failures, "err", err)
			if w.failures >= w.cfg.MaxFailures {
				return fmt.Errorf("%w: %w", ErrFlushFailures, err)
			}
			return nil
		}
		w.failures = 0
		w.saved += saved
		w.pending = w.pending[n:]
		w.logger.Debug("writer.flush.ok", "saved", saved, "pending", len(w.pending))
	}
	w.pending = nil
	return nil
}

func (w *BatchWriter) Pending() int   { return len(w.pending) }
func (w *BatchWriter) Saved() int     { return w.saved }
func (w *BatchWriter) LastErr() error { return w.lastErr }
