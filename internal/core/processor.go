package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/catalog"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/events"
	"github.com/joseph-ayodele/boq-matcher/internal/matching"
)

const (
	progressParsing  = 10
	progressLoaded   = 25
	progressMatching = 70
	progressFlushing = 95
	progressDone     = 100

	finalFlushTimeout = 30 * time.Second
)

// Tracker is the processor's handle on a job owned by the scheduler. Update
// applies fn under the owner's lock and returns the resulting snapshot. Now is
// the owner's clock and stamps lifecycle times.
type Tracker interface {
	Update(fn func(j *entity.Job)) entity.JobSnapshot
	Cancelled() bool
	Now() time.Time
}

// JobStore mirrors job state and receives result chunks.
type JobStore interface {
	ResultSink
	UpsertJob(ctx context.Context, snap entity.JobSnapshot) error
	UpdateJobStatus(ctx context.Context, jobID uuid.UUID, status constants.JobStatus, progress int, message string) error
}

// CatalogSource hands out catalog snapshots.
type CatalogSource interface {
	Get(ctx context.Context) (catalog.Snapshot, error)
}

// Config controls batch cadence.
type Config struct {
	BatchSize       int
	InterBatchDelay time.Duration
	Writer          WriterConfig
}

// Processor drives one job at a time through catalog load, batched matching
// and result persistence.
type Processor struct {
	logger   *slog.Logger
	matcher  *matching.Matcher
	catalogs CatalogSource
	store    JobStore
	events   events.Publisher
	cfg      Config
	tracer   trace.Tracer
	sleep    func(context.Context, time.Duration) error
}

func NewProcessor(
	logger *slog.Logger,
	matcher *matching.Matcher,
	catalogs CatalogSource,
	store JobStore,
	publisher events.Publisher,
	cfg Config,
) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	if publisher == nil {
		publisher = events.Discard{}
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 25
	}
	return &Processor{
		logger:   logger,
		matcher:  matcher,
		catalogs: catalogs,
		store:    store,
		events:   publisher,
		cfg:      cfg,
		tracer:   otel.Tracer("github.com/joseph-ayodele/boq-matcher/internal/core"),
		sleep:    sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Progress maps processed rows onto the matching band of the progress bar.
func Progress(processed, total int) int {
	if total <= 0 {
		return progressLoaded + progressMatching
	}
	return progressLoaded + int(math.Round(progressMatching*float64(processed)/float64(total)))
}

// Process runs job to a terminal state. Cancellation is observed before each
// batch and each item. A non-nil error means the job ended failed.
func (p *Processor) Process(ctx context.Context, job entity.Job, t Tracker) error {
	ctx, span := p.tracer.Start(ctx, "core.process", trace.WithAttributes(
		attribute.String("job.id", job.ID.String()),
		attribute.String("strategy", string(job.Strategy)),
		attribute.Int("items", len(job.Items)),
	))
	defer span.End()

	ctx = common.WithJobID(common.WithOwnerID(ctx, job.OwnerID), job.ID.String())
	log := p.logger
	writer := NewBatchWriter(p.store, job.ID.String(), p.cfg.Writer, log)

	if !p.transition(ctx, t, constants.JobStatusParsing, progressParsing, "loading catalog") {
		return nil
	}
	snap, err := p.catalogs.Get(ctx)
	if err != nil {
		return p.fail(ctx, span, t, writer, fmt.Errorf("load catalog: %w", err))
	}
	if err := p.matcher.WarmCatalog(ctx, job.Strategy, snap); err != nil {
		log.WarnContext(ctx, "processor.warm_catalog.failed", "strategy", job.Strategy, "err", err)
	}
	if !p.transition(ctx, t, constants.JobStatusMatching, progressLoaded,
		fmt.Sprintf("catalog v%d loaded with %d items", snap.Version, len(snap.Items))) {
		return p.cancel(ctx, t, writer)
	}
	log.InfoContext(ctx, "processor.job.start", "items", len(job.Items), "strategy", job.Strategy, "catalog_version", snap.Version)

	total := len(job.Items)
	batches := (total + p.cfg.BatchSize - 1) / p.cfg.BatchSize
	for b := 0; b < batches; b++ {
		if t.Cancelled() {
			return p.cancel(ctx, t, writer)
		}
		if b > 0 {
			if err := p.sleep(ctx, p.cfg.InterBatchDelay); err != nil {
				return p.cancel(ctx, t, writer)
			}
		}
		start := b * p.cfg.BatchSize
		end := min(start+p.cfg.BatchSize, total)
		stopped, err := p.runBatch(ctx, job, snap, job.Items[start:end], t, writer)
		if err != nil {
			return p.fail(ctx, span, t, writer, err)
		}
		if stopped {
			return p.cancel(ctx, t, writer)
		}

		cur := t.Update(func(j *entity.Job) {
			j.Message = fmt.Sprintf("batch %d/%d", b+1, batches)
		})
		p.mirrorProgress(ctx, cur)
		p.events.Publish(ctx, events.FromSnapshot(events.KindBatch, cur))
		log.DebugContext(ctx, "processor.batch.done", "batch", b+1, "of", batches, "processed", cur.Processed, "progress", cur.Progress)
	}

	if t.Cancelled() {
		return p.cancel(ctx, t, writer)
	}
	t.Update(func(j *entity.Job) { j.Progress = progressFlushing })
	if err := writer.Flush(ctx); err != nil {
		return p.fail(ctx, span, t, writer, err)
	}
	if !p.transition(ctx, t, constants.JobStatusCompleted, progressDone, "") {
		return nil
	}

	final := t.Update(func(*entity.Job) {})
	log.InfoContext(ctx, "processor.job.completed",
		"processed", final.Processed,
		"matched", final.MatchedCount,
		"context", final.ContextCount,
		"unmatched", final.Unmatched,
		"errors", len(final.Errors),
		"saved", writer.Saved(),
	)
	return nil
}

// runBatch scores one batch. stopped reports cancellation seen mid-batch.
func (p *Processor) runBatch(ctx context.Context, job entity.Job, snap catalog.Snapshot, items []entity.WorkItem, t Tracker, writer *BatchWriter) (stopped bool, err error) {
	ctx, span := p.tracer.Start(ctx, "core.batch", trace.WithAttributes(attribute.Int("size", len(items))))
	defer span.End()

	if err := p.matcher.WarmQueries(ctx, job.Strategy, items); err != nil {
		p.logger.WarnContext(ctx, "processor.warm_queries.failed", "err", err)
	}
	total := len(job.Items)
	for _, item := range items {
		if t.Cancelled() {
			return true, nil
		}
		res, matchErr := p.matchOne(ctx, item, job.Strategy, snap)
		if t.Cancelled() {
			return true, nil
		}
		res.JobID = job.ID.String()
		t.Update(func(j *entity.Job) {
			j.Processed++
			switch res.Kind {
			case entity.KindMatched:
				j.MatchedCount++
			case entity.KindContextHeader:
				j.ContextCount++
			default:
				j.Unmatched++
			}
			if matchErr != nil {
				j.Errors = append(j.Errors, fmt.Sprintf("row %d: %v", item.RowNumber, matchErr))
			}
			j.Progress = Progress(j.Processed, total)
		})
		if err := writer.Add(ctx, res); err != nil {
			return false, err
		}
	}
	return false, nil
}

// matchOne never fails the job: matcher errors become unmatched rows.
func (p *Processor) matchOne(ctx context.Context, item entity.WorkItem, strategy constants.Strategy, snap catalog.Snapshot) (entity.MatchResult, error) {
	if item.IsContextHeader() {
		return entity.NewContextHeader(item), nil
	}
	res, err := p.matcher.Match(ctx, item, strategy, snap)
	if err != nil {
		p.logger.ErrorContext(ctx, "processor.item.failed", "row", item.RowNumber, "strategy", strategy, "err", err)
		return entity.NewUnmatched(item, constants.Method(strategy), err.Error()), err
	}
	return res, nil
}

// transition applies a lifecycle step. It reports false when the job already
// left the source state, e.g. a CancelAll finalized it.
func (p *Processor) transition(ctx context.Context, t Tracker, status constants.JobStatus, progress int, message string) bool {
	applied := false
	snap := t.Update(func(j *entity.Job) {
		if !constants.CanTransition(j.Status, status) {
			return
		}
		applied = true
		now := t.Now().UTC()
		j.Status = status
		if progress >= 0 {
			j.Progress = progress
		}
		j.Message = message
		if status == constants.JobStatusParsing {
			j.StartedAt = &now
		}
		if status.IsTerminal() {
			j.FinishedAt = &now
		}
	})
	if applied {
		p.Notify(ctx, snap)
	}
	return applied
}

func (p *Processor) cancel(ctx context.Context, t Tracker, writer *BatchWriter) error {
	flushCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
	defer stop()
	if err := writer.Flush(flushCtx); err != nil {
		p.logger.WarnContext(ctx, "processor.cancel.flush_failed", "pending", writer.Pending(), "err", err)
	}
	cur := t.Update(func(*entity.Job) {})
	p.transition(ctx, t, constants.JobStatusCancelled, -1,
		fmt.Sprintf("cancelled after %d of %d items", cur.Processed, cur.ItemCount))
	p.logger.InfoContext(ctx, "processor.job.cancelled", "processed", cur.Processed, "saved", writer.Saved())
	return nil
}

func (p *Processor) fail(ctx context.Context, span trace.Span, t Tracker, writer *BatchWriter, cause error) error {
	span.RecordError(cause)
	span.SetStatus(codes.Error, cause.Error())
	if !errors.Is(cause, ErrFlushFailures) {
		flushCtx, stop := context.WithTimeout(context.WithoutCancel(ctx), finalFlushTimeout)
		if err := writer.Flush(flushCtx); err != nil {
			p.logger.WarnContext(ctx, "processor.fail.flush_failed", "pending", writer.Pending(), "err", err)
		}
		stop()
	}
	t.Update(func(j *entity.Job) { j.Errors = append(j.Errors, cause.Error()) })
	p.transition(ctx, t, constants.JobStatusFailed, -1, cause.Error())
	p.logger.ErrorContext(ctx, "processor.job.failed", "err", cause)
	return cause
}

// Notify mirrors a snapshot to the store and announces it. Store failures
// are logged only.
func (p *Processor) Notify(ctx context.Context, snap entity.JobSnapshot) {
	if p.store != nil {
		if err := p.store.UpsertJob(context.WithoutCancel(ctx), snap); err != nil {
			p.logger.Warn("processor.mirror.failed", "job_id", snap.JobID, "status", snap.Status, "err", err)
		}
	}
	p.events.Publish(ctx, events.FromSnapshot(events.KindFor(snap.Status), snap))
}

func (p *Processor) mirrorProgress(ctx context.Context, snap entity.JobSnapshot) {
	if p.store == nil {
		return
	}
	if err := p.store.UpdateJobStatus(ctx, snap.JobID, snap.Status, snap.Progress, snap.Message); err != nil {
		p.logger.Warn("processor.mirror.failed", "job_id", snap.JobID, "status", snap.Status, "err", err)
	}
}
