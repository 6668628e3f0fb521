// Package matching exposes the matching engine operations to transports and
// command line tools.
package matching

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/async"
	"github.com/joseph-ayodele/boq-matcher/internal/catalog"
	"github.com/joseph-ayodele/boq-matcher/internal/common"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
	"github.com/joseph-ayodele/boq-matcher/internal/events"
	scoring "github.com/joseph-ayodele/boq-matcher/internal/matching"
	"github.com/joseph-ayodele/boq-matcher/internal/repository"
)

// Engine is the matching service.
type Engine struct {
	matcher   *scoring.Matcher
	catalogs  *catalog.Cache
	results   repository.ResultRepository
	scheduler *async.Scheduler
	hub       *events.Hub
	logger    *slog.Logger
}

// NewEngine creates a new matching service.
func NewEngine(
	matcher *scoring.Matcher,
	catalogs *catalog.Cache,
	results repository.ResultRepository,
	scheduler *async.Scheduler,
	hub *events.Hub,
	logger *slog.Logger,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		matcher:   matcher,
		catalogs:  catalogs,
		results:   results,
		scheduler: scheduler,
		hub:       hub,
		logger:    logger,
	}
}

// SubmitRequest represents job submission parameters.
type SubmitRequest struct {
	OwnerID  string
	Name     string
	Strategy string
	Items    []entity.WorkItem
}

// SubmitJob validates the request and queues the job.
func (e *Engine) SubmitJob(ctx context.Context, req SubmitRequest) (uuid.UUID, error) {
	ctx = common.WithOwnerID(ctx, strings.TrimSpace(req.OwnerID))
	validator := common.NewValidator()
	validator.Field("owner_id", req.OwnerID, common.Required, common.MaxLength(128))
	validator.Field("name", req.Name, common.MaxLength(256))
	for i, it := range req.Items {
		validator.Field(fmt.Sprintf("items[%d].description", i), it.Description, common.Required)
		validator.Field(fmt.Sprintf("items[%d].quantity", i), it.Quantity, common.NonNegative)
	}
	if err := common.ValidateAndReturnError(validator); err != nil {
		e.logger.WarnContext(ctx, "job submission rejected", "error", err)
		return uuid.Nil, err
	}
	if len(req.Items) == 0 {
		return uuid.Nil, common.InvalidInput("items are required")
	}
	strategy, err := e.strategy(req.Strategy)
	if err != nil {
		return uuid.Nil, err
	}

	items := make([]entity.WorkItem, len(req.Items))
	for i, it := range req.Items {
		it.Description = strings.TrimSpace(it.Description)
		if it.RowNumber == 0 {
			it.RowNumber = i + 1
		}
		items[i] = it
	}

	id, err := e.scheduler.Submit(entity.Job{
		OwnerID:  strings.TrimSpace(req.OwnerID),
		Name:     strings.TrimSpace(req.Name),
		Strategy: strategy,
		Items:    items,
	})
	if err != nil {
		return uuid.Nil, common.NewAppError(common.CodeProviderUnavailable, "scheduler unavailable", err)
	}
	ctx = common.WithJobID(ctx, id.String())
	e.logger.InfoContext(ctx, "job submitted", "items", len(items), "strategy", strategy)
	return id, nil
}

func (e *Engine) strategy(raw string) (constants.Strategy, error) {
	if strings.TrimSpace(raw) == "" {
		return constants.StrategyLexical, nil
	}
	strategy, ok := constants.ParseStrategy(raw)
	if !ok {
		return "", common.InvalidInputf("unknown strategy %q", raw)
	}
	if err := e.matcher.ValidateStrategy(strategy); err != nil {
		return "", err
	}
	return strategy, nil
}

// GetJobStatus returns the live snapshot, or the persisted one once the job
// has been evicted from memory.
func (e *Engine) GetJobStatus(ctx context.Context, id uuid.UUID) (entity.JobSnapshot, error) {
	if snap, ok := e.scheduler.Get(id); ok {
		return snap, nil
	}
	snap, err := e.results.GetJob(ctx, id)
	if err != nil {
		return entity.JobSnapshot{}, err
	}
	return *snap, nil
}

// CancelJob reports whether a cancellation was accepted.
func (e *Engine) CancelJob(_ context.Context, id uuid.UUID) bool {
	return e.scheduler.Cancel(id)
}

// CancelAllJobs returns the number of jobs cancelled.
func (e *Engine) CancelAllJobs(context.Context) int {
	return e.scheduler.CancelAll()
}

func (e *Engine) GetQueueStatus(context.Context) entity.QueueStatus {
	return e.scheduler.Status()
}

// MatchRequest represents a synchronous single-line match.
type MatchRequest struct {
	Description    string
	Unit           string
	Quantity       float64
	Strategy       string
	ContextHeaders []string
}

// MatchSingle matches one line against the current catalog.
func (e *Engine) MatchSingle(ctx context.Context, req MatchRequest) (entity.MatchResult, error) {
	strategy, err := e.strategy(req.Strategy)
	if err != nil {
		return entity.MatchResult{}, err
	}
	if strings.TrimSpace(req.Description) == "" {
		return entity.MatchResult{}, common.InvalidInput("description is required")
	}
	qty := req.Quantity
	if qty <= 0 {
		qty = 1
	}
	snap, err := e.catalogs.Get(ctx)
	if err != nil {
		return entity.MatchResult{}, err
	}
	if err := e.matcher.WarmCatalog(ctx, strategy, snap); err != nil {
		e.logger.Warn("catalog warm-up failed", "strategy", strategy, "error", err)
	}
	return e.matcher.Match(ctx, entity.WorkItem{
		RowNumber:      1,
		Description:    strings.TrimSpace(req.Description),
		Quantity:       qty,
		Unit:           req.Unit,
		ContextHeaders: req.ContextHeaders,
	}, strategy, snap)
}

// Subscribe returns the current snapshot and a stream of later events. The
// stream is already closed when the job has finished.
func (e *Engine) Subscribe(ctx context.Context, id uuid.UUID) (entity.JobSnapshot, <-chan events.Event, func(), error) {
	ch, cancel := e.hub.Subscribe(id)
	snap, err := e.GetJobStatus(ctx, id)
	if err != nil {
		cancel()
		return entity.JobSnapshot{}, nil, func() {}, err
	}
	if snap.Status.IsTerminal() {
		cancel()
	}
	return snap, ch, cancel, nil
}

// Results lists the persisted results of a job in row order.
func (e *Engine) Results(ctx context.Context, id uuid.UUID) ([]entity.MatchResult, error) {
	if _, err := e.GetJobStatus(ctx, id); err != nil {
		return nil, err
	}
	return e.results.ListResults(ctx, id)
}

// Shutdown stops the scheduler after the active job flushes.
func (e *Engine) Shutdown(ctx context.Context) {
	e.scheduler.Shutdown(ctx)
}
