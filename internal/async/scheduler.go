// Package async runs submitted jobs in the background, one at a time, in
// submission order.
package async

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// ErrClosed is returned by Submit after Shutdown.
var ErrClosed = errors.New("scheduler is shut down")

type entry struct {
	job       entity.Job
	cancelled atomic.Bool
}

// Scheduler owns the job table. All job mutation happens under mu; status
// reads copy snapshots out under the read lock.
type Scheduler struct {
	runner    Runner
	logger    *slog.Logger
	tick      time.Duration
	retention time.Duration
	now       func() time.Time

	mu         sync.RWMutex
	jobs       map[uuid.UUID]*entry
	queue      fifo
	processing bool
	active     uuid.UUID
	closed     bool

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	once   sync.Once
}

type Option func(*Scheduler)

func WithTickInterval(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.tick = d
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(s *Scheduler) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) {
		if now != nil {
			s.now = now
		}
	}
}

func NewScheduler(runner Runner, logger *slog.Logger, opts ...Option) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		runner:    runner,
		logger:    logger,
		tick:      time.Second,
		retention: 5 * time.Minute,
		now:       time.Now,
		jobs:      make(map[uuid.UUID]*entry),
		ctx:       ctx,
		cancel:    cancel,
	}
	for _, o := range opts {
		o(s)
	}
	s.start()
	return s
}

func (s *Scheduler) start() {
	s.once.Do(func() {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.logger.Info("scheduler started", "tick", s.tick)
			t := time.NewTicker(s.tick)
			defer t.Stop()
			for {
				select {
				case <-s.ctx.Done():
					s.logger.Info("scheduler stopped")
					return
				case <-t.C:
					s.collect()
					s.dispatch()
				}
			}
		}()
	})
}

// Submit stores the job and queues it. It never waits for processing.
func (s *Scheduler) Submit(job entity.Job) (uuid.UUID, error) {
	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}
	job.Status = constants.JobStatusPending
	job.Progress = 0
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = s.now().UTC()
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		s.logger.Warn("cannot submit: scheduler is shutting down", "job_id", job.ID)
		return uuid.Nil, ErrClosed
	}
	if _, dup := s.jobs[job.ID]; dup {
		s.mu.Unlock()
		return uuid.Nil, fmt.Errorf("job %s already submitted", job.ID)
	}
	e := &entry{job: job}
	s.jobs[job.ID] = e
	s.queue.push(job.ID)
	depth := s.queue.len()
	snap := e.job.Snapshot()
	s.mu.Unlock()

	s.logger.Info("queued job for processing", "job_id", job.ID, "items", len(job.Items), "strategy", job.Strategy, "queue_length", depth)
	s.runner.Notify(s.ctx, snap)
	return job.ID, nil
}

// dispatch starts the next queued job unless one is already running.
func (s *Scheduler) dispatch() {
	s.mu.Lock()
	if s.processing || s.closed {
		s.mu.Unlock()
		return
	}
	var e *entry
	for {
		id, ok := s.queue.pop()
		if !ok {
			s.mu.Unlock()
			return
		}
		if cand, found := s.jobs[id]; found && cand.job.Status == constants.JobStatusPending {
			e = cand
			break
		}
	}
	s.processing = true
	s.active = e.job.ID
	job := e.job
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(job, e)
}

func (s *Scheduler) run(job entity.Job, e *entry) {
	defer s.wg.Done()
	log := s.logger.With("job_id", job.ID)
	started := s.now()

	defer func() {
		if r := recover(); r != nil {
			log.Error("job panicked", "panic", r, "stack", string(debug.Stack()))
			s.finalize(e, constants.JobStatusFailed, fmt.Sprintf("internal error: %v", r))
		}
		s.mu.Lock()
		if s.active == job.ID {
			s.processing = false
			s.active = uuid.Nil
		}
		s.mu.Unlock()
	}()

	err := s.runner.Process(s.ctx, job, tracker{s: s, e: e})
	if err != nil {
		log.Error("job failed", "error", err, "elapsed", s.now().Sub(started))
		return
	}
	log.Info("job finished", "status", s.statusOf(e), "elapsed", s.now().Sub(started))
}

func (s *Scheduler) statusOf(e *entry) constants.JobStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return e.job.Status
}

// finalize forces a non-terminal job into a terminal status.
func (s *Scheduler) finalize(e *entry, status constants.JobStatus, message string) bool {
	s.mu.Lock()
	if e.job.Status.IsTerminal() {
		s.mu.Unlock()
		return false
	}
	now := s.now().UTC()
	e.job.Status = status
	e.job.Message = message
	e.job.FinishedAt = &now
	if status == constants.JobStatusFailed {
		e.job.Errors = append(e.job.Errors, message)
	}
	snap := e.job.Snapshot()
	s.mu.Unlock()

	s.runner.Notify(s.ctx, snap)
	return true
}

// Cancel stops a job. A pending job is removed from the queue and finalized
// at once; an active job stops at its next checkpoint.
func (s *Scheduler) Cancel(id uuid.UUID) bool {
	s.mu.Lock()
	e, ok := s.jobs[id]
	if !ok || e.job.Status.IsTerminal() || e.cancelled.Load() {
		s.mu.Unlock()
		return false
	}
	e.cancelled.Store(true)
	pending := e.job.Status == constants.JobStatusPending
	if pending {
		s.queue.remove(id)
	}
	s.mu.Unlock()

	if pending {
		s.finalize(e, constants.JobStatusCancelled, "cancelled before start")
	}
	s.logger.Info("job cancel requested", "job_id", id, "pending", pending)
	return true
}

// CancelAll finalizes every non-terminal job as cancelled, clears the queue
// and frees the processing slot.
func (s *Scheduler) CancelAll() int {
	s.mu.Lock()
	var targets []*entry
	for _, e := range s.jobs {
		if !e.job.Status.IsTerminal() {
			e.cancelled.Store(true)
			targets = append(targets, e)
		}
	}
	s.queue.clear()
	s.processing = false
	s.active = uuid.Nil
	s.mu.Unlock()

	n := 0
	for _, e := range targets {
		if s.finalize(e, constants.JobStatusCancelled, "cancelled by operator") {
			n++
		}
	}
	s.logger.Warn("all jobs cancelled", "count", n)
	return n
}

// Get returns a snapshot of the job.
func (s *Scheduler) Get(id uuid.UUID) (entity.JobSnapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.jobs[id]
	if !ok {
		return entity.JobSnapshot{}, false
	}
	return e.job.Snapshot(), true
}

// Status summarizes the queue and the job table.
func (s *Scheduler) Status() entity.QueueStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := entity.QueueStatus{
		QueueLength:  s.queue.len(),
		IsProcessing: s.processing,
		Counts:       make(map[constants.JobStatus]int, len(constants.AllJobStatuses)),
	}
	for _, status := range constants.AllJobStatuses {
		st.Counts[status] = 0
	}
	for _, e := range s.jobs {
		st.Counts[e.job.Status]++
	}
	if s.processing {
		id := s.active
		st.ActiveJobID = &id
	}
	return st
}

// collect evicts terminal jobs older than the retention window.
func (s *Scheduler) collect() {
	cutoff := s.now().Add(-s.retention)
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, e := range s.jobs {
		if e.job.Status.IsTerminal() && e.job.FinishedAt != nil && e.job.FinishedAt.Before(cutoff) {
			delete(s.jobs, id)
			s.logger.Debug("scheduler.evicted", "job_id", id, "status", e.job.Status)
		}
	}
}

// Shutdown stops the tick loop, asks the active job to stop and waits for it
// to flush.
func (s *Scheduler) Shutdown(ctx context.Context) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	if e, ok := s.jobs[s.active]; ok && s.processing {
		e.cancelled.Store(true)
	}
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() { defer close(done); s.wg.Wait() }()

	select {
	case <-ctx.Done():
		s.logger.Warn("shutdown interrupted by context")
	case <-done:
		s.logger.Info("scheduler drained, shutdown complete")
	}
}

// tracker adapts one entry to core.Tracker.
type tracker struct {
	s *Scheduler
	e *entry
}

func (t tracker) Update(fn func(j *entity.Job)) entity.JobSnapshot {
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	fn(&t.e.job)
	return t.e.job.Snapshot()
}

func (t tracker) Cancelled() bool { return t.e.cancelled.Load() }

func (t tracker) Now() time.Time { return t.s.now() }
