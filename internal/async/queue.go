package async

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/internal/core"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

// Runner executes one job to a terminal state. *core.Processor satisfies it.
type Runner interface {
	Process(ctx context.Context, job entity.Job, t core.Tracker) error
	Notify(ctx context.Context, snap entity.JobSnapshot)
}

// fifo is the pending queue of job ids. Callers hold the scheduler lock.
type fifo struct {
	ids []uuid.UUID
}

func (q *fifo) push(id uuid.UUID) { q.ids = append(q.ids, id) }

func (q *fifo) pop() (uuid.UUID, bool) {
	if len(q.ids) == 0 {
		return uuid.Nil, false
	}
	id := q.ids[0]
	q.ids = q.ids[1:]
	return id, true
}

func (q *fifo) remove(id uuid.UUID) bool {
	i := slices.Index(q.ids, id)
	if i < 0 {
		return false
	}
	q.ids = slices.Delete(q.ids, i, i+1)
	return true
}

func (q *fifo) len() int { return len(q.ids) }

func (q *fifo) clear() { q.ids = nil }
