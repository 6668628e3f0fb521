// Package events carries job lifecycle notifications to in-process
// subscribers and optional external sinks.
package events

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
	"github.com/joseph-ayodele/boq-matcher/internal/entity"
)

type Kind string

const (
	KindSubmitted Kind = "job.submitted"
	KindStatus    Kind = "job.status"
	KindBatch     Kind = "job.batch"
	KindCompleted Kind = "job.completed"
	KindFailed    Kind = "job.failed"
	KindCancelled Kind = "job.cancelled"
)

// Event is one notification on a job topic.
type Event struct {
	Kind         Kind                `json:"kind"`
	JobID        uuid.UUID           `json:"job_id"`
	Status       constants.JobStatus `json:"status"`
	Progress     int                 `json:"progress"`
	ItemCount    int                 `json:"item_count"`
	Processed    int                 `json:"processed_count"`
	MatchedCount int                 `json:"matched_count"`
	Message      string              `json:"message,omitempty"`
	At           time.Time           `json:"at"`
}

// Terminal reports whether no further events follow on this topic.
func (e Event) Terminal() bool {
	return e.Status.IsTerminal()
}

// FromSnapshot builds an event from the current job state.
func FromSnapshot(kind Kind, snap entity.JobSnapshot) Event {
	return Event{
		Kind:         kind,
		JobID:        snap.JobID,
		Status:       snap.Status,
		Progress:     snap.Progress,
		ItemCount:    snap.ItemCount,
		Processed:    snap.Processed,
		MatchedCount: snap.MatchedCount,
		Message:      snap.Message,
		At:           time.Now().UTC(),
	}
}

// KindFor maps a status to the event kind announcing it.
func KindFor(status constants.JobStatus) Kind {
	switch status {
	case constants.JobStatusPending:
		return KindSubmitted
	case constants.JobStatusCompleted:
		return KindCompleted
	case constants.JobStatusFailed:
		return KindFailed
	case constants.JobStatusCancelled:
		return KindCancelled
	default:
		return KindStatus
	}
}

// Publisher must not block the caller for long; sinks that talk to the
// network bound their own calls.
type Publisher interface {
	Publish(ctx context.Context, e Event)
}

// Multi fans an event out to several publishers in order.
type Multi []Publisher

func (m Multi) Publish(ctx context.Context, e Event) {
	for _, p := range m {
		if p != nil {
			p.Publish(ctx, e)
		}
	}
}

// Discard drops every event.
type Discard struct{}

func (Discard) Publish(context.Context, Event) {}
