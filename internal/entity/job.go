package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/boq-matcher/constants"
)

// Job is the mutable aggregate owned by the scheduler. Readers only ever see
// a JobSnapshot.
type Job struct {
	ID           uuid.UUID
	OwnerID      string
	Name         string
	Status       constants.JobStatus
	Progress     int
	Items        []WorkItem
	Strategy     constants.Strategy
	SubmittedAt  time.Time
	StartedAt    *time.Time
	FinishedAt   *time.Time
	Processed    int
	MatchedCount int
	ContextCount int
	Unmatched    int
	Errors       []string
	Message      string
}

// ItemCount is the number of submitted rows.
func (j *Job) ItemCount() int {
	return len(j.Items)
}

// Snapshot copies the observable state of the job.
func (j *Job) Snapshot() JobSnapshot {
	s := JobSnapshot{
		JobID:        j.ID,
		OwnerID:      j.OwnerID,
		Name:         j.Name,
		Status:       j.Status,
		Progress:     j.Progress,
		Strategy:     j.Strategy,
		ItemCount:    len(j.Items),
		Processed:    j.Processed,
		MatchedCount: j.MatchedCount,
		ContextCount: j.ContextCount,
		Unmatched:    j.Unmatched,
		SubmittedAt:  j.SubmittedAt,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
		Message:      j.Message,
	}
	if len(j.Errors) > 0 {
		s.Errors = append([]string(nil), j.Errors...)
	}
	return s
}

// JobSnapshot is the read-only view returned by status queries.
type JobSnapshot struct {
	JobID        uuid.UUID           `json:"job_id"`
	OwnerID      string              `json:"owner_id"`
	Name         string              `json:"name,omitempty"`
	Status       constants.JobStatus `json:"status"`
	Progress     int                 `json:"progress"`
	Strategy     constants.Strategy  `json:"strategy"`
	ItemCount    int                 `json:"item_count"`
	Processed    int                 `json:"processed_count"`
	MatchedCount int                 `json:"matched_count"`
	ContextCount int                 `json:"context_count"`
	Unmatched    int                 `json:"unmatched_count"`
	SubmittedAt  time.Time           `json:"submitted_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
	Message      string              `json:"message,omitempty"`
	Errors       []string            `json:"errors,omitempty"`
}

// QueueStatus summarizes the scheduler.
type QueueStatus struct {
	QueueLength  int                         `json:"queue_length"`
	IsProcessing bool                        `json:"is_processing"`
	ActiveJobID  *uuid.UUID                  `json:"active_job_id,omitempty"`
	Counts       map[constants.JobStatus]int `json:"counts"`
}
