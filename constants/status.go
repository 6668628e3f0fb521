package constants

// JobStatus is the canonical status of a matching job.
type JobStatus string

// Stable values (stored verbatim in match_jobs.status).
const (
	JobStatusPending   JobStatus = "pending"   // queued, not yet picked up
	JobStatusParsing   JobStatus = "parsing"   // catalog load and setup
	JobStatusMatching  JobStatus = "matching"  // batches in progress
	JobStatusCompleted JobStatus = "completed" // terminal
	JobStatusFailed    JobStatus = "failed"    // terminal
	JobStatusCancelled JobStatus = "cancelled" // terminal
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusParsing,
	JobStatusMatching,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// IsTerminal reports whether s is absorbing.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// IsActive reports whether a job in status s is owned by the running processor.
func (s JobStatus) IsActive() bool {
	return s == JobStatusParsing || s == JobStatusMatching
}

// CanTransition reports whether from -> to is a legal lifecycle step.
func CanTransition(from, to JobStatus) bool {
	if from.IsTerminal() || from == to {
		return false
	}
	switch to {
	case JobStatusParsing:
		return from == JobStatusPending
	case JobStatusMatching:
		return from == JobStatusParsing
	case JobStatusCompleted:
		return from == JobStatusMatching
	case JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
