// Package schedule provides the scheduled-job store and the dispatcher
// that pushes a person's number to the gateway hosts when a job comes due.
package schedule

import "time"

// Status represents the current state of a scheduled job.
type Status string

const (
	// StatusPending is the only status eligible for dispatch.
	StatusPending Status = "pending"
	// StatusDispatching marks a job claimed by the dispatcher. The claim
	// happens before any gateway traffic so a crash mid-dispatch cannot
	// fire the same job twice.
	StatusDispatching Status = "dispatching"
	// StatusApplied means every gateway host acknowledged the number.
	StatusApplied Status = "applied"
	// StatusFailed means at least one gateway host rejected the push.
	StatusFailed Status = "failed"
	// StatusCancelled means the job was cancelled before dispatch.
	StatusCancelled Status = "cancelled"
)

// IsTerminal returns true for statuses that are immutable history records.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusApplied, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// IsValidStatus returns true if the string is a known job status.
func IsValidStatus(s string) bool {
	switch Status(s) {
	case StatusPending, StatusDispatching, StatusApplied, StatusFailed, StatusCancelled:
		return true
	default:
		return false
	}
}

// Job is a deferred instruction to push a specific person's number to all
// gateway hosts at a future time.
type Job struct {
	ID            string     `json:"id"`
	PersonID      string     `json:"person_id"`
	DueAt         time.Time  `json:"due_at"`
	Status        Status     `json:"status"`
	FailureReason string     `json:"failure_reason,omitempty"`
	AppliedAt     *time.Time `json:"applied_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// JobWithPerson joins a job with the referenced person's display fields
// for listing purposes.
type JobWithPerson struct {
	Job
	PersonName   string `json:"name"`
	PersonMobile string `json:"mobile"`
}
