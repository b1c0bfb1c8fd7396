package models

import (
	"fmt"
	"time"
)

// JobStatus represents the lifecycle state of an identification job
type JobStatus string

const (
	JobStatusUploaded  JobStatus = "uploaded"
	JobStatusAnalyzing JobStatus = "analyzing"
	JobStatusEnriching JobStatus = "enriching"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// IsTerminal reports whether the status is a terminal state
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// allowedTransitions holds the forward-only edges of the job state machine.
// Transitions never revert to an earlier state.
var allowedTransitions = map[JobStatus][]JobStatus{
	JobStatusUploaded:  {JobStatusAnalyzing, JobStatusFailed},
	JobStatusAnalyzing: {JobStatusEnriching, JobStatusFailed},
	JobStatusEnriching: {JobStatusCompleted, JobStatusFailed},
}

// CanTransition reports whether moving from s to next is an allowed edge
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range allowedTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Job represents one submitted identification request and its full lifecycle.
// The orchestrator is the sole writer of Status and Progress.
type Job struct {
	ID            string     `json:"id" badgerhold:"key"`
	Status        JobStatus  `json:"status"`
	Stage         string     `json:"stage"`
	Progress      int        `json:"progress"` // 0-100, monotonic non-decreasing
	Keywords      string     `json:"keywords,omitempty"`
	ImageName     string     `json:"image_name,omitempty"`
	NotifyAddress string     `json:"notify_address,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	StartedAt     time.Time  `json:"started_at,omitempty"`
	CompletedAt   time.Time  `json:"completed_at,omitempty"`
	// Error contains a concise description of why the job failed.
	// Format: "Category: Brief description" (e.g., "Upstream: identification service unavailable").
	// Only populated when job status is 'failed'.
	Error string `json:"error,omitempty"`
	// Result is set if and only if the job reached JobStatusCompleted.
	Result *ReportPayload `json:"result,omitempty"`
}

// Transition validates and applies a status change, returning an error on
// any edge the state machine does not allow.
func (j *Job) Transition(next JobStatus) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("invalid job transition %s -> %s", j.Status, next)
	}
	j.Status = next
	return nil
}

// SetProgress raises the progress value, clamped to 0-100. Lower values are
// ignored so progress stays monotonic even with out-of-order updates.
func (j *Job) SetProgress(pct int) {
	if pct > 100 {
		pct = 100
	}
	if pct > j.Progress {
		j.Progress = pct
	}
}

// ReportPayload is the final merged output handed to report consumers.
type ReportPayload struct {
	Identification *IdentificationCandidate `json:"identification"`
	Suppliers      []*SupplierResult        `json:"suppliers"`
	GeneratedAt    time.Time                `json:"generated_at"`
	// SucceededCount and FailedCount are snapshots taken at assembly time
	// for quick display without walking the supplier slice.
	SucceededCount int `json:"succeeded_count"`
	FailedCount    int `json:"failed_count"`
}
