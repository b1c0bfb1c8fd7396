package models

import "time"

// EventStatus classifies a progress event
type EventStatus string

const (
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusError      EventStatus = "error"
)

// ProgressEvent is one progress notification for a job. Events are
// append-only per job and transient: buffered events may be dropped after a
// subscriber disconnects, and the job's directly queryable status remains the
// authoritative source of truth.
type ProgressEvent struct {
	JobID     string      `json:"job_id"`
	Stage     string      `json:"stage"`
	Message   string      `json:"message"`
	Status    EventStatus `json:"status"`
	Progress  int         `json:"progress"`
	Timestamp time.Time   `json:"timestamp"`
}
