package models

import "time"

// TaskStatus represents the state of a supplier enrichment task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusInProgress TaskStatus = "in_progress"
	TaskStatusSucceeded  TaskStatus = "succeeded"
	TaskStatusFailed     TaskStatus = "failed"
)

// IsTerminal reports whether the task status is terminal
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusSucceeded || s == TaskStatusFailed
}

// FetchStrategy identifies how a supplier page was (or will be) retrieved.
// Strategies escalate in cost and robustness and never de-escalate within
// one task.
type FetchStrategy string

const (
	StrategyPlain    FetchStrategy = "plain"
	StrategyBypass   FetchStrategy = "bypass"
	StrategyRendered FetchStrategy = "rendered"
)

// ErrorKind classifies per-supplier fetch/extraction failures. These are
// recorded on the task only and never escalate to job failure.
type ErrorKind string

const (
	ErrorKindNone         ErrorKind = ""
	ErrorKindBlocked      ErrorKind = "fetch_blocked"
	ErrorKindTimeout      ErrorKind = "fetch_timeout"
	ErrorKindUnreachable  ErrorKind = "fetch_unreachable"
	ErrorKindEmptyContent ErrorKind = "extraction_empty"
	ErrorKindCancelled    ErrorKind = "cancelled"
)

// AttemptRecord captures one strategy attempt against a supplier URL.
// Attempts are appended in execution order.
type AttemptRecord struct {
	Strategy  FetchStrategy `json:"strategy"`
	Outcome   string        `json:"outcome"` // "success", "blocked", "shell", "error"
	LatencyMs int64         `json:"latency_ms"`
	ErrorKind ErrorKind     `json:"error_kind,omitempty"`
}

// SupplierTask is the per-URL unit of enrichment work. One task exists per
// unique normalized supplier URL; the enrichment coordinator owns it
// exclusively.
type SupplierTask struct {
	ID            string          `json:"id" badgerhold:"key"`
	JobID         string          `json:"job_id" badgerhold:"index"`
	NormalizedURL string          `json:"normalized_url"`
	Status        TaskStatus      `json:"status"`
	Attempts      []AttemptRecord `json:"attempts,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	CompletedAt   time.Time       `json:"completed_at,omitempty"`
}

// RecordAttempt appends an attempt to the task history
func (t *SupplierTask) RecordAttempt(strategy FetchStrategy, outcome string, latency time.Duration, kind ErrorKind) {
	t.Attempts = append(t.Attempts, AttemptRecord{
		Strategy:  strategy,
		Outcome:   outcome,
		LatencyMs: latency.Milliseconds(),
		ErrorKind: kind,
	})
}

// LastErrorKind returns the error kind of the most recent failed attempt
func (t *SupplierTask) LastErrorKind() ErrorKind {
	for i := len(t.Attempts) - 1; i >= 0; i-- {
		if t.Attempts[i].ErrorKind != ErrorKindNone {
			return t.Attempts[i].ErrorKind
		}
	}
	return ErrorKindNone
}

// ContactInfo holds contact fields extracted from a supplier page. Only
// confidently matched fields are set; the rest stay empty.
type ContactInfo struct {
	Emails        []string          `json:"emails,omitempty"`
	Phones        []string          `json:"phones,omitempty"`
	Addresses     []string          `json:"addresses,omitempty"`
	BusinessHours string            `json:"business_hours,omitempty"`
	SocialLinks   map[string]string `json:"social_links,omitempty"`
}

// Empty reports whether no contact field was extracted
func (c ContactInfo) Empty() bool {
	return len(c.Emails) == 0 && len(c.Phones) == 0 && len(c.Addresses) == 0 &&
		c.BusinessHours == "" && len(c.SocialLinks) == 0
}

// SupplierResult is the terminal outcome of one supplier task. Produced once
// per task reaching a terminal status and immutable afterward.
type SupplierResult struct {
	ID          string        `json:"id" badgerhold:"key"`
	TaskID      string        `json:"task_id"`
	JobID       string        `json:"job_id" badgerhold:"index"`
	URL         string        `json:"url"`
	CompanyName string        `json:"company_name,omitempty"`
	Contact     ContactInfo   `json:"contact"`
	PriceText   string        `json:"price_text,omitempty"`
	// PageExcerpt holds a markdown rendition of the page's main content for
	// display in the final report.
	PageExcerpt string `json:"page_excerpt,omitempty"`
	Method      FetchStrategy `json:"method"`
	Success     bool          `json:"success"`
	ErrorReason ErrorKind     `json:"error_reason,omitempty"`
	FetchedAt   time.Time     `json:"fetched_at"`
}
