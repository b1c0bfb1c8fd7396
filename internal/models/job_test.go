package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusTransitions(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		allowed bool
	}{
		{"uploaded to analyzing", JobStatusUploaded, JobStatusAnalyzing, true},
		{"uploaded to failed", JobStatusUploaded, JobStatusFailed, true},
		{"analyzing to enriching", JobStatusAnalyzing, JobStatusEnriching, true},
		{"analyzing to failed", JobStatusAnalyzing, JobStatusFailed, true},
		{"enriching to completed", JobStatusEnriching, JobStatusCompleted, true},
		{"enriching to failed", JobStatusEnriching, JobStatusFailed, true},
		{"uploaded to enriching skips analysis", JobStatusUploaded, JobStatusEnriching, false},
		{"uploaded to completed skips everything", JobStatusUploaded, JobStatusCompleted, false},
		{"analyzing back to uploaded", JobStatusAnalyzing, JobStatusUploaded, false},
		{"completed to enriching", JobStatusCompleted, JobStatusEnriching, false},
		{"completed to failed", JobStatusCompleted, JobStatusFailed, false},
		{"failed to analyzing", JobStatusFailed, JobStatusAnalyzing, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			job := &Job{ID: "job_test", Status: tt.from}
			err := job.Transition(tt.to)
			if tt.allowed {
				require.NoError(t, err)
				assert.Equal(t, tt.to, job.Status)
			} else {
				require.Error(t, err)
				assert.Equal(t, tt.from, job.Status, "status must not change on rejected transition")
			}
		})
	}
}

func TestJobStatusIsTerminal(t *testing.T) {
	assert.True(t, JobStatusCompleted.IsTerminal())
	assert.True(t, JobStatusFailed.IsTerminal())
	assert.False(t, JobStatusUploaded.IsTerminal())
	assert.False(t, JobStatusAnalyzing.IsTerminal())
	assert.False(t, JobStatusEnriching.IsTerminal())
}

func TestSetProgressMonotonic(t *testing.T) {
	job := &Job{ID: "job_test"}

	job.SetProgress(40)
	assert.Equal(t, 40, job.Progress)

	// Lower values are ignored
	job.SetProgress(20)
	assert.Equal(t, 40, job.Progress)

	job.SetProgress(95)
	assert.Equal(t, 95, job.Progress)

	// Clamped to 100
	job.SetProgress(140)
	assert.Equal(t, 100, job.Progress)
}

func TestSupplierTaskAttemptHistory(t *testing.T) {
	task := &SupplierTask{ID: "task_test"}

	task.RecordAttempt(StrategyPlain, "blocked", 120_000_000, ErrorKindBlocked)
	task.RecordAttempt(StrategyBypass, "blocked", 250_000_000, ErrorKindBlocked)
	task.RecordAttempt(StrategyRendered, "success", 900_000_000, ErrorKindNone)

	require.Len(t, task.Attempts, 3)
	assert.Equal(t, StrategyPlain, task.Attempts[0].Strategy)
	assert.Equal(t, StrategyBypass, task.Attempts[1].Strategy)
	assert.Equal(t, StrategyRendered, task.Attempts[2].Strategy)
	assert.Equal(t, int64(120), task.Attempts[0].LatencyMs)
	assert.Equal(t, ErrorKindBlocked, task.LastErrorKind())
}
