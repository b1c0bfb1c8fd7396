package common

import (
	"github.com/google/uuid"
)

// NewJobID generates a unique job ID with the "job_" prefix
func NewJobID() string {
	return "job_" + uuid.New().String()
}

// NewTaskID generates a unique supplier task ID with the "task_" prefix
func NewTaskID() string {
	return "task_" + uuid.New().String()
}

// NewResultID generates a unique supplier result ID with the "result_" prefix
func NewResultID() string {
	return "result_" + uuid.New().String()
}
