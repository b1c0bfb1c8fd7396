package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// JobListOptions controls job listing queries
type JobListOptions struct {
	Status   models.JobStatus
	Limit    int
	Offset   int
	OrderBy  string
	OrderDir string // "ASC" or "DESC"
}

// JobStorage persists jobs behind a simple get/put/update-by-id contract.
// No specific storage engine is mandated by the core; the badger
// implementation is the default.
type JobStorage interface {
	SaveJob(ctx context.Context, job *models.Job) error
	GetJob(ctx context.Context, jobID string) (*models.Job, error)
	ListJobs(ctx context.Context, opts *JobListOptions) ([]*models.Job, error)
	DeleteJob(ctx context.Context, jobID string) error
}

// SupplierStorage persists supplier tasks and their terminal results
type SupplierStorage interface {
	SaveTask(ctx context.Context, task *models.SupplierTask) error
	GetTask(ctx context.Context, taskID string) (*models.SupplierTask, error)
	ListTasksByJob(ctx context.Context, jobID string) ([]*models.SupplierTask, error)
	SaveResult(ctx context.Context, result *models.SupplierResult) error
	ListResultsByJob(ctx context.Context, jobID string) ([]*models.SupplierResult, error)
	DeleteByJob(ctx context.Context, jobID string) error
}

// StorageManager aggregates storage implementations behind a single handle
type StorageManager interface {
	JobStorage() JobStorage
	SupplierStorage() SupplierStorage
	Close() error
}
