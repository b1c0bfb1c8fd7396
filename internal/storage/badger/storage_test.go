package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	manager, err := NewManager(&common.BadgerConfig{Path: t.TempDir() + "/db"}, arbor.NewLogger())
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })
	return manager
}

func TestJobStorageRoundtrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.JobStorage()

	job := &models.Job{
		ID:        "job_test_1",
		Status:    models.JobStatusUploaded,
		Stage:     "uploaded",
		Keywords:  "m8 bolt",
		CreatedAt: time.Now().Truncate(time.Millisecond),
	}
	require.NoError(t, store.SaveJob(ctx, job))

	got, err := store.GetJob(ctx, "job_test_1")
	require.NoError(t, err)
	assert.Equal(t, job.ID, got.ID)
	assert.Equal(t, models.JobStatusUploaded, got.Status)
	assert.Equal(t, "m8 bolt", got.Keywords)

	// Upsert replaces the existing record
	job.Status = models.JobStatusCompleted
	job.Progress = 100
	require.NoError(t, store.SaveJob(ctx, job))

	got, err = store.GetJob(ctx, "job_test_1")
	require.NoError(t, err)
	assert.Equal(t, models.JobStatusCompleted, got.Status)
	assert.Equal(t, 100, got.Progress)
}

func TestJobStorageGetMissing(t *testing.T) {
	manager := newTestManager(t)

	_, err := manager.JobStorage().GetJob(context.Background(), "job_missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestJobStorageSaveValidation(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()

	assert.Error(t, manager.JobStorage().SaveJob(ctx, nil))
	assert.Error(t, manager.JobStorage().SaveJob(ctx, &models.Job{}))
}

func TestJobStorageListFilters(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.JobStorage()

	base := time.Now().Add(-time.Hour)
	statuses := []models.JobStatus{
		models.JobStatusCompleted,
		models.JobStatusCompleted,
		models.JobStatusFailed,
		models.JobStatusEnriching,
	}
	for i, status := range statuses {
		require.NoError(t, store.SaveJob(ctx, &models.Job{
			ID:        common.NewJobID(),
			Status:    status,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := store.ListJobs(ctx, nil)
	require.NoError(t, err)
	assert.Len(t, all, 4)
	// Default ordering is newest first
	assert.True(t, all[0].CreatedAt.After(all[len(all)-1].CreatedAt))

	completed, err := store.ListJobs(ctx, &interfaces.JobListOptions{Status: models.JobStatusCompleted})
	require.NoError(t, err)
	assert.Len(t, completed, 2)

	limited, err := store.ListJobs(ctx, &interfaces.JobListOptions{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	paged, err := store.ListJobs(ctx, &interfaces.JobListOptions{Limit: 2, Offset: 3})
	require.NoError(t, err)
	assert.Len(t, paged, 1)
}

func TestJobStorageDelete(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.JobStorage()

	require.NoError(t, store.SaveJob(ctx, &models.Job{ID: "job_del", Status: models.JobStatusFailed, CreatedAt: time.Now()}))
	require.NoError(t, store.DeleteJob(ctx, "job_del"))

	_, err := store.GetJob(ctx, "job_del")
	assert.Error(t, err)

	// Deleting an absent job is not an error
	assert.NoError(t, store.DeleteJob(ctx, "job_del"))
}

func TestSupplierStorageRoundtrip(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.SupplierStorage()

	task := &models.SupplierTask{
		ID:            "task_test_1",
		JobID:         "job_test_1",
		NormalizedURL: "https://supplier.example/parts",
		Status:        models.TaskStatusPending,
		CreatedAt:     time.Now(),
	}
	require.NoError(t, store.SaveTask(ctx, task))

	got, err := store.GetTask(ctx, "task_test_1")
	require.NoError(t, err)
	assert.Equal(t, "https://supplier.example/parts", got.NormalizedURL)

	result := &models.SupplierResult{
		ID:          "result_test_1",
		TaskID:      task.ID,
		JobID:       task.JobID,
		URL:         task.NormalizedURL,
		CompanyName: "Supplier Example",
		Method:      models.StrategyPlain,
		Success:     true,
		FetchedAt:   time.Now(),
	}
	require.NoError(t, store.SaveResult(ctx, result))

	results, err := store.ListResultsByJob(ctx, "job_test_1")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Supplier Example", results[0].CompanyName)
	assert.True(t, results[0].Success)
}

func TestSupplierStorageListByJobOrdering(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.SupplierStorage()

	base := time.Now().Add(-time.Minute)
	for i := 0; i < 3; i++ {
		require.NoError(t, store.SaveTask(ctx, &models.SupplierTask{
			ID:            common.NewTaskID(),
			JobID:         "job_order",
			NormalizedURL: "https://supplier.example/",
			Status:        models.TaskStatusPending,
			CreatedAt:     base.Add(time.Duration(i) * time.Second),
		}))
	}
	// A task from another job must not leak into the listing
	require.NoError(t, store.SaveTask(ctx, &models.SupplierTask{
		ID:        common.NewTaskID(),
		JobID:     "job_other",
		CreatedAt: base,
	}))

	tasks, err := store.ListTasksByJob(ctx, "job_order")
	require.NoError(t, err)
	require.Len(t, tasks, 3)
	for i := 1; i < len(tasks); i++ {
		assert.True(t, !tasks[i].CreatedAt.Before(tasks[i-1].CreatedAt), "tasks ordered by creation time")
	}
}

func TestSupplierStorageDeleteByJob(t *testing.T) {
	manager := newTestManager(t)
	ctx := context.Background()
	store := manager.SupplierStorage()

	require.NoError(t, store.SaveTask(ctx, &models.SupplierTask{ID: "task_a", JobID: "job_purge", CreatedAt: time.Now()}))
	require.NoError(t, store.SaveResult(ctx, &models.SupplierResult{ID: "result_a", TaskID: "task_a", JobID: "job_purge", FetchedAt: time.Now()}))
	require.NoError(t, store.SaveTask(ctx, &models.SupplierTask{ID: "task_b", JobID: "job_keep", CreatedAt: time.Now()}))

	require.NoError(t, store.DeleteByJob(ctx, "job_purge"))

	tasks, err := store.ListTasksByJob(ctx, "job_purge")
	require.NoError(t, err)
	assert.Empty(t, tasks)

	results, err := store.ListResultsByJob(ctx, "job_purge")
	require.NoError(t, err)
	assert.Empty(t, results)

	kept, err := store.ListTasksByJob(ctx, "job_keep")
	require.NoError(t, err)
	assert.Len(t, kept, 1)
}
