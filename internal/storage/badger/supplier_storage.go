package badger

import (
	"context"
	"fmt"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/timshannon/badgerhold/v4"
)

// SupplierStorage implements the SupplierStorage interface for Badger
type SupplierStorage struct {
	db     *BadgerDB
	logger arbor.ILogger
}

// NewSupplierStorage creates a new SupplierStorage instance
func NewSupplierStorage(db *BadgerDB, logger arbor.ILogger) interfaces.SupplierStorage {
	return &SupplierStorage{
		db:     db,
		logger: logger,
	}
}

func (s *SupplierStorage) SaveTask(ctx context.Context, task *models.SupplierTask) error {
	if task == nil || task.ID == "" {
		return fmt.Errorf("task with ID is required")
	}
	if err := s.db.Store().Upsert(task.ID, task); err != nil {
		return fmt.Errorf("failed to save supplier task: %w", err)
	}
	return nil
}

func (s *SupplierStorage) GetTask(ctx context.Context, taskID string) (*models.SupplierTask, error) {
	var task models.SupplierTask
	if err := s.db.Store().Get(taskID, &task); err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, fmt.Errorf("supplier task not found: %s", taskID)
		}
		return nil, fmt.Errorf("failed to get supplier task: %w", err)
	}
	return &task, nil
}

func (s *SupplierStorage) ListTasksByJob(ctx context.Context, jobID string) ([]*models.SupplierTask, error) {
	var tasks []models.SupplierTask
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("CreatedAt")
	if err := s.db.Store().Find(&tasks, query); err != nil {
		return nil, fmt.Errorf("failed to list supplier tasks: %w", err)
	}

	result := make([]*models.SupplierTask, len(tasks))
	for i := range tasks {
		result[i] = &tasks[i]
	}
	return result, nil
}

func (s *SupplierStorage) SaveResult(ctx context.Context, result *models.SupplierResult) error {
	if result == nil || result.ID == "" {
		return fmt.Errorf("result with ID is required")
	}
	if err := s.db.Store().Upsert(result.ID, result); err != nil {
		return fmt.Errorf("failed to save supplier result: %w", err)
	}
	return nil
}

func (s *SupplierStorage) ListResultsByJob(ctx context.Context, jobID string) ([]*models.SupplierResult, error) {
	var results []models.SupplierResult
	query := badgerhold.Where("JobID").Eq(jobID).Index("JobID").SortBy("FetchedAt")
	if err := s.db.Store().Find(&results, query); err != nil {
		return nil, fmt.Errorf("failed to list supplier results: %w", err)
	}

	out := make([]*models.SupplierResult, len(results))
	for i := range results {
		out[i] = &results[i]
	}
	return out, nil
}

func (s *SupplierStorage) DeleteByJob(ctx context.Context, jobID string) error {
	if err := s.db.Store().DeleteMatching(&models.SupplierTask{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete supplier tasks: %w", err)
	}
	if err := s.db.Store().DeleteMatching(&models.SupplierResult{}, badgerhold.Where("JobID").Eq(jobID)); err != nil {
		return fmt.Errorf("failed to delete supplier results: %w", err)
	}
	return nil
}
