package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
)

// RetentionService purges terminal jobs, and their supplier data, once they
// age past the configured retention window. Running jobs are never touched.
type RetentionService struct {
	storage interfaces.StorageManager
	config  common.RetentionConfig
	maxAge  time.Duration
	cron    *cron.Cron
	logger  arbor.ILogger
}

// NewRetentionService creates the retention sweeper
func NewRetentionService(storage interfaces.StorageManager, config common.RetentionConfig, logger arbor.ILogger) (*RetentionService, error) {
	maxAge, err := time.ParseDuration(config.MaxAge)
	if err != nil {
		return nil, fmt.Errorf("invalid retention.max_age '%s': %w", config.MaxAge, err)
	}

	return &RetentionService{
		storage: storage,
		config:  config,
		maxAge:  maxAge,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger,
	}, nil
}

// Start registers the sweep on the cron schedule and starts the scheduler
func (s *RetentionService) Start() error {
	if !s.config.Enabled {
		s.logger.Info().Msg("Job retention sweep disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.Schedule, s.sweep); err != nil {
		return fmt.Errorf("invalid retention schedule '%s': %w", s.config.Schedule, err)
	}
	s.cron.Start()

	s.logger.Info().
		Str("schedule", s.config.Schedule).
		Dur("max_age", s.maxAge).
		Msg("Job retention sweep started")
	return nil
}

// Stop stops the scheduler, waiting for a running sweep to finish
func (s *RetentionService) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Debug().Msg("Job retention sweep stopped")
}

// sweep deletes terminal jobs older than the retention window
func (s *RetentionService) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	cutoff := time.Now().Add(-s.maxAge)
	jobs, err := s.storage.JobStorage().ListJobs(ctx, nil)
	if err != nil {
		s.logger.Warn().Err(err).Msg("Retention sweep failed to list jobs")
		return
	}

	purged := 0
	for _, job := range jobs {
		if !job.Status.IsTerminal() {
			continue
		}
		completed := job.CompletedAt
		if completed.IsZero() {
			completed = job.CreatedAt
		}
		if completed.After(cutoff) {
			continue
		}

		if err := s.storage.SupplierStorage().DeleteByJob(ctx, job.ID); err != nil {
			s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to purge supplier data")
			continue
		}
		if err := s.storage.JobStorage().DeleteJob(ctx, job.ID); err != nil {
			s.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to purge job")
			continue
		}
		purged++
	}

	if purged > 0 {
		s.logger.Info().Int("purged", purged).Msg("Retention sweep completed")

		// Reclaim value-log space from the purged records when the storage
		// backend supports it.
		if gc, ok := s.storage.(interface{ RunGC() error }); ok {
			if err := gc.RunGC(); err != nil {
				s.logger.Warn().Err(err).Msg("Storage garbage collection failed")
			}
		}
	}
}
