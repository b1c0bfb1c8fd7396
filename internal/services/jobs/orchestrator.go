package jobs

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
	"github.com/ternarybob/reperio/internal/services/enrich"
)

// Stage names used in job records and progress events
const (
	StageUploaded  = "uploaded"
	StageAnalyzing = "analyzing_image"
	StageEnriching = "enriching"
	StageCompleted = "completed"
	StageFailed    = "failed"
)

// Progress checkpoints. Identification owns 5-40, enrichment owns 40-95, and
// report assembly closes out the rest.
const (
	progressAccepted   = 5
	progressIdentified = 40
	progressEnrichCeil = 95
)

// Orchestrator drives each job through its lifecycle. It is the sole writer
// of job status and progress; every transition is validated by the state
// machine, persisted, and broadcast before the next stage starts.
type Orchestrator struct {
	storage     interfaces.StorageManager
	identifier  interfaces.Identifier
	coordinator *enrich.Coordinator
	broadcaster interfaces.ProgressBroadcaster
	assembler   *ReportAssembler
	config      *common.Config
	logger      arbor.ILogger

	mu      sync.Mutex
	running map[string]context.CancelFunc
	wg      sync.WaitGroup
}

// NewOrchestrator creates a job orchestrator
func NewOrchestrator(
	storage interfaces.StorageManager,
	identifier interfaces.Identifier,
	coordinator *enrich.Coordinator,
	broadcaster interfaces.ProgressBroadcaster,
	assembler *ReportAssembler,
	config *common.Config,
	logger arbor.ILogger,
) *Orchestrator {
	return &Orchestrator{
		storage:     storage,
		identifier:  identifier,
		coordinator: coordinator,
		broadcaster: broadcaster,
		assembler:   assembler,
		config:      config,
		logger:      logger,
		running:     make(map[string]context.CancelFunc),
	}
}

// Submit accepts a new identification request, persists the job in its
// initial state, and starts the pipeline in the background. It returns the
// job immediately; progress is observable via the job record and the
// broadcaster.
func (o *Orchestrator) Submit(ctx context.Context, req interfaces.IdentifyRequest, imageName, notifyAddress string) (*models.Job, error) {
	if req.Empty() {
		return nil, interfaces.ErrInvalidInput
	}

	job := &models.Job{
		ID:            common.NewJobID(),
		Status:        models.JobStatusUploaded,
		Stage:         StageUploaded,
		Keywords:      req.Keywords,
		ImageName:     imageName,
		NotifyAddress: notifyAddress,
		CreatedAt:     time.Now(),
	}
	if err := o.storage.JobStorage().SaveJob(ctx, job); err != nil {
		return nil, fmt.Errorf("failed to persist job: %w", err)
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Str("image_name", imageName).
		Bool("has_keywords", req.Keywords != "").
		Msg("Job accepted")

	runCtx, cancel := context.WithTimeout(context.Background(), o.config.Jobs.HardDeadline)
	o.mu.Lock()
	o.running[job.ID] = cancel
	o.mu.Unlock()

	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		defer func() {
			o.mu.Lock()
			delete(o.running, job.ID)
			o.mu.Unlock()
		}()
		o.run(runCtx, job, req)
	}()

	return job, nil
}

// GetJob returns the current job record
func (o *Orchestrator) GetJob(ctx context.Context, jobID string) (*models.Job, error) {
	return o.storage.JobStorage().GetJob(ctx, jobID)
}

// ListJobs returns jobs matching the options
func (o *Orchestrator) ListJobs(ctx context.Context, opts *interfaces.JobListOptions) ([]*models.Job, error) {
	return o.storage.JobStorage().ListJobs(ctx, opts)
}

// Stop cancels all running jobs and waits for their pipelines to unwind
func (o *Orchestrator) Stop(timeout time.Duration) {
	o.mu.Lock()
	for id, cancel := range o.running {
		o.logger.Info().Str("job_id", id).Msg("Cancelling running job for shutdown")
		cancel()
	}
	o.mu.Unlock()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(timeout):
		o.logger.Warn().Msg("Timed out waiting for running jobs to stop")
	}
}

// run executes the pipeline for one job under the hard deadline
func (o *Orchestrator) run(ctx context.Context, job *models.Job, req interfaces.IdentifyRequest) {
	job.StartedAt = time.Now()

	// Uploaded -> AnalyzingImage
	if err := o.transition(ctx, job, models.JobStatusAnalyzing, StageAnalyzing, progressAccepted, "Analyzing submitted image"); err != nil {
		return
	}

	candidate, err := o.identifier.Identify(ctx, req)
	if err != nil {
		o.fail(job, identifyFailure(ctx, err))
		return
	}
	job.SetProgress(progressIdentified)
	o.publish(ctx, job, models.EventStatusInProgress,
		fmt.Sprintf("Identified %q (confidence %.2f)", candidate.PartName, candidate.Confidence))

	// AnalyzingImage -> Enriching
	if err := o.transition(ctx, job, models.JobStatusEnriching, StageEnriching, progressIdentified, "Enriching supplier data"); err != nil {
		return
	}

	results, err := o.coordinator.Enrich(ctx, job.ID, candidate.SupplierURLHints, func(done, total int, result *models.SupplierResult) {
		o.enrichProgress(ctx, job, done, total, result)
	})
	if err != nil {
		o.fail(job, fmt.Sprintf("Enrichment: %v", err))
		return
	}
	if ctx.Err() != nil {
		o.fail(job, "Timeout: job exceeded hard deadline")
		return
	}

	report := o.assembler.Assemble(candidate, results)

	// A report with no successful supplier and a weak identification helps
	// nobody; anything better completes with what was gathered.
	if report.SucceededCount == 0 && len(results) > 0 && candidate.Confidence < o.config.Enrichment.MinConfidence {
		o.fail(job, "Enrichment: no supplier data could be gathered for a low-confidence identification")
		return
	}

	job.Result = report
	job.CompletedAt = time.Now()
	if err := o.transition(ctx, job, models.JobStatusCompleted, StageCompleted, 100, "Report ready"); err != nil {
		return
	}

	o.logger.Info().
		Str("job_id", job.ID).
		Int("suppliers_succeeded", report.SucceededCount).
		Int("suppliers_failed", report.FailedCount).
		Dur("duration", time.Since(job.StartedAt)).
		Msg("Job completed")
}

// enrichProgress maps K-of-N task completion onto the enrichment progress
// band and emits a sub-progress event.
func (o *Orchestrator) enrichProgress(ctx context.Context, job *models.Job, done, total int, result *models.SupplierResult) {
	if total <= 0 {
		return
	}
	span := progressEnrichCeil - progressIdentified
	job.SetProgress(progressIdentified + span*done/total)

	every := o.config.Enrichment.ProgressEvery
	if every <= 0 {
		every = 1
	}
	if done%every != 0 && done != total {
		return
	}

	if err := o.storage.JobStorage().SaveJob(ctx, job); err != nil {
		o.logger.Warn().Str("job_id", job.ID).Err(err).Msg("Failed to persist job progress")
	}

	verdict := "failed"
	if result.Success {
		verdict = "enriched"
	}
	o.publish(ctx, job, models.EventStatusInProgress,
		fmt.Sprintf("Supplier %d/%d %s: %s", done, total, verdict, result.URL))
}

// transition applies a validated status change, persists it, and broadcasts
// the stage event. A persistence error fails the job.
func (o *Orchestrator) transition(ctx context.Context, job *models.Job, next models.JobStatus, stage string, progress int, message string) error {
	if err := job.Transition(next); err != nil {
		o.logger.Error().Str("job_id", job.ID).Err(err).Msg("Rejected job transition")
		return err
	}
	job.Stage = stage
	job.SetProgress(progress)

	if err := o.storage.JobStorage().SaveJob(ctx, job); err != nil {
		o.logger.Error().Str("job_id", job.ID).Err(err).Msg("Failed to persist job transition")
		o.fail(job, fmt.Sprintf("Storage: %v", err))
		return err
	}

	status := models.EventStatusInProgress
	if next == models.JobStatusCompleted {
		status = models.EventStatusCompleted
	}
	o.publish(ctx, job, status, message)
	return nil
}

// fail moves the job to its terminal failed state from whatever state it is
// in, persists it, and broadcasts the error event.
func (o *Orchestrator) fail(job *models.Job, reason string) {
	if job.Status.IsTerminal() {
		return
	}
	// Failed is reachable from every non-terminal state.
	job.Status = models.JobStatusFailed
	job.Stage = StageFailed
	job.Error = reason
	job.CompletedAt = time.Now()

	// Persist with a fresh context: the job context may already be dead.
	persistCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := o.storage.JobStorage().SaveJob(persistCtx, job); err != nil {
		o.logger.Error().Str("job_id", job.ID).Err(err).Msg("Failed to persist failed job")
	}

	o.publish(persistCtx, job, models.EventStatusError, reason)
	o.logger.Warn().Str("job_id", job.ID).Str("reason", reason).Msg("Job failed")
}

// publish emits a progress event for the job's current state
func (o *Orchestrator) publish(ctx context.Context, job *models.Job, status models.EventStatus, message string) {
	o.broadcaster.Publish(ctx, models.ProgressEvent{
		JobID:     job.ID,
		Stage:     job.Stage,
		Message:   message,
		Status:    status,
		Progress:  job.Progress,
		Timestamp: time.Now(),
	})
}

// identifyFailure formats the failure reason for an identification error
func identifyFailure(ctx context.Context, err error) string {
	switch {
	case ctx.Err() != nil:
		return "Timeout: job exceeded hard deadline"
	case errors.Is(err, interfaces.ErrInvalidInput):
		return "Input: submitted image or keywords could not be processed"
	case errors.Is(err, interfaces.ErrUpstreamUnavailable):
		return "Upstream: identification service unavailable"
	default:
		return fmt.Sprintf("Identification: %v", err)
	}
}
