package enrich

import (
	"context"
	"sync"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// ProgressFunc receives one call per resolved task in completion order.
// done counts resolved tasks so far, total is the deduplicated task count.
type ProgressFunc func(done, total int, result *models.SupplierResult)

// Coordinator fans supplier tasks out to workers under a global concurrency
// cap, a per-domain cap of one in-flight request, and a hard wall-clock
// deadline. Partial failure is normal operation: individual task failures are
// recorded and never abort the batch.
type Coordinator struct {
	worker  *Worker
	storage interfaces.SupplierStorage
	config  common.EnrichmentConfig
	logger  arbor.ILogger

	mu       sync.Mutex
	inflight map[string]chan struct{}
}

// NewCoordinator creates an enrichment coordinator
func NewCoordinator(worker *Worker, storage interfaces.SupplierStorage, config common.EnrichmentConfig, logger arbor.ILogger) *Coordinator {
	return &Coordinator{
		worker:   worker,
		storage:  storage,
		config:   config,
		logger:   logger,
		inflight: make(map[string]chan struct{}),
	}
}

// Enrich normalizes and deduplicates the URL hints, runs one task per unique
// URL, and returns every terminal result. Tasks still unresolved when the
// deadline expires are force-failed with a timeout error kind, so the result
// count always equals the task count.
func (c *Coordinator) Enrich(ctx context.Context, jobID string, urlHints []string, onProgress ProgressFunc) ([]*models.SupplierResult, error) {
	tasks := c.buildTasks(ctx, jobID, urlHints)
	total := len(tasks)
	if total == 0 {
		c.logger.Info().Str("job_id", jobID).Msg("No usable supplier URLs to enrich")
		return nil, nil
	}

	c.logger.Info().
		Str("job_id", jobID).
		Int("hints", len(urlHints)).
		Int("tasks", total).
		Dur("deadline", c.config.Deadline).
		Msg("Starting supplier enrichment")

	runCtx, cancel := context.WithTimeout(ctx, c.config.Deadline)
	defer cancel()

	sem := make(chan struct{}, c.config.Concurrency)
	resultCh := make(chan *models.SupplierResult, total)

	var wg sync.WaitGroup
	for _, task := range tasks {
		wg.Add(1)
		go func(task *models.SupplierTask) {
			defer wg.Done()
			resultCh <- c.runTask(runCtx, task, sem)
		}(task)
	}
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	results := make([]*models.SupplierResult, 0, total)
	done := 0
	for result := range resultCh {
		results = append(results, result)
		done++
		c.persist(result, taskByID(tasks, result.TaskID))
		if onProgress != nil {
			onProgress(done, total, result)
		}
	}

	succeeded := 0
	for _, r := range results {
		if r.Success {
			succeeded++
		}
	}
	c.logger.Info().
		Str("job_id", jobID).
		Int("succeeded", succeeded).
		Int("failed", total-succeeded).
		Msg("Supplier enrichment completed")

	return results, nil
}

// buildTasks normalizes and dedups URL hints preserving first-occurrence
// order, then persists one pending task per unique URL. Unparseable hints are
// logged and skipped.
func (c *Coordinator) buildTasks(ctx context.Context, jobID string, urlHints []string) []*models.SupplierTask {
	seen := make(map[string]bool)
	var tasks []*models.SupplierTask
	for _, hint := range urlHints {
		normalized, err := NormalizeURL(hint)
		if err != nil {
			c.logger.Warn().Str("job_id", jobID).Str("url", hint).Err(err).Msg("Skipping unusable supplier URL")
			continue
		}
		if seen[normalized] {
			continue
		}
		seen[normalized] = true

		task := &models.SupplierTask{
			ID:            common.NewTaskID(),
			JobID:         jobID,
			NormalizedURL: normalized,
			Status:        models.TaskStatusPending,
			CreatedAt:     time.Now(),
		}
		if err := c.storage.SaveTask(ctx, task); err != nil {
			c.logger.Warn().Str("task_id", task.ID).Err(err).Msg("Failed to persist supplier task")
		}
		tasks = append(tasks, task)
	}
	return tasks
}

// runTask acquires the global and per-domain slots, then hands the task to
// the worker. If the deadline lands before or during execution the task is
// force-failed with a timeout.
func (c *Coordinator) runTask(ctx context.Context, task *models.SupplierTask, sem chan struct{}) *models.SupplierResult {
	// Global fan-out cap
	select {
	case sem <- struct{}{}:
	case <-ctx.Done():
		return c.forceFail(task)
	}
	defer func() { <-sem }()

	// Per-domain cap: at most one in-flight request per domain
	slot := c.domainSlot(Domain(task.NormalizedURL))
	select {
	case slot <- struct{}{}:
	case <-ctx.Done():
		return c.forceFail(task)
	}
	defer func() { <-slot }()

	if ctx.Err() != nil {
		return c.forceFail(task)
	}
	return c.worker.Run(ctx, task)
}

// domainSlot returns the single-slot channel gating a domain
func (c *Coordinator) domainSlot(domain string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	slot, ok := c.inflight[domain]
	if !ok {
		slot = make(chan struct{}, 1)
		c.inflight[domain] = slot
	}
	return slot
}

// persist writes the terminal task and result records
func (c *Coordinator) persist(result *models.SupplierResult, task *models.SupplierTask) {
	ctx := context.Background()
	if task != nil {
		if err := c.storage.SaveTask(ctx, task); err != nil {
			c.logger.Warn().Str("task_id", task.ID).Err(err).Msg("Failed to persist terminal task")
		}
	}
	if err := c.storage.SaveResult(ctx, result); err != nil {
		c.logger.Warn().Str("result_id", result.ID).Err(err).Msg("Failed to persist supplier result")
	}
}

// forceFail produces the timeout result for a task the deadline caught
func (c *Coordinator) forceFail(task *models.SupplierTask) *models.SupplierResult {
	task.Status = models.TaskStatusFailed
	task.CompletedAt = time.Now()
	return &models.SupplierResult{
		ID:          common.NewResultID(),
		TaskID:      task.ID,
		JobID:       task.JobID,
		URL:         task.NormalizedURL,
		Method:      models.StrategyPlain,
		Success:     false,
		ErrorReason: models.ErrorKindTimeout,
		FetchedAt:   time.Now(),
	}
}

func taskByID(tasks []*models.SupplierTask, id string) *models.SupplierTask {
	for _, t := range tasks {
		if t.ID == id {
			return t
		}
	}
	return nil
}
