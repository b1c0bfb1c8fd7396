package enrich

import (
	"context"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/fetch"
	"github.com/ternarybob/reperio/internal/models"
)

// Worker executes one supplier task to a terminal result: it asks the
// selector for a strategy, fetches, classifies, and either extracts or
// escalates. Every task that starts produces exactly one result.
type Worker struct {
	fetchers    map[models.FetchStrategy]fetch.Fetcher
	selector    *fetch.Selector
	limiter     *fetch.DomainLimiter
	extractor   *Extractor
	taskTimeout time.Duration
	minContent  int
	logger      arbor.ILogger
}

// NewWorker creates an enrichment worker over the given strategy set
func NewWorker(
	fetchers []fetch.Fetcher,
	selector *fetch.Selector,
	limiter *fetch.DomainLimiter,
	extractor *Extractor,
	enrichCfg common.EnrichmentConfig,
	fetchCfg common.FetchConfig,
	logger arbor.ILogger,
) *Worker {
	byStrategy := make(map[models.FetchStrategy]fetch.Fetcher, len(fetchers))
	for _, f := range fetchers {
		byStrategy[f.Strategy()] = f
	}
	return &Worker{
		fetchers:    byStrategy,
		selector:    selector,
		limiter:     limiter,
		extractor:   extractor,
		taskTimeout: enrichCfg.TaskTimeout,
		minContent:  fetchCfg.MinContentBytes,
		logger:      logger,
	}
}

// Run executes the task through the escalation loop and returns its terminal
// result. The task's attempt history and status are updated in place.
func (w *Worker) Run(ctx context.Context, task *models.SupplierTask) *models.SupplierResult {
	taskCtx, cancel := context.WithTimeout(ctx, w.taskTimeout)
	defer cancel()

	task.Status = models.TaskStatusInProgress

	for {
		strategy, ok := w.selector.Next(task.Attempts)
		if !ok {
			return w.fail(task, task.LastErrorKind())
		}

		fetcher, exists := w.fetchers[strategy]
		if !exists {
			// Strategy unavailable (e.g. browser pool failed to start); treat
			// as an error attempt so the selector can escalate past it.
			task.RecordAttempt(strategy, string(fetch.OutcomeError), 0, models.ErrorKindUnreachable)
			continue
		}

		if err := w.limiter.Wait(taskCtx, task.NormalizedURL); err != nil {
			return w.fail(task, fetch.ClassifyError(err))
		}

		startTime := time.Now()
		res, err := fetcher.Fetch(taskCtx, task.NormalizedURL)
		latency := time.Since(startTime)

		if err != nil {
			kind := fetch.ClassifyError(err)
			task.RecordAttempt(strategy, string(fetch.OutcomeError), latency, kind)
			w.logger.Debug().
				Str("url", task.NormalizedURL).
				Str("strategy", string(strategy)).
				Err(err).
				Msg("Fetch attempt failed")
			if taskCtx.Err() != nil {
				// Task time is up; stop escalating.
				return w.fail(task, kind)
			}
			continue
		}

		outcome := fetch.Classify(res, w.minContent)
		switch outcome {
		case fetch.OutcomeSuccess:
			task.RecordAttempt(strategy, string(fetch.OutcomeSuccess), latency, models.ErrorKindNone)
			return w.succeed(task, res)
		case fetch.OutcomeBlocked:
			task.RecordAttempt(strategy, string(fetch.OutcomeBlocked), latency, models.ErrorKindBlocked)
		case fetch.OutcomeShell:
			task.RecordAttempt(strategy, string(fetch.OutcomeShell), latency, models.ErrorKindEmptyContent)
		default:
			task.RecordAttempt(strategy, string(fetch.OutcomeError), latency, models.ErrorKindUnreachable)
		}
	}
}

// succeed runs extraction over a successful fetch. An extraction that yields
// nothing still fails the task: content we cannot read is content we do not
// have.
func (w *Worker) succeed(task *models.SupplierTask, res *fetch.Result) *models.SupplierResult {
	extracted, err := w.extractor.Extract(task.NormalizedURL, res.Body)
	if err != nil || extracted.Empty() {
		if err != nil {
			w.logger.Warn().Err(err).Str("url", task.NormalizedURL).Msg("Extraction failed")
		}
		return w.fail(task, models.ErrorKindEmptyContent)
	}

	task.Status = models.TaskStatusSucceeded
	task.CompletedAt = time.Now()

	return &models.SupplierResult{
		ID:          common.NewResultID(),
		TaskID:      task.ID,
		JobID:       task.JobID,
		URL:         task.NormalizedURL,
		CompanyName: extracted.CompanyName,
		Contact:     extracted.Contact,
		PriceText:   extracted.PriceText,
		PageExcerpt: extracted.PageExcerpt,
		Method:      res.Strategy,
		Success:     true,
		FetchedAt:   time.Now(),
	}
}

// fail produces the terminal failed result for the task
func (w *Worker) fail(task *models.SupplierTask, kind models.ErrorKind) *models.SupplierResult {
	if kind == models.ErrorKindNone {
		kind = models.ErrorKindUnreachable
	}
	task.Status = models.TaskStatusFailed
	task.CompletedAt = time.Now()

	method := models.StrategyPlain
	if len(task.Attempts) > 0 {
		method = task.Attempts[len(task.Attempts)-1].Strategy
	}

	return &models.SupplierResult{
		ID:          common.NewResultID(),
		TaskID:      task.ID,
		JobID:       task.JobID,
		URL:         task.NormalizedURL,
		Method:      method,
		Success:     false,
		ErrorReason: kind,
		FetchedAt:   time.Now(),
	}
}
