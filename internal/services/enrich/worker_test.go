package enrich

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/fetch"
	"github.com/ternarybob/reperio/internal/models"
)

// stubFetcher is a scriptable Fetcher for tests
type stubFetcher struct {
	strategy models.FetchStrategy
	fn       func(ctx context.Context, targetURL string) (*fetch.Result, error)
}

func (s *stubFetcher) Strategy() models.FetchStrategy { return s.strategy }
func (s *stubFetcher) Fetch(ctx context.Context, targetURL string) (*fetch.Result, error) {
	return s.fn(ctx, targetURL)
}

// memSupplierStorage is an in-memory SupplierStorage for tests
type memSupplierStorage struct {
	mu      sync.Mutex
	tasks   map[string]*models.SupplierTask
	results map[string]*models.SupplierResult
}

func newMemSupplierStorage() *memSupplierStorage {
	return &memSupplierStorage{
		tasks:   make(map[string]*models.SupplierTask),
		results: make(map[string]*models.SupplierResult),
	}
}

func (m *memSupplierStorage) SaveTask(ctx context.Context, task *models.SupplierTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tasks[task.ID] = task
	return nil
}

func (m *memSupplierStorage) GetTask(ctx context.Context, taskID string) (*models.SupplierTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	task, ok := m.tasks[taskID]
	if !ok {
		return nil, fmt.Errorf("supplier task not found: %s", taskID)
	}
	return task, nil
}

func (m *memSupplierStorage) ListTasksByJob(ctx context.Context, jobID string) ([]*models.SupplierTask, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SupplierTask
	for _, t := range m.tasks {
		if t.JobID == jobID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (m *memSupplierStorage) SaveResult(ctx context.Context, result *models.SupplierResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[result.ID] = result
	return nil
}

func (m *memSupplierStorage) ListResultsByJob(ctx context.Context, jobID string) ([]*models.SupplierResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.SupplierResult
	for _, r := range m.results {
		if r.JobID == jobID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memSupplierStorage) DeleteByJob(ctx context.Context, jobID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tasks {
		if t.JobID == jobID {
			delete(m.tasks, id)
		}
	}
	for id, r := range m.results {
		if r.JobID == jobID {
			delete(m.results, id)
		}
	}
	return nil
}

var goodSupplierHTML = []byte(`<html><head><title>Widgets | Good Supplier</title></head>
<body><main><p>Order at orders@goodsupplier.example or call +1 555 010 2233.</p>` +
	strings.Repeat("<p>catalog content</p>", 50) + `</main></body></html>`)

var blockedHTML = []byte(`<html><title>Just a moment...</title><div class="cf-browser-verification"></div></html>`)

func testWorker(fetchers []fetch.Fetcher) *Worker {
	logger := arbor.NewLogger()
	return NewWorker(
		fetchers,
		fetch.NewSelector(3),
		fetch.NewDomainLimiter(0),
		NewExtractor(logger),
		common.EnrichmentConfig{MaxAttempts: 3, TaskTimeout: 5 * time.Second},
		common.FetchConfig{MinContentBytes: 64},
		logger,
	)
}

func okResult(strategy models.FetchStrategy, body []byte) func(context.Context, string) (*fetch.Result, error) {
	return func(_ context.Context, targetURL string) (*fetch.Result, error) {
		return &fetch.Result{URL: targetURL, StatusCode: 200, Body: body, Strategy: strategy}, nil
	}
}

func TestWorkerSucceedsOnFirstAttempt(t *testing.T) {
	w := testWorker([]fetch.Fetcher{
		&stubFetcher{strategy: models.StrategyPlain, fn: okResult(models.StrategyPlain, goodSupplierHTML)},
	})

	task := &models.SupplierTask{ID: "task_1", JobID: "job_1", NormalizedURL: "https://goodsupplier.example/widgets"}
	result := w.Run(context.Background(), task)

	require.True(t, result.Success)
	assert.Equal(t, models.StrategyPlain, result.Method)
	assert.Equal(t, models.TaskStatusSucceeded, task.Status)
	assert.Contains(t, result.Contact.Emails, "orders@goodsupplier.example")
	require.Len(t, task.Attempts, 1)
	assert.Equal(t, "success", task.Attempts[0].Outcome)
}

func TestWorkerEscalatesThroughAllStrategies(t *testing.T) {
	w := testWorker([]fetch.Fetcher{
		&stubFetcher{strategy: models.StrategyPlain, fn: okResult(models.StrategyPlain, blockedHTML)},
		&stubFetcher{strategy: models.StrategyBypass, fn: okResult(models.StrategyBypass, blockedHTML)},
		&stubFetcher{strategy: models.StrategyRendered, fn: okResult(models.StrategyRendered, goodSupplierHTML)},
	})

	task := &models.SupplierTask{ID: "task_1", JobID: "job_1", NormalizedURL: "https://fortress.example/parts"}
	result := w.Run(context.Background(), task)

	require.True(t, result.Success)
	assert.Equal(t, models.StrategyRendered, result.Method)

	// Attempt history records the full escalation in order
	require.Len(t, task.Attempts, 3)
	assert.Equal(t, models.StrategyPlain, task.Attempts[0].Strategy)
	assert.Equal(t, "blocked", task.Attempts[0].Outcome)
	assert.Equal(t, models.StrategyBypass, task.Attempts[1].Strategy)
	assert.Equal(t, "blocked", task.Attempts[1].Outcome)
	assert.Equal(t, models.StrategyRendered, task.Attempts[2].Strategy)
	assert.Equal(t, "success", task.Attempts[2].Outcome)
}

func TestWorkerFailsAfterAttemptCap(t *testing.T) {
	w := testWorker([]fetch.Fetcher{
		&stubFetcher{strategy: models.StrategyPlain, fn: okResult(models.StrategyPlain, blockedHTML)},
		&stubFetcher{strategy: models.StrategyBypass, fn: okResult(models.StrategyBypass, blockedHTML)},
		&stubFetcher{strategy: models.StrategyRendered, fn: okResult(models.StrategyRendered, blockedHTML)},
	})

	task := &models.SupplierTask{ID: "task_1", JobID: "job_1", NormalizedURL: "https://fortress.example/parts"}
	result := w.Run(context.Background(), task)

	require.False(t, result.Success)
	assert.Equal(t, models.ErrorKindBlocked, result.ErrorReason)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
	assert.Len(t, task.Attempts, 3)
}

func TestWorkerEmptyExtractionFailsTask(t *testing.T) {
	empty := []byte(`<html><body><main>` + strings.Repeat("<br>", 100) + `</main></body></html>`)
	w := testWorker([]fetch.Fetcher{
		&stubFetcher{strategy: models.StrategyPlain, fn: okResult(models.StrategyPlain, empty)},
	})

	task := &models.SupplierTask{ID: "task_1", JobID: "job_1", NormalizedURL: "https://hollow.example/"}
	result := w.Run(context.Background(), task)

	require.False(t, result.Success)
	assert.Equal(t, models.ErrorKindEmptyContent, result.ErrorReason)
	assert.Equal(t, models.TaskStatusFailed, task.Status)
}

func TestWorkerFetchErrorClassified(t *testing.T) {
	w := testWorker([]fetch.Fetcher{
		&stubFetcher{strategy: models.StrategyPlain, fn: func(ctx context.Context, _ string) (*fetch.Result, error) {
			return nil, fmt.Errorf("dial tcp: connection refused")
		}},
		&stubFetcher{strategy: models.StrategyBypass, fn: func(ctx context.Context, _ string) (*fetch.Result, error) {
			return nil, fmt.Errorf("dial tcp: connection refused")
		}},
		&stubFetcher{strategy: models.StrategyRendered, fn: func(ctx context.Context, _ string) (*fetch.Result, error) {
			return nil, fmt.Errorf("dial tcp: connection refused")
		}},
	})

	task := &models.SupplierTask{ID: "task_1", JobID: "job_1", NormalizedURL: "https://down.example/"}
	result := w.Run(context.Background(), task)

	require.False(t, result.Success)
	assert.Equal(t, models.ErrorKindUnreachable, result.ErrorReason)
}
