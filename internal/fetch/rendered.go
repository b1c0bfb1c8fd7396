package fetch

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/models"
)

// RenderedFetcher is the heaviest strategy: it loads the page in a pooled
// Chrome context, waits for JavaScript to settle, and captures the rendered
// DOM. It is the only strategy that can recover content from an application
// shell.
type RenderedFetcher struct {
	config common.FetchConfig
	pool   *BrowserPool
	logger arbor.ILogger
}

// NewRenderedFetcher creates a rendered fetcher backed by the shared pool
func NewRenderedFetcher(config common.FetchConfig, pool *BrowserPool, logger arbor.ILogger) *RenderedFetcher {
	return &RenderedFetcher{
		config: config,
		pool:   pool,
		logger: logger,
	}
}

// Strategy returns the strategy identifier
func (f *RenderedFetcher) Strategy() models.FetchStrategy {
	return models.StrategyRendered
}

// Fetch renders the page in a pooled browser context and returns the
// post-JavaScript DOM
func (f *RenderedFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.RenderedTimeout)
	defer cancel()

	slot, err := f.pool.Acquire(attemptCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to acquire browser context: %w", err)
	}
	defer f.pool.Release(slot)

	// Bound the run by the attempt context while executing in the pooled
	// browser context.
	runCtx, runCancel := context.WithTimeout(slot.ctx, f.config.RenderedTimeout)
	defer runCancel()
	stop := context.AfterFunc(attemptCtx, runCancel)
	defer stop()

	// Capture the document response status; chromedp itself only surfaces
	// navigation errors.
	var statusCode atomic.Int64
	chromedp.ListenTarget(runCtx, func(ev interface{}) {
		if res, ok := ev.(*network.EventResponseReceived); ok {
			if res.Type == network.ResourceTypeDocument {
				statusCode.CompareAndSwap(0, res.Response.Status)
			}
		}
	})

	var html string
	startTime := time.Now()
	err = chromedp.Run(runCtx,
		network.Enable(),
		network.SetExtraHTTPHeaders(network.Headers{"Accept-Language": "en-US,en;q=0.9"}),
		chromedp.Navigate(targetURL),
		chromedp.Sleep(f.config.JavaScriptWaitTime),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		if attemptCtx.Err() != nil {
			return nil, fmt.Errorf("rendered fetch failed: %w", attemptCtx.Err())
		}
		return nil, fmt.Errorf("rendered fetch failed: %w", err)
	}

	body := []byte(html)
	if int64(len(body)) > f.config.MaxBodySize {
		body = body[:f.config.MaxBodySize]
	}

	status := int(statusCode.Load())
	if status == 0 {
		// Navigation succeeded but no document response was observed (e.g. a
		// cached load); treat it as OK.
		status = 200
	}

	result := &Result{
		URL:        targetURL,
		StatusCode: status,
		Body:       body,
		Headers:    map[string]string{},
		Strategy:   models.StrategyRendered,
		Duration:   time.Since(startTime),
	}

	f.logger.Debug().
		Str("url", targetURL).
		Int("body_size", len(body)).
		Dur("duration", result.Duration).
		Msg("Rendered fetch completed")

	return result, nil
}
