package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/models"
)

// BypassFetcher is the challenge-bypass strategy: it rotates through coherent
// browser fingerprints and uses a fresh cookie jar per attempt so state from
// a previous, already-flagged attempt cannot leak into the next one.
type BypassFetcher struct {
	config common.FetchConfig
	pool   *FingerprintPool
	logger arbor.ILogger
}

// NewBypassFetcher creates a bypass fetcher backed by a fingerprint pool
func NewBypassFetcher(config common.FetchConfig, pool *FingerprintPool, logger arbor.ILogger) *BypassFetcher {
	if pool == nil {
		pool = NewFingerprintPool()
	}
	return &BypassFetcher{
		config: config,
		pool:   pool,
		logger: logger,
	}
}

// Strategy returns the strategy identifier
func (f *BypassFetcher) Strategy() models.FetchStrategy {
	return models.StrategyBypass
}

// Fetch retrieves the page with a rotated fingerprint and a fresh cookie jar
func (f *BypassFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.BypassTimeout)
	defer cancel()

	jar, _ := cookiejar.New(nil)
	client := &http.Client{
		Jar:     jar,
		Timeout: f.config.BypassTimeout,
	}

	fp := f.pool.Next()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	applyBrowserHeaders(req, fp.UserAgent, fp.AcceptLanguage)
	if fp.SecChUa != "" {
		req.Header.Set("Sec-Ch-Ua", fp.SecChUa)
		req.Header.Set("Sec-Ch-Ua-Mobile", fp.SecChUaMobile)
		req.Header.Set("Sec-Ch-Ua-Platform", fp.SecChUaPlatform)
	}

	startTime := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("bypass fetch failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	result := &Result{
		URL:        targetURL,
		StatusCode: resp.StatusCode,
		Body:       body,
		Headers:    flattenHeaders(resp.Header),
		Strategy:   models.StrategyBypass,
		Duration:   time.Since(startTime),
	}

	f.logger.Debug().
		Str("url", targetURL).
		Int("status_code", resp.StatusCode).
		Int("body_size", len(body)).
		Str("user_agent", fp.UserAgent).
		Dur("duration", result.Duration).
		Msg("Bypass fetch completed")

	return result, nil
}
