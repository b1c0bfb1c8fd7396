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

// PlainFetcher performs a direct request with realistic browser-like headers.
// It is the cheapest strategy and the first one the selector tries.
type PlainFetcher struct {
	config common.FetchConfig
	client *http.Client
	logger arbor.ILogger
}

// NewPlainFetcher creates a plain fetcher with a cookie jar so simple
// set-cookie-then-redirect flows survive within one request chain.
func NewPlainFetcher(config common.FetchConfig, logger arbor.ILogger) *PlainFetcher {
	jar, _ := cookiejar.New(nil)
	return &PlainFetcher{
		config: config,
		client: &http.Client{
			Jar:     jar,
			Timeout: config.PlainTimeout,
		},
		logger: logger,
	}
}

// Strategy returns the strategy identifier
func (f *PlainFetcher) Strategy() models.FetchStrategy {
	return models.StrategyPlain
}

// Fetch retrieves the page with a single direct request
func (f *PlainFetcher) Fetch(ctx context.Context, targetURL string) (*Result, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.config.PlainTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, targetURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	applyBrowserHeaders(req, f.config.UserAgent, "en-US,en;q=0.9")

	startTime := time.Now()
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("plain fetch failed: %w", err)
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
		Strategy:   models.StrategyPlain,
		Duration:   time.Since(startTime),
	}

	f.logger.Debug().
		Str("url", targetURL).
		Int("status_code", resp.StatusCode).
		Int("body_size", len(body)).
		Dur("duration", result.Duration).
		Msg("Plain fetch completed")

	return result, nil
}

// applyBrowserHeaders sets the header set a real browser sends on a
// top-level navigation. Accept-Encoding is deliberately left to the
// transport: setting it by hand turns off net/http's transparent gzip
// decompression and the classifier would see compressed bytes.
func applyBrowserHeaders(req *http.Request, userAgent, acceptLanguage string) {
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", acceptLanguage)
	req.Header.Set("Upgrade-Insecure-Requests", "1")
	req.Header.Set("Sec-Fetch-Dest", "document")
	req.Header.Set("Sec-Fetch-Mode", "navigate")
	req.Header.Set("Sec-Fetch-Site", "none")
	req.Header.Set("Sec-Fetch-User", "?1")
}

// flattenHeaders keeps the first value of each response header
func flattenHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}
