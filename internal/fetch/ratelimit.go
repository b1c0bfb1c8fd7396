package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"
	"time"
)

// DomainLimiter enforces a minimum delay between requests to the same domain
// across all strategies and workers. Different domains proceed independently.
type DomainLimiter struct {
	delay       time.Duration
	mu          sync.Mutex
	lastRequest map[string]time.Time
}

// NewDomainLimiter creates a limiter with the given per-domain delay
func NewDomainLimiter(delay time.Duration) *DomainLimiter {
	return &DomainLimiter{
		delay:       delay,
		lastRequest: make(map[string]time.Time),
	}
}

// Wait blocks until the domain of targetURL is allowed another request, or
// the context ends. The reservation is taken up front so concurrent waiters
// on the same domain queue behind each other instead of releasing together.
func (l *DomainLimiter) Wait(ctx context.Context, targetURL string) error {
	if l.delay <= 0 {
		return nil
	}
	domain := domainOf(targetURL)

	l.mu.Lock()
	now := time.Now()
	next := l.lastRequest[domain].Add(l.delay)
	if next.Before(now) {
		next = now
	}
	l.lastRequest[domain] = next
	l.mu.Unlock()

	wait := time.Until(next)
	if wait <= 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// domainOf extracts the registrable host key used for rate limiting
func domainOf(targetURL string) string {
	u, err := url.Parse(targetURL)
	if err != nil || u.Host == "" {
		return targetURL
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, "www.")
}
