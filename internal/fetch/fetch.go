package fetch

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/ternarybob/reperio/internal/models"
)

// Outcome classifies the result of one fetch attempt
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeBlocked Outcome = "blocked"
	OutcomeShell   Outcome = "shell"
	OutcomeError   Outcome = "error"
)

// Result holds raw page content retrieved by one strategy
type Result struct {
	URL        string
	StatusCode int
	Body       []byte
	Headers    map[string]string
	Strategy   models.FetchStrategy
	Duration   time.Duration
}

// Fetcher retrieves raw page content for one URL using one strategy
type Fetcher interface {
	Strategy() models.FetchStrategy
	Fetch(ctx context.Context, targetURL string) (*Result, error)
}

// ClassifyError maps a fetch error to the supplier error taxonomy
func ClassifyError(err error) models.ErrorKind {
	if err == nil {
		return models.ErrorKindNone
	}
	if errors.Is(err, context.Canceled) {
		return models.ErrorKindCancelled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return models.ErrorKindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return models.ErrorKindTimeout
	}
	return models.ErrorKindUnreachable
}
