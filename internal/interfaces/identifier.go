package interfaces

import (
	"context"
	"errors"

	"github.com/ternarybob/reperio/internal/models"
)

// Identification failure modes. Both are terminal for the identification
// stage: invalid input is never retried, upstream unavailability is reported
// to the caller as retryable.
var (
	ErrInvalidInput        = errors.New("identification input is invalid")
	ErrUpstreamUnavailable = errors.New("identification service unavailable")
)

// IdentifyRequest carries the submitted image bytes and/or keyword text
type IdentifyRequest struct {
	Image     []byte
	ImageMIME string
	Keywords  string
}

// Empty reports whether the request carries neither image nor keywords
func (r IdentifyRequest) Empty() bool {
	return len(r.Image) == 0 && r.Keywords == ""
}

// Identifier is the opaque external identification capability. Its internals
// are out of scope; implementations wrap a vision-capable LLM provider.
type Identifier interface {
	Identify(ctx context.Context, req IdentifyRequest) (*models.IdentificationCandidate, error)
}
