package interfaces

import (
	"context"

	"github.com/ternarybob/reperio/internal/models"
)

// ProgressBroadcaster delivers ordered progress events to subscribed clients
// per job. Delivery is at-least-once and best-effort: a slow or disconnected
// subscriber may miss buffered events, and clients must treat the job's
// queryable status as authoritative.
type ProgressBroadcaster interface {
	// Publish enqueues an event for delivery to the job's subscribers.
	// Generation order is preserved per job.
	Publish(ctx context.Context, event models.ProgressEvent)

	// Subscribe returns a channel of events for the job plus a cancel
	// function that releases the subscription.
	Subscribe(jobID string) (<-chan models.ProgressEvent, func())

	// Close shuts down the broadcaster and closes all subscriber channels.
	Close()
}
