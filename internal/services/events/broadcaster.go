package events

import (
	"context"
	"sync"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/models"
)

// Broadcaster implements the ProgressBroadcaster interface with per-job
// subscriber lists and bounded buffers. Publishing never blocks on a slow
// subscriber: when a buffer is full the oldest event is dropped, which keeps
// event order intact for what the subscriber does see. The job record remains
// the authoritative view of progress.
type Broadcaster struct {
	mu         sync.Mutex
	subs       map[string][]*subscriber
	bufferSize int
	closed     bool
	logger     arbor.ILogger
}

type subscriber struct {
	jobID string
	ch    chan models.ProgressEvent
}

// NewBroadcaster creates a progress broadcaster with the given per-subscriber
// buffer size
func NewBroadcaster(bufferSize int, logger arbor.ILogger) *Broadcaster {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Broadcaster{
		subs:       make(map[string][]*subscriber),
		bufferSize: bufferSize,
		logger:     logger,
	}
}

var _ interfaces.ProgressBroadcaster = (*Broadcaster)(nil)

// Publish delivers the event to every subscriber of its job. Events published
// from a single goroutine arrive in publish order; slow subscribers lose the
// oldest buffered events first.
func (b *Broadcaster) Publish(ctx context.Context, event models.ProgressEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	for _, sub := range b.subs[event.JobID] {
		select {
		case sub.ch <- event:
		default:
			// Buffer full: drop the oldest event to make room, keeping
			// relative order of the survivors.
			select {
			case <-sub.ch:
			default:
			}
			select {
			case sub.ch <- event:
			default:
			}
			b.logger.Debug().
				Str("job_id", event.JobID).
				Str("stage", event.Stage).
				Msg("Dropped oldest progress event for slow subscriber")
		}
	}
}

// Subscribe registers a new subscriber for a job. The returned cancel
// function is idempotent and closes the channel.
func (b *Broadcaster) Subscribe(jobID string) (<-chan models.ProgressEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	sub := &subscriber{
		jobID: jobID,
		ch:    make(chan models.ProgressEvent, b.bufferSize),
	}
	if b.closed {
		close(sub.ch)
		return sub.ch, func() {}
	}
	b.subs[jobID] = append(b.subs[jobID], sub)

	b.logger.Debug().
		Str("job_id", jobID).
		Int("subscriber_count", len(b.subs[jobID])).
		Msg("Progress subscriber registered")

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.remove(sub)
		})
	}
	return sub.ch, cancel
}

// remove detaches a subscriber and closes its channel
func (b *Broadcaster) remove(sub *subscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	subs := b.subs[sub.jobID]
	for i, s := range subs {
		if s == sub {
			b.subs[sub.jobID] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
	if len(b.subs[sub.jobID]) == 0 {
		delete(b.subs, sub.jobID)
	}
	close(sub.ch)
}

// Close shuts the broadcaster down and closes every subscriber channel
func (b *Broadcaster) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true

	for jobID, subs := range b.subs {
		for _, sub := range subs {
			close(sub.ch)
		}
		delete(b.subs, jobID)
	}
	b.logger.Debug().Msg("Progress broadcaster closed")
}
