package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
)

// BrowserPool maintains a fixed set of warm Chrome browser contexts shared by
// all rendered fetches. Capacity never grows: when every slot is in use,
// Acquire blocks until a slot is released or the caller's context ends, which
// keeps memory bounded no matter how many tasks escalate to rendering at once.
type BrowserPool struct {
	slots     chan *browserSlot
	allocCtx  context.Context
	allocStop context.CancelFunc
	size      int
	logger    arbor.ILogger
	closeOnce sync.Once
	closed    chan struct{}
}

// browserSlot is one pooled browser context
type browserSlot struct {
	ctx    context.Context
	cancel context.CancelFunc
}

// NewBrowserPool starts a shared Chrome allocator and warms size browser
// contexts. Each context is verified with a blank navigation so a broken
// Chrome install fails fast at startup instead of on the first job.
func NewBrowserPool(config common.FetchConfig, logger arbor.ILogger) (*BrowserPool, error) {
	size := config.BrowserPoolSize
	if size <= 0 {
		size = 1
	}

	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", config.BrowserHeadless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("exclude-switches", "enable-automation"),
		chromedp.UserAgent(config.UserAgent),
		chromedp.WindowSize(1920, 1080),
	)
	if config.BrowserNoSandbox {
		opts = append(opts, chromedp.Flag("no-sandbox", true))
	}

	allocCtx, allocStop := chromedp.NewExecAllocator(context.Background(), opts...)

	pool := &BrowserPool{
		slots:     make(chan *browserSlot, size),
		allocCtx:  allocCtx,
		allocStop: allocStop,
		size:      size,
		logger:    logger,
		closed:    make(chan struct{}),
	}

	for i := 0; i < size; i++ {
		slot, err := pool.newSlot()
		if err != nil {
			pool.Close()
			return nil, fmt.Errorf("failed to start browser context %d/%d: %w", i+1, size, err)
		}
		pool.slots <- slot
	}

	logger.Info().
		Int("pool_size", size).
		Bool("headless", config.BrowserHeadless).
		Msg("Browser pool started")

	return pool, nil
}

// newSlot creates and smoke-tests one browser context off the shared allocator
func (p *BrowserPool) newSlot() (*browserSlot, error) {
	ctx, cancel := chromedp.NewContext(p.allocCtx)

	testCtx, testCancel := context.WithTimeout(ctx, 15*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		cancel()
		return nil, err
	}

	return &browserSlot{ctx: ctx, cancel: cancel}, nil
}

// Size returns the pool capacity
func (p *BrowserPool) Size() int {
	return p.size
}

// Acquire checks out a browser context, blocking until one is free or the
// caller's context is done. Every successful Acquire must be paired with a
// Release on all code paths.
func (p *BrowserPool) Acquire(ctx context.Context) (*browserSlot, error) {
	select {
	case slot := <-p.slots:
		return slot, nil
	case <-p.closed:
		return nil, fmt.Errorf("browser pool is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Release returns a slot to the pool. A slot whose browser died is replaced
// with a fresh context so the pool keeps its capacity.
func (p *BrowserPool) Release(slot *browserSlot) {
	if slot == nil {
		return
	}
	select {
	case <-p.closed:
		slot.cancel()
		return
	default:
	}

	if slot.ctx.Err() != nil {
		slot.cancel()
		fresh, err := p.newSlot()
		if err != nil {
			p.logger.Warn().Err(err).Msg("Failed to replace dead browser context")
			// Put the dead slot back so capacity accounting stays intact; the
			// next Acquire will retry replacement on Release.
			p.slots <- slot
			return
		}
		p.logger.Debug().Msg("Replaced dead browser context")
		slot = fresh
	}
	p.slots <- slot
}

// Close shuts down all browser contexts and the allocator
func (p *BrowserPool) Close() {
	p.closeOnce.Do(func() {
		close(p.closed)
		for i := 0; i < p.size; i++ {
			select {
			case slot := <-p.slots:
				slot.cancel()
			default:
			}
		}
		p.allocStop()
		if p.logger != nil {
			p.logger.Info().Msg("Browser pool closed")
		}
	})
}
