package app

import (
	"fmt"
	"time"

	"github.com/ternarybob/arbor"
	"github.com/ternarybob/reperio/internal/common"
	"github.com/ternarybob/reperio/internal/fetch"
	"github.com/ternarybob/reperio/internal/handlers"
	"github.com/ternarybob/reperio/internal/interfaces"
	"github.com/ternarybob/reperio/internal/services/enrich"
	"github.com/ternarybob/reperio/internal/services/events"
	"github.com/ternarybob/reperio/internal/services/identify"
	"github.com/ternarybob/reperio/internal/services/jobs"
	"github.com/ternarybob/reperio/internal/services/scheduler"
	"github.com/ternarybob/reperio/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config         *common.Config
	Logger         arbor.ILogger
	StorageManager interfaces.StorageManager
	Broadcaster    interfaces.ProgressBroadcaster
	Identifier     interfaces.Identifier

	BrowserPool  *fetch.BrowserPool
	Coordinator  *enrich.Coordinator
	Orchestrator *jobs.Orchestrator
	Assembler    *jobs.ReportAssembler
	Retention    *scheduler.RetentionService

	JobHandler *handlers.JobHandler
	WSHandler  *handlers.WebSocketHandler
}

// New wires up all services in dependency order
func New(config *common.Config, logger arbor.ILogger) (*App, error) {
	a := &App{
		Config: config,
		Logger: logger,
	}

	storageManager, err := badger.NewManager(&config.Storage.Badger, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	a.StorageManager = storageManager

	a.Broadcaster = events.NewBroadcaster(config.WebSocket.BufferSize, logger)

	identifier, err := identify.NewIdentifier(config.Identify, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize identification service: %w", err)
	}
	a.Identifier = identifier

	// Fetch stack: plain and bypass always exist; rendered depends on a
	// working Chrome install. A missing Chrome degrades to the first two
	// strategies instead of refusing to start.
	fingerprints, err := fetch.LoadFingerprintPool(config.Fetch.FingerprintsFile)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to load fingerprint pool: %w", err)
	}
	logger.Debug().Int("fingerprints", fingerprints.Size()).Msg("Fingerprint pool loaded")

	fetchers := []fetch.Fetcher{
		fetch.NewPlainFetcher(config.Fetch, logger),
		fetch.NewBypassFetcher(config.Fetch, fingerprints, logger),
	}
	pool, err := fetch.NewBrowserPool(config.Fetch, logger)
	if err != nil {
		logger.Warn().Err(err).Msg("Browser pool unavailable, rendered fetch strategy disabled")
	} else {
		a.BrowserPool = pool
		fetchers = append(fetchers, fetch.NewRenderedFetcher(config.Fetch, pool, logger))
	}

	selector := fetch.NewSelector(config.Enrichment.MaxAttempts)
	limiter := fetch.NewDomainLimiter(config.Fetch.DomainDelay)
	extractor := enrich.NewExtractor(logger)
	worker := enrich.NewWorker(fetchers, selector, limiter, extractor, config.Enrichment, config.Fetch, logger)
	a.Coordinator = enrich.NewCoordinator(worker, storageManager.SupplierStorage(), config.Enrichment, logger)

	a.Assembler = jobs.NewReportAssembler(logger)
	a.Orchestrator = jobs.NewOrchestrator(storageManager, identifier, a.Coordinator, a.Broadcaster, a.Assembler, config, logger)

	retention, err := scheduler.NewRetentionService(storageManager, config.Retention, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize retention service: %w", err)
	}
	a.Retention = retention
	if err := retention.Start(); err != nil {
		a.Close()
		return nil, err
	}

	a.JobHandler = handlers.NewJobHandler(a.Orchestrator, a.Assembler, config, logger)
	a.WSHandler = handlers.NewWebSocketHandler(a.Broadcaster, &config.WebSocket, logger)

	logger.Info().Msg("Application initialized")
	return a, nil
}

// Close shuts down all components in reverse dependency order
func (a *App) Close() {
	if a.Retention != nil {
		a.Retention.Stop()
	}
	if a.Orchestrator != nil {
		a.Orchestrator.Stop(30 * time.Second)
	}
	if a.Broadcaster != nil {
		a.Broadcaster.Close()
	}
	if a.BrowserPool != nil {
		a.BrowserPool.Close()
	}
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
