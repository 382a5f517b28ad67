package app

import (
	"context"
	"fmt"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/leadforge/internal/common"
	"github.com/ternarybob/leadforge/internal/handlers"
	"github.com/ternarybob/leadforge/internal/interfaces"
	"github.com/ternarybob/leadforge/internal/services/enrich"
	"github.com/ternarybob/leadforge/internal/services/events"
	"github.com/ternarybob/leadforge/internal/services/jobs"
	"github.com/ternarybob/leadforge/internal/services/outreach"
	"github.com/ternarybob/leadforge/internal/services/pipeline"
	"github.com/ternarybob/leadforge/internal/services/places"
	"github.com/ternarybob/leadforge/internal/services/score"
	badgerstore "github.com/ternarybob/leadforge/internal/storage/badger"
	"github.com/ternarybob/leadforge/internal/storage/sqlite"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	// Storage
	SQLiteDB     *sqlite.SQLiteDB
	DurableStore interfaces.DurableStore // nil when sqlite is disabled
	Cache        interfaces.KVCache

	// Event fan-out and job state
	EventRegistry *events.Registry
	JobStore      *jobs.Store
	Manager       *jobs.Manager

	// Pipeline stages
	PlacesService   *places.Service
	EnrichService   *enrich.Service
	Scorer          *score.Scorer
	OutreachService *outreach.Service // nil when no Claude key and skip_on_missing
	Researcher      interfaces.ResearchService
	Orchestrator    *pipeline.Orchestrator

	// HTTP handlers
	APIHandler      *handlers.APIHandler
	JobHandler      *handlers.JobHandler
	StreamHandler   *handlers.StreamHandler
	ExportHandler   *handlers.ExportHandler
	ResearchHandler *handlers.ResearchHandler
	WSHandler       *handlers.WSHandler
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := app.initStorage(); err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	if err := app.initServices(); err != nil {
		app.Close()
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.initHandlers()

	// Fail work orphaned by a previous process before accepting new work.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := app.Manager.RecoverOrphans(ctx); err != nil {
		logger.Warn().Err(err).Msg("Orphan recovery failed")
	}

	app.Manager.Start()
	return app, nil
}

// initStorage opens the durable mirror and the KV cache
func (a *App) initStorage() error {
	if a.Config.Storage.SQLite.Enabled {
		db, err := sqlite.NewSQLiteDB(a.Logger, &a.Config.Storage.SQLite)
		if err != nil {
			return err
		}
		a.SQLiteDB = db
		a.DurableStore = sqlite.NewStorage(db, a.Logger)
	} else {
		a.Logger.Warn().Msg("SQLite disabled: resume, restart recovery, and cross-job dedup are unavailable")
	}

	cache, err := badgerstore.NewCache(&a.Config.Storage.Badger, a.Logger)
	if err != nil {
		return err
	}
	a.Cache = cache
	return nil
}

// initServices wires the pipeline stages, job store, and manager
func (a *App) initServices() error {
	placesService, err := places.NewService(&a.Config.Maps, a.Logger)
	if err != nil {
		return err
	}
	a.PlacesService = placesService

	a.EnrichService = enrich.NewService(&a.Config.Enrich, a.Cache, a.Logger)
	a.Scorer = score.NewScorer()

	if a.Config.Claude.APIKey != "" {
		outreachService, err := outreach.NewService(&a.Config.Claude, a.Logger)
		if err != nil {
			return err
		}
		a.OutreachService = outreachService
		a.Researcher = outreach.NewResearcher(outreachService, a.Cache, a.Config.Claude.ResearchRPM)
	} else if a.Config.Claude.SkipOnMissing {
		a.Logger.Warn().Msg("No Anthropic API key: outreach generation and research are disabled")
	} else {
		return fmt.Errorf("Anthropic API key is required (set claude.skip_on_missing to run without outreach)")
	}

	a.EventRegistry = events.NewRegistry(a.Logger)
	a.JobStore = jobs.NewStore(a.EventRegistry, a.DurableStore, a.Config.Jobs.EventBufferSize, a.Logger)

	var generator interfaces.OutreachGenerator
	if a.OutreachService != nil {
		generator = a.OutreachService
	}
	a.Orchestrator = pipeline.NewOrchestrator(
		a.PlacesService,
		a.EnrichService,
		a.Scorer,
		generator,
		a.DurableStore,
		a.Logger,
	)

	a.Manager = jobs.NewManager(a.JobStore, a.Orchestrator, jobs.ManagerConfig{
		MaxConcurrent:   a.Config.Jobs.MaxConcurrent,
		MaxPerUser:      a.Config.Jobs.MaxPerUser,
		TimeoutMinutes:  a.Config.Jobs.TimeoutMinutes,
		TTLMinutes:      a.Config.Jobs.TTLMinutes,
		CleanupSchedule: a.Config.Jobs.CleanupSchedule,
		WorkerCount:     a.Config.Jobs.WorkerCount,
	}, a.Logger)

	return nil
}

// initHandlers wires the HTTP handlers
func (a *App) initHandlers() {
	a.APIHandler = handlers.NewAPIHandler(a.Logger)
	a.JobHandler = handlers.NewJobHandler(a.Manager, a.Logger)
	a.StreamHandler = handlers.NewStreamHandler(a.JobStore, a.Manager, a.Logger)
	a.ExportHandler = handlers.NewExportHandler(a.Manager, a.Logger)
	a.ResearchHandler = handlers.NewResearchHandler(a.Researcher, a.DurableStore, a.Logger)
	a.WSHandler = handlers.NewWSHandler(a.JobStore, a.Manager, a.Logger)
}

// Close releases resources in reverse initialization order
func (a *App) Close() {
	if a.Manager != nil {
		a.Manager.Stop()
	}
	if a.Cache != nil {
		if err := a.Cache.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close cache")
		}
	}
	if a.DurableStore != nil {
		if err := a.DurableStore.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close durable store")
		}
	}
	a.Logger.Info().Msg("Application closed")
}
