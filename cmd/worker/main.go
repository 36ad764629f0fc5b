package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/config"
	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/db"
	"github.com/saviobatista/logbook-coverage/internal/logging"
	"github.com/saviobatista/logbook-coverage/internal/nats"
	"github.com/saviobatista/logbook-coverage/internal/parser"
	"github.com/saviobatista/logbook-coverage/internal/redis"
	"github.com/saviobatista/logbook-coverage/internal/stats"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// consumerName is the durable JetStream consumer and queue group shared by
// all workers; each import is processed by one of them
const consumerName = "coverage-worker"

// DBClient interface for testability
type DBClient interface {
	StoreImport(imp *types.LogbookImport, flightCount int) error
	StoreReport(importID string, report *types.CoverageReport) error
	Close() error
}

// SessionClient interface for testability
type SessionClient interface {
	StoreLogbook(ctx context.Context, pilotID string, flights []types.FlightRow) error
	GetSettings(ctx context.Context, pilotID string) (*types.PilotSettings, error)
	StoreReport(ctx context.Context, report *types.CoverageReport) error
	DeleteReports(ctx context.Context, pilotID string, scopes ...string) error
	Close() error
}

// ReportPublisher interface for testability
type ReportPublisher interface {
	PublishReport(report *types.CoverageReport) error
}

// Worker turns logbook imports into persisted coverage reports
type Worker struct {
	engine    *coverage.Engine
	db        DBClient
	sessions  SessionClient
	publisher ReportPublisher
	stats     *stats.Stats
}

// NewWorker creates a new worker; publisher may be nil
func NewWorker(engine *coverage.Engine, db DBClient, sessions SessionClient, publisher ReportPublisher) *Worker {
	return &Worker{
		engine:    engine,
		db:        db,
		sessions:  sessions,
		publisher: publisher,
		stats:     stats.New(),
	}
}

// Start begins statistics logging and persistence
func (w *Worker) Start(ctx context.Context) {
	// Set database client for statistics (only if it's the concrete type)
	if dbClient, ok := w.db.(*db.Client); ok {
		w.stats.SetDB(dbClient)
		go w.stats.StartPersistence(ctx, 5*time.Minute)
	}
	go w.logStats(ctx)
}

// ProcessImport parses one logbook export, builds the pilot's report and
// stores it
func (w *Worker) ProcessImport(ctx context.Context, imp *types.LogbookImport) (*types.CoverageReport, error) {
	start := time.Now()
	w.stats.IncrementImportsReceived()
	w.stats.UpdateLastImportTime()
	defer func() { w.stats.AddProcessingTime(time.Since(start)) }()

	flights, err := parser.ParseLogbook(imp.CSV)
	if err != nil {
		w.stats.IncrementImportsFailed()
		if storeErr := w.db.StoreImport(imp, 0); storeErr != nil {
			log.Printf("Warning: Failed to record failed import %s: %v", imp.ID, storeErr)
		}
		return nil, fmt.Errorf("failed to parse import %s: %w", imp.ID, err)
	}
	w.stats.IncrementImportsParsed()
	w.stats.AddFlightsParsed(len(flights))

	if err := w.db.StoreImport(imp, len(flights)); err != nil {
		return nil, fmt.Errorf("failed to store import: %w", err)
	}

	if err := w.sessions.StoreLogbook(ctx, imp.PilotID, flights); err != nil {
		log.Printf("Warning: Failed to cache logbook in Redis: %v", err)
	}

	settings := types.DefaultPilotSettings()
	saved, err := w.sessions.GetSettings(ctx, imp.PilotID)
	if err != nil {
		log.Printf("Warning: Failed to get pilot settings: %v", err)
	} else if saved != nil {
		settings = *saved
	}

	report, err := w.buildReport(imp.PilotID, flights, settings)
	if err != nil {
		return nil, err
	}

	if err := w.db.StoreReport(imp.ID, report); err != nil {
		return nil, fmt.Errorf("failed to store report: %w", err)
	}
	w.stats.IncrementReportsStored()
	w.stats.AddFacilitiesMatched(len(report.Visited))

	w.cacheReport(ctx, report)

	if w.publisher != nil {
		if err := w.publisher.PublishReport(report); err != nil {
			log.Printf("Warning: Failed to publish report: %v", err)
		}
	}

	return report, nil
}

// buildReport runs the pipeline with the pilot's settings. A home base
// that is no longer in the catalog drops the trip section instead of the
// whole report.
func (w *Worker) buildReport(pilotID string, flights []types.FlightRow, settings types.PilotSettings) (*types.CoverageReport, error) {
	req, err := coverage.RequestFromSettings(pilotID, flights, settings)
	if err != nil {
		log.Printf("Warning: Invalid settings for %s, using defaults: %v", pilotID, err)
		req, err = coverage.RequestFromSettings(pilotID, flights, types.DefaultPilotSettings())
		if err != nil {
			return nil, err
		}
	}

	report, err := w.engine.BuildReport(req)
	if errors.Is(err, coverage.ErrUnknownHome) {
		log.Printf("Warning: %v; building report without trips", err)
		req.Trips = nil
		report, err = w.engine.BuildReport(req)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to build report: %w", err)
	}
	return report, nil
}

// cacheReport replaces the pilot's cached reports with report
func (w *Worker) cacheReport(ctx context.Context, report *types.CoverageReport) {
	scopes := make([]string, len(catalog.Scopes))
	for i, sc := range catalog.Scopes {
		scopes[i] = string(sc)
	}
	if err := w.sessions.DeleteReports(ctx, report.PilotID, scopes...); err != nil {
		log.Printf("Warning: Failed to invalidate cached reports: %v", err)
	}
	if err := w.sessions.StoreReport(ctx, report); err != nil {
		log.Printf("Warning: Failed to cache report in Redis: %v", err)
	}
}

// logStats periodically logs statistics
func (w *Worker) logStats(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Printf("Statistics:\n%s", w.stats)
		}
	}
}

// newEngine loads the catalog named by cfg and builds the engine
func newEngine(ctx context.Context, cfg *config.Config) (*coverage.Engine, error) {
	cat, err := catalog.Load(ctx, cfg.CatalogPath, cfg.SecondaryCatalogPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	engine := coverage.NewEngine(cat, coverage.EngineConfig{
		HubIDs:               cfg.HubIDs,
		NearestThresholdNM:   cfg.NearestThresholdNM,
		UsableRunwayFraction: cfg.RunwayUsableFraction,
	})
	log.Printf("Loaded %d facilities (%d contributed, %d located)",
		len(cat.Primary), len(cat.Secondary), engine.Located())
	return engine, nil
}

// createClients creates all the required clients for the application
func createClients(cfg *config.Config) (*nats.Client, *db.Client, *redis.Client, error) {
	natsClient, err := nats.New(cfg.NATSURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to create NATS client: %w", err)
	}

	dbClient, err := db.New(cfg.DBConnStr)
	if err != nil {
		natsClient.Close()
		return nil, nil, nil, fmt.Errorf("failed to create database client: %w", err)
	}

	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		natsClient.Close()
		if closeErr := dbClient.Close(); closeErr != nil {
			log.Printf("error closing dbClient: %v", closeErr)
		}
		return nil, nil, nil, fmt.Errorf("failed to create Redis client: %w", err)
	}

	return natsClient, dbClient, redisClient, nil
}

// setupNATSSubscription sets up the NATS subscription for logbook imports
func setupNATSSubscription(ctx context.Context, natsClient *nats.Client, worker *Worker) error {
	if err := natsClient.SubscribeImports(consumerName, func(imp *types.LogbookImport) {
		report, err := worker.ProcessImport(ctx, imp)
		if err != nil {
			log.Printf("Failed to process import: %v", err)
			return
		}
		log.Printf("Import %s: pilot %s visited %d/%d (%s)",
			imp.ID, imp.PilotID, report.Coverage.Visited, report.Coverage.Total, report.Scope)
	}); err != nil {
		return fmt.Errorf("failed to subscribe to logbook imports: %w", err)
	}
	return nil
}

func closeClients(natsClient *nats.Client, dbClient *db.Client, redisClient *redis.Client) {
	natsClient.Close()
	if err := dbClient.Close(); err != nil {
		log.Printf("error closing dbClient: %v", err)
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("error closing redisClient: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer logging.Setup("worker ", cfg.LogFile).Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	engine, err := newEngine(ctx, cfg)
	if err != nil {
		return err
	}

	natsClient, dbClient, redisClient, err := createClients(cfg)
	if err != nil {
		return err
	}
	defer closeClients(natsClient, dbClient, redisClient)

	worker := NewWorker(engine, dbClient, redisClient, natsClient)
	worker.Start(ctx)

	if err := setupNATSSubscription(ctx, natsClient, worker); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down...")
	cancel()
	time.Sleep(time.Second) // Give the final stats persist time to finish
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Printf("Worker failed: %v", err)
		os.Exit(1)
	}
}
