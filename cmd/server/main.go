package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/saviobatista/logbook-coverage/internal/api"
	"github.com/saviobatista/logbook-coverage/internal/catalog"
	"github.com/saviobatista/logbook-coverage/internal/config"
	"github.com/saviobatista/logbook-coverage/internal/coverage"
	"github.com/saviobatista/logbook-coverage/internal/db"
	"github.com/saviobatista/logbook-coverage/internal/logging"
	"github.com/saviobatista/logbook-coverage/internal/redis"
)

// newServer wires the API for cfg. The pilot routes are disabled when
// Redis cannot be reached.
func newServer(ctx context.Context, cfg *config.Config) (*http.Server, func(), error) {
	cat, err := catalog.Load(ctx, cfg.CatalogPath, cfg.SecondaryCatalogPath)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load catalog: %w", err)
	}

	engine := coverage.NewEngine(cat, coverage.EngineConfig{
		HubIDs:               cfg.HubIDs,
		NearestThresholdNM:   cfg.NearestThresholdNM,
		UsableRunwayFraction: cfg.RunwayUsableFraction,
	})
	log.Printf("Loaded %d facilities (%d contributed, %d located)",
		len(cat.Primary), len(cat.Secondary), engine.Located())

	var closers []func() error
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Printf("error closing client: %v", err)
			}
		}
	}

	var sessions api.SessionStore
	redisClient, err := redis.New(cfg.RedisAddr)
	if err != nil {
		log.Printf("Warning: %v; pilot routes disabled", err)
	} else {
		sessions = redisClient
		closers = append(closers, redisClient.Close)
	}

	opts := []api.ServerOption{api.WithExcludeHubs(cfg.ExcludeHubs)}
	if history := openHistory(cfg.DBConnStr); history != nil {
		opts = append(opts, api.WithReportHistory(history))
		closers = append(closers, history.Close)
	}

	handler := api.NewServer(engine, sessions, opts...).Routes()
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}, cleanup, nil
}

// openHistory connects to the report database, or returns nil when it is
// not configured or cannot be reached
func openHistory(connStr string) *db.Client {
	if connStr == "" {
		return nil
	}
	client, err := db.New(connStr)
	if err == nil {
		err = client.Ping()
	}
	if err != nil {
		log.Printf("Warning: database unavailable: %v; report history disabled", err)
		if client != nil {
			_ = client.Close()
		}
		return nil
	}
	return client
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	defer logging.Setup("server ", cfg.LogFile).Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, cleanup, err := newServer(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	errCh := make(chan error, 1)
	go func() {
		log.Printf("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Println("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func main() {
	if err := run(); err != nil {
		log.Printf("Server failed: %v", err)
		os.Exit(1)
	}
}
