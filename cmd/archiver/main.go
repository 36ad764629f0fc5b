package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/saviobatista/logbook-coverage/internal/config"
	"github.com/saviobatista/logbook-coverage/internal/logging"
	"github.com/saviobatista/logbook-coverage/internal/nats"
	"github.com/saviobatista/logbook-coverage/internal/storage"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// Durable consumers keep the archiver's position in the stream across restarts
const (
	consumerName       = "archiver"
	reportConsumerName = "archiver-reports"
)

// Subscriber interface for testability
type Subscriber interface {
	SubscribeImports(durable string, handler func(*types.LogbookImport)) error
	SubscribeReports(durable string, handler func(*types.CoverageReport)) error
}

// ImportWriter interface for testability
type ImportWriter interface {
	WriteImport(imp *types.LogbookImport) error
}

// ReportWriter interface for testability
type ReportWriter interface {
	WriteReport(report *types.CoverageReport) error
}

func main() {
	if err := runArchiver(); err != nil {
		log.Printf("Archiver failed: %v", err)
		os.Exit(1)
	}
}

// runArchiver contains the main application logic
func runArchiver() error {
	outputDir, natsURL, logFile := parseEnvironment()
	defer logging.Setup("archiver ", logFile).Close()

	imports := storage.New(outputDir)
	reports := storage.NewNamed(outputDir, "reports")
	for _, store := range []*storage.Storage{imports, reports} {
		if err := store.Start(); err != nil {
			return fmt.Errorf("failed to start storage: %w", err)
		}
		defer func(store *storage.Storage) {
			if err := store.Stop(); err != nil {
				log.Printf("error stopping storage: %v", err)
			}
		}(store)
	}

	client, err := nats.New(natsURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}
	// Close the subscription before the storage it writes to
	defer client.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Printf("Archiving logbook imports and coverage reports to %s", outputDir)
	return archive(ctx, client, imports, reports)
}

// archive writes every received import and report until ctx is done
func archive(ctx context.Context, sub Subscriber, imports ImportWriter, reports ReportWriter) error {
	if err := sub.SubscribeImports(consumerName, func(imp *types.LogbookImport) {
		if err := imports.WriteImport(imp); err != nil {
			log.Printf("Failed to archive import %s: %v", imp.ID, err)
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to logbook imports: %w", err)
	}
	if err := sub.SubscribeReports(reportConsumerName, func(report *types.CoverageReport) {
		if err := reports.WriteReport(report); err != nil {
			log.Printf("Failed to archive report %s: %v", report.ID, err)
		}
	}); err != nil {
		return fmt.Errorf("failed to subscribe to coverage reports: %w", err)
	}

	<-ctx.Done()
	log.Println("Shutting down...")
	return nil
}

// parseEnvironment extracts environment variables with defaults
func parseEnvironment() (string, string, string) {
	outputDir := os.Getenv("OUTPUT_DIR")
	if outputDir == "" {
		outputDir = config.DefaultOutputDir
	}

	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = config.DefaultNATSURL
	}

	return outputDir, natsURL, os.Getenv("LOG_FILE")
}
