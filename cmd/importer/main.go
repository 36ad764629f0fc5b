package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/saviobatista/logbook-coverage/internal/config"
	"github.com/saviobatista/logbook-coverage/internal/logging"
	"github.com/saviobatista/logbook-coverage/internal/nats"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

// NATSClient interface for testability
type NATSClient interface {
	PublishImport(imp *types.LogbookImport) error
	Close()
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		log.Printf("Importer failed: %v", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("importer", flag.ContinueOnError)
	pilot := fs.String("pilot", "", "Pilot identifier the logbooks belong to")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *pilot == "" {
		return fmt.Errorf("-pilot is required")
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("at least one logbook file or directory is required")
	}

	natsURL, logFile := parseEnvironment()
	defer logging.Setup("importer ", logFile).Close()

	files, err := collectFiles(fs.Args())
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no CSV files found")
	}

	client, err := nats.New(natsURL)
	if err != nil {
		return fmt.Errorf("failed to create NATS client: %w", err)
	}
	defer client.Close()

	published := publishFiles(client, *pilot, files)
	log.Printf("Published %d/%d logbooks for %s", published, len(files), *pilot)
	if published < len(files) {
		return fmt.Errorf("%d logbooks failed", len(files)-published)
	}
	return nil
}

// parseEnvironment extracts environment variables with defaults
func parseEnvironment() (string, string) {
	natsURL := os.Getenv("NATS_URL")
	if natsURL == "" {
		natsURL = config.DefaultNATSURL
	}
	return natsURL, os.Getenv("LOG_FILE")
}

// collectFiles expands directories to their CSV files in name order.
// Plain files are kept whatever their extension.
func collectFiles(paths []string) ([]string, error) {
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("failed to stat %s: %w", p, err)
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}

		entries, err := os.ReadDir(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read directory %s: %w", p, err)
		}
		var found []string
		for _, e := range entries {
			if !e.IsDir() && strings.EqualFold(filepath.Ext(e.Name()), ".csv") {
				found = append(found, filepath.Join(p, e.Name()))
			}
		}
		sort.Strings(found)
		files = append(files, found...)
	}
	return files, nil
}

// newImport reads path into an import message
func newImport(pilotID, path string) (*types.LogbookImport, error) {
	//nolint:gosec // path is given on the command line
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return &types.LogbookImport{
		ID:         uuid.New().String(),
		PilotID:    pilotID,
		FileName:   filepath.Base(path),
		CSV:        string(data),
		ReceivedAt: time.Now().UTC(),
	}, nil
}

// publishFiles publishes every file and returns how many succeeded. A
// failing file is logged and skipped.
func publishFiles(client NATSClient, pilotID string, files []string) int {
	published := 0
	for _, f := range files {
		imp, err := newImport(pilotID, f)
		if err != nil {
			log.Printf("Skipping %s: %v", f, err)
			continue
		}
		if err := client.PublishImport(imp); err != nil {
			log.Printf("Failed to publish %s: %v", f, err)
			continue
		}
		log.Printf("Published %s as import %s", imp.FileName, imp.ID)
		published++
	}
	return published
}
