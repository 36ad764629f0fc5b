package storage

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/gzip"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

const dayLayout = "2006-01-02"

// Storage archives pipeline messages as daily JSON-lines files
type Storage struct {
	outputDir string
	name      string
	file      *os.File
	day       string
	now       func() time.Time
	mu        sync.Mutex
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a Storage for logbook imports
func New(outputDir string) *Storage {
	return NewNamed(outputDir, "imports")
}

// NewNamed creates a Storage whose files are called name_<day>.jsonl
func NewNamed(outputDir, name string) *Storage {
	return &Storage{
		outputDir: outputDir,
		name:      name,
		now:       func() time.Time { return time.Now().UTC() },
		stopChan:  make(chan struct{}),
	}
}

// FileName returns the archive path for the UTC day of t
func (s *Storage) FileName(t time.Time) string {
	return filepath.Join(s.outputDir, fmt.Sprintf("%s_%s.jsonl", s.name, t.UTC().Format(dayLayout)))
}

// Start opens today's archive and starts the rotation timer
func (s *Storage) Start() error {
	if err := os.MkdirAll(s.outputDir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	s.mu.Lock()
	err := s.openFile()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	s.wg.Add(1)
	go s.rotationTimer()

	return nil
}

// Stop closes the current file and stops the rotation timer
func (s *Storage) Stop() error {
	close(s.stopChan)
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file != nil {
		err := s.file.Close()
		s.file = nil
		return err
	}
	return nil
}

// WriteImport appends one import as a JSON line to the current day's file
func (s *Storage) WriteImport(imp *types.LogbookImport) error {
	data, err := json.Marshal(imp)
	if err != nil {
		return fmt.Errorf("failed to marshal import: %w", err)
	}
	return s.WriteLine(data)
}

// WriteReport appends one coverage report as a JSON line
func (s *Storage) WriteReport(report *types.CoverageReport) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}
	return s.WriteLine(data)
}

// WriteLine appends a raw line to the current day's file
func (s *Storage) WriteLine(line []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.file == nil || s.day != s.now().Format(dayLayout) {
		if err := s.rotateLocked(); err != nil {
			return err
		}
	}

	if len(line) > 0 && line[len(line)-1] == '\n' {
		_, err := s.file.Write(line)
		return err
	}

	_, err := s.file.Write(append(line, '\n'))
	return err
}

// rotationTimer handles daily rotation at midnight UTC
func (s *Storage) rotationTimer() {
	defer s.wg.Done()

	for {
		now := s.now()
		nextMidnight := time.Date(now.Year(), now.Month(), now.Day()+1, 0, 0, 0, 0, time.UTC)

		select {
		case <-time.After(nextMidnight.Sub(now)):
			s.mu.Lock()
			err := s.rotateLocked()
			s.mu.Unlock()
			if err != nil {
				log.Printf("Error during rotation: %v", err)
			}
		case <-s.stopChan:
			return
		}
	}
}

// rotateLocked closes the current file, compresses it when its day is over
// and opens today's file. Callers hold s.mu.
func (s *Storage) rotateLocked() error {
	previous := ""
	if s.file != nil {
		previous = s.file.Name()
		if err := s.file.Close(); err != nil {
			log.Printf("Error closing archive %s: %v", previous, err)
		}
		s.file = nil
	}

	if err := s.openFile(); err != nil {
		return err
	}

	if previous != "" && previous != s.file.Name() {
		if err := CompressFile(previous); err != nil {
			return fmt.Errorf("failed to compress file: %w", err)
		}
	}
	return nil
}

// openFile opens the file of the current day for appending
func (s *Storage) openFile() error {
	now := s.now()
	file, err := os.OpenFile(s.FileName(now), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to create archive file: %w", err)
	}

	s.file = file
	s.day = now.Format(dayLayout)
	return nil
}

// CompressFile gzips path into path.gz and removes the original
func CompressFile(path string) error {
	source, err := os.Open(path)
	if err != nil {
		return err
	}
	defer source.Close()

	target, err := os.Create(path + ".gz")
	if err != nil {
		return err
	}
	defer target.Close()

	gz := gzip.NewWriter(target)
	gz.Name = filepath.Base(path)
	if _, err := io.Copy(gz, source); err != nil {
		return err
	}
	if err := gz.Close(); err != nil {
		return err
	}
	if err := target.Close(); err != nil {
		return err
	}

	return os.Remove(path)
}
