package stats

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// Persister stores a statistics snapshot; *db.Client implements it
type Persister interface {
	StoreSystemStats(stats map[string]interface{}) error
}

// Stats tracks import pipeline statistics
type Stats struct {
	// Import counts
	ImportsReceived   uint64
	ImportsParsed     uint64
	ImportsFailed     uint64
	FlightsParsed     uint64
	ReportsStored     uint64
	FacilitiesMatched uint64

	// Timing
	StartTime      time.Time
	LastImportTime time.Time
	ProcessingTime time.Duration

	// Persistence target
	db Persister

	mu sync.RWMutex
}

// New creates a new Stats instance
func New() *Stats {
	now := time.Now()
	return &Stats{
		StartTime:      now,
		LastImportTime: now,
	}
}

// SetDB sets the persistence target
func (s *Stats) SetDB(db Persister) {
	s.mu.Lock()
	s.db = db
	s.mu.Unlock()
}

// Persist stores the current statistics in the database
func (s *Stats) Persist() error {
	s.mu.RLock()
	db := s.db
	s.mu.RUnlock()
	if db == nil {
		return fmt.Errorf("database client not set")
	}

	return db.StoreSystemStats(s.GetStats())
}

// IncrementImportsReceived counts a received logbook export
func (s *Stats) IncrementImportsReceived() {
	atomic.AddUint64(&s.ImportsReceived, 1)
}

// IncrementImportsParsed counts an export that yielded a flights table
func (s *Stats) IncrementImportsParsed() {
	atomic.AddUint64(&s.ImportsParsed, 1)
}

// IncrementImportsFailed counts an export that could not be processed
func (s *Stats) IncrementImportsFailed() {
	atomic.AddUint64(&s.ImportsFailed, 1)
}

// AddFlightsParsed adds to the parsed flight count
func (s *Stats) AddFlightsParsed(n int) {
	if n > 0 {
		atomic.AddUint64(&s.FlightsParsed, uint64(n))
	}
}

// IncrementReportsStored counts a persisted coverage report
func (s *Stats) IncrementReportsStored() {
	atomic.AddUint64(&s.ReportsStored, 1)
}

// AddFacilitiesMatched adds to the matched facility count
func (s *Stats) AddFacilitiesMatched(n int) {
	if n > 0 {
		atomic.AddUint64(&s.FacilitiesMatched, uint64(n))
	}
}

// UpdateLastImportTime updates the last import time
func (s *Stats) UpdateLastImportTime() {
	s.mu.Lock()
	s.LastImportTime = time.Now()
	s.mu.Unlock()
}

// AddProcessingTime adds to the total processing time
func (s *Stats) AddProcessingTime(duration time.Duration) {
	s.mu.Lock()
	s.ProcessingTime += duration
	s.mu.Unlock()
}

// GetStats returns a copy of the current statistics
func (s *Stats) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"imports_received":   atomic.LoadUint64(&s.ImportsReceived),
		"imports_parsed":     atomic.LoadUint64(&s.ImportsParsed),
		"imports_failed":     atomic.LoadUint64(&s.ImportsFailed),
		"flights_parsed":     atomic.LoadUint64(&s.FlightsParsed),
		"reports_stored":     atomic.LoadUint64(&s.ReportsStored),
		"facilities_matched": atomic.LoadUint64(&s.FacilitiesMatched),
		"last_import_time":   s.LastImportTime,
		"processing_time":    s.ProcessingTime,
		"uptime":             time.Since(s.StartTime),
	}
}

// String returns a string representation of the statistics
func (s *Stats) String() string {
	stats := s.GetStats()
	return fmt.Sprintf(
		"Imports Received: %d\n"+
			"Imports Parsed: %d\n"+
			"Imports Failed: %d\n"+
			"Flights Parsed: %d\n"+
			"Reports Stored: %d\n"+
			"Facilities Matched: %d\n"+
			"Last Import Time: %s\n"+
			"Processing Time: %s\n"+
			"Uptime: %s",
		stats["imports_received"],
		stats["imports_parsed"],
		stats["imports_failed"],
		stats["flights_parsed"],
		stats["reports_stored"],
		stats["facilities_matched"],
		stats["last_import_time"],
		stats["processing_time"],
		stats["uptime"],
	)
}

// StartPersistence starts periodic persistence of statistics
func (s *Stats) StartPersistence(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Final persistence before shutdown
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist final statistics: %v", err)
			}
			return
		case <-ticker.C:
			if err := s.Persist(); err != nil {
				log.Printf("Failed to persist statistics: %v", err)
			}
		}
	}
}
