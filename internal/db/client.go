package db

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/lib/pq"
	"github.com/saviobatista/logbook-coverage/internal/types"
)

type Client struct {
	db *sql.DB
}

// New creates a new database client
func New(connStr string) (*Client, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, err
	}
	return &Client{db: db}, nil
}

// Ping verifies that the database can be reached
func (c *Client) Ping() error {
	return c.db.Ping()
}

// Close closes the database connection
func (c *Client) Close() error {
	return c.db.Close()
}

// StoreImport records a received logbook export
func (c *Client) StoreImport(imp *types.LogbookImport, flightCount int) error {
	query := `
		INSERT INTO logbook_imports (
			id, pilot_id, file_name, received_at, flight_count, csv_bytes
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO NOTHING
	`
	_, err := c.db.Exec(query,
		imp.ID, imp.PilotID, imp.FileName, imp.ReceivedAt, flightCount, len(imp.CSV),
	)
	return err
}

// StoreReport stores a coverage report and its per-facility visits in one
// transaction
func (c *Client) StoreReport(importID string, report *types.CoverageReport) error {
	tx, err := c.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			fmt.Fprintf(os.Stderr, "error rolling back report transaction: %v\n", err)
		}
	}()

	var imp sql.NullString
	if importID != "" {
		imp = sql.NullString{String: importID, Valid: true}
	}

	_, err = tx.Exec(`
		INSERT INTO coverage_reports (
			id, import_id, pilot_id, scope, created_at, flight_count,
			visited_count, total_count, ratio, visited_ids,
			most_frequent, most_visited_state
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`,
		report.ID, imp, report.PilotID, report.Scope, report.CreatedAt, report.FlightCount,
		report.Coverage.Visited, report.Coverage.Total, report.Coverage.Ratio, pq.Array(report.Visited),
		report.MostFrequent, report.MostVisitedState,
	)
	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	for _, f := range report.Frequency {
		var first sql.NullTime
		if t, ok := report.FirstVisits[f.ID]; ok {
			first = sql.NullTime{Time: t, Valid: true}
		}
		_, err := tx.Exec(`
			INSERT INTO facility_visits (
				report_id, facility_id, total, endpoint_from, endpoint_to, notes_match, first_visit
			) VALUES ($1, $2, $3, $4, $5, $6, $7)
		`,
			report.ID, f.ID, f.Total, f.Counts.EndpointFrom, f.Counts.EndpointTo, f.Counts.NotesMatch, first,
		)
		if err != nil {
			return fmt.Errorf("failed to insert visit for %s: %w", f.ID, err)
		}
	}

	return tx.Commit()
}

// GetLatestReport returns the newest report of a pilot for scope, or nil
// when there is none
func (c *Client) GetLatestReport(pilotID, scope string) (*types.CoverageReport, error) {
	query := `
		SELECT id, pilot_id, scope, created_at, flight_count,
			visited_count, total_count, ratio, visited_ids,
			most_frequent, most_visited_state
		FROM coverage_reports
		WHERE pilot_id = $1 AND scope = $2
		ORDER BY created_at DESC
		LIMIT 1
	`
	var r types.CoverageReport
	err := c.db.QueryRow(query, pilotID, scope).Scan(
		&r.ID, &r.PilotID, &r.Scope, &r.CreatedAt, &r.FlightCount,
		&r.Coverage.Visited, &r.Coverage.Total, &r.Coverage.Ratio, pq.Array(&r.Visited),
		&r.MostFrequent, &r.MostVisitedState,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	if err := c.loadVisits(&r); err != nil {
		return nil, err
	}
	return &r, nil
}

// loadVisits fills the frequency rows and first visits of r
func (c *Client) loadVisits(r *types.CoverageReport) error {
	rows, err := c.db.Query(`
		SELECT facility_id, total, endpoint_from, endpoint_to, notes_match, first_visit
		FROM facility_visits
		WHERE report_id = $1
		ORDER BY total DESC, facility_id
	`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	r.FirstVisits = make(map[string]time.Time)
	for rows.Next() {
		var (
			f     types.FacilityFrequency
			first sql.NullTime
		)
		if err := rows.Scan(&f.ID, &f.Total, &f.Counts.EndpointFrom, &f.Counts.EndpointTo, &f.Counts.NotesMatch, &first); err != nil {
			return err
		}
		r.Frequency = append(r.Frequency, f)
		if first.Valid {
			r.FirstVisits[f.ID] = first.Time
		}
	}
	return rows.Err()
}

// StoreSystemStats stores pipeline statistics
func (c *Client) StoreSystemStats(stats map[string]interface{}) error {
	query := `
		INSERT INTO system_stats (
			time, imports_received, imports_parsed, imports_failed,
			flights_parsed, reports_stored, facilities_matched,
			processing_time_ms, uptime_seconds
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9
		)
	`

	processingTime, _ := stats["processing_time"].(time.Duration)
	uptime, _ := stats["uptime"].(time.Duration)

	_, err := c.db.Exec(query,
		time.Now(),
		stats["imports_received"],
		stats["imports_parsed"],
		stats["imports_failed"],
		stats["flights_parsed"],
		stats["reports_stored"],
		stats["facilities_matched"],
		processingTime.Milliseconds(),
		int64(uptime.Seconds()),
	)

	return err
}

// GetSystemStats retrieves pipeline statistics for a time range
func (c *Client) GetSystemStats(start, end time.Time) ([]map[string]interface{}, error) {
	query := `
		SELECT
			time, imports_received, imports_parsed, imports_failed,
			flights_parsed, reports_stored, facilities_matched,
			processing_time_ms, uptime_seconds
		FROM system_stats
		WHERE time BETWEEN $1 AND $2
		ORDER BY time DESC
	`

	rows, err := c.db.Query(query, start, end)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []map[string]interface{}
	for rows.Next() {
		var (
			timestamp         time.Time
			importsReceived   int64
			importsParsed     int64
			importsFailed     int64
			flightsParsed     int64
			reportsStored     int64
			facilitiesMatched int64
			processingTimeMs  int64
			uptimeSeconds     int64
		)

		if err := rows.Scan(
			&timestamp,
			&importsReceived,
			&importsParsed,
			&importsFailed,
			&flightsParsed,
			&reportsStored,
			&facilitiesMatched,
			&processingTimeMs,
			&uptimeSeconds,
		); err != nil {
			return nil, err
		}

		stats = append(stats, map[string]interface{}{
			"time":               timestamp,
			"imports_received":   importsReceived,
			"imports_parsed":     importsParsed,
			"imports_failed":     importsFailed,
			"flights_parsed":     flightsParsed,
			"reports_stored":     reportsStored,
			"facilities_matched": facilitiesMatched,
			"processing_time":    time.Duration(processingTimeMs) * time.Millisecond,
			"uptime_seconds":     uptimeSeconds,
		})
	}

	return stats, rows.Err()
}
