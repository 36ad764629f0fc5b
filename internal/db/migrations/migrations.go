package migrations

import (
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Migration represents a database migration
type Migration struct {
	ID      string
	Name    string
	UpSQL   string
	DownSQL string
}

// All lists the schema migrations in apply order
func All() []*Migration {
	return []*Migration{
		InitialSchema,
		ReportViews,
	}
}

// Migrator manages database migrations
type Migrator struct {
	db *sql.DB
}

// New creates a new Migrator
func New(db *sql.DB) *Migrator {
	return &Migrator{db: db}
}

// Initialize creates the migrations table if it doesn't exist
func (m *Migrator) Initialize() error {
	query := `
		CREATE TABLE IF NOT EXISTS migrations (
			id SERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`
	_, err := m.db.Exec(query)
	return err
}

// GetAppliedMigrations returns the names of the applied migrations
func (m *Migrator) GetAppliedMigrations() (map[string]bool, error) {
	history, err := m.history()
	if err != nil {
		return nil, err
	}
	applied := make(map[string]bool, len(history))
	for name := range history {
		applied[name] = true
	}
	return applied, nil
}

// history maps each applied migration to the time it was applied
func (m *Migrator) history() (map[string]time.Time, error) {
	rows, err := m.db.Query(`SELECT name, applied_at FROM migrations ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			log.Printf("error closing rows: %v", cerr)
		}
	}()

	history := make(map[string]time.Time)
	for rows.Next() {
		var (
			name      string
			appliedAt time.Time
		)
		if err := rows.Scan(&name, &appliedAt); err != nil {
			return nil, err
		}
		history[name] = appliedAt
	}
	return history, rows.Err()
}

// Status describes one known migration
type Status struct {
	Name      string
	Applied   bool
	AppliedAt time.Time
}

// Status reports, in order, whether each migration has been applied
func (m *Migrator) Status(migrations []*Migration) ([]Status, error) {
	if err := m.Initialize(); err != nil {
		return nil, fmt.Errorf("failed to initialize migrations: %w", err)
	}
	history, err := m.history()
	if err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}

	statuses := make([]Status, 0, len(migrations))
	for _, migration := range migrations {
		at, ok := history[migration.Name]
		statuses = append(statuses, Status{Name: migration.Name, Applied: ok, AppliedAt: at})
	}
	return statuses, nil
}

// executeMigration executes a migration with common transaction logic
func (m *Migrator) executeMigration(migration *Migration, statements, recordQuery string, recordArgs ...interface{}) error {
	tx, err := m.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Printf("Warning: failed to rollback transaction: %v", err)
		}
	}()

	if _, err := tx.Exec(statements); err != nil {
		return fmt.Errorf("failed to execute migration %s: %w", migration.Name, err)
	}

	if _, err := tx.Exec(recordQuery, recordArgs...); err != nil {
		return fmt.Errorf("failed to record migration %s: %w", migration.Name, err)
	}

	return tx.Commit()
}

// ApplyMigration applies a single migration
func (m *Migrator) ApplyMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.UpSQL,
		"INSERT INTO migrations (name) VALUES ($1)",
		migration.Name,
	)
}

// RollbackMigration rolls back a single migration
func (m *Migrator) RollbackMigration(migration *Migration) error {
	return m.executeMigration(
		migration,
		migration.DownSQL,
		"DELETE FROM migrations WHERE name = $1",
		migration.Name,
	)
}

// Migrate applies all pending migrations
func (m *Migrator) Migrate(migrations []*Migration) error {
	// Initialize migrations table
	if err := m.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize migrations: %w", err)
	}

	// Get applied migrations
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	for _, migration := range Pending(migrations, applied) {
		if err := m.ApplyMigration(migration); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", migration.Name, err)
		}
		log.Printf("Applied migration: %s", migration.Name)
	}

	return nil
}

// Pending returns the migrations not yet in applied, in order
func Pending(migrations []*Migration, applied map[string]bool) []*Migration {
	var pending []*Migration
	for _, migration := range migrations {
		if !applied[migration.Name] {
			pending = append(pending, migration)
		}
	}
	return pending
}

// Rollback rolls back the last migration
func (m *Migrator) Rollback(migrations []*Migration) error {
	// Get applied migrations
	applied, err := m.GetAppliedMigrations()
	if err != nil {
		return fmt.Errorf("failed to get applied migrations: %w", err)
	}

	// Find the last applied migration
	var lastMigration *Migration
	for i := len(migrations) - 1; i >= 0; i-- {
		if applied[migrations[i].Name] {
			lastMigration = migrations[i]
			break
		}
	}

	if lastMigration == nil {
		return fmt.Errorf("no migrations to rollback")
	}

	// Rollback the last migration
	if err := m.RollbackMigration(lastMigration); err != nil {
		return fmt.Errorf("failed to rollback migration %s: %w", lastMigration.Name, err)
	}

	log.Printf("Rolled back migration: %s", lastMigration.Name)
	return nil
}
