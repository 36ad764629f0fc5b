package main

import (
	"database/sql"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	_ "github.com/lib/pq"

	"github.com/saviobatista/logbook-coverage/internal/config"
	"github.com/saviobatista/logbook-coverage/internal/db/migrations"
)

func main() {
	// Parse command line flags
	defaultURL := os.Getenv("DB_CONN_STR")
	if defaultURL == "" {
		defaultURL = config.DefaultDBConnStr
	}
	dbURL := flag.String("db", defaultURL, "Database connection string")
	rollback := flag.Bool("rollback", false, "Rollback the last migration")
	status := flag.Bool("status", false, "List migrations and whether they are applied")
	flag.Parse()

	// Connect to database
	db, err := sql.Open("postgres", *dbURL)
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	if *status {
		err = printStatus(db, os.Stdout)
	} else {
		err = migrate(db, *rollback)
	}
	if err != nil {
		log.Print(err)
		db.Close()
		os.Exit(1)
	}

	db.Close()
}

// migrate applies every pending migration, or rolls back the newest one
func migrate(db *sql.DB, rollback bool) error {
	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}

	migrator := migrations.New(db)
	if rollback {
		if err := migrator.Rollback(migrations.All()); err != nil {
			return fmt.Errorf("failed to rollback migration: %w", err)
		}
		return nil
	}

	if err := migrator.Migrate(migrations.All()); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// printStatus writes one line per known migration
func printStatus(db *sql.DB, w io.Writer) error {
	statuses, err := migrations.New(db).Status(migrations.All())
	if err != nil {
		return err
	}
	for _, s := range statuses {
		state := "pending"
		if s.Applied {
			state = "applied " + s.AppliedAt.UTC().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%-24s %s\n", s.Name, state)
	}
	return nil
}
