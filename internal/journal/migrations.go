package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database schema migration
type Migration struct {
	Version     int
	Description string
	Up          func(*sql.Tx) error
	Down        func(*sql.Tx) error
}

// migrations is the ordered list of all schema migrations
var migrations = []Migration{
	{
		Version:     1,
		Description: "Create schema_version table",
		Up:          migration001Up,
		Down:        migration001Down,
	},
	{
		Version:     2,
		Description: "Create runs and clicks tables",
		Up:          migration002Up,
		Down:        migration002Down,
	},
	{
		Version:     3,
		Description: "Create error_log table",
		Up:          migration003Up,
		Down:        migration003Down,
	},
}

// LatestVersion is the schema version after all migrations
func LatestVersion() int {
	return migrations[len(migrations)-1].Version
}

// RunMigrations runs all pending schema migrations
func (db *DB) RunMigrations() error {
	currentVersion, err := db.getCurrentVersion()
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}

	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		err := db.ExecTx(func(tx *sql.Tx) error {
			if err := migration.Up(tx); err != nil {
				return fmt.Errorf("migration %d failed: %w", migration.Version, err)
			}

			_, err := tx.Exec(`
				INSERT INTO schema_version (version, description, applied_at)
				VALUES (?, ?, ?)
			`, migration.Version, migration.Description, time.Now())

			return err
		})
		if err != nil {
			return err
		}

		db.logger.InfoWithContext("Migration applied", map[string]interface{}{
			"version":     migration.Version,
			"description": migration.Description,
		})
	}

	return nil
}

// getCurrentVersion returns the current schema version
func (db *DB) getCurrentVersion() (int, error) {
	var tableExists bool
	err := db.conn.QueryRow(`
		SELECT COUNT(*) > 0
		FROM sqlite_master
		WHERE type='table' AND name='schema_version'
	`).Scan(&tableExists)
	if err != nil {
		return 0, err
	}

	if !tableExists {
		return 0, nil
	}

	var version int
	err = db.conn.QueryRow(`
		SELECT COALESCE(MAX(version), 0)
		FROM schema_version
	`).Scan(&version)
	if err != nil {
		return 0, err
	}

	return version, nil
}

// Migration 001: Schema version tracking table
func migration001Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			version INTEGER NOT NULL UNIQUE,
			description TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration001Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS schema_version`)
	return err
}

// Migration 002: Runner sessions and their clicks
func migration002Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			runner TEXT NOT NULL,
			profile TEXT NOT NULL,
			status TEXT NOT NULL DEFAULT 'running',
			started_at DATETIME NOT NULL,
			finished_at DATETIME,
			ticks INTEGER NOT NULL DEFAULT 0,
			clicks INTEGER NOT NULL DEFAULT 0
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`
		CREATE TABLE IF NOT EXISTS clicks (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id INTEGER NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
			template TEXT NOT NULL,
			x INTEGER NOT NULL,
			y INTEGER NOT NULL,
			clicked_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return err
	}

	_, err = tx.Exec(`CREATE INDEX IF NOT EXISTS idx_clicks_run ON clicks(run_id)`)
	return err
}

func migration002Down(tx *sql.Tx) error {
	if _, err := tx.Exec(`DROP TABLE IF EXISTS clicks`); err != nil {
		return err
	}
	_, err := tx.Exec(`DROP TABLE IF EXISTS runs`)
	return err
}

// Migration 003: Errors reported on the event bus
func migration003Up(tx *sql.Tx) error {
	_, err := tx.Exec(`
		CREATE TABLE IF NOT EXISTS error_log (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			source TEXT NOT NULL,
			message TEXT NOT NULL,
			error TEXT,
			occurred_at DATETIME NOT NULL
		)
	`)
	return err
}

func migration003Down(tx *sql.Tx) error {
	_, err := tx.Exec(`DROP TABLE IF EXISTS error_log`)
	return err
}
