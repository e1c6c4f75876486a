// Package journal keeps a SQLite record of runner sessions, the clicks they
// made and the errors they reported.
package journal

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3"

	"jordanella.com/sortie-pilot/internal/logging"
)

// DB wraps the SQLite database connection
type DB struct {
	conn   *sql.DB
	path   string
	logger *logging.Logger
}

// Open opens or creates the journal at dbPath and applies pending migrations
func Open(dbPath string) (*DB, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	conn, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping journal: %w", err)
	}

	// SQLite works best with a single connection
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{
		conn:   conn,
		path:   dbPath,
		logger: logging.NewLogger("journal"),
	}

	if err := db.RunMigrations(); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// Close closes the database connection
func (db *DB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

// Path returns the database file path
func (db *DB) Path() string {
	return db.path
}

// ExecTx executes a function within a transaction
func (db *DB) ExecTx(fn func(*sql.Tx) error) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}

	err = fn(tx)
	if err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("tx error: %v, rollback error: %w", err, rbErr)
		}
		return err
	}

	return tx.Commit()
}

// GetVersion returns the current schema version
func (db *DB) GetVersion() (int, error) {
	return db.getCurrentVersion()
}

// GetStats returns row counts per table
func (db *DB) GetStats() (map[string]int64, error) {
	stats := make(map[string]int64)

	for _, table := range []string{"runs", "clicks", "error_log"} {
		var count int64
		if err := db.conn.QueryRow(fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", table, err)
		}
		stats[table] = count
	}

	return stats, nil
}
