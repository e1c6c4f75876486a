package journal

import (
	"database/sql"
	"fmt"
	"time"
)

// Run status values
const (
	RunRunning   = "running"
	RunCompleted = "completed"
)

// Run is one start-to-stop session of a runner
type Run struct {
	ID         int64
	Runner     string
	Profile    string
	Status     string
	StartedAt  time.Time
	FinishedAt *time.Time
	Ticks      int64
	Clicks     int64
}

// Click is one dispatched click
type Click struct {
	ID        int64
	RunID     int64
	Template  string
	X, Y      int
	ClickedAt time.Time
}

// ErrorEntry is an error reported by a component
type ErrorEntry struct {
	ID         int64
	Source     string
	Message    string
	Error      *string
	OccurredAt time.Time
}

// StartRun records the start of a runner session
func (db *DB) StartRun(runner, profile string, at time.Time) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO runs (runner, profile, status, started_at)
		VALUES (?, ?, ?, ?)
	`, runner, profile, RunRunning, at)
	if err != nil {
		return 0, fmt.Errorf("failed to start run: %w", err)
	}

	return result.LastInsertId()
}

// FinishRun marks a run completed with its final counters
func (db *DB) FinishRun(runID int64, ticks, clicks int64, at time.Time) error {
	result, err := db.conn.Exec(`
		UPDATE runs
		SET status = ?, finished_at = ?, ticks = ?, clicks = ?
		WHERE id = ?
	`, RunCompleted, at, ticks, clicks, runID)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("run not found: %d", runID)
	}
	return nil
}

// GetRun retrieves a run by ID
func (db *DB) GetRun(runID int64) (*Run, error) {
	run := &Run{}
	var finishedAt sql.NullTime

	err := db.conn.QueryRow(`
		SELECT id, runner, profile, status, started_at, finished_at, ticks, clicks
		FROM runs
		WHERE id = ?
	`, runID).Scan(
		&run.ID,
		&run.Runner,
		&run.Profile,
		&run.Status,
		&run.StartedAt,
		&finishedAt,
		&run.Ticks,
		&run.Clicks,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("run not found: %d", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	if finishedAt.Valid {
		run.FinishedAt = &finishedAt.Time
	}
	return run, nil
}

// RecordClick stores a click made during a run
func (db *DB) RecordClick(runID int64, template string, x, y int, at time.Time) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO clicks (run_id, template, x, y, clicked_at)
		VALUES (?, ?, ?, ?, ?)
	`, runID, template, x, y, at)
	if err != nil {
		return 0, fmt.Errorf("failed to record click: %w", err)
	}

	return result.LastInsertId()
}

// RecentClicks returns the newest clicks first
func (db *DB) RecentClicks(limit int) ([]*Click, error) {
	rows, err := db.conn.Query(`
		SELECT id, run_id, template, x, y, clicked_at
		FROM clicks
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query clicks: %w", err)
	}
	defer rows.Close()

	var clicks []*Click
	for rows.Next() {
		c := &Click{}
		if err := rows.Scan(&c.ID, &c.RunID, &c.Template, &c.X, &c.Y, &c.ClickedAt); err != nil {
			return nil, fmt.Errorf("failed to scan click: %w", err)
		}
		clicks = append(clicks, c)
	}

	return clicks, rows.Err()
}

// ClicksByTemplate counts clicks per template across all runs
func (db *DB) ClicksByTemplate() (map[string]int, error) {
	rows, err := db.conn.Query(`
		SELECT template, COUNT(*)
		FROM clicks
		GROUP BY template
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to count clicks: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var template string
		var count int
		if err := rows.Scan(&template, &count); err != nil {
			return nil, err
		}
		counts[template] = count
	}

	return counts, rows.Err()
}

// LogError stores an error report
func (db *DB) LogError(source, message string, errText *string, at time.Time) (int64, error) {
	result, err := db.conn.Exec(`
		INSERT INTO error_log (source, message, error, occurred_at)
		VALUES (?, ?, ?, ?)
	`, source, message, errText, at)
	if err != nil {
		return 0, fmt.Errorf("failed to log error: %w", err)
	}

	return result.LastInsertId()
}

// RecentErrors returns the newest errors first
func (db *DB) RecentErrors(limit int) ([]*ErrorEntry, error) {
	rows, err := db.conn.Query(`
		SELECT id, source, message, error, occurred_at
		FROM error_log
		ORDER BY id DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query errors: %w", err)
	}
	defer rows.Close()

	var entries []*ErrorEntry
	for rows.Next() {
		e := &ErrorEntry{}
		var errText sql.NullString
		if err := rows.Scan(&e.ID, &e.Source, &e.Message, &errText, &e.OccurredAt); err != nil {
			return nil, fmt.Errorf("failed to scan error: %w", err)
		}
		if errText.Valid {
			e.Error = &errText.String
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}
