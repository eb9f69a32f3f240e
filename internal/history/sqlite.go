package history

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

const (
	defaultListLimit = 50
	maxListLimit     = 200

	// timeLayout has fixed width so started_at sorts lexically.
	timeLayout = "2006-01-02T15:04:05.000000000Z07:00"
)

// SQLiteRepository implements Repository on the sync_runs table.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository over an open database.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// RecordRun inserts run. Runs without an ID or kind are rejected.
func (r *SQLiteRepository) RecordRun(ctx context.Context, run Run) error {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if run.Kind == "" {
		return fmt.Errorf("run kind is required")
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, kind, trigger, result, attempts, devices, writes,
		 failed_writes, failed_devices, error, started_at, elapsed_ms)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Kind,
		run.Trigger,
		run.Result,
		run.Attempts,
		run.Devices,
		run.Writes,
		run.FailedWrites,
		run.FailedDevices,
		run.Error,
		run.StartedAt.UTC().Format(timeLayout),
		run.Elapsed.Milliseconds(),
	)
	if err != nil {
		return fmt.Errorf("inserting sync run: %w", err)
	}
	return nil
}

// ListRuns returns recent runs, newest first. An empty kind lists every kind.
func (r *SQLiteRepository) ListRuns(ctx context.Context, kind string, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, kind, trigger, result, attempts, devices, writes,
		        failed_writes, failed_devices, error, started_at, elapsed_ms
		 FROM sync_runs
		 WHERE ? = '' OR kind = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		kind, kind, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	runs := make([]Run, 0, limit)
	for rows.Next() {
		var (
			run       Run
			startedAt string
			elapsedMS int64
		)
		if err := rows.Scan(&run.ID, &run.Kind, &run.Trigger, &run.Result, &run.Attempts,
			&run.Devices, &run.Writes, &run.FailedWrites, &run.FailedDevices, &run.Error,
			&startedAt, &elapsedMS); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}
		run.StartedAt, err = time.Parse(timeLayout, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing started_at: %w", err)
		}
		run.Elapsed = time.Duration(elapsedMS) * time.Millisecond
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}

	return runs, nil
}
