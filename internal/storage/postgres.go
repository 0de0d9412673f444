package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/josepht96/scout-mcp/internal/runner"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"
)

const (
	DefaultHistoryLimit = 20
	MaxHistoryLimit     = 200

	saveTimeout = 10 * time.Second
)

// Storage persists collection run history in Postgres
type Storage struct {
	db     *sql.DB
	logger zerolog.Logger
}

// NewStorage opens and pings the database
func NewStorage(connectionString string, logger zerolog.Logger) (*Storage, error) {
	db, err := sql.Open("postgres", connectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test the connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set connection pool settings
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return NewWithDB(db, logger), nil
}

// NewWithDB wraps an already opened database handle
func NewWithDB(db *sql.DB, logger zerolog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger.With().Str("component", "storage").Logger(),
	}
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

// SaveRun inserts a run and its assertions in one transaction, filling in
// the generated ID and CreatedAt.
func (s *Storage) SaveRun(ctx context.Context, record *RunRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO collection_runs (
			run_id, collection_id, collection_name, environment_id, folder,
			started_at, completed_at, duration_ms, total_tests, passed_tests,
			failed_tests, total_requests, failed_requests
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id, created_at
	`

	err = tx.QueryRowContext(ctx, query,
		record.RunID,
		record.CollectionID,
		record.CollectionName,
		record.EnvironmentID,
		record.Folder,
		record.StartedAt,
		record.CompletedAt,
		record.DurationMs,
		record.TotalTests,
		record.PassedTests,
		record.FailedTests,
		record.TotalRequests,
		record.FailedRequests,
	).Scan(&record.ID, &record.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert collection run: %w", err)
	}

	for i := range record.Assertions {
		a := &record.Assertions[i]
		a.RunPK = record.ID
		err := tx.QueryRowContext(ctx,
			`INSERT INTO run_assertions (run_pk, request_name, assertion, passed, error)
			 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
			a.RunPK, a.RequestName, a.Assertion, a.Passed, a.Error,
		).Scan(&a.ID)
		if err != nil {
			return fmt.Errorf("failed to insert assertion %q: %w", a.Assertion, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit collection run: %w", err)
	}
	return nil
}

// ListRuns returns the most recent runs of a collection, newest first.
// The limit defaults to DefaultHistoryLimit and is capped at MaxHistoryLimit.
func (s *Storage) ListRuns(ctx context.Context, collectionID string, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}

	query := `
		SELECT id, run_id, collection_id, collection_name, environment_id, folder,
		       started_at, completed_at, duration_ms, total_tests, passed_tests,
		       failed_tests, total_requests, failed_requests, created_at
		FROM collection_runs
		WHERE collection_id = $1
		ORDER BY started_at DESC
		LIMIT $2
	`

	rows, err := s.db.QueryContext(ctx, query, collectionID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query run history: %w", err)
	}
	defer rows.Close()

	runs := []RunRecord{}
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(
			&r.ID, &r.RunID, &r.CollectionID, &r.CollectionName, &r.EnvironmentID, &r.Folder,
			&r.StartedAt, &r.CompletedAt, &r.DurationMs, &r.TotalTests, &r.PassedTests,
			&r.FailedTests, &r.TotalRequests, &r.FailedRequests, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// ObserveRun records a finished run. Failures are logged and never reach
// the caller of the run.
func (s *Storage) ObserveRun(ctx context.Context, run runner.CompletedRun) {
	record, ok := RecordFromRun(run)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), saveTimeout)
	defer cancel()

	if err := s.SaveRun(ctx, &record); err != nil {
		s.logger.Error().Err(err).Str("collection_id", record.CollectionID).Msg("failed to save run history")
		return
	}
	s.logger.Debug().Int64("id", record.ID).Str("collection_id", record.CollectionID).Msg("run history saved")
}

// RunMigrations creates the history tables
func (s *Storage) RunMigrations(ctx context.Context) error {
	upSQL := `
-- Collection runs table
CREATE TABLE IF NOT EXISTS collection_runs (
    id BIGSERIAL PRIMARY KEY,
    run_id VARCHAR(64) NOT NULL DEFAULT '',
    collection_id VARCHAR(255) NOT NULL,
    collection_name VARCHAR(255) NOT NULL,
    environment_id VARCHAR(255),
    folder VARCHAR(255),
    started_at TIMESTAMP WITH TIME ZONE NOT NULL,
    completed_at TIMESTAMP WITH TIME ZONE NOT NULL,
    duration_ms BIGINT NOT NULL,
    total_tests INTEGER NOT NULL DEFAULT 0,
    passed_tests INTEGER NOT NULL DEFAULT 0,
    failed_tests INTEGER NOT NULL DEFAULT 0,
    total_requests INTEGER NOT NULL DEFAULT 0,
    failed_requests INTEGER NOT NULL DEFAULT 0,
    created_at TIMESTAMP WITH TIME ZONE DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_collection_runs_collection_id ON collection_runs(collection_id);
CREATE INDEX IF NOT EXISTS idx_collection_runs_started_at ON collection_runs(started_at DESC);

-- Run assertions table
CREATE TABLE IF NOT EXISTS run_assertions (
    id BIGSERIAL PRIMARY KEY,
    run_pk BIGINT NOT NULL REFERENCES collection_runs(id) ON DELETE CASCADE,
    request_name TEXT NOT NULL,
    assertion TEXT NOT NULL,
    passed BOOLEAN NOT NULL,
    error TEXT
);

CREATE INDEX IF NOT EXISTS idx_run_assertions_run_pk ON run_assertions(run_pk);
	`

	if _, err := s.db.ExecContext(ctx, upSQL); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
