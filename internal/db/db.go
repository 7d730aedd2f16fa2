// Package db provides PostgreSQL storage for CV drafts and ingestion run records.
package db

import (
	"context"
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB wraps a PostgreSQL connection pool
type DB struct {
	pool *pgxpool.Pool
}

// Connect establishes a connection pool to the database
func Connect(ctx context.Context, databaseURL string) (*DB, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Verify connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{pool: pool}, nil
}

// Close closes the connection pool
func (db *DB) Close() {
	if db.pool != nil {
		db.pool.Close()
	}
}

// Migrate applies the embedded schema migrations
func Migrate(databaseURL string) error {
	src, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// CreateRun inserts a new ingestion run record. A zero ID is replaced with a new one.
func (db *DB) CreateRun(ctx context.Context, run *IngestionRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = RunStatusRunning
	}

	err := db.pool.QueryRow(ctx,
		`INSERT INTO ingestion_runs (id, user_id, filename, file_hash, file_size, page_count, status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING created_at`,
		run.ID, run.UserID, run.Filename, run.FileHash, run.FileSize, run.PageCount, run.Status,
	).Scan(&run.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// CompleteRun records the outcome of an ingestion run
func (db *DB) CompleteRun(ctx context.Context, run *IngestionRun) error {
	err := db.pool.QueryRow(ctx,
		`UPDATE ingestion_runs
		 SET status = $1, source = $2, native_length = $3, ocr_length = $4,
		     low_confidence = $5, error_kind = $6, error_message = $7, warnings = $8,
		     page_count = $9, file_hash = $10, file_size = $11, completed_at = NOW()
		 WHERE id = $12
		 RETURNING completed_at`,
		run.Status, nullIfEmpty(run.Source), run.NativeLength, run.OCRLength,
		run.LowConfidence, nullIfEmpty(run.ErrorKind), nullIfEmpty(run.ErrorMessage),
		nonNil(run.Warnings), run.PageCount, run.FileHash, run.FileSize, run.ID,
	).Scan(&run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("run %s not found", run.ID)
		}
		return fmt.Errorf("failed to complete run: %w", err)
	}
	return nil
}

// GetRun retrieves an ingestion run by ID
func (db *DB) GetRun(ctx context.Context, runID uuid.UUID) (*IngestionRun, error) {
	var run IngestionRun
	var source, errorKind, errorMessage *string
	var warnings []string
	err := db.pool.QueryRow(ctx,
		`SELECT id, user_id, filename, file_hash, file_size, page_count, status, source,
		        native_length, ocr_length, low_confidence, error_kind, error_message,
		        warnings, created_at, completed_at
		 FROM ingestion_runs WHERE id = $1`,
		runID,
	).Scan(&run.ID, &run.UserID, &run.Filename, &run.FileHash, &run.FileSize, &run.PageCount,
		&run.Status, &source, &run.NativeLength, &run.OCRLength, &run.LowConfidence,
		&errorKind, &errorMessage, &warnings, &run.CreatedAt, &run.CompletedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	run.Source = derefString(source)
	run.ErrorKind = derefString(errorKind)
	run.ErrorMessage = derefString(errorMessage)
	run.Warnings = warnings
	return &run, nil
}

// ListRuns returns the most recent runs for a user, newest first
func (db *DB) ListRuns(ctx context.Context, userID uuid.UUID, limit int) ([]IngestionRun, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := db.pool.Query(ctx,
		`SELECT id, filename, status, source, error_kind, created_at, completed_at
		 FROM ingestion_runs WHERE user_id = $1
		 ORDER BY created_at DESC LIMIT $2`,
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []IngestionRun{}
	for rows.Next() {
		var run IngestionRun
		var source, errorKind *string
		if err := rows.Scan(&run.ID, &run.Filename, &run.Status, &source, &errorKind,
			&run.CreatedAt, &run.CompletedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		run.UserID = userID
		run.Source = derefString(source)
		run.ErrorKind = derefString(errorKind)
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate runs: %w", err)
	}
	return runs, nil
}
