// Package auditlog records one row per completed pipeline run — request
// metadata only, never the underlying events or findings. It is
// optional: a nil *Store is safe to call, so wiring it in is never a
// prerequisite for the pipeline to run.
package auditlog

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Store persists run-audit rows to PostgreSQL via pgx.
type Store struct {
	pool *pgxpool.Pool
}

// Connect opens a pool against connStr and verifies connectivity.
func Connect(ctx context.Context, connStr string) (*Store, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, fmt.Errorf("unable to connect to audit database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("ping audit database: %w", err)
	}
	return &Store{pool: pool}, nil
}

// Close releases the pool. Safe to call on a nil *Store.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// InitSchema creates the run_audit table if it does not already exist.
func (s *Store) InitSchema(ctx context.Context) error {
	if s == nil {
		return nil
	}
	const schema = `
		CREATE TABLE IF NOT EXISTS run_audit (
			request_id      TEXT PRIMARY KEY,
			started_at      TIMESTAMPTZ NOT NULL,
			finished_at     TIMESTAMPTZ NOT NULL,
			status          TEXT NOT NULL,
			failed_services TEXT[] NOT NULL DEFAULT '{}',
			merged_count    INT NOT NULL
		);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// Run is one row of run-metadata.
type Run struct {
	RequestID      string
	StartedAt      time.Time
	FinishedAt     time.Time
	Status         string
	FailedServices []string
	MergedCount    int
}

// Record inserts one run row, upserting on request_id so a retried
// request overwrites rather than duplicates its audit entry. A nil
// *Store makes this a no-op, matching the optional-dependency style of
// the nil-safe database handle this is adapted from.
func (s *Store) Record(ctx context.Context, run Run) error {
	if s == nil {
		return nil
	}
	const sql = `
		INSERT INTO run_audit (request_id, started_at, finished_at, status, failed_services, merged_count)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (request_id) DO UPDATE
		SET finished_at = EXCLUDED.finished_at,
		    status = EXCLUDED.status,
		    failed_services = EXCLUDED.failed_services,
		    merged_count = EXCLUDED.merged_count;
	`
	_, err := s.pool.Exec(ctx, sql, run.RequestID, run.StartedAt, run.FinishedAt, run.Status, run.FailedServices, run.MergedCount)
	return err
}
