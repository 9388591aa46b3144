// Package database owns the pgx connection pool and the in-code schema
// bootstrap that keeps the docker-compose stack self-contained.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool using the provided DSN.
func Connect(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 8
	cfg.MaxConnIdleTime = 5 * time.Minute
	return pgxpool.NewWithConfig(ctx, cfg)
}

// EnsureSchema creates the paystub_jobs table if needed.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	const stmt = `
CREATE TABLE IF NOT EXISTS paystub_jobs (
	id TEXT PRIMARY KEY,
	source_handle TEXT NOT NULL,
	file_name TEXT NOT NULL,
	recipient TEXT,
	report_key TEXT,
	status TEXT NOT NULL,
	message TEXT,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_paystub_jobs_handle ON paystub_jobs(source_handle);
CREATE INDEX IF NOT EXISTS idx_paystub_jobs_status ON paystub_jobs(status);`
	_, err := pool.Exec(ctx, stmt)
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}
