package postgres

import (
	"context"
	"fmt"

	"github.com/banking/dnfbp-risk/internal/config"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Schema creates the ledger tables. Both tables are append-only.
const Schema = `
CREATE TABLE IF NOT EXISTS evidence_runs (
	run_id         UUID PRIMARY KEY,
	request_id     TEXT NOT NULL DEFAULT '',
	ruleset_id     TEXT NOT NULL,
	token_hash     CHAR(64) NOT NULL UNIQUE,
	manifest       JSONB NOT NULL,
	archive_bytes  INTEGER NOT NULL,
	client_count   INTEGER NOT NULL,
	band_counts    JSONB NOT NULL,
	signed         BOOLEAN NOT NULL,
	lookback_start DATE NOT NULL,
	lookback_end   DATE NOT NULL,
	created_at     TIMESTAMPTZ NOT NULL,
	expires_at     TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS evidence_access_logs (
	access_id   UUID PRIMARY KEY,
	token_hash  CHAR(64) NOT NULL,
	access_type TEXT NOT NULL,
	found       BOOLEAN NOT NULL,
	ip_address  TEXT NOT NULL DEFAULT '',
	user_agent  TEXT NOT NULL DEFAULT '',
	timestamp   TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_evidence_access_logs_token_hash ON evidence_access_logs (token_hash);
`

// NewPool opens a connection pool sized from cfg
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	poolConfig.MinConns = int32(cfg.MaxIdleConns)
	poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}
	return pool, nil
}

// EnsureSchema applies Schema
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
