// Package postgres holds the connection pool setup, schema bootstrap, and
// the repository implementations backed by the upstream store.
package postgres

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// RunMigrations bootstraps the schema idempotently. The trigger that NOTIFYs
// on live_prices inserts belongs to the data loader, not to us.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS api_tokens (
			token TEXT PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			revoked_at TIMESTAMPTZ
		)`,
		`CREATE TABLE IF NOT EXISTS historical_prices (
			ticker TEXT NOT NULL,
			close_price NUMERIC NOT NULL,
			recorded_at DATE NOT NULL,
			PRIMARY KEY (ticker, recorded_at)
		)`,
		`CREATE TABLE IF NOT EXISTS live_prices (
			ticker TEXT NOT NULL,
			price NUMERIC NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			PRIMARY KEY (ticker, updated_at)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_live_prices_ticker_updated
			ON live_prices (ticker, updated_at DESC)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
