package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"
)

var ErrMissingDSN = errors.New("postgres: DSN is required")

// Open connects to PostgreSQL using the provided options and applies pool
// settings.
func Open(opts ...Option) (*sql.DB, error) {
	cfg := defaultOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	if cfg.DSN == "" {
		return nil, ErrMissingDSN
	}

	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}

	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns >= 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}

	return db, nil
}

// Migrate creates the daily_prices table if it does not exist.
func Migrate(ctx context.Context, db *sql.DB) error {
	if db == nil {
		return fmt.Errorf("postgres: db is nil")
	}
	const schema = `CREATE TABLE IF NOT EXISTS daily_prices (
        asset_type  TEXT             NOT NULL,
        symbol      TEXT             NOT NULL,
        day         DATE             NOT NULL,
        open        DOUBLE PRECISION NOT NULL DEFAULT 0,
        high        DOUBLE PRECISION NOT NULL DEFAULT 0,
        low         DOUBLE PRECISION NOT NULL DEFAULT 0,
        close       DOUBLE PRECISION NOT NULL DEFAULT 0,
        volume      DOUBLE PRECISION NOT NULL DEFAULT 0,
        change_pct  DOUBLE PRECISION NOT NULL DEFAULT 0,
        PRIMARY KEY (asset_type, symbol, day)
    )`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("postgres: migrate: %w", err)
	}
	return nil
}
