// Package migrations applies the database schema at startup.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements run in order inside Apply. Each one is idempotent so startup
// can re-run them safely.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS countries (
		id BIGSERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE,
		capital TEXT,
		region TEXT,
		population BIGINT NOT NULL DEFAULT 0,
		currency_code TEXT,
		exchange_rate DOUBLE PRECISION,
		estimated_gdp DOUBLE PRECISION,
		flag_url TEXT,
		last_refreshed_at TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_countries_region ON countries (region)`,
	`CREATE INDEX IF NOT EXISTS idx_countries_currency_code ON countries (currency_code)`,
	`CREATE INDEX IF NOT EXISTS idx_countries_estimated_gdp ON countries (estimated_gdp DESC)`,
	`CREATE TABLE IF NOT EXISTS app_status (
		id INT PRIMARY KEY,
		total_countries BIGINT NOT NULL DEFAULT 0,
		last_refreshed_at TIMESTAMPTZ
	)`,
	`INSERT INTO app_status (id, total_countries, last_refreshed_at)
		VALUES (1, 0, NULL)
		ON CONFLICT (id) DO NOTHING`,
}

// Apply executes every schema statement in order.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
