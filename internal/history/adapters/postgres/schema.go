package postgres

import (
	"context"
	"fmt"
)

// Numeric columns are TEXT: values are stored exactly as the upstream sent them.
var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS depth_history (
    start_time      TIMESTAMPTZ NOT NULL,
    end_time        TIMESTAMPTZ NOT NULL,
    asset_depth     TEXT NOT NULL DEFAULT '',
    asset_price     TEXT NOT NULL DEFAULT '',
    asset_price_usd TEXT NOT NULL DEFAULT '',
    liquidity_units TEXT NOT NULL DEFAULT '',
    luvi            TEXT NOT NULL DEFAULT '',
    members_count   TEXT NOT NULL DEFAULT '',
    rune_depth      TEXT NOT NULL DEFAULT '',
    synth_supply    TEXT NOT NULL DEFAULT '',
    synth_units     TEXT NOT NULL DEFAULT '',
    units           TEXT NOT NULL DEFAULT ''
)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS depth_history_start_end_unique
    ON depth_history (start_time, end_time)`,
	`CREATE TABLE IF NOT EXISTS ingestion_state (
    stream     TEXT PRIMARY KEY,
    watermark  BIGINT NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`,
}

// EnsureIndexes creates the tables and the unique (start_time, end_time)
// index when they do not exist yet.
func (r *HistoryRepository) EnsureIndexes(ctx context.Context) error {
	for _, stmt := range schemaStatements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure schema: %w", err)
		}
	}
	return nil
}
