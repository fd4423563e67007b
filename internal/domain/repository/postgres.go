package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS geospatial_snapshots (
	lat_e4        BIGINT           NOT NULL,
	lon_e4        BIGINT           NOT NULL,
	snapshot_date TEXT             NOT NULL,
	ndvi          DOUBLE PRECISION NOT NULL,
	soil_moisture DOUBLE PRECISION NOT NULL,
	rainfall_mm   DOUBLE PRECISION NOT NULL,
	forecast      JSONB            NOT NULL,
	source        TEXT             NOT NULL DEFAULT '',
	captured_at   TIMESTAMPTZ      NOT NULL,
	expires_at    TIMESTAMPTZ      NOT NULL,
	PRIMARY KEY (lat_e4, lon_e4, snapshot_date)
);
CREATE INDEX IF NOT EXISTS geospatial_snapshots_expires_idx ON geospatial_snapshots (expires_at);

CREATE TABLE IF NOT EXISTS rule_sources (
	id          TEXT PRIMARY KEY,
	name        TEXT             NOT NULL,
	type        TEXT             NOT NULL,
	credibility DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS spoilage_rules (
	id                  TEXT PRIMARY KEY,
	crop_id             TEXT             NOT NULL,
	condition           TEXT             NOT NULL,
	temp_min            DOUBLE PRECISION NOT NULL,
	temp_max            DOUBLE PRECISION NOT NULL,
	humidity_min        DOUBLE PRECISION NOT NULL,
	humidity_max        DOUBLE PRECISION NOT NULL,
	spoilage_time_hours INTEGER          NOT NULL,
	severity            TEXT             NOT NULL,
	source_id           TEXT             NOT NULL REFERENCES rule_sources (id),
	source_reference    TEXT             NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS recommendation_history (
	id              UUID PRIMARY KEY,
	farmer_id       TEXT             NOT NULL DEFAULT '',
	crop            TEXT             NOT NULL,
	lat             DOUBLE PRECISION NOT NULL,
	lon             DOUBLE PRECISION NOT NULL,
	field_size      DOUBLE PRECISION NOT NULL,
	language        TEXT             NOT NULL,
	action          TEXT             NOT NULL,
	urgency         TEXT             NOT NULL,
	primary_factor  TEXT             NOT NULL,
	confidence      DOUBLE PRECISION NOT NULL,
	data_quality    TEXT             NOT NULL,
	reasoning_chain JSONB            NOT NULL,
	cited_sources   JSONB            NOT NULL,
	created_at      TIMESTAMPTZ      NOT NULL
);`

// Connect opens a Postgres pool and verifies it with a ping.
func Connect(ctx context.Context, connStr string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	return db, nil
}

// EnsureSchema creates the engine's tables if they do not exist.
func EnsureSchema(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return nil
}
