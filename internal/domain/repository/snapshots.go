package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"harvest_service/internal/domain/model"
)

// SnapshotRepository persists geospatial snapshots keyed by quantized
// location and UTC date.
type SnapshotRepository struct {
	db *sqlx.DB
}

func NewSnapshotRepository(db *sqlx.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

type snapshotRow struct {
	LatE4        int64     `db:"lat_e4"`
	LonE4        int64     `db:"lon_e4"`
	Date         string    `db:"snapshot_date"`
	NDVI         float64   `db:"ndvi"`
	SoilMoisture float64   `db:"soil_moisture"`
	RainfallMM   float64   `db:"rainfall_mm"`
	Forecast     []byte    `db:"forecast"`
	Source       string    `db:"source"`
	CapturedAt   time.Time `db:"captured_at"`
	ExpiresAt    time.Time `db:"expires_at"`
}

// Save upserts a snapshot. Writing the same key twice leaves one row holding
// the latest value.
func (r *SnapshotRepository) Save(ctx context.Context, key model.CacheKey, snap model.GeospatialSnapshot) error {
	const query = `
		INSERT INTO geospatial_snapshots (
			lat_e4, lon_e4, snapshot_date,
			ndvi, soil_moisture, rainfall_mm,
			forecast, source, captured_at, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (lat_e4, lon_e4, snapshot_date) DO UPDATE SET
			ndvi = EXCLUDED.ndvi,
			soil_moisture = EXCLUDED.soil_moisture,
			rainfall_mm = EXCLUDED.rainfall_mm,
			forecast = EXCLUDED.forecast,
			source = EXCLUDED.source,
			captured_at = EXCLUDED.captured_at,
			expires_at = EXCLUDED.expires_at`

	forecastJSON, err := json.Marshal(snap.Forecast)
	if err != nil {
		return fmt.Errorf("failed to marshal forecast: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		key.Location.LatE4, key.Location.LonE4, key.Date,
		snap.NDVI, snap.SoilMoisture, snap.RainfallMM,
		forecastJSON, snap.Source, snap.CapturedAt.UTC(), snap.ExpiresAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot %s: %w", key, err)
	}
	return nil
}

// LoadActive returns snapshots whose expiry is after the given instant.
func (r *SnapshotRepository) LoadActive(ctx context.Context, expiresAfter time.Time) ([]model.CachedSnapshot, error) {
	const query = `
		SELECT
			lat_e4, lon_e4, snapshot_date,
			ndvi, soil_moisture, rainfall_mm,
			forecast, source, captured_at, expires_at
		FROM geospatial_snapshots
		WHERE expires_at > $1
		ORDER BY snapshot_date`

	var rows []snapshotRow
	if err := r.db.SelectContext(ctx, &rows, query, expiresAfter.UTC()); err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}

	out := make([]model.CachedSnapshot, 0, len(rows))
	for _, row := range rows {
		var forecast []model.DailyForecast
		if err := json.Unmarshal(row.Forecast, &forecast); err != nil {
			return nil, fmt.Errorf("failed to decode forecast for %d_%d_%s: %w", row.LatE4, row.LonE4, row.Date, err)
		}
		out = append(out, model.CachedSnapshot{
			Key: model.CacheKey{
				Location: model.LocationKey{LatE4: row.LatE4, LonE4: row.LonE4},
				Date:     row.Date,
			},
			Snapshot: model.GeospatialSnapshot{
				NDVI:         row.NDVI,
				SoilMoisture: row.SoilMoisture,
				RainfallMM:   row.RainfallMM,
				Forecast:     forecast,
				Source:       row.Source,
				CapturedAt:   row.CapturedAt,
				ExpiresAt:    row.ExpiresAt,
			},
		})
	}
	return out, nil
}

// DeleteExpired removes snapshots that expired before the given instant.
func (r *SnapshotRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM geospatial_snapshots WHERE expires_at < $1`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired snapshots: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted snapshots: %w", err)
	}
	return n, nil
}
