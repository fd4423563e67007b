package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jmoiron/sqlx"

	"harvest_service/internal/domain/model"
)

// PostgresHistoryRecorder appends every emitted recommendation to
// recommendation_history.
type PostgresHistoryRecorder struct {
	db *sqlx.DB
}

func NewPostgresHistoryRecorder(db *sqlx.DB) *PostgresHistoryRecorder {
	return &PostgresHistoryRecorder{db: db}
}

func (r *PostgresHistoryRecorder) Record(ctx context.Context, rec model.Recommendation) error {
	const query = `
		INSERT INTO recommendation_history (
			id, farmer_id, crop, lat, lon, field_size, language,
			action, urgency, primary_factor, confidence, data_quality,
			reasoning_chain, cited_sources, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15
		)
		ON CONFLICT (id) DO NOTHING`

	chainJSON, err := json.Marshal(rec.ReasoningChain)
	if err != nil {
		return fmt.Errorf("failed to marshal reasoning chain: %w", err)
	}
	sourcesJSON, err := json.Marshal(rec.CitedSources)
	if err != nil {
		return fmt.Errorf("failed to marshal cited sources: %w", err)
	}

	_, err = r.db.ExecContext(ctx, query,
		rec.ID, rec.FarmerID, rec.Crop,
		rec.Location.Latitude, rec.Location.Longitude,
		rec.FieldSizeHectares, rec.Language,
		string(rec.Action), string(rec.Urgency), string(rec.PrimaryFactor),
		rec.Confidence, string(rec.DataQuality),
		chainJSON, sourcesJSON, rec.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to record recommendation %s: %w", rec.ID, err)
	}
	return nil
}
