package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"harvest_service/internal/domain/model"
)

type RulesRepository struct {
	db *sqlx.DB
}

func NewRulesRepository(db *sqlx.DB) *RulesRepository {
	return &RulesRepository{db: db}
}

// LoadRules bulk-loads every source and spoilage rule.
func (r *RulesRepository) LoadRules(ctx context.Context) ([]model.Source, []model.SpoilageRule, error) {
	var sources []model.Source
	if err := r.db.SelectContext(ctx, &sources,
		`SELECT id, name, type, credibility FROM rule_sources ORDER BY id`); err != nil {
		return nil, nil, fmt.Errorf("failed to query rule sources: %w", err)
	}

	const query = `
		SELECT
			id, crop_id, condition,
			temp_min, temp_max, humidity_min, humidity_max,
			spoilage_time_hours, severity, source_id, source_reference
		FROM spoilage_rules
		ORDER BY crop_id, id`

	var rules []model.SpoilageRule
	if err := r.db.SelectContext(ctx, &rules, query); err != nil {
		return nil, nil, fmt.Errorf("failed to query spoilage rules: %w", err)
	}
	return sources, rules, nil
}

// ReplaceRules swaps the stored rule set for the given one in a single
// transaction. Used by the seeding command.
func (r *RulesRepository) ReplaceRules(ctx context.Context, sources []model.Source, rules []model.SpoilageRule) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM spoilage_rules`); err != nil {
		return fmt.Errorf("failed to clear spoilage rules: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM rule_sources`); err != nil {
		return fmt.Errorf("failed to clear rule sources: %w", err)
	}
	for _, s := range sources {
		if _, err := tx.NamedExecContext(ctx,
			`INSERT INTO rule_sources (id, name, type, credibility) VALUES (:id, :name, :type, :credibility)`, s); err != nil {
			return fmt.Errorf("failed to insert source %s: %w", s.ID, err)
		}
	}
	for _, rule := range rules {
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO spoilage_rules (
				id, crop_id, condition, temp_min, temp_max, humidity_min, humidity_max,
				spoilage_time_hours, severity, source_id, source_reference
			) VALUES (
				:id, :crop_id, :condition, :temp_min, :temp_max, :humidity_min, :humidity_max,
				:spoilage_time_hours, :severity, :source_id, :source_reference
			)`, rule); err != nil {
			return fmt.Errorf("failed to insert rule %s: %w", rule.ID, err)
		}
	}
	return tx.Commit()
}
