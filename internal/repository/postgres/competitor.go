package postgres

import (
	"context"

	"github.com/google/uuid"

	"pricewise/internal/domain/competitor"
	"pricewise/pkg/errors"
)

var _ competitor.Repository = (*CompetitorRepository)(nil)

type CompetitorRepository struct {
	db DBTX
}

func NewCompetitorRepository(db DBTX) *CompetitorRepository {
	return &CompetitorRepository{db: db}
}

func (r *CompetitorRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*competitor.Competitor, error) {
	var out []*competitor.Competitor
	err := r.db.SelectContext(ctx, &out, `
		SELECT id, user_id, name, created_at
		FROM competitors
		WHERE user_id = $1
		ORDER BY name`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list competitors")
	}
	return out, nil
}

// LatestItems returns the newest observation batch of each competitor.
func (r *CompetitorRepository) LatestItems(ctx context.Context, userID uuid.UUID) ([]*competitor.Item, error) {
	var out []*competitor.Item
	err := r.db.SelectContext(ctx, &out, `
		WITH latest AS (
			SELECT DISTINCT ON (ci.competitor_id) ci.competitor_id, ci.batch_id
			FROM competitor_items ci
			JOIN competitors c ON c.id = ci.competitor_id
			WHERE c.user_id = $1
			ORDER BY ci.competitor_id, ci.observed_at DESC
		)
		SELECT ci.id, ci.competitor_id, c.name AS competitor_name, ci.name, ci.category,
		       ci.price, ci.batch_id, ci.observed_at
		FROM competitor_items ci
		JOIN latest l ON l.competitor_id = ci.competitor_id AND l.batch_id = ci.batch_id
		JOIN competitors c ON c.id = ci.competitor_id
		ORDER BY c.name, ci.name`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load competitor items")
	}
	return out, nil
}

// SaveSnapshot records one scrape of a competitor menu as a new batch.
func (r *CompetitorRepository) SaveSnapshot(ctx context.Context, c *competitor.Competitor, items []*competitor.Item) error {
	return withTx(ctx, r.db, func(tx DBTX) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO competitors (id, user_id, name, created_at)
			VALUES ($1, $2, $3, $4)
			ON CONFLICT (id) DO NOTHING`, c.ID, c.UserID, c.Name, c.CreatedAt); err != nil {
			return errors.Wrap(err, "failed to upsert competitor")
		}
		for _, it := range items {
			it.CompetitorID = c.ID
			if _, err := tx.NamedExecContext(ctx, `
				INSERT INTO competitor_items (id, competitor_id, name, category, price, batch_id, observed_at)
				VALUES (:id, :competitor_id, :name, :category, :price, :batch_id, :observed_at)`, it); err != nil {
				return errors.Wrap(err, "failed to insert competitor item")
			}
		}
		return nil
	})
}
