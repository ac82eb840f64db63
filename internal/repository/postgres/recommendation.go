package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pricewise/internal/domain/recommendation"
	"pricewise/pkg/errors"
)

var _ recommendation.Repository = (*RecommendationRepository)(nil)

// RecommendationRepository persists batches. Every statement of SaveBatch
// is idempotent so a retried save never duplicates rows.
type RecommendationRepository struct {
	db DBTX
}

func NewRecommendationRepository(db DBTX) *RecommendationRepository {
	return &RecommendationRepository{db: db}
}

const recommendationColumns = `id, item_id, item_name, user_id, batch_id, recommendation_date,
	current_price, recommended_price, price_change_amount, price_change_percent,
	strategy_type, confidence_score, rationale,
	expected_revenue_change, expected_quantity_change, expected_margin_change,
	implementation_status, reevaluation_date, metadata`

func (r *RecommendationRepository) SaveBatch(ctx context.Context, batch *recommendation.Batch) error {
	for _, rec := range batch.Recommendations {
		if err := rec.Validate(); err != nil {
			return errors.Wrapf(err, "recommendation for item %s", rec.ItemID)
		}
	}

	return withTx(ctx, r.db, func(tx DBTX) error {
		for _, rep := range batch.Reports {
			if err := insertReport(ctx, tx, rep); err != nil {
				return err
			}
		}
		for _, rec := range batch.Recommendations {
			_, err := tx.NamedExecContext(ctx, `
				INSERT INTO recommendations (`+recommendationColumns+`)
				VALUES (:id, :item_id, :item_name, :user_id, :batch_id, :recommendation_date,
					:current_price, :recommended_price, :price_change_amount, :price_change_percent,
					:strategy_type, :confidence_score, :rationale,
					:expected_revenue_change, :expected_quantity_change, :expected_margin_change,
					:implementation_status, :reevaluation_date, :metadata)
				ON CONFLICT (item_id, batch_id) DO NOTHING`, rec)
			if err != nil {
				return errors.Wrapf(err, "failed to insert recommendation for item %s", rec.ItemID)
			}
		}
		return nil
	})
}

// LatestBatch takes the newest batch id from reports only. Every completed
// run stores at least its pricing report, even when every item was skipped.
func (r *RecommendationRepository) LatestBatch(ctx context.Context, userID uuid.UUID) (*recommendation.Batch, error) {
	var head struct {
		BatchID   string    `db:"batch_id"`
		CreatedAt time.Time `db:"created_at"`
	}
	err := r.db.GetContext(ctx, &head, `
		SELECT batch_id, MAX(created_at) AS created_at
		FROM reports
		WHERE user_id = $1
		GROUP BY batch_id
		ORDER BY MAX(created_at) DESC
		LIMIT 1`, userID)
	if err != nil {
		return nil, notFound(err, "batch")
	}

	recs, err := r.ListByBatch(ctx, head.BatchID)
	if err != nil {
		return nil, err
	}
	reports, err := listReports(ctx, r.db, head.BatchID)
	if err != nil {
		return nil, err
	}

	return &recommendation.Batch{
		ID:              head.BatchID,
		UserID:          userID,
		CreatedAt:       head.CreatedAt,
		Recommendations: recs,
		Reports:         reports,
	}, nil
}

func (r *RecommendationRepository) ListByBatch(ctx context.Context, batchID string) ([]*recommendation.Recommendation, error) {
	var out []*recommendation.Recommendation
	err := r.db.SelectContext(ctx, &out, `
		SELECT `+recommendationColumns+`
		FROM recommendations
		WHERE batch_id = $1
		ORDER BY item_name`, batchID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list recommendations")
	}
	return out, nil
}

func (r *RecommendationRepository) PendingSince(ctx context.Context, userID uuid.UUID, since time.Time) (map[uuid.UUID]time.Time, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT item_id, MAX(recommendation_date)
		FROM recommendations
		WHERE user_id = $1 AND implementation_status = $2 AND recommendation_date > $3
		GROUP BY item_id`, userID, recommendation.StatusPending, since)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load pending recommendations")
	}
	defer rows.Close()

	out := make(map[uuid.UUID]time.Time)
	for rows.Next() {
		var (
			itemID uuid.UUID
			at     time.Time
		)
		if err := rows.Scan(&itemID, &at); err != nil {
			return nil, errors.Wrap(err, "failed to scan pending recommendation")
		}
		out[itemID] = at
	}
	return out, errors.Wrap(rows.Err(), "failed to iterate pending recommendations")
}

func (r *RecommendationRepository) ExpireDue(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		UPDATE recommendations
		SET implementation_status = $1
		WHERE implementation_status = $2 AND reevaluation_date <= $3`,
		recommendation.StatusExpired, recommendation.StatusPending, now)
	if err != nil {
		return 0, errors.Wrap(err, "failed to expire recommendations")
	}
	return res.RowsAffected()
}
