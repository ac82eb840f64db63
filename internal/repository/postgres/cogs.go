package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pricewise/internal/domain/cogs"
	"pricewise/pkg/errors"
)

var _ cogs.Repository = (*COGSRepository)(nil)

type COGSRepository struct {
	db  DBTX
	now func() time.Time
}

func NewCOGSRepository(db DBTX) *COGSRepository {
	return &COGSRepository{db: db, now: time.Now}
}

// Upsert normalises the week to its Monday bounds and replaces any
// existing amount for that week.
func (r *COGSRepository) Upsert(ctx context.Context, w *cogs.Week) error {
	if w.Amount.IsNegative() {
		return errors.Wrapf(errors.ErrInvalidInput, "cogs amount %s is negative", w.Amount)
	}
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	w.WeekStart, w.WeekEnd = cogs.WeekBounds(w.WeekStart)
	w.UpdatedAt = r.now().UTC()

	err := r.db.GetContext(ctx, &w.ID, `
		INSERT INTO cogs_weeks (id, user_id, week_start, week_end, amount, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, week_start)
		DO UPDATE SET amount = EXCLUDED.amount, week_end = EXCLUDED.week_end, updated_at = EXCLUDED.updated_at
		RETURNING id`,
		w.ID, w.UserID, w.WeekStart, w.WeekEnd, w.Amount, w.UpdatedAt)
	return errors.Wrap(err, "failed to upsert cogs week")
}

// Trend returns the newest weeks rows, oldest first.
func (r *COGSRepository) Trend(ctx context.Context, userID uuid.UUID, weeks int) ([]*cogs.Week, error) {
	var out []*cogs.Week
	err := r.db.SelectContext(ctx, &out, `
		SELECT * FROM (
			SELECT id, user_id, week_start, week_end, amount, updated_at
			FROM cogs_weeks
			WHERE user_id = $1
			ORDER BY week_start DESC
			LIMIT $2
		) recent
		ORDER BY week_start`, userID, weeks)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load cogs trend")
	}
	return out, nil
}
