package cogs

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Upsert writes the amount for (UserID, WeekStart), replacing an existing row.
	Upsert(ctx context.Context, week *Week) error

	// Trend returns the last weeks rows in chronological order.
	Trend(ctx context.Context, userID uuid.UUID, weeks int) ([]*Week, error)
}
