package order

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository exposes read-only order aggregates. Raw orders are owned by
// the POS sync and never written by the pricing pipeline.
type Repository interface {
	Aggregate(ctx context.Context, userID uuid.UUID, from, to time.Time) (*Stats, error)
}
