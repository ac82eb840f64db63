package competitor

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Competitor, error)

	// LatestItems returns items from the newest batch of every competitor of the user.
	LatestItems(ctx context.Context, userID uuid.UUID) ([]*Item, error)
}
