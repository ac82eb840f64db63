package report

import (
	"context"

	"github.com/google/uuid"
)

type Repository interface {
	// Latest returns the newest report of domain for the user.
	Latest(ctx context.Context, userID uuid.UUID, domain Domain) (*Report, error)
	ListByBatch(ctx context.Context, batchID string) ([]*Report, error)
}
