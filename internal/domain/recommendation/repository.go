package recommendation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Repository interface {
	// SaveBatch writes all reports and recommendations of a batch in one
	// transaction. Re-saving the same batch does not duplicate rows.
	SaveBatch(ctx context.Context, batch *Batch) error

	// LatestBatch returns the most recent batch for the user with its
	// recommendations and reports.
	LatestBatch(ctx context.Context, userID uuid.UUID) (*Batch, error)

	ListByBatch(ctx context.Context, batchID string) ([]*Recommendation, error)

	// PendingSince maps item ids to the newest pending recommendation date
	// created after since.
	PendingSince(ctx context.Context, userID uuid.UUID, since time.Time) (map[uuid.UUID]time.Time, error)

	// ExpireDue marks pending recommendations whose reevaluation date is
	// not after now as expired and returns how many changed.
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}
