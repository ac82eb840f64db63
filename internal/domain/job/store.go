package job

import (
	"context"
	"time"
)

// Store keeps job progress. Update must be atomic per job id.
// Lookups of unknown or evicted ids return errors.ErrJobNotFound.
type Store interface {
	Start(ctx context.Context, ownerID string) (*Job, error)
	Update(ctx context.Context, id string, patch Patch) (*Job, error)
	Get(ctx context.Context, id string) (*Job, error)

	// LatestForOwner returns the job of ownerID with the newest StartedAt.
	LatestForOwner(ctx context.Context, ownerID string) (*Job, error)

	// Cancel flags the job; the orchestrator observes it between stages.
	Cancel(ctx context.Context, id string) (*Job, error)

	// Evict drops finished jobs started before cutoff and returns how many
	// were removed. Jobs that are not terminal are kept.
	Evict(ctx context.Context, cutoff time.Time) (int, error)
}
