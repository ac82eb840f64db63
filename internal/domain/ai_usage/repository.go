package ai_usage

import (
	"context"
	"time"
)

type Repository interface {
	// Store buffers a usage row; rows reach storage asynchronously.
	Store(ctx context.Context, log *UsageLog) error

	// StatsByDomain returns per-domain call counts for [from, to).
	StatsByDomain(ctx context.Context, from, to time.Time) ([]DomainStats, error)
}
