package maintenance

import (
	"context"
	"time"

	"pricewise/internal/workers"
	"pricewise/pkg/errors"
)

// Expirer marks pending recommendations past their reevaluation date.
type Expirer interface {
	ExpireDue(ctx context.Context, now time.Time) (int64, error)
}

// RecommendationExpiry moves stale pending recommendations to expired so
// their items become eligible for pricing again.
type RecommendationExpiry struct {
	*workers.BaseWorker
	repo Expirer
	now  func() time.Time
}

func NewRecommendationExpiry(repo Expirer, interval time.Duration) *RecommendationExpiry {
	return &RecommendationExpiry{
		BaseWorker: workers.NewBaseWorker("recommendation_expiry", interval, true),
		repo:       repo,
		now:        time.Now,
	}
}

func (w *RecommendationExpiry) Run(ctx context.Context) error {
	n, err := w.repo.ExpireDue(ctx, w.now().UTC())
	if err != nil {
		return errors.Wrap(err, "expire recommendations")
	}
	if n > 0 {
		w.Log().Infow("Expired recommendations", "count", n)
	}
	return nil
}
