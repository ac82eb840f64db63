package maintenance

import (
	"context"
	"time"

	"pricewise/internal/workers"
	"pricewise/pkg/errors"
)

// Evicter drops finished jobs started before cutoff.
type Evicter interface {
	Evict(ctx context.Context, cutoff time.Time) (int, error)
}

// JobJanitor bounds the job store by evicting finished jobs older than the retention.
type JobJanitor struct {
	*workers.BaseWorker
	store     Evicter
	retention time.Duration
	now       func() time.Time
}

func NewJobJanitor(store Evicter, retention, interval time.Duration) *JobJanitor {
	return &JobJanitor{
		BaseWorker: workers.NewBaseWorker("job_janitor", interval, retention > 0),
		store:      store,
		retention:  retention,
		now:        time.Now,
	}
}

func (w *JobJanitor) Run(ctx context.Context) error {
	n, err := w.store.Evict(ctx, w.now().Add(-w.retention))
	if err != nil {
		return errors.Wrap(err, "evict jobs")
	}
	if n > 0 {
		w.Log().Infow("Evicted finished jobs", "count", n, "retention", w.retention)
	}
	return nil
}
