package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"pricewise/internal/domain/user"
	pricingsvc "pricewise/internal/services/pricing"
	"pricewise/internal/workers"
	"pricewise/pkg/errors"
)

// UserLister returns the users eligible for scheduled runs.
type UserLister interface {
	ListActive(ctx context.Context) ([]*user.User, error)
}

// Runner executes one pricing run synchronously.
type Runner interface {
	RunSync(ctx context.Context, userID uuid.UUID) (*pricingsvc.RunResult, error)
}

// BatchRunner prices every active user on a schedule, a few users at a time.
type BatchRunner struct {
	*workers.BaseWorker
	users       UserLister
	runner      Runner
	concurrency int
}

func NewBatchRunner(users UserLister, runner Runner, interval time.Duration, concurrency int, enabled bool) *BatchRunner {
	if concurrency <= 0 {
		concurrency = 1
	}
	return &BatchRunner{
		BaseWorker:  workers.NewBaseWorker("batch_pricing", interval, enabled),
		users:       users,
		runner:      runner,
		concurrency: concurrency,
	}
}

// Run prices all active users. Users with a run in flight are skipped;
// other failures are collected and returned together.
func (w *BatchRunner) Run(ctx context.Context) error {
	users, err := w.users.ListActive(ctx)
	if err != nil {
		return errors.Wrap(err, "list active users")
	}

	var (
		mu        sync.Mutex
		wg        sync.WaitGroup
		sem       = make(chan struct{}, w.concurrency)
		failures  errors.MultiError
		completed int
		skipped   int
	)

	for _, u := range users {
		if ctx.Err() != nil {
			break
		}
		sem <- struct{}{}
		wg.Add(1)
		go func(u *user.User) {
			defer wg.Done()
			defer func() { <-sem }()

			_, err := w.runner.RunSync(ctx, u.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				completed++
			case errors.Is(err, errors.ErrRunInProgress):
				skipped++
			default:
				failures.Add(errors.Wrapf(err, "user %s", u.ID))
			}
		}(u)
	}
	wg.Wait()

	w.Log().Infow("Batch pricing finished",
		"users", len(users),
		"completed", completed,
		"skipped", skipped,
		"failed", len(failures.Errors),
	)
	return failures.ToError()
}
