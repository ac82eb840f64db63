package retry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/pkg/errors"
)

func noSleep(r *Retrier) *Retrier {
	r.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	return r
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	var retried []int
	r := noSleep(New(Config{
		Attempts:     3,
		InitialDelay: time.Millisecond,
		OnRetry:      func(attempt int, _ error, _ time.Duration) { retried = append(retried, attempt) },
	}))

	calls := 0
	err := r.Do(context.Background(), func(_ context.Context, attempt int) error {
		calls++
		if attempt < 3 {
			return errors.New("deadlock detected")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestDoGivesUp(t *testing.T) {
	r := noSleep(New(Config{Attempts: 3}))
	sentinel := errors.New("db down")

	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return sentinel
	})

	assert.Equal(t, 3, calls)
	assert.ErrorIs(t, err, sentinel)
	assert.Contains(t, err.Error(), "gave up after 3 attempts")
}

func TestDoStopsOnPermanentError(t *testing.T) {
	r := noSleep(New(Config{
		Attempts:  5,
		Retryable: func(err error) bool { return !errors.Is(err, errors.ErrInvalidInput) },
	}))

	calls := 0
	err := r.Do(context.Background(), func(context.Context, int) error {
		calls++
		return errors.Wrap(errors.ErrInvalidInput, "bad row")
	})

	assert.Equal(t, 1, calls)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	r := New(Config{Attempts: 3, InitialDelay: time.Hour})

	err := r.Do(ctx, func(context.Context, int) error {
		cancel()
		return errors.New("transient")
	})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDelay(t *testing.T) {
	r := New(Config{InitialDelay: 100 * time.Millisecond, MaxDelay: time.Second, Multiplier: 2})
	assert.Equal(t, 100*time.Millisecond, r.Delay(0))
	assert.Equal(t, 400*time.Millisecond, r.Delay(2))
	assert.Equal(t, time.Second, r.Delay(10))

	linear := New(Config{InitialDelay: 100 * time.Millisecond, Strategy: StrategyLinear})
	assert.Equal(t, 300*time.Millisecond, linear.Delay(2))
}
