package jobs

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/internal/domain/job"
	"pricewise/pkg/errors"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestStore() (*MemoryStore, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)}
	return NewMemoryStore().WithClock(clock.Now), clock
}

func TestMemoryStore_StartGetUpdate(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	started, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateStarted, started.State)

	_, err = store.Update(ctx, started.ID, job.Patch{
		State: job.StatePtr(job.StateCollectingContext),
		Steps: map[string]job.Step{"collect": {Status: job.StepRunning}},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, started.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateCollectingContext, got.State)
	assert.Equal(t, 10, got.Percent)
	assert.Equal(t, job.StepRunning, got.Steps["collect"].Status)

	// returned jobs are copies
	got.Steps["collect"] = job.Step{Status: job.StepFailed}
	again, _ := store.Get(ctx, started.ID)
	assert.Equal(t, job.StepRunning, again.Steps["collect"].Status)
}

func TestMemoryStore_UnknownJob(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()

	_, err := store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))

	_, err = store.Update(ctx, "missing", job.Patch{})
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))

	_, err = store.Cancel(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))

	_, err = store.LatestForOwner(ctx, "nobody")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))

	_, err = store.Start(ctx, "")
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestMemoryStore_LatestForOwner(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	first, _ := store.Start(ctx, "owner-1")
	clock.Advance(time.Minute)
	_, _ = store.Start(ctx, "owner-2")
	clock.Advance(time.Minute)
	third, _ := store.Start(ctx, "owner-1")

	latest, err := store.LatestForOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, third.ID, latest.ID)
	assert.NotEqual(t, first.ID, latest.ID)
}

func TestMemoryStore_ConcurrentStepUpdatesAreMerged(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	started, _ := store.Start(ctx, "owner-1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := store.Update(ctx, started.ID, job.Patch{
				Steps: map[string]job.Step{fmt.Sprintf("step-%d", i): {Status: job.StepSucceeded}},
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	got, _ := store.Get(ctx, started.ID)
	assert.Len(t, got.Steps, 50)
}

func TestMemoryStore_Cancel(t *testing.T) {
	store, _ := newTestStore()
	ctx := context.Background()
	started, _ := store.Start(ctx, "owner-1")

	cancelled, err := store.Cancel(ctx, started.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.CancelRequested)
	assert.Equal(t, job.StateStarted, cancelled.State, "cancel is observed by the orchestrator, not applied here")
}

func TestMemoryStore_Evict(t *testing.T) {
	store, clock := newTestStore()
	ctx := context.Background()

	old, _ := store.Start(ctx, "owner-1")
	_, err := store.Update(ctx, old.ID, job.Patch{State: job.StatePtr(job.StateFailed)})
	require.NoError(t, err)
	running, _ := store.Start(ctx, "owner-2")
	clock.Advance(25 * time.Hour)
	fresh, _ := store.Start(ctx, "owner-1")

	evicted, err := store.Evict(ctx, clock.Now().Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, evicted)
	assert.Equal(t, 2, store.Len())

	_, err = store.Update(ctx, running.ID, job.Patch{Percent: job.IntPtr(60)})
	assert.NoError(t, err, "runs in flight survive eviction")

	_, err = store.Get(ctx, old.ID)
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)
}
