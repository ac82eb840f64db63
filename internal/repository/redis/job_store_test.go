package redis

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/internal/domain/job"
	"pricewise/internal/testsupport"
	"pricewise/pkg/errors"
)

func newTestJobStore(t *testing.T) *JobStore {
	return NewJobStore(testsupport.NewRedisClient(t), time.Hour)
}

func TestJobStore_StartUpdateGet(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	j, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, job.StateStarted, j.State)

	_, err = store.Update(ctx, j.ID, job.Patch{
		State:   job.StatePtr(job.StateRunningDomainAgents),
		BatchID: job.StringPtr("batch-1"),
		Steps:   map[string]job.Step{"agent:market": {Status: job.StepRunning}},
	})
	require.NoError(t, err)

	got, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateRunningDomainAgents, got.State)
	assert.Equal(t, 25, got.Percent)
	assert.Equal(t, "batch-1", got.BatchID)
	assert.Equal(t, job.StepRunning, got.Steps["agent:market"].Status)

	ttl, err := store.client.TTL(ctx, jobKey(j.ID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, 50*time.Minute, "updates keep the retention ttl")

	_, err = store.Get(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))
}

func TestJobStore_ConcurrentStepUpdatesMerge(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	j, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)

	domains := []string{"market", "competitor", "customer", "pricing"}
	var wg sync.WaitGroup
	for _, d := range domains {
		wg.Add(1)
		go func(d string) {
			defer wg.Done()
			_, err := store.Update(ctx, j.ID, job.Patch{Steps: map[string]job.Step{"agent:" + d: {Status: job.StepSucceeded}}})
			assert.NoError(t, err)
		}(d)
	}
	wg.Wait()

	got, err := store.Get(ctx, j.ID)
	require.NoError(t, err)
	assert.Len(t, got.Steps, len(domains))
}

func TestJobStore_LatestForOwnerAndCancel(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	first, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	second, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)

	latest, err := store.LatestForOwner(ctx, "owner-1")
	require.NoError(t, err)
	assert.Equal(t, second.ID, latest.ID)

	cancelled, err := store.Cancel(ctx, second.ID)
	require.NoError(t, err)
	assert.True(t, cancelled.CancelRequested)

	_, err = store.Update(ctx, first.ID, job.Patch{State: job.StatePtr(job.StateCompleted)})
	require.NoError(t, err)
	done, err := store.Cancel(ctx, first.ID)
	require.NoError(t, err)
	assert.False(t, done.CancelRequested)

	_, err = store.LatestForOwner(ctx, "nobody")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))
}

func TestJobStore_Evict(t *testing.T) {
	store := newTestJobStore(t)
	ctx := context.Background()

	old, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)
	_, err = store.Update(ctx, old.ID, job.Patch{State: job.StatePtr(job.StateCompleted)})
	require.NoError(t, err)
	running, err := store.Start(ctx, "owner-2")
	require.NoError(t, err)
	cutoff := time.Now()
	time.Sleep(time.Millisecond)
	fresh, err := store.Start(ctx, "owner-1")
	require.NoError(t, err)

	n, err := store.Evict(ctx, cutoff)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = store.Get(ctx, old.ID)
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))
	_, err = store.Get(ctx, fresh.ID)
	assert.NoError(t, err)

	_, err = store.Update(ctx, running.ID, job.Patch{State: job.StatePtr(job.StatePersisting)})
	assert.NoError(t, err, "runs in flight survive eviction")
}
