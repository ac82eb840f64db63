package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/internal/domain/job"
	"pricewise/pkg/errors"
)

func newTestService(t *testing.T) (*Service, *harness) {
	h := newHarness(t, fixedAnswer(goodAnswer))
	svc := NewService(h.orch, h.jobs, h.store)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = svc.Shutdown(ctx)
	})
	return svc, h
}

func TestTriggerRunCompletesInBackground(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	jobID, err := svc.TriggerRun(ctx, h.store.user.ID)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		j, err := svc.GetRunStatus(ctx, jobID)
		return err == nil && j.State.Terminal()
	}, 5*time.Second, 10*time.Millisecond)

	j, err := svc.GetRunStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, j.State)

	batch, err := svc.GetLatestBatch(ctx, h.store.user.ID)
	require.NoError(t, err)
	assert.Equal(t, j.BatchID, batch.ID)
}

func TestTriggerRunRejectsConcurrentRun(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	active, err := h.jobs.Start(ctx, h.store.user.ID.String())
	require.NoError(t, err)

	_, err = svc.TriggerRun(ctx, h.store.user.ID)
	assert.True(t, errors.Is(err, errors.ErrRunInProgress))

	_, err = svc.CancelRun(ctx, active.ID)
	require.NoError(t, err)
	_, err = h.jobs.Update(ctx, active.ID, job.Patch{State: job.StatePtr(job.StateCancelled)})
	require.NoError(t, err)

	res, err := svc.RunSync(ctx, h.store.user.ID)
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, res.State)
}

func TestTriggerRunValidatesUser(t *testing.T) {
	svc, _ := newTestService(t)

	_, err := svc.TriggerRun(context.Background(), uuid.Nil)
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
}

func TestCancelRunOnFinishedJobIsNoop(t *testing.T) {
	svc, h := newTestService(t)
	ctx := context.Background()

	res, err := svc.RunSync(ctx, h.store.user.ID)
	require.NoError(t, err)

	j, err := svc.CancelRun(ctx, res.JobID)
	require.NoError(t, err)
	assert.Equal(t, job.StateCompleted, j.State)
	assert.False(t, j.CancelRequested)

	_, err = svc.CancelRun(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrJobNotFound))
}

func TestShutdownRejectsNewRuns(t *testing.T) {
	svc, h := newTestService(t)
	require.NoError(t, svc.Shutdown(context.Background()))

	_, err := svc.TriggerRun(context.Background(), h.store.user.ID)
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
