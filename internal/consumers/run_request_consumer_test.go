package consumers

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/internal/events"
	"pricewise/pkg/errors"
)

type fakeTrigger struct {
	mu    sync.Mutex
	calls []uuid.UUID
	err   error
}

func (f *fakeTrigger) TriggerRun(_ context.Context, userID uuid.UUID) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, userID)
	if f.err != nil {
		return "", f.err
	}
	return "job-1", nil
}

func (f *fakeTrigger) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type fakeSource struct {
	msgs   chan kafka.Message
	closed bool
}

func (s *fakeSource) ReadMessageWithShutdownCheck(ctx context.Context) (kafka.Message, error) {
	select {
	case <-ctx.Done():
		return kafka.Message{}, ctx.Err()
	case m := <-s.msgs:
		return m, nil
	}
}

func (s *fakeSource) Close() error {
	s.closed = true
	return nil
}

func runRequest(t *testing.T, userID string) kafka.Message {
	t.Helper()
	ev := events.RunRequested{
		BaseEvent: events.NewBaseEvent(events.TypeRunRequested, "pos_sync", userID),
		Reason:    "catalog_sync",
	}
	b, err := json.Marshal(ev)
	require.NoError(t, err)
	return kafka.Message{Key: []byte(userID), Value: b}
}

func TestRunRequestConsumer_TriggersRun(t *testing.T) {
	trigger := &fakeTrigger{}
	c := NewRunRequestConsumer(&fakeSource{}, trigger)
	userID := uuid.New()

	require.NoError(t, c.handleMessage(context.Background(), runRequest(t, userID.String())))
	require.Len(t, trigger.calls, 1)
	assert.Equal(t, userID, trigger.calls[0])
}

func TestRunRequestConsumer_SkipsRunInProgress(t *testing.T) {
	trigger := &fakeTrigger{err: errors.Wrap(errors.ErrRunInProgress, "job j-1")}
	c := NewRunRequestConsumer(&fakeSource{}, trigger)

	assert.NoError(t, c.handleMessage(context.Background(), runRequest(t, uuid.NewString())))
}

func TestRunRequestConsumer_RejectsMalformed(t *testing.T) {
	trigger := &fakeTrigger{}
	c := NewRunRequestConsumer(&fakeSource{}, trigger)

	err := c.handleMessage(context.Background(), kafka.Message{Value: []byte("{not json")})
	assert.Error(t, err)

	err = c.handleMessage(context.Background(), runRequest(t, "not-a-uuid"))
	assert.True(t, errors.Is(err, errors.ErrInvalidInput))
	assert.Zero(t, trigger.count())
}

func TestRunRequestConsumer_StartStopsOnCancel(t *testing.T) {
	trigger := &fakeTrigger{}
	src := &fakeSource{msgs: make(chan kafka.Message, 1)}
	c := NewRunRequestConsumer(src, trigger)

	src.msgs <- runRequest(t, uuid.NewString())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Start(ctx) }()

	require.Eventually(t, func() bool { return trigger.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("consumer did not stop")
	}
	assert.True(t, src.closed)
}
