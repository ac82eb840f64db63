package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"pricewise/pkg/errors"
)

type mockUsageRecorder struct {
	mock.Mock
}

func (m *mockUsageRecorder) RecordUsage(ctx context.Context, usage Usage) error {
	args := m.Called(ctx, usage)
	return args.Error(0)
}

func TestGuardedCompleter_Success(t *testing.T) {
	usage := &mockUsageRecorder{}
	usage.On("RecordUsage", mock.Anything, mock.MatchedBy(func(u Usage) bool {
		return u.Success && u.Domain == "market" && u.BatchID == "b-1" && u.PromptChars == len("prompt")
	})).Return(nil).Once()

	inner := CompleterFunc(func(ctx context.Context, prompt, system string) (string, error) {
		assert.Equal(t, "system", system)
		return `{"summary":"ok"}`, nil
	})

	g := NewGuardedCompleter(inner, ProviderNameOpenAI, time.Second, WithUsageRecorder(usage), WithModel("gpt"))
	ctx := WithCallLabels(context.Background(), CallLabels{Domain: "market", BatchID: "b-1"})

	out, err := g.Complete(ctx, "prompt", "system")
	require.NoError(t, err)
	assert.Equal(t, `{"summary":"ok"}`, out)
	usage.AssertExpectations(t)
}

func TestGuardedCompleter_TimeoutIsCompletionFailure(t *testing.T) {
	inner := CompleterFunc(func(ctx context.Context, _, _ string) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	})

	g := NewGuardedCompleter(inner, ProviderNameOpenAI, 20*time.Millisecond)

	_, err := g.Complete(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCompletionFailed))
	assert.True(t, errors.Is(err, errors.ErrTimeout))
}

func TestGuardedCompleter_EmptyResponse(t *testing.T) {
	inner := CompleterFunc(func(context.Context, string, string) (string, error) {
		return "   \n", nil
	})

	g := NewGuardedCompleter(inner, ProviderNameGoogle, time.Second)

	_, err := g.Complete(context.Background(), "prompt", "")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrCompletionFailed))
	assert.False(t, errors.Is(err, errors.ErrTimeout))
}

func TestGuardedCompleter_UsageFailureDoesNotFailCall(t *testing.T) {
	usage := &mockUsageRecorder{}
	usage.On("RecordUsage", mock.Anything, mock.Anything).Return(errors.ErrUnavailable)

	inner := CompleterFunc(func(context.Context, string, string) (string, error) {
		return "fine", nil
	})

	g := NewGuardedCompleter(inner, ProviderNameOpenAI, time.Second, WithUsageRecorder(usage))

	out, err := g.Complete(context.Background(), "p", "")
	require.NoError(t, err)
	assert.Equal(t, "fine", out)
}

func TestUnavailableCompleter(t *testing.T) {
	_, err := UnavailableCompleter{}.Complete(context.Background(), "p", "s")
	assert.True(t, errors.Is(err, errors.ErrUnavailable))
}
