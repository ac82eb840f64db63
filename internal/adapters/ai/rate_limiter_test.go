package ai

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/pkg/errors"
)

func TestLocalLimiter_Burst(t *testing.T) {
	limiter := NewLocalLimiter(ProviderNameOpenAI, 60, 2)

	assert.True(t, limiter.Allow())
	assert.True(t, limiter.Allow())
	assert.False(t, limiter.Allow())
	assert.InDelta(t, 60, limiter.Limit(), 0.001)
}

func TestLocalLimiter_WaitHonoursContext(t *testing.T) {
	limiter := NewLocalLimiter(ProviderNameOpenAI, 6, 1) // one token per 10s
	require.NoError(t, limiter.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := limiter.Wait(ctx)
	require.Error(t, err)

	var rlErr *RateLimitError
	require.True(t, errors.As(err, &rlErr))
	assert.Equal(t, ProviderNameOpenAI, rlErr.Provider)
}

func TestNewRateLimiter(t *testing.T) {
	assert.IsType(t, NoOpLimiter{}, NewRateLimiter(ProviderNameOpenAI, RateLimitConfig{}, nil))
	assert.IsType(t, &LocalLimiter{}, NewRateLimiter(ProviderNameOpenAI, RateLimitConfig{ReqPerMinute: 60}, nil))

	// distributed without a client degrades to the local limiter
	assert.IsType(t, &LocalLimiter{}, NewRateLimiter(ProviderNameOpenAI, RateLimitConfig{ReqPerMinute: 60, Distributed: true}, nil))
}

func TestNormalizeBurst(t *testing.T) {
	assert.Equal(t, 5, normalizeBurst(100, 5))
	assert.Equal(t, 10, normalizeBurst(100, 0))
	assert.Equal(t, 1, normalizeBurst(3, 0))
}
