package ai

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// RateLimiter throttles calls to a completion provider.
type RateLimiter interface {
	// Wait blocks until request can proceed or context is cancelled.
	Wait(ctx context.Context) error

	// Limit returns requests per minute, -1 when unlimited.
	Limit() float64
}

// LocalLimiter is an in-process token bucket backed by x/time/rate.
// Suitable for a single replica; use RedisRateLimiter across pods.
type LocalLimiter struct {
	provider ProviderName
	limiter  *rate.Limiter
}

func NewLocalLimiter(provider ProviderName, reqPerMinute float64, burst int) *LocalLimiter {
	return &LocalLimiter{
		provider: provider,
		limiter:  rate.NewLimiter(rate.Limit(reqPerMinute/60.0), normalizeBurst(reqPerMinute, burst)),
	}
}

func (l *LocalLimiter) Wait(ctx context.Context) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return &RateLimitError{Provider: l.provider, Limit: l.Limit(), Err: err}
	}
	return nil
}

// Allow consumes a token without blocking.
func (l *LocalLimiter) Allow() bool {
	return l.limiter.Allow()
}

func (l *LocalLimiter) Limit() float64 {
	return float64(l.limiter.Limit()) * 60.0
}

// NoOpLimiter never blocks
type NoOpLimiter struct{}

func (NoOpLimiter) Wait(context.Context) error { return nil }
func (NoOpLimiter) Limit() float64             { return -1 }

// RateLimitConfig contains rate limit configuration for a provider.
type RateLimitConfig struct {
	ReqPerMinute float64
	Burst        int
	Distributed  bool
}

// NewRateLimiter picks the limiter implementation for cfg. A nil redis client
// forces the local limiter even when Distributed is set.
func NewRateLimiter(provider ProviderName, cfg RateLimitConfig, client *redis.Client) RateLimiter {
	if cfg.ReqPerMinute <= 0 {
		return NoOpLimiter{}
	}
	if cfg.Distributed && client != nil {
		return NewRedisRateLimiter(client, provider, cfg.ReqPerMinute, cfg.Burst)
	}
	return NewLocalLimiter(provider, cfg.ReqPerMinute, cfg.Burst)
}

func normalizeBurst(reqPerMinute float64, burst int) int {
	if burst > 0 {
		return burst
	}
	burst = int(reqPerMinute / 10)
	if burst < 1 {
		burst = 1
	}
	return burst
}

// RateLimitError wraps rate limit related errors with provider context.
type RateLimitError struct {
	Provider ProviderName
	Limit    float64
	Err      error
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limit error for provider %s (limit: %.0f req/min): %v", e.Provider, e.Limit, e.Err)
}

func (e *RateLimitError) Unwrap() error {
	return e.Err
}
