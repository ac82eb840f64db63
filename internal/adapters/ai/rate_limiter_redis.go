package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"pricewise/pkg/errors"
)

// RedisRateLimiter is a token bucket shared by every replica through Redis.
type RedisRateLimiter struct {
	client   *redis.Client
	provider ProviderName
	rate     float64 // tokens per second
	burst    int
	key      string
	script   *redis.Script
}

// KEYS[1] bucket hash; ARGV rate, burst, now (seconds).
// Returns 1 when a token was taken.
const luaTokenBucketScript = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])

local data = redis.call('HMGET', key, 'tokens', 'last_update')
local tokens = tonumber(data[1])
local last_update = tonumber(data[2])
if not tokens then
    tokens = burst
    last_update = now
end

tokens = math.min(burst, tokens + (now - last_update) * rate)
local allowed = 0
if tokens >= 1.0 then
    tokens = tokens - 1.0
    allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_update', now)
redis.call('EXPIRE', key, 3600)
return allowed
`

func NewRedisRateLimiter(client *redis.Client, provider ProviderName, reqPerMinute float64, burst int) *RedisRateLimiter {
	return &RedisRateLimiter{
		client:   client,
		provider: provider,
		rate:     reqPerMinute / 60.0,
		burst:    normalizeBurst(reqPerMinute, burst),
		key:      fmt.Sprintf("pricewise:rate_limit:ai:%s", provider),
		script:   redis.NewScript(luaTokenBucketScript),
	}
}

func (l *RedisRateLimiter) Wait(ctx context.Context) error {
	interval := time.Duration(float64(time.Second) / l.rate)
	for {
		allowed, err := l.tryAcquire(ctx)
		if err != nil {
			return errors.Wrapf(err, "redis rate limiter for provider %s", l.provider)
		}
		if allowed {
			return nil
		}

		select {
		case <-ctx.Done():
			return &RateLimitError{Provider: l.provider, Limit: l.Limit(), Err: ctx.Err()}
		case <-time.After(interval):
		}
	}
}

func (l *RedisRateLimiter) Limit() float64 {
	return l.rate * 60.0
}

// Reset clears the shared bucket.
func (l *RedisRateLimiter) Reset(ctx context.Context) error {
	return l.client.Del(ctx, l.key).Err()
}

func (l *RedisRateLimiter) tryAcquire(ctx context.Context) (bool, error) {
	now := float64(time.Now().UnixNano()) / float64(time.Second)

	result, err := l.script.Run(ctx, l.client, []string{l.key}, l.rate, l.burst, now).Int()
	if err != nil {
		return false, errors.Wrap(err, "token bucket script")
	}
	return result == 1, nil
}
