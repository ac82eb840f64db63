package ai

import (
	"context"
	"strings"

	"github.com/redis/go-redis/v9"

	"pricewise/internal/adapters/config"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// BuildCompleter returns the guarded completer for the configured default
// provider. redisClient is optional and only used for distributed rate limiting.
func BuildCompleter(ctx context.Context, cfg config.AIConfig, redisClient *redis.Client, usage UsageRecorder) (*GuardedCompleter, error) {
	provider := ProviderName(NormalizeProviderName(cfg.DefaultProvider))
	if !provider.IsValid() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "unknown AI provider %q", cfg.DefaultProvider)
	}

	var (
		base  Completer
		model = cfg.Model
		err   error
	)

	switch provider {
	case ProviderNameOpenAI, ProviderNameDeepSeek:
		key := cfg.OpenAIKey
		if provider == ProviderNameDeepSeek {
			key = cfg.DeepSeekKey
		}
		if key == "" {
			base, provider = unavailable(provider)
			break
		}
		var c *OpenAICompleter
		c, err = NewOpenAICompleter(provider, key, model, cfg.Temperature)
		if c != nil {
			base, model = c, c.Model()
		}
	case ProviderNameGoogle:
		if cfg.GeminiKey == "" {
			base, provider = unavailable(provider)
			break
		}
		var c *GeminiCompleter
		c, err = NewGeminiCompleter(ctx, cfg.GeminiKey, model, cfg.Temperature)
		if c != nil {
			base, model = c, c.Model()
		}
	default:
		base = UnavailableCompleter{}
	}
	if err != nil {
		return nil, err
	}

	limiter := NewRateLimiter(provider, RateLimitConfig{
		ReqPerMinute: float64(cfg.RateLimitPerMinute),
		Burst:        cfg.RateLimitBurst,
		Distributed:  cfg.DistributedLimit,
	}, redisClient)

	opts := []GuardOption{WithRateLimiter(limiter), WithModel(model)}
	if usage != nil {
		opts = append(opts, WithUsageRecorder(usage))
	}
	return NewGuardedCompleter(base, provider, cfg.CallTimeout, opts...), nil
}

func unavailable(provider ProviderName) (Completer, ProviderName) {
	logger.Get().Warnw("AI provider key missing, recommendations will use deterministic rationale only",
		"provider", provider)
	return UnavailableCompleter{}, ProviderNameStatic
}

// NormalizeProviderName makes provider lookup more forgiving.
func NormalizeProviderName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "gemini" {
		return ProviderNameGoogle.String()
	}
	return name
}
