// Package retry runs an operation with bounded attempts and backoff.
package retry

import (
	"context"
	"math"
	"time"

	"pricewise/pkg/errors"
)

// Strategy defines how the delay grows between attempts.
type Strategy string

const (
	StrategyExponential Strategy = "exponential"
	StrategyLinear      Strategy = "linear"
	StrategyFixed       Strategy = "fixed"
)

// Config contains retry configuration. Attempts counts the first call.
type Config struct {
	Attempts     int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Strategy     Strategy
	Multiplier   float64

	// Retryable decides whether a failed attempt is worth repeating.
	// Nil retries everything except context errors.
	Retryable func(error) bool

	// OnRetry is called before sleeping with the 1-based attempt that failed.
	OnRetry func(attempt int, err error, delay time.Duration)
}

func DefaultConfig() Config {
	return Config{
		Attempts:     3,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Strategy:     StrategyExponential,
		Multiplier:   2.0,
	}
}

type Retrier struct {
	config Config
	sleep  func(ctx context.Context, d time.Duration) error
}

func New(config Config) *Retrier {
	if config.Attempts <= 0 {
		config.Attempts = 3
	}
	if config.InitialDelay < 0 {
		config.InitialDelay = 0
	}
	if config.MaxDelay <= 0 {
		config.MaxDelay = 5 * time.Second
	}
	if config.Multiplier <= 0 {
		config.Multiplier = 2.0
	}
	if config.Strategy == "" {
		config.Strategy = StrategyExponential
	}

	return &Retrier{config: config, sleep: sleepContext}
}

// Do calls fn until it succeeds, returns a non-retryable error or the
// attempts are used up. The last error is returned wrapped.
func (r *Retrier) Do(ctx context.Context, fn func(ctx context.Context, attempt int) error) error {
	var lastErr error

	for attempt := 1; attempt <= r.config.Attempts; attempt++ {
		err := fn(ctx, attempt)
		if err == nil {
			return nil
		}
		lastErr = err

		if !r.retryable(err) {
			return err
		}
		if attempt == r.config.Attempts {
			break
		}

		delay := r.Delay(attempt - 1)
		if r.config.OnRetry != nil {
			r.config.OnRetry(attempt, err, delay)
		}
		if err := r.sleep(ctx, delay); err != nil {
			return errors.Wrap(err, "retry cancelled")
		}
	}

	return errors.Wrapf(lastErr, "gave up after %d attempts", r.config.Attempts)
}

// Delay returns the backoff before the attempt following retry number n (0-based).
func (r *Retrier) Delay(n int) time.Duration {
	var delay time.Duration

	switch r.config.Strategy {
	case StrategyExponential:
		delay = time.Duration(float64(r.config.InitialDelay) * math.Pow(r.config.Multiplier, float64(n)))
	case StrategyLinear:
		delay = r.config.InitialDelay * time.Duration(1+n)
	default:
		delay = r.config.InitialDelay
	}

	if delay > r.config.MaxDelay {
		delay = r.config.MaxDelay
	}
	return delay
}

func (r *Retrier) retryable(err error) bool {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if r.config.Retryable != nil {
		return r.config.Retryable(err)
	}
	return true
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
