package ai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// Usage describes one completion call for analytics.
type Usage struct {
	Provider      string
	Model         string
	Domain        string
	UserID        string
	BatchID       string
	Latency       time.Duration
	PromptChars   int
	ResponseChars int
	Success       bool
	TimedOut      bool
	Error         string
	Timestamp     time.Time
}

// UsageRecorder persists Usage rows, typically via a ClickHouse batch writer.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, usage Usage) error
}

// GuardedCompleter wraps a provider with rate limiting, a hard per-call
// timeout, metrics and usage accounting. Every failure it returns wraps
// errors.ErrCompletionFailed; deadline hits additionally wrap errors.ErrTimeout.
type GuardedCompleter struct {
	next     Completer
	provider ProviderName
	model    string
	limiter  RateLimiter
	timeout  time.Duration
	usage    UsageRecorder
	now      func() time.Time
	log      *logger.Logger
}

type GuardOption func(*GuardedCompleter)

func WithRateLimiter(l RateLimiter) GuardOption {
	return func(g *GuardedCompleter) { g.limiter = l }
}

func WithUsageRecorder(r UsageRecorder) GuardOption {
	return func(g *GuardedCompleter) { g.usage = r }
}

func WithModel(model string) GuardOption {
	return func(g *GuardedCompleter) { g.model = model }
}

func NewGuardedCompleter(next Completer, provider ProviderName, timeout time.Duration, opts ...GuardOption) *GuardedCompleter {
	g := &GuardedCompleter{
		next:     next,
		provider: provider,
		limiter:  NoOpLimiter{},
		timeout:  timeout,
		now:      time.Now,
		log:      logger.Get().With("component", "completion", "provider", provider),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *GuardedCompleter) Complete(ctx context.Context, prompt, systemContext string) (string, error) {
	labels := LabelsFromContext(ctx)

	callCtx := ctx
	if g.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := g.now()
	out, err := g.call(callCtx, prompt, systemContext)
	latency := g.now().Sub(start)
	timedOut := err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded)

	metrics.RecordCompletion(g.provider.String(), labels.Domain, latency, timedOut, err)
	g.record(ctx, labels, prompt, out, latency, timedOut, err)

	if err != nil {
		g.log.Warnw("Completion failed",
			"domain", labels.Domain,
			"batch_id", labels.BatchID,
			"timed_out", timedOut,
			"latency", latency,
			"error", err,
		)
		if timedOut {
			return "", fmt.Errorf("%w: %w: %v", errors.ErrCompletionFailed, errors.ErrTimeout, err)
		}
		return "", fmt.Errorf("%w: %w", errors.ErrCompletionFailed, err)
	}
	return out, nil
}

func (g *GuardedCompleter) call(ctx context.Context, prompt, systemContext string) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", err
	}
	out, err := g.next.Complete(ctx, prompt, systemContext)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", errors.Wrap(errors.ErrExternal, "empty completion")
	}
	return out, nil
}

func (g *GuardedCompleter) record(ctx context.Context, labels CallLabels, prompt, out string, latency time.Duration, timedOut bool, callErr error) {
	if g.usage == nil {
		return
	}
	u := Usage{
		Provider:      g.provider.String(),
		Model:         g.model,
		Domain:        labels.Domain,
		UserID:        labels.UserID,
		BatchID:       labels.BatchID,
		Latency:       latency,
		PromptChars:   len(prompt),
		ResponseChars: len(out),
		Success:       callErr == nil,
		TimedOut:      timedOut,
		Timestamp:     g.now().UTC(),
	}
	if callErr != nil {
		u.Error = callErr.Error()
	}
	// Usage is best effort and must outlive a cancelled call context.
	if err := g.usage.RecordUsage(context.WithoutCancel(ctx), u); err != nil {
		g.log.Warnw("Failed to record completion usage", "error", err)
	}
}

// UnavailableCompleter always fails. It stands in when no provider key is
// configured so the pipeline still produces deterministic recommendations.
type UnavailableCompleter struct{}

func (UnavailableCompleter) Complete(context.Context, string, string) (string, error) {
	return "", errors.Wrap(errors.ErrUnavailable, "no completion provider configured")
}
