package ai

import (
	"context"
)

// Completer is the single text-in/text-out call the pricing agents make.
// Implementations must honour ctx cancellation.
type Completer interface {
	Complete(ctx context.Context, prompt string, systemContext string) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, prompt, systemContext string) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, prompt, systemContext string) (string, error) {
	return f(ctx, prompt, systemContext)
}

type callLabelsKey struct{}

// CallLabels describe who issued a completion; they flow into metrics and usage rows.
type CallLabels struct {
	UserID  string
	BatchID string
	Domain  string
}

// WithCallLabels attaches labels to ctx for the instrumented completer.
func WithCallLabels(ctx context.Context, labels CallLabels) context.Context {
	return context.WithValue(ctx, callLabelsKey{}, labels)
}

// LabelsFromContext returns labels set by WithCallLabels, or zero values.
func LabelsFromContext(ctx context.Context) CallLabels {
	labels, _ := ctx.Value(callLabelsKey{}).(CallLabels)
	return labels
}
