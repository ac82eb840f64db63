package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Generic error kinds shared across packages.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrAlreadyExists = errors.New("resource already exists")
	ErrInvalidInput  = errors.New("invalid input")
	ErrInternal      = errors.New("internal error")
	ErrTimeout       = errors.New("operation timeout")
	ErrUnavailable   = errors.New("service unavailable")
	ErrExternal      = errors.New("external service failure")
)

// Pricing pipeline errors

var (
	// ErrCompletionFailed marks a failed or timed out language model call.
	// Callers recover locally: agents degrade instead of propagating it.
	ErrCompletionFailed = errors.New("completion failed")

	// ErrPersistenceFailed is fatal for a run.
	ErrPersistenceFailed = errors.New("persistence failed")

	// ErrInvalidItemState marks an item that cannot be priced (missing price or cost).
	ErrInvalidItemState = errors.New("invalid item state")

	// ErrJobNotFound is returned by job stores for unknown or evicted ids.
	ErrJobNotFound = errors.New("job not found")

	// ErrRunInProgress is returned when a user already has an active run.
	ErrRunInProgress = errors.New("run already in progress")
)

// StageError annotates an error with the pipeline stage and batch it happened in.
type StageError struct {
	Stage   string
	BatchID string
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s (batch %s): %v", e.Stage, e.BatchID, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// MultiError collects independent failures, e.g. one per domain agent.
type MultiError struct {
	Errors []error
}

func (m *MultiError) Error() string {
	switch len(m.Errors) {
	case 0:
		return "no errors"
	case 1:
		return m.Errors[0].Error()
	}
	msgs := make([]string, 0, len(m.Errors))
	for _, err := range m.Errors {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("%d errors: %s", len(m.Errors), strings.Join(msgs, "; "))
}

// Add appends err when non-nil
func (m *MultiError) Add(err error) {
	if err != nil {
		m.Errors = append(m.Errors, err)
	}
}

func (m *MultiError) HasErrors() bool {
	return len(m.Errors) > 0
}

// ToError returns nil when nothing was collected
func (m *MultiError) ToError() error {
	if !m.HasErrors() {
		return nil
	}
	return m
}

// Unwrap exposes the collected errors to errors.Is / errors.As.
func (m *MultiError) Unwrap() []error {
	return m.Errors
}

func Is(err, target error) bool {
	return errors.Is(err, target)
}

func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap wraps an error with context
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

func New(message string) error {
	return errors.New(message)
}

func Newf(format string, args ...interface{}) error {
	return fmt.Errorf(format, args...)
}

// Join is errors.Join re-exported so callers need a single errors import.
func Join(errs ...error) error {
	return errors.Join(errs...)
}
