package errors

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrapPreservesSentinel(t *testing.T) {
	err := Wrapf(ErrPersistenceFailed, "save batch %s", "b-1")
	assert.True(t, Is(err, ErrPersistenceFailed))
	assert.Contains(t, err.Error(), "save batch b-1")
	assert.Nil(t, Wrap(nil, "ignored"))
}

func TestStageError(t *testing.T) {
	err := &StageError{Stage: "PERSISTING", BatchID: "b-1", Err: ErrPersistenceFailed}

	assert.True(t, Is(err, ErrPersistenceFailed))
	assert.Equal(t, "stage PERSISTING (batch b-1): persistence failed", err.Error())

	var stageErr *StageError
	wrapped := Wrap(err, "run failed")
	assert.True(t, As(wrapped, &stageErr))
	assert.Equal(t, "b-1", stageErr.BatchID)
}

func TestMultiError(t *testing.T) {
	var m MultiError
	assert.Nil(t, m.ToError())

	m.Add(nil)
	m.Add(ErrCompletionFailed)
	assert.Equal(t, "completion failed", m.Error())

	m.Add(ErrTimeout)
	assert.Equal(t, "2 errors: completion failed; operation timeout", m.Error())
	assert.True(t, Is(m.ToError(), ErrTimeout))
}
