package job

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestApply_MergesStepsPerKey(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	j := New("job-1", "owner-1", now)

	j.Apply(Patch{Steps: map[string]Step{
		"market":     {Status: StepRunning},
		"competitor": {Status: StepRunning},
	}}, now)
	j.Apply(Patch{Steps: map[string]Step{
		"market": {Status: StepFailed, Message: "completion failed"},
	}}, now.Add(time.Second))

	assert.Len(t, j.Steps, 2)
	assert.Equal(t, StepFailed, j.Steps["market"].Status)
	assert.Equal(t, StepRunning, j.Steps["competitor"].Status)
	assert.Equal(t, now.Add(time.Second), j.Steps["market"].UpdatedAt)
}

func TestApply_StateDrivesPercent(t *testing.T) {
	now := time.Now()
	j := New("job-1", "owner-1", now)

	j.Apply(Patch{State: StatePtr(StateRunningPricingAgent)}, now)
	assert.Equal(t, 50, j.Percent)

	j.Apply(Patch{Percent: IntPtr(73)}, now)
	assert.Equal(t, 73, j.Percent)

	j.Apply(Patch{Percent: IntPtr(150)}, now)
	assert.Equal(t, 100, j.Percent)

	j.Apply(Patch{State: StatePtr(StateFailed), Error: StringPtr("boom")}, now)
	assert.Equal(t, 100, j.Percent, "failed keeps the last progress")
	assert.NotNil(t, j.FinishedAt)
	assert.Equal(t, "boom", j.Error)
}

func TestApply_PercentNeverMovesBackwards(t *testing.T) {
	now := time.Now()
	j := New("job-1", "owner-1", now)
	j.Apply(Patch{State: StatePtr(StateRunningPricingAgent)}, now)

	j.Apply(Patch{Percent: IntPtr(82)}, now)
	j.Apply(Patch{Percent: IntPtr(66), Items: map[string]ItemResult{"item-1": {Name: "Latte", Outcome: ItemRecommended}}}, now)

	assert.Equal(t, 82, j.Percent)
	assert.Contains(t, j.Items, "item-1", "the rest of a stale patch still merges")

	j.Apply(Patch{State: StatePtr(StatePersisting)}, now)
	assert.Equal(t, 90, j.Percent)
}

func TestApply_TerminalIsFinal(t *testing.T) {
	now := time.Now()
	j := New("job-1", "owner-1", now)
	j.Apply(Patch{State: StatePtr(StateCompleted)}, now)

	j.Apply(Patch{State: StatePtr(StateFailed), Error: StringPtr("late")}, now)
	assert.Equal(t, StateCompleted, j.State)
	assert.Empty(t, j.Error)

	j.RequestCancel(now)
	assert.False(t, j.CancelRequested)
}

func TestClone_IsDeep(t *testing.T) {
	now := time.Now()
	j := New("job-1", "owner-1", now)
	j.Apply(Patch{Items: map[string]ItemResult{"i1": {Outcome: ItemSkipped, Reason: ReasonMissingCostOrPrice}}}, now)

	c := j.Clone()
	c.Items["i2"] = ItemResult{Outcome: ItemRecommended}
	c.Steps["x"] = Step{}

	assert.Len(t, j.Items, 1)
	assert.Empty(t, j.Steps)
}

func TestStateTerminal(t *testing.T) {
	for _, s := range []State{StateCompleted, StateFailed, StateCancelled} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []State{StateStarted, StateCollectingContext, StateRunningDomainAgents, StateRunningPricingAgent, StatePersisting} {
		assert.False(t, s.Terminal(), s)
	}
}
