package job

import (
	"time"
)

// State is the orchestrator state machine position of a run.
type State string

const (
	StateStarted             State = "STARTED"
	StateCollectingContext   State = "COLLECTING_CONTEXT"
	StateRunningDomainAgents State = "RUNNING_DOMAIN_AGENTS"
	StateRunningPricingAgent State = "RUNNING_PRICING_AGENT"
	StatePersisting          State = "PERSISTING"
	StateCompleted           State = "COMPLETED"
	StateFailed              State = "FAILED"
	StateCancelled           State = "CANCELLED"
)

// Terminal reports whether no further transitions are allowed.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Percent is the progress reported when a run enters s.
func (s State) Percent() int {
	switch s {
	case StateStarted:
		return 0
	case StateCollectingContext:
		return 10
	case StateRunningDomainAgents:
		return 25
	case StateRunningPricingAgent:
		return 50
	case StatePersisting:
		return 90
	case StateCompleted:
		return 100
	default:
		return -1
	}
}

// StepStatus is the status of one named step inside a run.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepRunning   StepStatus = "running"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
	StepSkipped   StepStatus = "skipped"
)

type Step struct {
	Status    StepStatus `json:"status"`
	Message   string     `json:"message,omitempty"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// ItemOutcome is what happened to one catalog item during a run.
type ItemOutcome string

const (
	ItemRecommended ItemOutcome = "recommended"
	ItemSkipped     ItemOutcome = "skipped"
)

// Skip reasons reported per item.
const (
	ReasonMissingCostOrPrice         = "missing_cost_or_price"
	ReasonFreshPendingRecommendation = "fresh_pending_recommendation"
)

type ItemResult struct {
	Name    string      `json:"name"`
	Outcome ItemOutcome `json:"outcome"`
	Reason  string      `json:"reason,omitempty"`
}

// Job is the progress record of one pricing run.
type Job struct {
	ID              string                `json:"id"`
	OwnerID         string                `json:"owner_id"`
	State           State                 `json:"state"`
	Percent         int                   `json:"percent"`
	Steps           map[string]Step       `json:"steps"`
	Items           map[string]ItemResult `json:"items"`
	BatchID         string                `json:"batch_id,omitempty"`
	Error           string                `json:"error,omitempty"`
	CancelRequested bool                  `json:"cancel_requested"`
	StartedAt       time.Time             `json:"started_at"`
	UpdatedAt       time.Time             `json:"updated_at"`
	FinishedAt      *time.Time            `json:"finished_at,omitempty"`
}

// New returns a job in StateStarted.
func New(id, ownerID string, now time.Time) *Job {
	return &Job{
		ID:        id,
		OwnerID:   ownerID,
		State:     StateStarted,
		Steps:     map[string]Step{},
		Items:     map[string]ItemResult{},
		StartedAt: now,
		UpdatedAt: now,
	}
}

// Patch is a partial update. Nil fields are left untouched; Steps and Items
// are merged per key rather than replaced.
type Patch struct {
	State   *State
	Percent *int
	Steps   map[string]Step
	Items   map[string]ItemResult
	BatchID *string
	Error   *string
}

// Apply merges p into j. Updates to a terminal job are ignored so late
// writers cannot resurrect a finished run, and an explicit Percent never
// lowers the progress already reported.
func (j *Job) Apply(p Patch, now time.Time) {
	if j.State.Terminal() {
		return
	}
	if p.State != nil {
		j.State = *p.State
		if pct := p.State.Percent(); pct >= 0 && p.Percent == nil {
			j.Percent = pct
		}
		if j.State.Terminal() {
			finished := now
			j.FinishedAt = &finished
		}
	}
	// Item workers report concurrently; progress only moves forward.
	if p.Percent != nil {
		if pct := clampPercent(*p.Percent); pct > j.Percent {
			j.Percent = pct
		}
	}
	if j.Steps == nil {
		j.Steps = map[string]Step{}
	}
	for name, step := range p.Steps {
		if step.UpdatedAt.IsZero() {
			step.UpdatedAt = now
		}
		j.Steps[name] = step
	}
	if j.Items == nil {
		j.Items = map[string]ItemResult{}
	}
	for id, item := range p.Items {
		j.Items[id] = item
	}
	if p.BatchID != nil {
		j.BatchID = *p.BatchID
	}
	if p.Error != nil {
		j.Error = *p.Error
	}
	j.UpdatedAt = now
}

// RequestCancel flags a non-terminal job for cancellation.
func (j *Job) RequestCancel(now time.Time) {
	if j.State.Terminal() {
		return
	}
	j.CancelRequested = true
	j.UpdatedAt = now
}

// Clone returns a deep copy safe to hand out of a store.
func (j *Job) Clone() *Job {
	c := *j
	c.Steps = make(map[string]Step, len(j.Steps))
	for k, v := range j.Steps {
		c.Steps[k] = v
	}
	c.Items = make(map[string]ItemResult, len(j.Items))
	for k, v := range j.Items {
		c.Items[k] = v
	}
	if j.FinishedAt != nil {
		f := *j.FinishedAt
		c.FinishedAt = &f
	}
	return &c
}

func clampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// StatePtr is a helper for building patches.
func StatePtr(s State) *State { return &s }

// StringPtr is a helper for building patches.
func StringPtr(s string) *string { return &s }

// IntPtr is a helper for building patches.
func IntPtr(i int) *int { return &i }
