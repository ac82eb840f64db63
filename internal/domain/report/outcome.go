package report

import (
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of interpreting a model answer: either Structured
// or Degraded. Callers switch on the concrete type.
type Outcome interface {
	outcome()
}

// Structured holds the fields extracted from a well-formed answer.
type Structured struct {
	Summary string
	Details Details
}

// Degraded keeps the raw model text when it could not be interpreted,
// or an empty Raw when the model was never reached.
type Degraded struct {
	Raw string
	Err string
}

func (Structured) outcome() {}
func (Degraded) outcome()   {}

// New builds a report for domain from outcome.
func New(userID uuid.UUID, batchID string, domain Domain, outcome Outcome, now time.Time) *Report {
	r := &Report{
		ID:        uuid.New(),
		UserID:    userID,
		BatchID:   batchID,
		Domain:    domain,
		CreatedAt: now,
	}

	switch o := outcome.(type) {
	case Structured:
		r.Status = StatusStructured
		r.Summary = o.Summary
		r.Details = o.Details
	case Degraded:
		r.Status = StatusDegraded
		r.Summary = o.Raw
		r.Error = o.Err
		r.Details = Details{}
	}
	if r.Details == nil {
		r.Details = Details{}
	}
	return r
}
