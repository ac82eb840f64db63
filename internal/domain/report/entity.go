package report

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"pricewise/pkg/errors"
)

// Domain names the analysis area a report covers.
type Domain string

const (
	DomainMarket     Domain = "market"
	DomainCompetitor Domain = "competitor"
	DomainCustomer   Domain = "customer"
	DomainPricing    Domain = "pricing"
)

func (d Domain) String() string { return string(d) }

type Status string

const (
	StatusStructured Status = "structured"
	StatusDegraded   Status = "degraded"
)

// Details is a JSONB object with domain specific fields.
type Details map[string]interface{}

func (d Details) Value() (driver.Value, error) {
	if d == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d)
}

func (d *Details) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*d = Details{}
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Newf("unsupported details type %T", src)
	}
	return json.Unmarshal(raw, d)
}

// Report is the append-only output of one analysis agent for one batch.
// The latest report of a domain is the one with the greatest CreatedAt.
type Report struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	BatchID   string    `db:"batch_id"`
	Domain    Domain    `db:"domain"`
	Summary   string    `db:"summary"`
	Details   Details   `db:"details"`
	Status    Status    `db:"status"`
	Error     string    `db:"error"`
	CreatedAt time.Time `db:"created_at"`
}

func (r *Report) Degraded() bool {
	return r.Status == StatusDegraded
}
