package competitor

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Competitor is a named business tracked by a user.
type Competitor struct {
	ID        uuid.UUID `db:"id"`
	UserID    uuid.UUID `db:"user_id"`
	Name      string    `db:"name"`
	CreatedAt time.Time `db:"created_at"`
}

// Item is one observed competitor price. Rows are never updated; a newer
// BatchID supersedes older observations of the same competitor.
type Item struct {
	ID             uuid.UUID       `db:"id"`
	CompetitorID   uuid.UUID       `db:"competitor_id"`
	CompetitorName string          `db:"competitor_name"`
	Name           string          `db:"name"`
	Category       string          `db:"category"`
	Price          decimal.Decimal `db:"price"`
	BatchID        string          `db:"batch_id"`
	ObservedAt     time.Time       `db:"observed_at"`
}
