package cogs

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Week is the cost of goods sold for one (user, week_start).
type Week struct {
	ID        uuid.UUID       `db:"id"`
	UserID    uuid.UUID       `db:"user_id"`
	WeekStart time.Time       `db:"week_start"`
	WeekEnd   time.Time       `db:"week_end"`
	Amount    decimal.Decimal `db:"amount"`
	UpdatedAt time.Time       `db:"updated_at"`
}

// WeekBounds returns the Monday 00:00 UTC starting the week of t and the following Sunday.
func WeekBounds(t time.Time) (time.Time, time.Time) {
	t = t.UTC()
	offset := (int(t.Weekday()) + 6) % 7
	start := time.Date(t.Year(), t.Month(), t.Day()-offset, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 0, 6)
}
