package order

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Bucket aggregates orders falling in one weekday or hour slot.
type Bucket struct {
	Key     int             `db:"bucket"` // weekday 0=Sunday, or hour 0-23
	Orders  int64           `db:"orders"`
	Revenue decimal.Decimal `db:"revenue"`
}

// ItemSales is the sold volume of one catalog item over the window.
type ItemSales struct {
	ItemID   uuid.UUID       `db:"item_id"`
	Name     string          `db:"name"`
	Quantity int64           `db:"quantity"`
	Revenue  decimal.Decimal `db:"revenue"`
}

// Stats summarises a user's orders for the customer analysis agent.
type Stats struct {
	UserID          uuid.UUID
	From            time.Time
	To              time.Time
	TotalOrders     int64
	TotalRevenue    decimal.Decimal
	UniqueCustomers int64
	ByWeekday       []Bucket
	ByHour          []Bucket
	TopItems        []ItemSales
}

// AverageTicket returns revenue per order, zero when there are no orders.
func (s *Stats) AverageTicket() decimal.Decimal {
	if s == nil || s.TotalOrders == 0 {
		return decimal.Zero
	}
	return s.TotalRevenue.Div(decimal.NewFromInt(s.TotalOrders)).Round(2)
}

// Peak returns the bucket with the most orders, ok=false for empty input.
func Peak(buckets []Bucket) (Bucket, bool) {
	if len(buckets) == 0 {
		return Bucket{}, false
	}
	best := buckets[0]
	for _, b := range buckets[1:] {
		if b.Orders > best.Orders {
			best = b
		}
	}
	return best, true
}
