package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Item is a sellable menu or catalog entry. Price and cost are nullable
// because catalog syncs can import items before either is known.
type Item struct {
	ID           uuid.UUID           `db:"id"`
	UserID       uuid.UUID           `db:"user_id"`
	Name         string              `db:"name"`
	Category     string              `db:"category"`
	CurrentPrice decimal.NullDecimal `db:"current_price"`
	Cost         decimal.NullDecimal `db:"cost"`
	CreatedAt    time.Time           `db:"created_at"`
	UpdatedAt    time.Time           `db:"updated_at"`
}

// Priceable reports whether the item has the data the pricing rule needs.
func (i *Item) Priceable() bool {
	return i.CurrentPrice.Valid && i.CurrentPrice.Decimal.IsPositive() && i.Cost.Valid
}

// PriceHistory is an immutable record of one price change. For a given item,
// NewPrice of a record equals PreviousPrice of the next one.
type PriceHistory struct {
	ID            uuid.UUID       `db:"id"`
	ItemID        uuid.UUID       `db:"item_id"`
	PreviousPrice decimal.Decimal `db:"previous_price"`
	NewPrice      decimal.Decimal `db:"new_price"`
	ChangeReason  string          `db:"change_reason"`
	EffectiveAt   time.Time       `db:"effective_at"`
	SalesBefore   *int64          `db:"sales_before"`
	SalesAfter    *int64          `db:"sales_after"`
}
