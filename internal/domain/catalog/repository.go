package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Repository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Item, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*Item, error)

	// PriceHistory returns the most recent limit records in chronological order.
	PriceHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]*PriceHistory, error)

	// UpdatePrice sets the current price and appends a PriceHistory record
	// in one transaction.
	UpdatePrice(ctx context.Context, itemID uuid.UUID, newPrice decimal.Decimal, reason string) (*PriceHistory, error)
}
