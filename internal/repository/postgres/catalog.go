package postgres

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewise/internal/domain/catalog"
	"pricewise/pkg/errors"
)

var _ catalog.Repository = (*CatalogRepository)(nil)

// CatalogRepository reads items and owns the price history ledger.
type CatalogRepository struct {
	db  DBTX
	now func() time.Time
}

func NewCatalogRepository(db DBTX) *CatalogRepository {
	return &CatalogRepository{db: db, now: time.Now}
}

const itemColumns = `id, user_id, name, category, current_price, cost, created_at, updated_at`

func (r *CatalogRepository) GetByID(ctx context.Context, id uuid.UUID) (*catalog.Item, error) {
	var it catalog.Item
	if err := r.db.GetContext(ctx, &it, `SELECT `+itemColumns+` FROM items WHERE id = $1`, id); err != nil {
		return nil, notFound(err, "item")
	}
	return &it, nil
}

func (r *CatalogRepository) ListByUser(ctx context.Context, userID uuid.UUID) ([]*catalog.Item, error) {
	var items []*catalog.Item
	err := r.db.SelectContext(ctx, &items, `
		SELECT `+itemColumns+`
		FROM items
		WHERE user_id = $1
		ORDER BY category, name`, userID)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list items")
	}
	return items, nil
}

// PriceHistory returns the newest limit records, oldest first.
func (r *CatalogRepository) PriceHistory(ctx context.Context, itemID uuid.UUID, limit int) ([]*catalog.PriceHistory, error) {
	var history []*catalog.PriceHistory
	err := r.db.SelectContext(ctx, &history, `
		SELECT * FROM (
			SELECT id, item_id, previous_price, new_price, change_reason, effective_at, sales_before, sales_after
			FROM price_history
			WHERE item_id = $1
			ORDER BY effective_at DESC
			LIMIT $2
		) recent
		ORDER BY effective_at`, itemID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load price history")
	}
	return history, nil
}

// UpdatePrice locks the item row, records the change and sets the new
// price in one transaction, keeping the history chain contiguous.
func (r *CatalogRepository) UpdatePrice(ctx context.Context, itemID uuid.UUID, newPrice decimal.Decimal, reason string) (*catalog.PriceHistory, error) {
	if !newPrice.IsPositive() {
		return nil, errors.Wrapf(errors.ErrInvalidInput, "price %s must be positive", newPrice)
	}

	var entry *catalog.PriceHistory
	err := withTx(ctx, r.db, func(tx DBTX) error {
		var current decimal.NullDecimal
		if err := tx.GetContext(ctx, &current, `SELECT current_price FROM items WHERE id = $1 FOR UPDATE`, itemID); err != nil {
			return notFound(err, "item")
		}
		if !current.Valid {
			return errors.Wrapf(errors.ErrInvalidItemState, "item %s has no current price", itemID)
		}

		now := r.now().UTC()
		entry = &catalog.PriceHistory{
			ID:            uuid.New(),
			ItemID:        itemID,
			PreviousPrice: current.Decimal,
			NewPrice:      newPrice.Round(2),
			ChangeReason:  reason,
			EffectiveAt:   now,
		}
		if _, err := tx.NamedExecContext(ctx, `
			INSERT INTO price_history (id, item_id, previous_price, new_price, change_reason, effective_at)
			VALUES (:id, :item_id, :previous_price, :new_price, :change_reason, :effective_at)`, entry); err != nil {
			return errors.Wrap(err, "failed to insert price history")
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE items SET current_price = $2, updated_at = $3 WHERE id = $1`,
			itemID, entry.NewPrice, now); err != nil {
			return errors.Wrap(err, "failed to update item price")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Create inserts an item. Used by fixtures and the catalog sync.
func (r *CatalogRepository) Create(ctx context.Context, it *catalog.Item) error {
	_, err := r.db.NamedExecContext(ctx, `
		INSERT INTO items (`+itemColumns+`)
		VALUES (:id, :user_id, :name, :category, :current_price, :cost, :created_at, :updated_at)`, it)
	return errors.Wrap(err, "failed to create item")
}
