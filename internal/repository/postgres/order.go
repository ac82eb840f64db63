package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewise/internal/domain/order"
	"pricewise/pkg/errors"
)

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository aggregates POS orders. It never writes them.
type OrderRepository struct {
	db DBTX
}

func NewOrderRepository(db DBTX) *OrderRepository {
	return &OrderRepository{db: db}
}

const topItemsLimit = 10

// Aggregate summarises orders with ordered_at in [from, to).
func (r *OrderRepository) Aggregate(ctx context.Context, userID uuid.UUID, from, to time.Time) (*order.Stats, error) {
	stats := &order.Stats{UserID: userID, From: from, To: to}

	var totals struct {
		Orders    int64           `db:"orders"`
		Revenue   decimal.Decimal `db:"revenue"`
		Customers int64           `db:"customers"`
	}
	err := r.db.GetContext(ctx, &totals, `
		SELECT COUNT(*) AS orders,
		       COALESCE(SUM(total), 0) AS revenue,
		       COUNT(DISTINCT customer_id) AS customers
		FROM orders
		WHERE user_id = $1 AND ordered_at >= $2 AND ordered_at < $3`, userID, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate orders")
	}
	stats.TotalOrders = totals.Orders
	stats.TotalRevenue = totals.Revenue
	stats.UniqueCustomers = totals.Customers

	if stats.TotalOrders == 0 {
		return stats, nil
	}

	bucketQuery := `
		SELECT EXTRACT(%s FROM ordered_at AT TIME ZONE 'UTC')::int AS bucket,
		       COUNT(*) AS orders,
		       COALESCE(SUM(total), 0) AS revenue
		FROM orders
		WHERE user_id = $1 AND ordered_at >= $2 AND ordered_at < $3
		GROUP BY bucket
		ORDER BY bucket`
	if err := r.db.SelectContext(ctx, &stats.ByWeekday, fmt.Sprintf(bucketQuery, "DOW"), userID, from, to); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate orders by weekday")
	}
	if err := r.db.SelectContext(ctx, &stats.ByHour, fmt.Sprintf(bucketQuery, "HOUR"), userID, from, to); err != nil {
		return nil, errors.Wrap(err, "failed to aggregate orders by hour")
	}

	err = r.db.SelectContext(ctx, &stats.TopItems, `
		SELECT oi.item_id, i.name,
		       SUM(oi.quantity) AS quantity,
		       SUM(oi.quantity * oi.unit_price) AS revenue
		FROM order_items oi
		JOIN orders o ON o.id = oi.order_id
		JOIN items i ON i.id = oi.item_id
		WHERE o.user_id = $1 AND o.ordered_at >= $2 AND o.ordered_at < $3
		GROUP BY oi.item_id, i.name
		ORDER BY quantity DESC, i.name
		LIMIT $4`, userID, from, to, topItemsLimit)
	if err != nil {
		return nil, errors.Wrap(err, "failed to aggregate top items")
	}

	return stats, nil
}
