package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/shopspring/decimal"

	"pricewise/internal/domain/recommendation"
	"pricewise/pkg/clickhouse"
	"pricewise/pkg/errors"
)

// RecommendationEvent is the analytics projection of one recommendation.
type RecommendationEvent struct {
	CreatedAt             time.Time       `ch:"created_at"`
	RecommendationID      string          `ch:"recommendation_id"`
	BatchID               string          `ch:"batch_id"`
	UserID                string          `ch:"user_id"`
	ItemID                string          `ch:"item_id"`
	ItemName              string          `ch:"item_name"`
	StrategyType          string          `ch:"strategy_type"`
	CurrentPrice          decimal.Decimal `ch:"current_price"`
	RecommendedPrice      decimal.Decimal `ch:"recommended_price"`
	ChangeRatio           float64         `ch:"change_ratio"`
	Confidence            float64         `ch:"confidence"`
	Elasticity            float64         `ch:"elasticity"`
	ElasticityCategory    string          `ch:"elasticity_category"`
	ExpectedRevenueChange float64         `ch:"expected_revenue_change"`
	ParserTier            string          `ch:"parser_tier"`
	RawFallbackUsed       bool            `ch:"raw_fallback_used"`
}

// RecommendationAnalytics mirrors persisted batches into ClickHouse.
type RecommendationAnalytics struct {
	conn   driver.Conn
	writer *clickhouse.BatchWriter[*RecommendationEvent]
}

func NewRecommendationAnalytics(conn driver.Conn) *RecommendationAnalytics {
	a := &RecommendationAnalytics{conn: conn}
	a.writer = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[*RecommendationEvent]{
		FlushFunc:    a.flush,
		Table:        "recommendation_events",
		MaxBatchSize: 1000,
		MaxAge:       10 * time.Second,
	})
	return a
}

func (a *RecommendationAnalytics) Start(ctx context.Context) {
	a.writer.Start(ctx)
}

func (a *RecommendationAnalytics) Stop(ctx context.Context) error {
	return a.writer.Stop(ctx)
}

// RecordBatch buffers one row per recommendation of batch.
func (a *RecommendationAnalytics) RecordBatch(ctx context.Context, batch *recommendation.Batch) error {
	events := EventsFromBatch(batch)
	if len(events) == 0 {
		return nil
	}
	return a.writer.Add(ctx, events...)
}

func EventsFromBatch(batch *recommendation.Batch) []*RecommendationEvent {
	out := make([]*RecommendationEvent, 0, len(batch.Recommendations))
	for _, rec := range batch.Recommendations {
		out = append(out, &RecommendationEvent{
			CreatedAt:             rec.RecommendationDate.UTC(),
			RecommendationID:      rec.ID.String(),
			BatchID:               rec.BatchID,
			UserID:                rec.UserID.String(),
			ItemID:                rec.ItemID.String(),
			ItemName:              rec.ItemName,
			StrategyType:          string(rec.StrategyType),
			CurrentPrice:          rec.CurrentPrice,
			RecommendedPrice:      rec.RecommendedPrice,
			ChangeRatio:           rec.PriceChangePercent.InexactFloat64(),
			Confidence:            rec.ConfidenceScore,
			Elasticity:            rec.Metadata.Elasticity,
			ElasticityCategory:    rec.Metadata.ElasticityCategory,
			ExpectedRevenueChange: rec.ExpectedRevenueChange,
			ParserTier:            rec.Metadata.ParserTier,
			RawFallbackUsed:       rec.Metadata.RawFallbackUsed,
		})
	}
	return out
}

func (a *RecommendationAnalytics) flush(ctx context.Context, rows []*RecommendationEvent) error {
	stmt, err := a.conn.PrepareBatch(ctx, `INSERT INTO recommendation_events`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare recommendation_events batch")
	}
	defer stmt.Close()

	for _, row := range rows {
		if err := stmt.AppendStruct(row); err != nil {
			return errors.Wrap(err, "failed to append recommendation event")
		}
	}
	return errors.Wrap(stmt.Send(), "failed to send recommendation_events batch")
}
