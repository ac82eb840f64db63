package clickhouse

import (
	"context"

	"pricewise/pkg/errors"
)

// Executor runs DDL statements.
type Executor interface {
	Exec(ctx context.Context, query string, args ...interface{}) error
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS ai_usage (
		timestamp      DateTime64(3, 'UTC'),
		event_id       String,
		user_id        String,
		batch_id       String,
		domain         LowCardinality(String),
		provider       LowCardinality(String),
		model          LowCardinality(String),
		latency_ms     UInt32,
		prompt_chars   UInt32,
		response_chars UInt32,
		success        Bool,
		timed_out      Bool,
		error          String
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(timestamp)
	ORDER BY (domain, timestamp)
	TTL toDateTime(timestamp) + INTERVAL 180 DAY`,

	`CREATE TABLE IF NOT EXISTS recommendation_events (
		created_at         DateTime64(3, 'UTC'),
		recommendation_id  String,
		batch_id           String,
		user_id            String,
		item_id            String,
		item_name          String,
		strategy_type      LowCardinality(String),
		current_price      Decimal(12, 2),
		recommended_price  Decimal(12, 2),
		change_ratio       Float64,
		confidence         Float64,
		elasticity         Float64,
		elasticity_category LowCardinality(String),
		expected_revenue_change Float64,
		parser_tier        LowCardinality(String),
		raw_fallback_used  Bool
	) ENGINE = MergeTree()
	PARTITION BY toYYYYMM(created_at)
	ORDER BY (user_id, created_at)`,
}

// EnsureSchema creates the analytics tables when they are missing.
func EnsureSchema(ctx context.Context, exec Executor) error {
	for _, stmt := range schema {
		if err := exec.Exec(ctx, stmt); err != nil {
			return errors.Wrap(err, "failed to create clickhouse table")
		}
	}
	return nil
}
