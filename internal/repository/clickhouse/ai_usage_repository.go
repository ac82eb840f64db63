package clickhouse

import (
	"context"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"
	"github.com/google/uuid"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/domain/ai_usage"
	"pricewise/pkg/clickhouse"
	"pricewise/pkg/errors"
)

var (
	_ ai_usage.Repository = (*AIUsageRepository)(nil)
	_ ai.UsageRecorder    = (*AIUsageRepository)(nil)
)

// AIUsageRepository buffers completion usage rows and inserts them in batches.
type AIUsageRepository struct {
	conn   driver.Conn
	writer *clickhouse.BatchWriter[*ai_usage.UsageLog]
}

func NewAIUsageRepository(conn driver.Conn) *AIUsageRepository {
	r := &AIUsageRepository{conn: conn}
	r.writer = clickhouse.NewBatchWriter(clickhouse.BatchWriterConfig[*ai_usage.UsageLog]{
		FlushFunc:    r.flush,
		Table:        "ai_usage",
		MaxBatchSize: 500,
		MaxAge:       5 * time.Second,
	})
	return r
}

func (r *AIUsageRepository) Start(ctx context.Context) {
	r.writer.Start(ctx)
}

func (r *AIUsageRepository) Stop(ctx context.Context) error {
	return r.writer.Stop(ctx)
}

func (r *AIUsageRepository) Store(ctx context.Context, log *ai_usage.UsageLog) error {
	return r.writer.Add(ctx, log)
}

// RecordUsage adapts a completer call to a usage row.
func (r *AIUsageRepository) RecordUsage(ctx context.Context, u ai.Usage) error {
	return r.Store(ctx, UsageLogFrom(u))
}

// UsageLogFrom converts a completion call into its warehouse row.
func UsageLogFrom(u ai.Usage) *ai_usage.UsageLog {
	return &ai_usage.UsageLog{
		Timestamp:     u.Timestamp.UTC(),
		EventID:       uuid.NewString(),
		UserID:        u.UserID,
		BatchID:       u.BatchID,
		Domain:        u.Domain,
		Provider:      u.Provider,
		Model:         u.Model,
		LatencyMs:     clampUint32(u.Latency.Milliseconds()),
		PromptChars:   clampUint32(int64(u.PromptChars)),
		ResponseChars: clampUint32(int64(u.ResponseChars)),
		Success:       u.Success,
		TimedOut:      u.TimedOut,
		Error:         u.Error,
	}
}

func (r *AIUsageRepository) flush(ctx context.Context, rows []*ai_usage.UsageLog) error {
	stmt, err := r.conn.PrepareBatch(ctx, `INSERT INTO ai_usage`)
	if err != nil {
		return errors.Wrap(err, "failed to prepare ai_usage batch")
	}
	defer stmt.Close()

	for _, row := range rows {
		if err := stmt.AppendStruct(row); err != nil {
			return errors.Wrap(err, "failed to append ai_usage row")
		}
	}
	return errors.Wrap(stmt.Send(), "failed to send ai_usage batch")
}

func (r *AIUsageRepository) StatsByDomain(ctx context.Context, from, to time.Time) ([]ai_usage.DomainStats, error) {
	var out []ai_usage.DomainStats
	err := r.conn.Select(ctx, &out, `
		SELECT domain,
		       count() AS calls,
		       countIf(NOT success) AS failures,
		       avg(latency_ms) AS avg_latency_ms
		FROM ai_usage
		WHERE timestamp >= ? AND timestamp < ?
		GROUP BY domain
		ORDER BY domain`, from, to)
	if err != nil {
		return nil, errors.Wrap(err, "failed to query usage by domain")
	}
	return out, nil
}

func clampUint32(v int64) uint32 {
	switch {
	case v < 0:
		return 0
	case v > int64(^uint32(0)):
		return ^uint32(0)
	default:
		return uint32(v)
	}
}
