package clickhouse

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/domain/ai_usage"
	"pricewise/internal/domain/recommendation"
	"pricewise/internal/testsupport"
)

func TestUsageLogFrom(t *testing.T) {
	ts := time.Date(2025, 6, 1, 9, 0, 0, 0, time.FixedZone("CEST", 7200))
	log := UsageLogFrom(ai.Usage{
		Provider:      "openai",
		Model:         "gpt-4o-mini",
		Domain:        "market",
		UserID:        "u-1",
		BatchID:       "b-1",
		Latency:       1500 * time.Millisecond,
		PromptChars:   1200,
		ResponseChars: -5,
		Success:       true,
		Timestamp:     ts,
	})

	assert.Equal(t, time.UTC, log.Timestamp.Location())
	assert.NotEmpty(t, log.EventID)
	assert.Equal(t, uint32(1500), log.LatencyMs)
	assert.Equal(t, uint32(1200), log.PromptChars)
	assert.Equal(t, uint32(0), log.ResponseChars)
	assert.Equal(t, "market", log.Domain)
}

func TestClampUint32(t *testing.T) {
	assert.Equal(t, uint32(0), clampUint32(-1))
	assert.Equal(t, uint32(42), clampUint32(42))
	assert.Equal(t, ^uint32(0), clampUint32(1<<40))
}

func TestEventsFromBatch(t *testing.T) {
	now := time.Now().UTC()
	rec := &recommendation.Recommendation{
		ID:                 uuid.New(),
		ItemID:             uuid.New(),
		ItemName:           "Flat White",
		UserID:             uuid.New(),
		BatchID:            "b-1",
		RecommendationDate: now,
		StrategyType:       recommendation.StrategyCompetitiveMatch,
		ConfidenceScore:    0.7,
		Metadata:           recommendation.Metadata{ParserTier: "structured", ElasticityCategory: "inelastic"},
	}
	rec.SetPrices(decimal.RequireFromString("4.25"), decimal.RequireFromString("4.65"))

	events := EventsFromBatch(&recommendation.Batch{ID: "b-1", Recommendations: []*recommendation.Recommendation{rec}})
	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, rec.ID.String(), ev.RecommendationID)
	assert.Equal(t, "competitive_match", ev.StrategyType)
	assert.InDelta(t, 0.0941, ev.ChangeRatio, 1e-4)
	assert.True(t, ev.RecommendedPrice.Equal(decimal.RequireFromString("4.65")))

	assert.Empty(t, EventsFromBatch(&recommendation.Batch{ID: "empty"}))
}

func newTestClickHouse(t *testing.T) *testsupport.ClickHouseTestHelper {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}
	h := testsupport.NewClickHouseTestHelper(t)
	require.NoError(t, EnsureSchema(context.Background(), h.Client()))
	return h
}

func TestAIUsageRepository_StatsByDomain(t *testing.T) {
	h := newTestClickHouse(t)
	ctx := context.Background()
	batchID := uuid.NewString()
	h.RegisterTableCleanup(t, "ai_usage", fmt.Sprintf("batch_id = '%s'", batchID))

	repo := NewAIUsageRepository(h.Client().Conn())
	from := time.Now().UTC().Add(-time.Minute)
	domain := "test-" + batchID[:8]

	for i, ok := range []bool{true, true, false} {
		require.NoError(t, repo.RecordUsage(ctx, ai.Usage{
			Domain:    domain,
			BatchID:   batchID,
			Latency:   time.Duration(100*(i+1)) * time.Millisecond,
			Success:   ok,
			Timestamp: time.Now(),
		}))
	}
	require.NoError(t, repo.Stop(ctx))

	stats, err := repo.StatsByDomain(ctx, from, time.Now().UTC().Add(time.Minute))
	require.NoError(t, err)

	var got *ai_usage.DomainStats
	for i := range stats {
		if stats[i].Domain == domain {
			got = &stats[i]
		}
	}
	require.NotNil(t, got)
	assert.Equal(t, uint64(3), got.Calls)
	assert.Equal(t, uint64(1), got.Failures)
	assert.InDelta(t, 200, got.AvgLatencyMs, 0.001)
	assert.InDelta(t, 1.0/3, got.FailureRate(), 1e-9)
}

func TestRecommendationAnalytics_RecordBatch(t *testing.T) {
	h := newTestClickHouse(t)
	ctx := context.Background()
	batchID := uuid.NewString()
	h.RegisterTableCleanup(t, "recommendation_events", fmt.Sprintf("batch_id = '%s'", batchID))

	now := time.Now().UTC()
	rec := &recommendation.Recommendation{
		ID:                 uuid.New(),
		ItemID:             uuid.New(),
		UserID:             uuid.New(),
		BatchID:            batchID,
		RecommendationDate: now,
		StrategyType:       recommendation.StrategyHold,
	}
	rec.SetPrices(decimal.RequireFromString("3.50"), decimal.RequireFromString("3.50"))

	sink := NewRecommendationAnalytics(h.Client().Conn())
	require.NoError(t, sink.RecordBatch(ctx, &recommendation.Batch{ID: batchID, Recommendations: []*recommendation.Recommendation{rec}}))
	require.NoError(t, sink.Stop(ctx))

	var rows []struct {
		N uint64 `ch:"n"`
	}
	require.NoError(t, h.Client().Select(ctx, &rows, `SELECT count() AS n FROM recommendation_events WHERE batch_id = ?`, batchID))
	require.Len(t, rows, 1)
	assert.Equal(t, uint64(1), rows[0].N)
}
