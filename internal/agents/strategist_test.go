package agents

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/adapters/config"
	"pricewise/internal/domain/catalog"
	"pricewise/internal/domain/recommendation"
	"pricewise/internal/elasticity"
	"pricewise/pkg/errors"
)

var testNow = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func failingCompleter() ai.Completer {
	return ai.CompleterFunc(func(context.Context, string, string) (string, error) {
		return "", errors.Wrap(errors.ErrCompletionFailed, "connection refused")
	})
}

func fixedCompleter(answer string, seen *string) ai.Completer {
	return ai.CompleterFunc(func(_ context.Context, prompt, _ string) (string, error) {
		if seen != nil {
			*seen = prompt
		}
		return answer, nil
	})
}

func newTestStrategist(c ai.Completer) *Strategist {
	return NewStrategist(c, config.DefaultPricing()).WithClock(func() time.Time { return testNow })
}

func testItem(price, cost string) *catalog.Item {
	it := &catalog.Item{
		ID:       uuid.New(),
		UserID:   uuid.New(),
		Name:     "Flat White",
		Category: "coffee",
	}
	if price != "" {
		it.CurrentPrice = decimal.NewNullDecimal(decimal.RequireFromString(price))
	}
	if cost != "" {
		it.Cost = decimal.NewNullDecimal(decimal.RequireFromString(cost))
	}
	return it
}

func prices(values ...string) []decimal.Decimal {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		out[i] = decimal.RequireFromString(v)
	}
	return out
}

func lowElasticity() elasticity.Result {
	return elasticity.Result{Value: -0.4, Category: elasticity.CategoryLow, Confidence: 0.6, Pairs: 3}
}

func TestRecommendBelowCompetitorsWithLowElasticity(t *testing.T) {
	s := newTestStrategist(fixedCompleter("```json\n{\"rationale\": \"Room to move up.\", \"reevaluation_date\": \"2025-07-03\", \"confidence\": 0.8}\n```", nil))

	rec, err := s.Recommend(context.Background(), Input{
		BatchID:          "batch-1",
		Item:             testItem("4.25", "1.60"),
		Elasticity:       lowElasticity(),
		CompetitorPrices: prices("4.50", "4.75"),
	})
	require.NoError(t, err)

	assert.True(t, rec.RecommendedPrice.GreaterThan(decimal.RequireFromString("4.25")))
	pct := rec.PriceChangePercent.InexactFloat64()
	assert.Greater(t, pct, 0.0)
	assert.LessOrEqual(t, pct, 0.20)
	assert.Equal(t, "4.65", rec.RecommendedPrice.StringFixed(2))
	assert.Equal(t, recommendation.StrategyElasticityIncrease, rec.StrategyType)

	assert.Equal(t, "Room to move up.", rec.Rationale)
	assert.Equal(t, time.Date(2025, 7, 3, 0, 0, 0, 0, time.UTC), rec.ReevaluationDate)
	assert.InDelta(t, 0.8, rec.ConfidenceScore, 1e-9)
	assert.Equal(t, "structured", rec.Metadata.ParserTier)
	assert.False(t, rec.Metadata.RawFallbackUsed)
	require.NotNil(t, rec.Metadata.CompetitorMedian)
	assert.InDelta(t, 4.625, *rec.Metadata.CompetitorMedian, 1e-9)
	assert.Equal(t, "batch-1", rec.BatchID)
	assert.Equal(t, recommendation.StatusPending, rec.ImplementationStatus)
}

func TestRecommendArithmeticInvariant(t *testing.T) {
	s := newTestStrategist(failingCompleter())

	cases := []struct {
		price, cost string
		comps       []string
		e           elasticity.Result
		goals       []Goal
	}{
		{"4.25", "1.60", []string{"4.50", "4.75"}, lowElasticity(), nil},
		{"12.99", "4.00", []string{"9.50"}, elasticity.Result{Value: -2.1, Category: elasticity.CategoryHigh}, []Goal{GoalGrowVolume}},
		{"3.33", "3.40", nil, elasticity.Result{Value: -1, Category: elasticity.CategoryMedium}, nil},
		{"0.99", "0.10", []string{"5.00"}, lowElasticity(), []Goal{GoalMatchCompetitors, GoalMaximizeMargin}},
		{"7.10", "2.00", []string{"7.05", "7.20", "7.15"}, elasticity.Result{Value: -1.1, Category: elasticity.CategoryMedium}, nil},
	}

	for _, tc := range cases {
		rec, err := s.Recommend(context.Background(), Input{
			Item:             testItem(tc.price, tc.cost),
			Elasticity:       tc.e,
			CompetitorPrices: prices(tc.comps...),
			Goals:            tc.goals,
		})
		require.NoError(t, err, tc.price)

		amount := rec.RecommendedPrice.Sub(rec.CurrentPrice)
		assert.True(t, rec.PriceChangeAmount.Equal(amount), tc.price)
		want := amount.InexactFloat64() / rec.CurrentPrice.InexactFloat64()
		assert.InDelta(t, want, rec.PriceChangePercent.InexactFloat64(), 1e-6, tc.price)
		assert.LessOrEqual(t, rec.PriceChangePercent.Abs().InexactFloat64(), 0.20+1e-9, tc.price)
		assert.True(t, rec.ReevaluationDate.After(rec.RecommendationDate), tc.price)
		assert.NoError(t, rec.Validate())
	}
}

func TestRecommendFallsBackWhenCompletionFails(t *testing.T) {
	s := newTestStrategist(failingCompleter())

	rec, err := s.Recommend(context.Background(), Input{
		Item:             testItem("4.25", "1.60"),
		Elasticity:       lowElasticity(),
		CompetitorPrices: prices("4.50", "4.75"),
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(rec.Rationale, FallbackRationale))
	assert.Equal(t, testNow.Add(90*24*time.Hour), rec.ReevaluationDate)
	assert.InDelta(t, 0.5, rec.ConfidenceScore, 1e-9)
	assert.True(t, rec.Metadata.RawFallbackUsed)
	assert.Equal(t, "default", rec.Metadata.ParserTier)
	assert.Contains(t, rec.Metadata.CompletionError, "connection refused")
	assert.Equal(t, "4.65", rec.RecommendedPrice.StringFixed(2))
}

func TestRecommendUsesRegexDateAndConfidenceFloor(t *testing.T) {
	s := newTestStrategist(fixedCompleter("Keep it steady and look again on 2025-08-10.", nil))

	rec, err := s.Recommend(context.Background(), Input{
		Item:       testItem("5.00", "2.00"),
		Elasticity: elasticity.Result{Value: -1, Category: elasticity.CategoryMedium},
	})
	require.NoError(t, err)

	assert.Equal(t, time.Date(2025, 8, 10, 0, 0, 0, 0, time.UTC), rec.ReevaluationDate)
	assert.Equal(t, "regex_date", rec.Metadata.ParserTier)
	assert.InDelta(t, 0.5, rec.ConfidenceScore, 1e-9)
	assert.Equal(t, recommendation.StrategyHold, rec.StrategyType)
	assert.True(t, rec.PriceChangeAmount.IsZero())
}

func TestRecommendPromptCarriesContext(t *testing.T) {
	var prompt string
	s := newTestStrategist(fixedCompleter(`{"rationale": "ok", "reevaluation_date": "2025-09-01"}`, &prompt))

	_, err := s.Recommend(context.Background(), Input{
		Item:             testItem("4.25", "1.60"),
		Elasticity:       lowElasticity(),
		CompetitorPrices: prices("4.50", "4.75"),
		Goals:            []Goal{GoalMaximizeMargin},
		History: []*catalog.PriceHistory{{
			PreviousPrice: decimal.RequireFromString("3.95"),
			NewPrice:      decimal.RequireFromString("4.25"),
			ChangeReason:  "supplier increase",
			EffectiveAt:   testNow.AddDate(0, -2, 0),
		}},
	})
	require.NoError(t, err)

	assert.Contains(t, prompt, "Flat White (coffee)")
	assert.Contains(t, prompt, "current price: $4.25")
	assert.Contains(t, prompt, "2 comparable prices")
	assert.Contains(t, prompt, "maximize_margin")
	assert.Contains(t, prompt, "$3.95 -> $4.25 (supplier increase)")
	assert.Contains(t, prompt, "Today is 2025-06-01")
}

func TestRecommendRejectsUnpriceableItems(t *testing.T) {
	s := newTestStrategist(failingCompleter())

	for _, it := range []*catalog.Item{nil, testItem("", "1.00"), testItem("4.00", ""), testItem("0", "1.00")} {
		_, err := s.Recommend(context.Background(), Input{Item: it})
		assert.True(t, errors.Is(err, errors.ErrInvalidItemState))
	}
}

func TestRecommendStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := newTestStrategist(ai.CompleterFunc(func(ctx context.Context, _, _ string) (string, error) {
		return "", ctx.Err()
	}))
	_, err := s.Recommend(ctx, Input{Item: testItem("4.25", "1.60"), Elasticity: lowElasticity()})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDecide(t *testing.T) {
	s := newTestStrategist(failingCompleter())

	tests := []struct {
		name     string
		in       Input
		price    string
		strategy recommendation.StrategyType
		floored  bool
	}{
		{
			name:     "clamped to the upper bound",
			in:       Input{Item: testItem("10.00", "3.00"), Elasticity: lowElasticity(), CompetitorPrices: prices("20.00"), Goals: []Goal{GoalMatchCompetitors}},
			price:    "12.00",
			strategy: recommendation.StrategyCompetitiveMatch,
		},
		{
			name:     "high elasticity discounts",
			in:       Input{Item: testItem("10.00", "3.00"), Elasticity: elasticity.Result{Value: -2, Category: elasticity.CategoryHigh}},
			price:    "9.70",
			strategy: recommendation.StrategyVolumeDiscount,
		},
		{
			name:     "never below cost",
			in:       Input{Item: testItem("10.00", "9.90"), Elasticity: elasticity.Result{Value: -2, Category: elasticity.CategoryHigh}},
			price:    "9.90",
			strategy: recommendation.StrategyVolumeDiscount,
			floored:  true,
		},
		{
			name:     "neutral inputs hold",
			in:       Input{Item: testItem("10.00", "3.00"), Elasticity: elasticity.Result{Value: -1, Category: elasticity.CategoryMedium}},
			price:    "10.00",
			strategy: recommendation.StrategyHold,
		},
		{
			name:     "competitors cheaper",
			in:       Input{Item: testItem("10.00", "3.00"), Elasticity: elasticity.Result{Value: -1, Category: elasticity.CategoryMedium}, CompetitorPrices: prices("8.00", "9.00")},
			price:    "9.25",
			strategy: recommendation.StrategyCompetitiveMatch,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := s.Decide(tt.in)
			assert.Equal(t, tt.price, d.Price.StringFixed(2))
			assert.Equal(t, tt.strategy, d.Strategy)
			assert.Equal(t, tt.floored, d.FlooredAtCost)
		})
	}
}

func TestForecastChange(t *testing.T) {
	f := ForecastChange(10, 11, 6, -1.2)
	assert.InDelta(t, -0.12, f.QuantityChange, 1e-9)
	assert.InDelta(t, -0.032, f.RevenueChange, 1e-9)
	assert.InDelta(t, 0.1, f.MarginChange, 1e-9)

	assert.Equal(t, Forecast{}, ForecastChange(0, 1, 0, -1))
}

func TestParseGoals(t *testing.T) {
	goals := ParseGoals([]string{"grow_volume", " Maximize_Margin ", "unknown", "grow_volume"})
	assert.Equal(t, []Goal{GoalGrowVolume, GoalMaximizeMargin}, goals)
}
