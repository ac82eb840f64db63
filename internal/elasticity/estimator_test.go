package elasticity

import (
	"math"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"pricewise/internal/domain/catalog"
)

func newTestEstimator() *Estimator {
	return NewEstimator(-1.0, 5)
}

func TestEstimate_NeutralDefault(t *testing.T) {
	e := newTestEstimator()

	for _, history := range [][]Observation{nil, {{Price: 4, UnitsBefore: 10, UnitsAfter: 9}}} {
		got := e.Estimate(history)
		assert.Equal(t, -1.0, got.Value)
		assert.Equal(t, CategoryMedium, got.Category)
		assert.Zero(t, got.Confidence)
		assert.Zero(t, got.Pairs)
	}
}

func TestEstimate_MeanOfPairs(t *testing.T) {
	e := newTestEstimator()

	history := []Observation{
		{Price: 10, UnitsBefore: 100, UnitsAfter: 100},
		{Price: 11, UnitsBefore: 100, UnitsAfter: 95},    // +10% price, -5% units => -0.5
		{Price: 9.9, UnitsBefore: 95, UnitsAfter: 104.5}, // -10% price, +10% units => -1.0
	}

	got := e.Estimate(history)
	assert.InDelta(t, -0.75, got.Value, 1e-9)
	assert.Equal(t, CategoryLow, got.Category)
	assert.Equal(t, 2, got.Pairs)
	assert.InDelta(t, 0.4, got.Confidence, 1e-9)
}

func TestEstimate_ZeroPriceDeltaIsSkipped(t *testing.T) {
	e := newTestEstimator()

	withDuplicate := []Observation{
		{Price: 10, UnitsBefore: 100, UnitsAfter: 100},
		{Price: 12, UnitsBefore: 100, UnitsAfter: 80},
		{Price: 12, UnitsBefore: 80, UnitsAfter: 70},
		{Price: 9, UnitsBefore: 70, UnitsAfter: 91},
	}
	without := []Observation{withDuplicate[0], withDuplicate[1], withDuplicate[3]}

	got := e.Estimate(withDuplicate)
	want := e.Estimate(without)

	assert.False(t, math.IsNaN(got.Value))
	assert.False(t, math.IsInf(got.Value, 0))
	assert.Equal(t, want, got)
	assert.Equal(t, 2, got.Pairs)
}

func TestEstimate_OnlyZeroDeltaFallsBack(t *testing.T) {
	got := newTestEstimator().Estimate([]Observation{
		{Price: 5, UnitsBefore: 10, UnitsAfter: 10},
		{Price: 5, UnitsBefore: 10, UnitsAfter: 12},
	})
	assert.Equal(t, -1.0, got.Value)
	assert.Zero(t, got.Confidence)
}

func TestEstimate_ConfidenceCapped(t *testing.T) {
	history := []Observation{{Price: 10, UnitsBefore: 100, UnitsAfter: 100}}
	price := 10.0
	for i := 0; i < 8; i++ {
		price *= 1.1
		history = append(history, Observation{Price: price, UnitsBefore: 100, UnitsAfter: 80})
	}

	got := newTestEstimator().Estimate(history)
	assert.Equal(t, 8, got.Pairs)
	assert.Equal(t, 1.0, got.Confidence)
	assert.Equal(t, CategoryHigh, got.Category)
}

func TestEstimate_Deterministic(t *testing.T) {
	history := []Observation{
		{Price: 3, UnitsBefore: 50, UnitsAfter: 50},
		{Price: 3.3, UnitsBefore: 50, UnitsAfter: 47},
		{Price: 3.6, UnitsBefore: 47, UnitsAfter: 41},
	}
	e := newTestEstimator()
	assert.Equal(t, e.Estimate(history), e.Estimate(history))
}

func TestCategorize(t *testing.T) {
	tests := []struct {
		value float64
		want  Category
	}{
		{0, CategoryLow},
		{-0.79, CategoryLow},
		{-0.8, CategoryMedium},
		{1.5, CategoryMedium},
		{-1.51, CategoryHigh},
		{2.4, CategoryHigh},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Categorize(tt.value), "value %v", tt.value)
	}
}

func TestFromHistory(t *testing.T) {
	before, after := int64(120), int64(90)
	history := []*catalog.PriceHistory{
		{PreviousPrice: decimal.RequireFromString("4.00"), NewPrice: decimal.RequireFromString("4.25"), EffectiveAt: time.Now()},
		{PreviousPrice: decimal.RequireFromString("4.25"), NewPrice: decimal.RequireFromString("4.50"), SalesBefore: &before, SalesAfter: &after},
	}

	obs := FromHistory(history)
	assert.Equal(t, []Observation{
		{Price: 4.25},
		{Price: 4.5, UnitsBefore: 120, UnitsAfter: 90},
	}, obs)
}
