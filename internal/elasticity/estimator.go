// Package elasticity estimates price elasticity of demand from price change history.
package elasticity

import (
	"math"

	"pricewise/internal/domain/catalog"
)

// Category buckets the magnitude of elasticity.
type Category string

const (
	CategoryLow    Category = "low"    // inelastic, |e| < 0.8
	CategoryMedium Category = "medium" // 0.8 <= |e| <= 1.5
	CategoryHigh   Category = "high"   // elastic, |e| > 1.5
)

const (
	lowThreshold  = 0.8
	highThreshold = 1.5
)

// Observation is one price change: the price after the change and units
// sold in comparable windows before and after it.
type Observation struct {
	Price       float64
	UnitsBefore float64
	UnitsAfter  float64
}

type Result struct {
	Value      float64
	Category   Category
	Confidence float64
	Pairs      int
}

// Estimator is pure and safe for concurrent use.
type Estimator struct {
	baseline        float64
	confidencePairs int
}

// NewEstimator returns an estimator falling back to baseline when there is
// not enough data. Confidence reaches 1 at confidencePairs valid pairs.
func NewEstimator(baseline float64, confidencePairs int) *Estimator {
	if confidencePairs <= 0 {
		confidencePairs = 1
	}
	return &Estimator{baseline: baseline, confidencePairs: confidencePairs}
}

// Estimate averages the elasticity of each consecutive pair of observations.
// For the pair (a, b) the price moves from a.Price to b.Price and demand
// from b.UnitsBefore to b.UnitsAfter. Pairs with no price movement, no
// baseline demand or a non-finite ratio are skipped.
func (e *Estimator) Estimate(history []Observation) Result {
	if len(history) < 2 {
		return e.neutral()
	}

	var (
		sum   float64
		pairs int
	)
	for i := 1; i < len(history); i++ {
		a, b := history[i-1], history[i]
		if a.Price <= 0 || b.UnitsBefore <= 0 {
			continue
		}
		dPrice := (b.Price - a.Price) / a.Price
		if dPrice == 0 {
			continue
		}
		dUnits := (b.UnitsAfter - b.UnitsBefore) / b.UnitsBefore
		v := dUnits / dPrice
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		sum += v
		pairs++
	}

	if pairs == 0 {
		return e.neutral()
	}

	value := sum / float64(pairs)
	return Result{
		Value:      value,
		Category:   Categorize(value),
		Confidence: math.Min(1, float64(pairs)/float64(e.confidencePairs)),
		Pairs:      pairs,
	}
}

func (e *Estimator) neutral() Result {
	return Result{
		Value:      e.baseline,
		Category:   Categorize(e.baseline),
		Confidence: 0,
	}
}

// Categorize maps an elasticity value to its category by magnitude.
func Categorize(value float64) Category {
	abs := math.Abs(value)
	switch {
	case abs < lowThreshold:
		return CategoryLow
	case abs > highThreshold:
		return CategoryHigh
	default:
		return CategoryMedium
	}
}

// FromHistory converts chronological price history into observations.
// Missing sales figures become zero and the resulting pairs are skipped.
func FromHistory(history []*catalog.PriceHistory) []Observation {
	out := make([]Observation, 0, len(history))
	for _, h := range history {
		obs := Observation{Price: h.NewPrice.InexactFloat64()}
		if h.SalesBefore != nil {
			obs.UnitsBefore = float64(*h.SalesBefore)
		}
		if h.SalesAfter != nil {
			obs.UnitsAfter = float64(*h.SalesAfter)
		}
		out = append(out, obs)
	}
	return out
}
