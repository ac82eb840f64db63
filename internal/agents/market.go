package agents

import (
	"context"
	"time"

	"github.com/markcheno/go-talib"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/domain/report"
)

const marketSMAPeriod = 4

// MarketAnalyst reads the weekly COGS trend.
type MarketAnalyst struct {
	analysis
}

func NewMarketAnalyst(completer ai.Completer) *MarketAnalyst {
	return &MarketAnalyst{analysis: newAnalysis(completer, report.DomainMarket, "market and cost analyst", "prompts/market_analysis")}
}

type weekPoint struct {
	WeekStart time.Time
	Amount    float64
}

type marketPrompt struct {
	Weeks         []weekPoint
	WeekCount     int
	HasTrend      bool
	Average       float64
	RecentAverage float64
	SMAPeriod     int
	SlopePerWeek  float64
	Change        float64
	ItemCount     int64
	Categories    []string
}

// CostTrend summarises weekly COGS amounts, oldest first.
type CostTrend struct {
	Weeks         int
	Average       float64
	RecentAverage float64
	SMAPeriod     int
	SlopePerWeek  float64
	Change        float64
}

// ComputeCostTrend needs at least two weeks; ok is false otherwise.
func ComputeCostTrend(amounts []float64) (CostTrend, bool) {
	if len(amounts) < 2 {
		return CostTrend{Weeks: len(amounts)}, false
	}

	period := marketSMAPeriod
	if len(amounts) < period {
		period = len(amounts)
	}
	sma := talib.Sma(amounts, period)
	slope := talib.LinearRegSlope(amounts, len(amounts))

	t := CostTrend{
		Weeks:         len(amounts),
		Average:       mean(amounts),
		RecentAverage: sma[len(sma)-1],
		SMAPeriod:     period,
		SlopePerWeek:  slope[len(slope)-1],
	}
	if first := amounts[0]; first > 0 {
		t.Change = (amounts[len(amounts)-1] - first) / first
	}
	return t, true
}

func (m *MarketAnalyst) Analyze(ctx context.Context, uc *UserContext) (*report.Report, error) {
	data := marketPrompt{
		ItemCount:  int64(len(uc.Items)),
		Categories: uc.Categories(),
	}
	amounts := make([]float64, 0, len(uc.COGS))
	for _, w := range uc.COGS {
		amount := w.Amount.InexactFloat64()
		amounts = append(amounts, amount)
		data.Weeks = append(data.Weeks, weekPoint{WeekStart: w.WeekStart, Amount: amount})
	}
	data.WeekCount = len(amounts)

	indicators := report.Details{"weeks_observed": len(amounts)}
	if trend, ok := ComputeCostTrend(amounts); ok {
		data.HasTrend = true
		data.Average = trend.Average
		data.RecentAverage = trend.RecentAverage
		data.SMAPeriod = trend.SMAPeriod
		data.SlopePerWeek = trend.SlopePerWeek
		data.Change = trend.Change

		indicators["cogs_average"] = round4(trend.Average)
		indicators["cogs_recent_average"] = round4(trend.RecentAverage)
		indicators["cogs_slope_per_week"] = round4(trend.SlopePerWeek)
		indicators["cogs_change"] = round4(trend.Change)
	}

	return m.run(ctx, uc, data, indicators)
}
