package agents

import (
	"context"
	"fmt"
	"sort"
	"time"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/domain/order"
	"pricewise/internal/domain/report"
)

// CustomerAnalyst reads order aggregates for demand and seasonality.
type CustomerAnalyst struct {
	analysis
}

func NewCustomerAnalyst(completer ai.Completer) *CustomerAnalyst {
	return &CustomerAnalyst{analysis: newAnalysis(completer, report.DomainCustomer, "customer demand analyst", "prompts/customer_analysis")}
}

type bucketLine struct {
	Label   string
	Orders  int64
	Revenue float64
}

type itemLine struct {
	Name     string
	Quantity int64
	Revenue  float64
}

type customerPrompt struct {
	From            time.Time
	To              time.Time
	TotalOrders     int64
	TotalRevenue    float64
	AverageTicket   float64
	UniqueCustomers int64
	PeakWeekday     string
	PeakHour        string
	Weekdays        []bucketLine
	TopItems        []itemLine
}

func (c *CustomerAnalyst) Analyze(ctx context.Context, uc *UserContext) (*report.Report, error) {
	stats := uc.Orders
	if stats == nil {
		stats = &order.Stats{UserID: uc.UserID, To: uc.CollectedAt, From: uc.CollectedAt}
	}

	data := customerPrompt{
		From:            stats.From,
		To:              stats.To,
		TotalOrders:     stats.TotalOrders,
		TotalRevenue:    stats.TotalRevenue.InexactFloat64(),
		AverageTicket:   stats.AverageTicket().InexactFloat64(),
		UniqueCustomers: stats.UniqueCustomers,
	}

	weekdays := append([]order.Bucket(nil), stats.ByWeekday...)
	sort.Slice(weekdays, func(i, j int) bool { return weekdays[i].Key < weekdays[j].Key })
	for _, b := range weekdays {
		data.Weekdays = append(data.Weekdays, bucketLine{
			Label:   weekdayLabel(b.Key),
			Orders:  b.Orders,
			Revenue: b.Revenue.InexactFloat64(),
		})
	}
	for _, it := range stats.TopItems {
		data.TopItems = append(data.TopItems, itemLine{Name: it.Name, Quantity: it.Quantity, Revenue: it.Revenue.InexactFloat64()})
	}

	indicators := report.Details{
		"total_orders":     stats.TotalOrders,
		"unique_customers": stats.UniqueCustomers,
		"average_ticket":   round4(data.AverageTicket),
	}
	if peak, ok := order.Peak(stats.ByWeekday); ok && peak.Orders > 0 {
		data.PeakWeekday = weekdayLabel(peak.Key)
		indicators["peak_weekday"] = data.PeakWeekday
	}
	if peak, ok := order.Peak(stats.ByHour); ok && peak.Orders > 0 {
		data.PeakHour = fmt.Sprintf("%02d:00", peak.Key)
		indicators["peak_hour"] = data.PeakHour
	}

	return c.run(ctx, uc, data, indicators)
}

func weekdayLabel(key int) string {
	if key < 0 || key > 6 {
		return fmt.Sprintf("day %d", key)
	}
	return time.Weekday(key).String()
}
