package agents

import (
	"context"
	"math"
	"sort"
	"strings"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/domain/report"
)

// CompetitorAnalyst compares own category prices with the latest competitor snapshots.
type CompetitorAnalyst struct {
	analysis
}

func NewCompetitorAnalyst(completer ai.Completer) *CompetitorAnalyst {
	return &CompetitorAnalyst{analysis: newAnalysis(completer, report.DomainCompetitor, "competitive pricing analyst", "prompts/competitor_analysis")}
}

type categoryPrice struct {
	Category string
	Median   float64
	Count    int
}

type competitorSummary struct {
	Name   string
	Count  int
	Median float64
	Min    float64
	Max    float64
}

type categoryGap struct {
	Category string
	Gap      float64
}

type competitorPrompt struct {
	Own         []categoryPrice
	Competitors []competitorSummary
	Gaps        []categoryGap
}

func (c *CompetitorAnalyst) Analyze(ctx context.Context, uc *UserContext) (*report.Report, error) {
	own := map[string][]float64{}
	for _, it := range uc.Items {
		if !it.CurrentPrice.Valid || !it.CurrentPrice.Decimal.IsPositive() {
			continue
		}
		key := categoryKey(it.Category)
		own[key] = append(own[key], it.CurrentPrice.Decimal.InexactFloat64())
	}

	byCompetitor := map[string][]float64{}
	byCategory := map[string][]float64{}
	for _, it := range uc.Competitors {
		p := it.Price.InexactFloat64()
		byCompetitor[it.CompetitorName] = append(byCompetitor[it.CompetitorName], p)
		byCategory[categoryKey(it.Category)] = append(byCategory[categoryKey(it.Category)], p)
	}

	var data competitorPrompt
	ownMedians := map[string]float64{}
	for _, cat := range sortedKeys(own) {
		m, ok := median(own[cat])
		if !ok {
			continue
		}
		ownMedians[cat] = m
		data.Own = append(data.Own, categoryPrice{Category: cat, Median: m, Count: len(own[cat])})
	}

	for _, name := range sortedKeys(byCompetitor) {
		prices := byCompetitor[name]
		m, ok := median(prices)
		if !ok {
			continue
		}
		lo, hi := math.Inf(1), math.Inf(-1)
		for _, p := range prices {
			lo = math.Min(lo, p)
			hi = math.Max(hi, p)
		}
		data.Competitors = append(data.Competitors, competitorSummary{Name: name, Count: len(prices), Median: m, Min: lo, Max: hi})
	}

	gaps := report.Details{}
	for _, cat := range sortedKeys(byCategory) {
		ownMedian, ok := ownMedians[cat]
		if !ok || cat == "" {
			continue
		}
		theirs, ok := median(byCategory[cat])
		if !ok {
			continue
		}
		gap := (theirs - ownMedian) / ownMedian
		data.Gaps = append(data.Gaps, categoryGap{Category: cat, Gap: gap})
		gaps[cat] = round4(gap)
	}

	indicators := report.Details{
		"competitors":         len(data.Competitors),
		"competitor_items":    len(uc.Competitors),
		"category_price_gaps": gaps,
	}
	return c.run(ctx, uc, data, indicators)
}

func categoryKey(category string) string {
	return strings.ToLower(strings.TrimSpace(category))
}

func sortedKeys(m map[string][]float64) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
