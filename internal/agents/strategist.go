package agents

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewise/internal/adapters/ai"
	"pricewise/internal/adapters/config"
	"pricewise/internal/agents/parser"
	"pricewise/internal/domain/catalog"
	"pricewise/internal/domain/recommendation"
	"pricewise/internal/domain/report"
	"pricewise/internal/elasticity"
	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
	"pricewise/pkg/templates"
)

// FallbackRationale opens the rationale of recommendations made without the model.
const FallbackRationale = "unable to reach analysis service; recommendation based on elasticity/competitor data only"

// Elasticity bias of the deterministic rule, as a price ratio.
const (
	lowElasticityBias  = 0.05
	highElasticityBias = -0.03
	marginGoalBias     = 0.02
	volumeGoalBias     = -0.03
	holdThreshold      = 0.005
	maxContextSummary  = 400
	maxHistoryInPrompt = 8
)

// Input is everything the strategist needs for one item.
type Input struct {
	BatchID          string
	Item             *catalog.Item
	Elasticity       elasticity.Result
	CompetitorPrices []decimal.Decimal
	History          []*catalog.PriceHistory
	Goals            []Goal
	Reports          []*report.Report
}

// Decision is the outcome of the deterministic pricing rule.
type Decision struct {
	Price            decimal.Decimal
	Change           float64 // realised ratio after clamping and rounding
	Strategy         recommendation.StrategyType
	ElasticityTerm   float64
	CompetitorTerm   float64
	GoalTerm         float64
	CompetitorMedian *float64
	FlooredAtCost    bool
}

// Strategist turns one item plus its analysis context into a recommendation.
// The price is always computed locally; the model only contributes the
// rationale, reevaluation date and confidence.
type Strategist struct {
	completer ai.Completer
	parser    *parser.Parser
	cfg       config.PricingConfig
	now       func() time.Time
	log       *logger.Logger
}

func NewStrategist(completer ai.Completer, cfg config.PricingConfig) *Strategist {
	return &Strategist{
		completer: completer,
		parser:    parser.New(cfg.DefaultReevaluation()),
		cfg:       cfg,
		now:       time.Now,
		log:       logger.Get().With("component", "strategist"),
	}
}

// WithClock overrides the time source of the strategist and its parser.
func (s *Strategist) WithClock(now func() time.Time) *Strategist {
	s.now = now
	s.parser.WithClock(now)
	return s
}

// Decide applies the bounded adjustment rule. in.Item must be priceable.
func (s *Strategist) Decide(in Input) Decision {
	current := in.Item.CurrentPrice.Decimal
	cur := current.InexactFloat64()

	var d Decision
	switch in.Elasticity.Category {
	case elasticity.CategoryLow:
		d.ElasticityTerm = lowElasticityBias
	case elasticity.CategoryHigh:
		d.ElasticityTerm = highElasticityBias
	}

	weight := s.cfg.CompetitorWeight
	if hasGoal(in.Goals, GoalMatchCompetitors) {
		weight = 1
	}
	if m, ok := median(floats(in.CompetitorPrices)); ok {
		d.CompetitorMedian = &m
		d.CompetitorTerm = weight * (m - cur) / cur
	}

	if hasGoal(in.Goals, GoalMaximizeMargin) {
		d.GoalTerm += marginGoalBias
	}
	if hasGoal(in.Goals, GoalGrowVolume) {
		d.GoalTerm += volumeGoalBias
	}

	limit := s.cfg.MaxAdjustmentPercent / 100
	adj := math.Max(-limit, math.Min(limit, d.ElasticityTerm+d.CompetitorTerm+d.GoalTerm))

	lower := current.Mul(decimal.NewFromFloat(1 - limit)).RoundCeil(2)
	upper := current.Mul(decimal.NewFromFloat(1 + limit)).RoundFloor(2)
	price := current.Mul(decimal.NewFromFloat(1 + adj)).Round(2)
	price = decimal.Max(lower, decimal.Min(upper, price))

	if cost := in.Item.Cost; cost.Valid && price.LessThan(cost.Decimal) {
		price = decimal.Min(upper, cost.Decimal.RoundCeil(2))
		d.FlooredAtCost = true
	}

	d.Change = price.Sub(current).Div(current).InexactFloat64()
	if math.Abs(d.Change) < holdThreshold && !d.FlooredAtCost {
		price = current
		d.Change = 0
	}
	d.Price = price

	switch {
	case d.Change == 0:
		d.Strategy = recommendation.StrategyHold
	case d.CompetitorMedian != nil && math.Abs(d.CompetitorTerm) >= math.Abs(d.ElasticityTerm+d.GoalTerm):
		d.Strategy = recommendation.StrategyCompetitiveMatch
	case d.Change < 0:
		d.Strategy = recommendation.StrategyVolumeDiscount
	default:
		d.Strategy = recommendation.StrategyElasticityIncrease
	}
	return d
}

// Forecast is the expected effect of a price change.
type Forecast struct {
	QuantityChange float64
	RevenueChange  float64
	MarginChange   float64
}

// ForecastChange projects demand with a constant elasticity.
func ForecastChange(current, recommended, cost, e float64) Forecast {
	if current <= 0 {
		return Forecast{}
	}
	dp := (recommended - current) / current
	dq := e * dp
	if dq < -1 {
		dq = -1
	}
	f := Forecast{
		QuantityChange: round4(dq),
		RevenueChange:  round4((1+dp)*(1+dq) - 1),
	}
	if before := current - cost; before > 0 {
		after := (recommended - cost) * (1 + dq)
		f.MarginChange = round4(after/before - 1)
	}
	return f
}

// Recommend never fails because of the model: completion errors fall back
// to a templated rationale and the default reevaluation date. It returns
// errors.ErrInvalidItemState for items lacking price or cost.
func (s *Strategist) Recommend(ctx context.Context, in Input) (*recommendation.Recommendation, error) {
	if in.Item == nil || !in.Item.Priceable() {
		return nil, errors.Wrap(errors.ErrInvalidItemState, "item lacks current price or cost")
	}

	now := s.now().UTC()
	d := s.Decide(in)
	current := in.Item.CurrentPrice.Decimal
	cost := in.Item.Cost.Decimal.InexactFloat64()

	rec := &recommendation.Recommendation{
		ID:                   uuid.New(),
		ItemID:               in.Item.ID,
		ItemName:             in.Item.Name,
		UserID:               in.Item.UserID,
		BatchID:              in.BatchID,
		RecommendationDate:   now,
		StrategyType:         d.Strategy,
		ImplementationStatus: recommendation.StatusPending,
		Metadata: recommendation.Metadata{
			Elasticity:           in.Elasticity.Value,
			ElasticityCategory:   string(in.Elasticity.Category),
			ElasticityConfidence: in.Elasticity.Confidence,
			ElasticityPairs:      in.Elasticity.Pairs,
			CompetitorMedian:     d.CompetitorMedian,
			CompetitorCount:      len(in.CompetitorPrices),
			Goals:                goalStrings(in.Goals),
		},
	}
	rec.SetPrices(current, d.Price)

	fc := ForecastChange(current.InexactFloat64(), d.Price.InexactFloat64(), cost, in.Elasticity.Value)
	rec.ExpectedQuantityChange = fc.QuantityChange
	rec.ExpectedRevenueChange = fc.RevenueChange
	rec.ExpectedMarginChange = fc.MarginChange

	raw, err := s.complete(ctx, in, d, fc, now)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		s.log.Warnw("Pricing completion failed, using templated rationale",
			"item_id", in.Item.ID,
			"batch_id", in.BatchID,
			"error", err,
		)
		rec.Rationale = s.templatedRationale(in, d)
		rec.ReevaluationDate = s.parser.DefaultDate()
		rec.ConfidenceScore = s.cfg.ConfidenceFloor
		rec.Metadata.ParserTier = string(parser.TierDefault)
		rec.Metadata.RawFallbackUsed = true
		rec.Metadata.CompletionError = err.Error()
		metrics.AgentCalls.WithLabelValues(report.DomainPricing.String(), "fallback").Inc()
	} else {
		res := s.parser.Parse(raw)
		rec.Rationale = res.Rationale
		if rec.Rationale == "" {
			rec.Rationale = s.templatedRationale(in, d)
		}
		rec.ReevaluationDate = res.ReevaluationDate
		rec.ConfidenceScore = s.cfg.ConfidenceFloor
		if res.Confidence != nil {
			rec.ConfidenceScore = *res.Confidence
		}
		rec.Metadata.ParserTier = string(res.Tier)
		rec.Metadata.RawFallbackUsed = res.RawFallbackUsed
		metrics.ParserTiers.WithLabelValues(string(res.Tier)).Inc()
		metrics.AgentCalls.WithLabelValues(report.DomainPricing.String(), string(report.StatusStructured)).Inc()
	}

	if !rec.ReevaluationDate.After(rec.RecommendationDate) {
		rec.ReevaluationDate = rec.RecommendationDate.Add(s.cfg.DefaultReevaluation())
	}
	if err := rec.Validate(); err != nil {
		return nil, errors.Wrapf(err, "recommendation for item %s", in.Item.ID)
	}

	metrics.RecommendationsCreated.WithLabelValues(string(rec.StrategyType)).Inc()
	return rec, nil
}

type historyLine struct {
	EffectiveAt   time.Time
	PreviousPrice float64
	NewPrice      float64
	Reason        string
}

type contextLine struct {
	Domain  string
	Summary string
}

type pricingPrompt struct {
	ItemName               string
	Category               string
	CurrentPrice           float64
	HasCost                bool
	Cost                   float64
	RecommendedPrice       float64
	ChangeRatio            float64
	Strategy               string
	Goals                  []string
	Elasticity             float64
	ElasticityCategory     string
	ElasticityConfidence   float64
	ElasticityPairs        int
	ExpectedQuantityChange float64
	ExpectedRevenueChange  float64
	CompetitorPrices       []float64
	CompetitorMedian       float64
	History                []historyLine
	Context                []contextLine
	Today                  time.Time
}

func (s *Strategist) complete(ctx context.Context, in Input, d Decision, fc Forecast, now time.Time) (string, error) {
	data := pricingPrompt{
		ItemName:               in.Item.Name,
		Category:               in.Item.Category,
		CurrentPrice:           in.Item.CurrentPrice.Decimal.InexactFloat64(),
		HasCost:                in.Item.Cost.Valid,
		Cost:                   in.Item.Cost.Decimal.InexactFloat64(),
		RecommendedPrice:       d.Price.InexactFloat64(),
		ChangeRatio:            d.Change,
		Strategy:               string(d.Strategy),
		Goals:                  goalStrings(in.Goals),
		Elasticity:             in.Elasticity.Value,
		ElasticityCategory:     string(in.Elasticity.Category),
		ElasticityConfidence:   in.Elasticity.Confidence,
		ElasticityPairs:        in.Elasticity.Pairs,
		ExpectedQuantityChange: fc.QuantityChange,
		ExpectedRevenueChange:  fc.RevenueChange,
		CompetitorPrices:       floats(in.CompetitorPrices),
		Today:                  now,
	}
	if d.CompetitorMedian != nil {
		data.CompetitorMedian = *d.CompetitorMedian
	}

	history := in.History
	if len(history) > maxHistoryInPrompt {
		history = history[len(history)-maxHistoryInPrompt:]
	}
	for _, h := range history {
		data.History = append(data.History, historyLine{
			EffectiveAt:   h.EffectiveAt,
			PreviousPrice: h.PreviousPrice.InexactFloat64(),
			NewPrice:      h.NewPrice.InexactFloat64(),
			Reason:        h.ChangeReason,
		})
	}
	for _, r := range in.Reports {
		if r == nil || r.Degraded() || r.Summary == "" {
			continue
		}
		data.Context = append(data.Context, contextLine{Domain: r.Domain.String(), Summary: truncateText(r.Summary, maxContextSummary)})
	}

	prompt, err := templates.Get().Render("prompts/pricing_strategy", data)
	if err != nil {
		return "", errors.Wrap(err, "build pricing prompt")
	}
	system, err := SystemPrompt("pricing strategist", "")
	if err != nil {
		return "", err
	}

	callCtx := ai.WithCallLabels(ctx, ai.CallLabels{
		UserID:  in.Item.UserID.String(),
		BatchID: in.BatchID,
		Domain:  report.DomainPricing.String(),
	})
	return s.completer.Complete(callCtx, prompt, system)
}

func (s *Strategist) templatedRationale(in Input, d Decision) string {
	msg := fmt.Sprintf("%s. %s: %s to %s (%s), %s elasticity %s",
		FallbackRationale,
		d.Strategy,
		templates.Money(in.Item.CurrentPrice.Decimal.InexactFloat64()),
		templates.Money(d.Price.InexactFloat64()),
		templates.Ratio(d.Change),
		in.Elasticity.Category,
		templates.Decimal(in.Elasticity.Value),
	)
	if d.CompetitorMedian != nil {
		msg += fmt.Sprintf(", competitor median %s", templates.Money(*d.CompetitorMedian))
	}
	if d.FlooredAtCost {
		msg += ", raised to cover unit cost"
	}
	return msg + "."
}
