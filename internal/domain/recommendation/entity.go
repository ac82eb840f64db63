package recommendation

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"pricewise/internal/domain/report"
	"pricewise/pkg/errors"
)

// Status is the implementation status of a recommendation.
type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusExpired  Status = "expired"
)

// StrategyType tags the rule branch that produced the recommended price.
type StrategyType string

const (
	StrategyElasticityIncrease StrategyType = "elasticity_increase"
	StrategyCompetitiveMatch   StrategyType = "competitive_match"
	StrategyVolumeDiscount     StrategyType = "volume_discount"
	StrategyHold               StrategyType = "hold"
)

// percentPlaces keeps PriceChangePercent within 1e-6 of amount/current.
const percentPlaces = 8

// Metadata records the inputs behind a recommendation. Stored as JSONB.
type Metadata struct {
	Elasticity           float64  `json:"elasticity"`
	ElasticityCategory   string   `json:"elasticity_category"`
	ElasticityConfidence float64  `json:"elasticity_confidence"`
	ElasticityPairs      int      `json:"elasticity_pairs"`
	CompetitorMedian     *float64 `json:"competitor_median,omitempty"`
	CompetitorCount      int      `json:"competitor_count"`
	Goals                []string `json:"goals,omitempty"`
	ParserTier           string   `json:"parser_tier"`
	RawFallbackUsed      bool     `json:"raw_fallback_used"`
	CompletionError      string   `json:"completion_error,omitempty"`
}

func (m Metadata) Value() (driver.Value, error) {
	return json.Marshal(m)
}

func (m *Metadata) Scan(src interface{}) error {
	switch v := src.(type) {
	case nil:
		*m = Metadata{}
		return nil
	case []byte:
		return json.Unmarshal(v, m)
	case string:
		return json.Unmarshal([]byte(v), m)
	default:
		return errors.Newf("unsupported metadata type %T", src)
	}
}

// Recommendation is created once per (item, batch) and not mutated by the
// pricing pipeline afterwards, except for status transitions.
type Recommendation struct {
	ID                     uuid.UUID       `db:"id"`
	ItemID                 uuid.UUID       `db:"item_id"`
	ItemName               string          `db:"item_name"`
	UserID                 uuid.UUID       `db:"user_id"`
	BatchID                string          `db:"batch_id"`
	RecommendationDate     time.Time       `db:"recommendation_date"`
	CurrentPrice           decimal.Decimal `db:"current_price"`
	RecommendedPrice       decimal.Decimal `db:"recommended_price"`
	PriceChangeAmount      decimal.Decimal `db:"price_change_amount"`
	PriceChangePercent     decimal.Decimal `db:"price_change_percent"` // ratio, 0.05 is +5%
	StrategyType           StrategyType    `db:"strategy_type"`
	ConfidenceScore        float64         `db:"confidence_score"`
	Rationale              string          `db:"rationale"`
	ExpectedRevenueChange  float64         `db:"expected_revenue_change"`
	ExpectedQuantityChange float64         `db:"expected_quantity_change"`
	ExpectedMarginChange   float64         `db:"expected_margin_change"`
	ImplementationStatus   Status          `db:"implementation_status"`
	ReevaluationDate       time.Time       `db:"reevaluation_date"`
	Metadata               Metadata        `db:"metadata"`
}

// SetPrices stores both prices and derives the change amount and ratio.
func (r *Recommendation) SetPrices(current, recommended decimal.Decimal) {
	r.CurrentPrice = current
	r.RecommendedPrice = recommended
	r.PriceChangeAmount = recommended.Sub(current)
	if current.IsPositive() {
		r.PriceChangePercent = r.PriceChangeAmount.DivRound(current, percentPlaces)
	} else {
		r.PriceChangePercent = decimal.Zero
	}
}

// Validate checks the arithmetic and date invariants.
func (r *Recommendation) Validate() error {
	if !r.PriceChangeAmount.Equal(r.RecommendedPrice.Sub(r.CurrentPrice)) {
		return errors.Wrap(errors.ErrInvalidInput, "price change amount does not match prices")
	}
	want := decimal.Zero
	if r.CurrentPrice.IsPositive() {
		want = r.PriceChangeAmount.DivRound(r.CurrentPrice, percentPlaces)
	}
	if !r.PriceChangePercent.Equal(want) {
		return errors.Wrap(errors.ErrInvalidInput, "price change percent does not match prices")
	}
	if !r.ReevaluationDate.After(r.RecommendationDate) {
		return errors.Wrap(errors.ErrInvalidInput, "reevaluation date must follow recommendation date")
	}
	if r.ConfidenceScore < 0 || r.ConfidenceScore > 1 {
		return errors.Wrapf(errors.ErrInvalidInput, "confidence %v outside [0,1]", r.ConfidenceScore)
	}
	return nil
}

// Batch is everything one orchestrator run produced, correlated by ID.
type Batch struct {
	ID              string
	UserID          uuid.UUID
	CreatedAt       time.Time
	Recommendations []*Recommendation
	Reports         []*report.Report
}

// ReportsByDomain indexes the batch reports, keeping the newest per domain.
func (b *Batch) ReportsByDomain() map[report.Domain]*report.Report {
	out := make(map[report.Domain]*report.Report, len(b.Reports))
	for _, r := range b.Reports {
		if cur, ok := out[r.Domain]; !ok || r.CreatedAt.After(cur.CreatedAt) {
			out[r.Domain] = r
		}
	}
	return out
}
