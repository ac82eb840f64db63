package metrics

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"

	"pricewise/pkg/logger"
)

// RecommendationCollector exports recommendation counts per implementation
// status straight from Postgres at scrape time.
type RecommendationCollector struct {
	log      *logger.Logger
	postgres *sqlx.DB

	byStatus *prometheus.Desc
	batches  *prometheus.Desc
}

func NewRecommendationCollector(postgres *sqlx.DB) *RecommendationCollector {
	return &RecommendationCollector{
		log:      logger.Get().With("component", "metrics_collector"),
		postgres: postgres,
		byStatus: prometheus.NewDesc(
			"pricewise_recommendations",
			"Pricing recommendations by implementation status",
			[]string{"status"}, nil,
		),
		batches: prometheus.NewDesc(
			"pricewise_batches_24h",
			"Distinct recommendation batches created in the last 24h",
			nil, nil,
		),
	}
}

// Describe implements prometheus.Collector
func (c *RecommendationCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.byStatus
	ch <- c.batches
}

// Collect implements prometheus.Collector
func (c *RecommendationCollector) Collect(ch chan<- prometheus.Metric) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	type statusCount struct {
		Status string `db:"implementation_status"`
		Count  int    `db:"count"`
	}

	var counts []statusCount
	err := c.postgres.SelectContext(ctx, &counts, `
		SELECT implementation_status, COUNT(*) AS count
		FROM pricing_recommendations
		GROUP BY implementation_status
	`)
	if err != nil {
		c.log.Warnw("Failed to collect recommendation counts", "error", err)
		return
	}
	for _, sc := range counts {
		ch <- prometheus.MustNewConstMetric(c.byStatus, prometheus.GaugeValue, float64(sc.Count), sc.Status)
	}

	var batches int
	err = c.postgres.GetContext(ctx, &batches, `
		SELECT COUNT(DISTINCT batch_id)
		FROM pricing_recommendations
		WHERE recommendation_date > NOW() - INTERVAL '24 hours'
	`)
	if err != nil {
		c.log.Warnw("Failed to collect batch count", "error", err)
		return
	}
	ch <- prometheus.MustNewConstMetric(c.batches, prometheus.GaugeValue, float64(batches))
}
