package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricewise_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"worker"},
	)

	// Pipeline metrics
	PricingRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_pricing_runs_total",
			Help: "Pricing runs by terminal state",
		},
		[]string{"state"}, // COMPLETED|FAILED|CANCELLED
	)

	StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricewise_stage_duration_seconds",
			Help:    "Duration of orchestrator stages",
			Buckets: []float64{0.05, 0.25, 1, 5, 15, 45, 120, 300},
		},
		[]string{"stage"},
	)

	AgentCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_agent_calls_total",
			Help: "Agent invocations by domain and outcome",
		},
		[]string{"domain", "status"}, // status: structured|degraded|fallback
	)

	RecommendationsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_recommendations_created_total",
			Help: "Recommendations produced by strategy type",
		},
		[]string{"strategy"},
	)

	ItemsSkipped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_items_skipped_total",
			Help: "Items skipped by reason",
		},
		[]string{"reason"},
	)

	ParserTiers = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_parser_tier_total",
			Help: "Completion parser resolutions by tier",
		},
		[]string{"tier"},
	)

	// Completion provider metrics
	CompletionCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_completion_calls_total",
			Help: "Language model calls by provider and outcome",
		},
		[]string{"provider", "domain", "status"}, // status: success|error|timeout
	)

	CompletionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pricewise_completion_latency_seconds",
			Help:    "Language model call latency",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 45, 60},
		},
		[]string{"provider"},
	)

	// Job store
	JobsTracked = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "pricewise_jobs_tracked",
			Help: "Jobs currently held by the job store",
		},
	)

	JobsEvicted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "pricewise_jobs_evicted_total",
			Help: "Jobs evicted after the retention window",
		},
	)

	KafkaMessages = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pricewise_kafka_messages_total",
			Help: "Kafka messages by topic and direction",
		},
		[]string{"topic", "direction", "status"}, // direction: produced|consumed
	)
)

// Init registers all metrics with the default registry
func Init() {
	prometheus.MustRegister(
		WorkerExecutions,
		WorkerDuration,
		PricingRuns,
		StageDuration,
		AgentCalls,
		RecommendationsCreated,
		ItemsSkipped,
		ParserTiers,
		CompletionCalls,
		CompletionLatency,
		JobsTracked,
		JobsEvicted,
		KafkaMessages,
	)
}

// RegisterCollector adds a scrape-time collector to the default registry.
func RegisterCollector(c prometheus.Collector) error {
	return prometheus.Register(c)
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	WorkerExecutions.WithLabelValues(worker, statusOf(err)).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

func RecordCompletion(provider, domain string, latency time.Duration, timedOut bool, err error) {
	status := statusOf(err)
	if timedOut {
		status = "timeout"
	}
	CompletionCalls.WithLabelValues(provider, domain, status).Inc()
	CompletionLatency.WithLabelValues(provider).Observe(latency.Seconds())
}

func RecordStage(stage string, duration time.Duration) {
	StageDuration.WithLabelValues(stage).Observe(duration.Seconds())
}

func RecordKafkaMessage(topic, direction string, err error) {
	KafkaMessages.WithLabelValues(topic, direction, statusOf(err)).Inc()
}

func statusOf(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
