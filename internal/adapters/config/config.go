package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"

	"pricewise/pkg/errors"
)

type Config struct {
	App           AppConfig
	HTTP          HTTPConfig
	Postgres      PostgresConfig
	ClickHouse    ClickHouseConfig
	Redis         RedisConfig
	Kafka         KafkaConfig
	AI            AIConfig
	Pricing       PricingConfig
	Jobs          JobsConfig
	ErrorTracking ErrorTrackingConfig
	Workers       WorkerConfig
}

type AppConfig struct {
	Name     string `envconfig:"APP_NAME" default:"pricewise"`
	Env      string `envconfig:"APP_ENV" default:"development"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// HTTPConfig configures the ops server (health probes and metrics).
type HTTPConfig struct {
	Port int `envconfig:"HTTP_PORT" default:"8080"`
}

type PostgresConfig struct {
	Host     string `envconfig:"POSTGRES_HOST" required:"true"`
	Port     int    `envconfig:"POSTGRES_PORT" default:"5432"`
	User     string `envconfig:"POSTGRES_USER" required:"true"`
	Password string `envconfig:"POSTGRES_PASSWORD" required:"true"`
	Database string `envconfig:"POSTGRES_DB" required:"true"`
	SSLMode  string `envconfig:"POSTGRES_SSL_MODE" default:"disable"`
	MaxConns int    `envconfig:"POSTGRES_MAX_CONNS" default:"25"`

	// AutoMigrate applies embedded migrations on startup.
	AutoMigrate bool `envconfig:"POSTGRES_AUTO_MIGRATE" default:"false"`
}

func (c PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

type ClickHouseConfig struct {
	Enabled  bool   `envconfig:"CLICKHOUSE_ENABLED" default:"true"`
	Host     string `envconfig:"CLICKHOUSE_HOST" default:"localhost"`
	Port     int    `envconfig:"CLICKHOUSE_PORT" default:"9000"`
	User     string `envconfig:"CLICKHOUSE_USER" default:"default"`
	Password string `envconfig:"CLICKHOUSE_PASSWORD"`
	Database string `envconfig:"CLICKHOUSE_DB" default:"pricewise"`
}

type RedisConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type KafkaConfig struct {
	Enabled bool     `envconfig:"KAFKA_ENABLED" default:"true"`
	Brokers []string `envconfig:"KAFKA_BROKERS" default:"localhost:9092"`
	GroupID string   `envconfig:"KAFKA_GROUP_ID" default:"pricewise"`
}

type AIConfig struct {
	OpenAIKey       string        `envconfig:"OPENAI_API_KEY"`
	DeepSeekKey     string        `envconfig:"DEEPSEEK_API_KEY"`
	GeminiKey       string        `envconfig:"GEMINI_API_KEY"`
	DefaultProvider string        `envconfig:"DEFAULT_AI_PROVIDER" default:"openai"`
	Model           string        `envconfig:"AI_MODEL"`
	Temperature     float64       `envconfig:"AI_TEMPERATURE" default:"0.2"`
	CallTimeout     time.Duration `envconfig:"AI_CALL_TIMEOUT" default:"45s"`

	// Requests per minute per provider. Zero disables limiting.
	RateLimitPerMinute int  `envconfig:"AI_RATE_LIMIT_PER_MINUTE" default:"60"`
	RateLimitBurst     int  `envconfig:"AI_RATE_LIMIT_BURST" default:"10"`
	DistributedLimit   bool `envconfig:"AI_RATE_LIMIT_DISTRIBUTED" default:"false"`
}

// PricingConfig is the single source of truth for pricing constants.
type PricingConfig struct {
	MaxAdjustmentPercent      float64       `envconfig:"PRICING_MAX_ADJUSTMENT_PERCENT" default:"20"`
	DefaultReevaluationDays   int           `envconfig:"PRICING_DEFAULT_REEVALUATION_DAYS" default:"90"`
	ConfidenceFloor           float64       `envconfig:"PRICING_CONFIDENCE_FLOOR" default:"0.5"`
	BaselineElasticity        float64       `envconfig:"PRICING_BASELINE_ELASTICITY" default:"-1.0"`
	ElasticityConfidencePairs int           `envconfig:"PRICING_ELASTICITY_CONFIDENCE_PAIRS" default:"5"`
	FreshnessThreshold        time.Duration `envconfig:"PRICING_FRESHNESS_THRESHOLD" default:"72h"`
	CompetitorWeight          float64       `envconfig:"PRICING_COMPETITOR_WEIGHT" default:"0.5"`
	HistoryLimit              int           `envconfig:"PRICING_HISTORY_LIMIT" default:"50"`
	COGSWeeks                 int           `envconfig:"PRICING_COGS_WEEKS" default:"12"`
	OrderLookbackDays         int           `envconfig:"PRICING_ORDER_LOOKBACK_DAYS" default:"90"`
	PersistAttempts           int           `envconfig:"PRICING_PERSIST_ATTEMPTS" default:"3"`
	PersistBackoff            time.Duration `envconfig:"PRICING_PERSIST_BACKOFF" default:"500ms"`
}

// DefaultReevaluation returns the fallback reevaluation horizon.
func (c PricingConfig) DefaultReevaluation() time.Duration {
	return time.Duration(c.DefaultReevaluationDays) * 24 * time.Hour
}

// DefaultPricing mirrors the envconfig defaults for code paths that build
// components without loading the environment (tests, tools).
func DefaultPricing() PricingConfig {
	return PricingConfig{
		MaxAdjustmentPercent:      20,
		DefaultReevaluationDays:   90,
		ConfidenceFloor:           0.5,
		BaselineElasticity:        -1.0,
		ElasticityConfidencePairs: 5,
		FreshnessThreshold:        72 * time.Hour,
		CompetitorWeight:          0.5,
		HistoryLimit:              50,
		COGSWeeks:                 12,
		OrderLookbackDays:         90,
		PersistAttempts:           3,
		PersistBackoff:            500 * time.Millisecond,
	}
}

type JobsConfig struct {
	Store           string        `envconfig:"JOBS_STORE" default:"memory"` // memory | redis
	Retention       time.Duration `envconfig:"JOBS_RETENTION" default:"24h"`
	JanitorInterval time.Duration `envconfig:"JOBS_JANITOR_INTERVAL" default:"10m"`
}

type ErrorTrackingConfig struct {
	Enabled     bool   `envconfig:"ERROR_TRACKING_ENABLED" default:"false"`
	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"SENTRY_ENVIRONMENT" default:"production"`
}

// WorkerConfig holds background worker schedules
type WorkerConfig struct {
	BatchPricingEnabled     bool          `envconfig:"WORKER_BATCH_PRICING_ENABLED" default:"true"`
	BatchPricingInterval    time.Duration `envconfig:"WORKER_BATCH_PRICING_INTERVAL" default:"24h"`
	BatchPricingConcurrency int           `envconfig:"WORKER_BATCH_PRICING_CONCURRENCY" default:"4"`
	ExpiryInterval          time.Duration `envconfig:"WORKER_EXPIRY_INTERVAL" default:"1h"`
}

// Load reads configuration from environment variables, loading .env first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to process env config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate rejects settings the pipeline cannot run with.
func (c *Config) Validate() error {
	p := c.Pricing
	switch {
	case p.MaxAdjustmentPercent <= 0 || p.MaxAdjustmentPercent >= 100:
		return errors.Wrapf(errors.ErrInvalidInput, "PRICING_MAX_ADJUSTMENT_PERCENT must be in (0,100), got %v", p.MaxAdjustmentPercent)
	case p.DefaultReevaluationDays <= 0:
		return errors.Wrap(errors.ErrInvalidInput, "PRICING_DEFAULT_REEVALUATION_DAYS must be positive")
	case p.ConfidenceFloor < 0 || p.ConfidenceFloor > 1:
		return errors.Wrap(errors.ErrInvalidInput, "PRICING_CONFIDENCE_FLOOR must be within [0,1]")
	case p.ElasticityConfidencePairs <= 0:
		return errors.Wrap(errors.ErrInvalidInput, "PRICING_ELASTICITY_CONFIDENCE_PAIRS must be positive")
	case p.PersistAttempts <= 0:
		return errors.Wrap(errors.ErrInvalidInput, "PRICING_PERSIST_ATTEMPTS must be positive")
	}
	if c.Jobs.Store != "memory" && c.Jobs.Store != "redis" {
		return errors.Wrapf(errors.ErrInvalidInput, "JOBS_STORE must be memory or redis, got %q", c.Jobs.Store)
	}
	return nil
}
