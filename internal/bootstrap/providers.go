package bootstrap

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"pricewise/internal/adapters/ai"
	chclient "pricewise/internal/adapters/clickhouse"
	"pricewise/internal/adapters/config"
	"pricewise/internal/adapters/errors/noop"
	"pricewise/internal/adapters/errors/sentry"
	"pricewise/internal/adapters/kafka"
	pgclient "pricewise/internal/adapters/postgres"
	redisclient "pricewise/internal/adapters/redis"
	"pricewise/internal/agents"
	"pricewise/internal/api"
	"pricewise/internal/api/health"
	"pricewise/internal/consumers"
	"pricewise/internal/events"
	"pricewise/internal/jobs"
	"pricewise/internal/metrics"
	chrepo "pricewise/internal/repository/clickhouse"
	pgrepo "pricewise/internal/repository/postgres"
	redisrepo "pricewise/internal/repository/redis"
	"pricewise/internal/services/pricing"
	"pricewise/internal/workers"
	"pricewise/internal/workers/maintenance"
	pricingworkers "pricewise/internal/workers/pricing"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
	"pricewise/pkg/migrate"
)

const startupTimeout = 30 * time.Second

// MustInitConfig loads configuration, the logger and the error tracker.
func (c *Container) MustInitConfig() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}
	c.Config = cfg

	if err := logger.Init(cfg.App.LogLevel, cfg.App.Env); err != nil {
		panic("failed to init logger: " + err.Error())
	}
	c.Log = logger.Get()
	c.Log.Infof("Starting %s %s in %s mode", cfg.App.Name, Version, cfg.App.Env)

	c.ErrorTracker = initErrorTracker(cfg, c.Log)
	logger.SetErrorTracker(c.ErrorTracker)

	metrics.Init()
}

func initErrorTracker(cfg *config.Config, log *logger.Logger) errors.Tracker {
	if !cfg.ErrorTracking.Enabled {
		log.Info("Error tracking disabled")
		return noop.New()
	}

	tracker, err := sentry.New(cfg.ErrorTracking, Version)
	if err != nil {
		log.Warnf("Failed to initialize Sentry: %v", err)
		return noop.New()
	}

	log.Info("Error tracking initialized (Sentry)")
	return tracker
}

// MustInitInfrastructure connects the data stores and applies schemas.
func (c *Container) MustInitInfrastructure() {
	ctx, cancel := context.WithTimeout(c.Context, startupTimeout)
	defer cancel()
	cfg := c.Config

	pg, err := pgclient.NewClient(ctx, cfg.Postgres)
	if err != nil {
		c.Log.Fatalf("Failed to connect to PostgreSQL: %v", err)
	}
	c.PG = pg

	if cfg.Postgres.AutoMigrate {
		if err := migrate.Up(ctx, pg.DB().DB); err != nil {
			c.Log.Fatalf("Failed to apply migrations: %v", err)
		}
		c.Log.Info("Database migrations applied")
	}

	if cfg.Jobs.Store == "redis" || cfg.AI.DistributedLimit {
		rc, err := redisclient.NewClient(ctx, cfg.Redis)
		if err != nil {
			c.Log.Fatalf("Failed to connect to Redis: %v", err)
		}
		c.Redis = rc
	}

	if cfg.ClickHouse.Enabled {
		ch, err := chclient.NewClient(ctx, cfg.ClickHouse)
		if err != nil {
			// Analytics are best effort; the pipeline runs without them.
			c.Log.Warnw("ClickHouse unavailable, analytics disabled", "error", err)
		} else if err := chrepo.EnsureSchema(ctx, ch); err != nil {
			c.Log.Warnw("ClickHouse schema setup failed, analytics disabled", "error", err)
			_ = ch.Close()
		} else {
			c.CH = ch
		}
	}

	c.Log.Info("Infrastructure initialized")
}

func (c *Container) MustInitRepositories() {
	db := c.PG.DB()
	c.Repos.User = pgrepo.NewUserRepository(db)
	c.Repos.Catalog = pgrepo.NewCatalogRepository(db)
	c.Repos.Competitor = pgrepo.NewCompetitorRepository(db)
	c.Repos.COGS = pgrepo.NewCOGSRepository(db)
	c.Repos.Order = pgrepo.NewOrderRepository(db)
	c.Repos.Report = pgrepo.NewReportRepository(db)
	c.Repos.Recommendation = pgrepo.NewRecommendationRepository(db)

	switch c.Config.Jobs.Store {
	case "redis":
		c.Repos.Jobs = redisrepo.NewJobStore(c.Redis.Client(), c.Config.Jobs.Retention)
	default:
		c.Repos.Jobs = jobs.NewMemoryStore()
	}

	if c.CH != nil {
		c.Repos.AIUsage = chrepo.NewAIUsageRepository(c.CH.Conn())
		c.Repos.Analytics = chrepo.NewRecommendationAnalytics(c.CH.Conn())
	}

	if err := metrics.RegisterCollector(metrics.NewRecommendationCollector(db)); err != nil {
		c.Log.Warnw("Recommendation collector not registered", "error", err)
	}
	c.Log.Infow("Repositories initialized", "job_store", c.Config.Jobs.Store)
}

func (c *Container) MustInitAdapters() {
	var usage ai.UsageRecorder
	if c.Repos.AIUsage != nil {
		usage = c.Repos.AIUsage
	}
	completer, err := ai.BuildCompleter(c.Context, c.Config.AI, c.redisClient(), usage)
	if err != nil {
		c.Log.Fatalf("Failed to build completer: %v", err)
	}
	c.Adapters.Completer = completer

	if c.Config.Kafka.Enabled {
		c.Adapters.KafkaProducer = kafka.NewProducer(kafka.ProducerConfig{
			Brokers: c.Config.Kafka.Brokers,
		})
		c.Adapters.RunRequestConsumer = kafka.NewConsumer(kafka.ConsumerConfig{
			Brokers: c.Config.Kafka.Brokers,
			GroupID: c.Config.Kafka.GroupID,
			Topic:   kafka.TopicRunRequests,
		})
	}
}

func (c *Container) MustInitServices() {
	completer := c.Adapters.Completer

	deps := pricing.Deps{
		Users:           c.Repos.User,
		Catalog:         c.Repos.Catalog,
		Competitors:     c.Repos.Competitor,
		COGS:            c.Repos.COGS,
		Orders:          c.Repos.Order,
		Recommendations: c.Repos.Recommendation,
		Jobs:            c.Repos.Jobs,
		Analysts: []agents.Analyst{
			agents.NewMarketAnalyst(completer),
			agents.NewCompetitorAnalyst(completer),
			agents.NewCustomerAnalyst(completer),
		},
		Strategist: agents.NewStrategist(completer, c.Config.Pricing),
		Tracker:    c.ErrorTracker,
		Retryable:  pgrepo.IsRetryable,
	}
	if c.Adapters.KafkaProducer != nil {
		deps.Events = events.NewPublisher(c.Adapters.KafkaProducer)
	}
	if c.Repos.Analytics != nil {
		deps.Analytics = c.Repos.Analytics
	}

	c.Services.Orchestrator = pricing.NewOrchestrator(deps, c.Config.Pricing)
	c.Services.Pricing = pricing.NewService(c.Services.Orchestrator, c.Repos.Jobs, c.Repos.Recommendation)
}

func (c *Container) MustInitApplication() {
	c.Background.WorkerScheduler = workers.NewScheduler(workers.NewRegistry())

	h := health.New(c.Config.App.Name, Version).AddCritical("postgres", c.PG)
	if c.Redis != nil {
		h.AddCritical("redis", c.Redis)
	}
	if c.CH != nil {
		h.AddOptional("clickhouse", c.CH)
	}
	// A worker is stalled when it missed two runs of the longest schedule.
	h.WithWorkers(c.Background.WorkerScheduler.Registry(), 2*c.longestWorkerInterval())
	c.Application.HealthHandler = h

	c.Application.HTTPServer = api.NewServer(api.ServerConfig{
		Port:        c.Config.HTTP.Port,
		ServiceName: c.Config.App.Name,
		Version:     Version,
	}, h)
}

func (c *Container) MustInitBackground() {
	w := c.Config.Workers
	s := c.Background.WorkerScheduler

	s.RegisterWorker(pricingworkers.NewBatchRunner(
		c.Repos.User, c.Services.Pricing, w.BatchPricingInterval, w.BatchPricingConcurrency, w.BatchPricingEnabled,
	))
	s.RegisterWorker(maintenance.NewRecommendationExpiry(c.Repos.Recommendation, w.ExpiryInterval))
	s.RegisterWorker(maintenance.NewJobJanitor(c.Repos.Jobs, c.Config.Jobs.Retention, c.Config.Jobs.JanitorInterval))

	if c.Adapters.RunRequestConsumer != nil {
		c.Background.RunRequests = consumers.NewRunRequestConsumer(c.Adapters.RunRequestConsumer, c.Services.Pricing)
	}
}

func (c *Container) longestWorkerInterval() time.Duration {
	longest := c.Config.Workers.ExpiryInterval
	for _, d := range []time.Duration{c.Config.Jobs.JanitorInterval, c.Config.Workers.BatchPricingInterval} {
		if d > longest {
			longest = d
		}
	}
	return longest
}

func (c *Container) redisClient() *redis.Client {
	if c.Redis == nil {
		return nil
	}
	return c.Redis.Client()
}
