package bootstrap

import (
	"context"
	"sync"

	"pricewise/internal/adapters/ai"
	chclient "pricewise/internal/adapters/clickhouse"
	"pricewise/internal/adapters/config"
	"pricewise/internal/adapters/kafka"
	pgclient "pricewise/internal/adapters/postgres"
	redisclient "pricewise/internal/adapters/redis"
	"pricewise/internal/api"
	"pricewise/internal/api/health"
	"pricewise/internal/consumers"
	"pricewise/internal/domain/job"
	chrepo "pricewise/internal/repository/clickhouse"
	pgrepo "pricewise/internal/repository/postgres"
	"pricewise/internal/services/pricing"
	"pricewise/internal/workers"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

// Container holds all application dependencies and their lifecycle.
// Components are organized in initialization order.
type Container struct {
	Config       *config.Config
	Log          *logger.Logger
	ErrorTracker errors.Tracker

	// Infrastructure. CH and Redis are nil when not configured.
	PG    *pgclient.Client
	CH    *chclient.Client
	Redis *redisclient.Client

	Repos       *Repositories
	Adapters    *Adapters
	Services    *Services
	Application *Application
	Background  *Background

	Lifecycle *Lifecycle
	WG        *sync.WaitGroup
	Context   context.Context
	Cancel    context.CancelFunc
}

// Repositories groups all domain repositories
type Repositories struct {
	User           *pgrepo.UserRepository
	Catalog        *pgrepo.CatalogRepository
	Competitor     *pgrepo.CompetitorRepository
	COGS           *pgrepo.COGSRepository
	Order          *pgrepo.OrderRepository
	Report         *pgrepo.ReportRepository
	Recommendation *pgrepo.RecommendationRepository
	Jobs           job.Store

	// Analytics, nil without ClickHouse
	AIUsage   *chrepo.AIUsageRepository
	Analytics *chrepo.RecommendationAnalytics
}

// Adapters groups all external adapters
type Adapters struct {
	Completer          *ai.GuardedCompleter
	KafkaProducer      *kafka.Producer
	RunRequestConsumer *kafka.Consumer
}

// Services groups the pricing pipeline
type Services struct {
	Orchestrator *pricing.Orchestrator
	Pricing      *pricing.Service
}

// Application groups the ops surface
type Application struct {
	HTTPServer    *api.Server
	HealthHandler *health.Handler
}

// Background groups all background processing components
type Background struct {
	WorkerScheduler *workers.Scheduler
	RunRequests     *consumers.RunRequestConsumer
}

func NewContainer() *Container {
	ctx, cancel := context.WithCancel(context.Background())

	return &Container{
		Repos:       &Repositories{},
		Adapters:    &Adapters{},
		Services:    &Services{},
		Application: &Application{},
		Background:  &Background{},
		Lifecycle:   NewLifecycle(),
		WG:          &sync.WaitGroup{},
		Context:     ctx,
		Cancel:      cancel,
	}
}

// MustInit initializes all components in the correct order.
// Panics on any initialization error (fail-fast at startup).
func (c *Container) MustInit() {
	c.MustInitConfig()
	c.MustInitInfrastructure()
	c.MustInitRepositories()
	c.MustInitAdapters()
	c.MustInitServices()
	c.MustInitApplication()
	c.MustInitBackground()
}

// Start starts the analytics writers, consumers, workers and the ops server.
func (c *Container) Start() error {
	c.Log.Info("Starting all systems...")

	if c.Repos.AIUsage != nil {
		c.Repos.AIUsage.Start(c.Context)
	}
	if c.Repos.Analytics != nil {
		c.Repos.Analytics.Start(c.Context)
	}

	if c.Background.RunRequests != nil {
		c.WG.Add(1)
		go func() {
			defer c.WG.Done()
			if err := c.Background.RunRequests.Start(c.Context); err != nil && c.Context.Err() == nil {
				c.Log.Errorw("Run request consumer failed", "error", err)
			}
		}()
	}

	if err := c.Background.WorkerScheduler.Start(c.Context); err != nil {
		return errors.Wrap(err, "failed to start workers")
	}

	c.WG.Add(1)
	go func() {
		defer c.WG.Done()
		if err := c.Application.HTTPServer.Start(); err != nil {
			c.Log.Errorf("HTTP server failed: %v", err)
			c.Cancel() // Trigger shutdown on fatal HTTP error
		}
	}()

	c.Log.Info("All systems operational")
	return nil
}

// Shutdown performs graceful shutdown in the correct order
func (c *Container) Shutdown() {
	c.Log.Info("Initiating graceful shutdown...")
	c.Cancel()
	c.Lifecycle.Shutdown(c)
}
