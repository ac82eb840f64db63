package bootstrap

import (
	"context"
	"sync"
	"time"

	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// Lifecycle manages graceful shutdown of components
type Lifecycle struct {
	shutdownTimeout time.Duration
}

func NewLifecycle() *Lifecycle {
	return &Lifecycle{
		shutdownTimeout: 2 * time.Minute,
	}
}

// Shutdown stops components in dependency order:
//  1. the ops server, so probes report the instance as going away
//  2. workers, then in-flight pricing runs (cancelled runs end CANCELLED)
//  3. consumers and their goroutines
//  4. the Kafka producer, after every publisher stopped
//  5. analytics writers, which flush buffered rows
//  6. error tracker and logs
//  7. databases last
func (l *Lifecycle) Shutdown(c *Container) {
	log := c.Log
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), l.shutdownTimeout)
	defer shutdownCancel()

	log.Info("[1/7] Stopping HTTP server...")
	if c.Application.HTTPServer != nil {
		httpCtx, httpCancel := context.WithTimeout(shutdownCtx, 5*time.Second)
		if err := c.Application.HTTPServer.Shutdown(httpCtx); err != nil {
			log.Errorw("HTTP server shutdown failed", "error", err)
		}
		httpCancel()
	}

	log.Info("[2/7] Stopping workers and pricing runs...")
	if s := c.Background.WorkerScheduler; s != nil && s.IsRunning() {
		if err := s.Stop(shutdownCtx); err != nil {
			log.Errorw("Workers shutdown failed", "error", err)
		}
	}
	if c.Services.Pricing != nil {
		runCtx, runCancel := context.WithTimeout(shutdownCtx, 30*time.Second)
		if err := c.Services.Pricing.Shutdown(runCtx); err != nil {
			log.Errorw("Pricing runs did not stop in time", "error", err)
		}
		runCancel()
	}

	log.Info("[3/7] Waiting for consumer goroutines...")
	l.waitForGoroutines(c.WG, 5*time.Second, log)

	log.Info("[4/7] Closing Kafka producer...")
	if c.Adapters.KafkaProducer != nil {
		if err := c.Adapters.KafkaProducer.Close(); err != nil {
			log.Errorw("Kafka producer close failed", "error", err)
		}
	}

	log.Info("[5/7] Flushing analytics...")
	flushCtx, flushCancel := context.WithTimeout(shutdownCtx, 10*time.Second)
	if c.Repos.Analytics != nil {
		if err := c.Repos.Analytics.Stop(flushCtx); err != nil {
			log.Errorw("Recommendation analytics flush failed", "error", err)
		}
	}
	if c.Repos.AIUsage != nil {
		if err := c.Repos.AIUsage.Stop(flushCtx); err != nil {
			log.Errorw("Completion usage flush failed", "error", err)
		}
	}
	flushCancel()

	log.Info("[6/7] Flushing error tracker and logs...")
	l.flushErrorTracker(shutdownCtx, c.ErrorTracker, log)
	_ = logger.Sync()

	log.Info("[7/7] Closing database connections...")
	l.closeDatabases(c, log)

	log.Info("Graceful shutdown complete")
}

func (l *Lifecycle) waitForGoroutines(wg *sync.WaitGroup, timeout time.Duration, log *logger.Logger) {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info("All goroutines finished")
	case <-time.After(timeout):
		log.Warnw("Some goroutines did not finish within timeout", "timeout", timeout)
	}
}

func (l *Lifecycle) flushErrorTracker(ctx context.Context, tracker errors.Tracker, log *logger.Logger) {
	if tracker == nil {
		return
	}

	flushCtx, flushCancel := context.WithTimeout(ctx, 3*time.Second)
	defer flushCancel()

	if err := tracker.Flush(flushCtx); err != nil {
		log.Warnw("Error tracker flush failed", "error", err)
	}
}

func (l *Lifecycle) closeDatabases(c *Container, log *logger.Logger) {
	var dbErrors errors.MultiError

	if c.CH != nil {
		dbErrors.Add(errors.Wrap(c.CH.Close(), "clickhouse"))
	}
	if c.Redis != nil {
		dbErrors.Add(errors.Wrap(c.Redis.Close(), "redis"))
	}
	if c.PG != nil {
		dbErrors.Add(errors.Wrap(c.PG.Close(), "postgres"))
	}

	if err := dbErrors.ToError(); err != nil {
		log.Errorw("Database close errors", "error", err)
	} else {
		log.Info("Database connections closed")
	}
}
