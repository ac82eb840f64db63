package workers

import (
	"context"
	"fmt"
	"sync"
	"time"

	"pricewise/internal/metrics"
	"pricewise/pkg/errors"
	"pricewise/pkg/logger"
)

// Scheduler runs each registered worker on its own ticker.
type Scheduler struct {
	workers  []Worker
	registry *Registry
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup
	mu       sync.RWMutex
	log      *logger.Logger
	started  bool
}

func NewScheduler(registry *Registry) *Scheduler {
	if registry == nil {
		registry = NewRegistry()
	}
	return &Scheduler{
		registry: registry,
		log:      logger.Get().With("component", "scheduler"),
	}
}

// Registry exposes worker health to the ops server.
func (s *Scheduler) Registry() *Registry {
	return s.registry
}

// RegisterWorker adds a worker. Registration after Start is ignored.
func (s *Scheduler) RegisterWorker(w Worker) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		s.log.Warnw("Cannot register worker after scheduler has started", "worker", w.Name())
		return
	}
	if err := s.registry.Register(w); err != nil {
		s.log.Warnw("Worker not registered", "worker", w.Name(), "error", err)
		return
	}

	s.workers = append(s.workers, w)
	s.log.Infow("Worker registered", "worker", w.Name(), "interval", w.Interval())
}

// Start begins running all enabled workers
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler already started")
	}
	s.started = true
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.log.Infow("Starting worker scheduler", "workers", len(s.workers))

	for _, worker := range s.workers {
		if !worker.Enabled() {
			s.log.Infow("Skipping disabled worker", "worker", worker.Name())
			continue
		}
		s.wg.Add(1)
		go s.runWorker(worker)
	}
	return nil
}

// Stop cancels all workers and waits for in-flight iterations, bounded by ctx.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return errors.Wrap(errors.ErrInternal, "scheduler not started")
	}
	s.cancel()
	s.mu.Unlock()

	s.log.Info("Stopping worker scheduler...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var shutdownErr error
	select {
	case <-done:
		s.log.Info("All workers stopped gracefully")
	case <-ctx.Done():
		s.log.Warn("Worker shutdown timed out")
		shutdownErr = errors.Wrap(errors.ErrTimeout, "worker shutdown")
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()

	return shutdownErr
}

func (s *Scheduler) runWorker(worker Worker) {
	defer s.wg.Done()

	ticker := time.NewTicker(worker.Interval())
	defer ticker.Stop()

	// Run immediately on start
	s.executeWorker(worker)

	for {
		select {
		case <-s.ctx.Done():
			s.log.Infow("Worker stopping due to context cancellation", "worker", worker.Name())
			return
		case <-ticker.C:
			if worker.Enabled() {
				s.executeWorker(worker)
			}
		}
	}
}

func (s *Scheduler) executeWorker(worker Worker) {
	name := worker.Name()
	start := time.Now()
	_ = s.registry.MarkRunning(name)

	var err error
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("worker panicked: %v", r)
		}
		s.finish(worker, time.Since(start), err)
	}()

	err = worker.Run(s.ctx)
}

func (s *Scheduler) finish(worker Worker, took time.Duration, err error) {
	name := worker.Name()
	metrics.RecordWorkerExecution(name, took, err)

	_ = s.registry.Observe(name, took, err)
	if o, ok := worker.(interface{ Observe(time.Duration, error) }); ok {
		o.Observe(took, err)
	}

	if err != nil {
		s.log.Errorw("Worker execution failed", "worker", name, "error", err, "duration", took)
		return
	}
	s.log.Debugw("Worker execution completed", "worker", name, "duration", took)
}

// GetWorkers returns the registered workers in registration order.
func (s *Scheduler) GetWorkers() []Worker {
	s.mu.RLock()
	defer s.mu.RUnlock()

	workers := make([]Worker, len(s.workers))
	copy(workers, s.workers)
	return workers
}

func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.started
}
