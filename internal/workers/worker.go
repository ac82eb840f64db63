package workers

import (
	"context"
	"sync"
	"time"

	"pricewise/pkg/logger"
)

// A worker whose last failureStreakLimit runs all failed is reported as stalled.
const failureStreakLimit = 3

// Worker is a periodic background task.
type Worker interface {
	Name() string

	// Run completes one iteration and returns. The scheduler calls it
	// once on start and then every Interval().
	Run(ctx context.Context) error

	Interval() time.Duration
	Enabled() bool
}

// Toggler is a worker that can be switched on and off at runtime.
type Toggler interface {
	Worker
	SetEnabled(enabled bool)
}

// WorkerHealth is the run history of one worker.
type WorkerHealth struct {
	Enabled             bool
	Running             bool
	LastRun             time.Time
	LastSuccess         time.Time
	LastDuration        time.Duration
	LastError           error
	Runs                int64
	Failures            int64
	ConsecutiveFailures int
}

func (h *WorkerHealth) observe(at time.Time, took time.Duration, err error) {
	h.Running = false
	h.LastRun = at
	h.LastDuration = took
	h.LastError = err
	h.Runs++

	if err != nil {
		h.Failures++
		h.ConsecutiveFailures++
		return
	}
	h.LastSuccess = at
	h.ConsecutiveFailures = 0
}

// Stalled reports an enabled worker that has not run within maxAge or keeps failing.
func (h WorkerHealth) Stalled(now time.Time, maxAge time.Duration) bool {
	if !h.Enabled {
		return false
	}
	return now.Sub(h.LastRun) > maxAge || h.ConsecutiveFailures >= failureStreakLimit
}

// BaseWorker carries the name, schedule and run history shared by workers.
type BaseWorker struct {
	name     string
	interval time.Duration
	log      *logger.Logger

	mu     sync.RWMutex
	health WorkerHealth
}

func NewBaseWorker(name string, interval time.Duration, enabled bool) *BaseWorker {
	return &BaseWorker{
		name:     name,
		interval: interval,
		health:   WorkerHealth{Enabled: enabled},
		log:      logger.Get().With("worker", name),
	}
}

func (w *BaseWorker) Name() string            { return w.name }
func (w *BaseWorker) Interval() time.Duration { return w.interval }
func (w *BaseWorker) Log() *logger.Logger     { return w.log }

func (w *BaseWorker) Enabled() bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.health.Enabled
}

func (w *BaseWorker) SetEnabled(enabled bool) {
	w.mu.Lock()
	w.health.Enabled = enabled
	w.mu.Unlock()
	w.log.Infow("Worker toggled", "enabled", enabled)
}

// Health returns a snapshot of the run history.
func (w *BaseWorker) Health() WorkerHealth {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.health
}

// Observe records one finished run. The scheduler calls it after Run returns.
func (w *BaseWorker) Observe(took time.Duration, err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.health.observe(time.Now(), took, err)
}
