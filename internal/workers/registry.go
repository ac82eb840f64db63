package workers

import (
	"sort"
	"sync"
	"time"

	"pricewise/pkg/errors"
)

// Registry keeps the run history of every scheduled worker for the ops server.
type Registry struct {
	mu      sync.RWMutex
	workers map[string]Worker
	health  map[string]*WorkerHealth
	now     func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		workers: make(map[string]Worker),
		health:  make(map[string]*WorkerHealth),
		now:     time.Now,
	}
}

// Register adds a worker. Names must be unique.
func (r *Registry) Register(w Worker) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := w.Name()
	if _, exists := r.workers[name]; exists {
		return errors.Wrapf(errors.ErrAlreadyExists, "worker %s already registered", name)
	}
	r.workers[name] = w
	r.health[name] = &WorkerHealth{Enabled: w.Enabled()}
	return nil
}

// EnableWorker switches a Toggler on or off.
func (r *Registry) EnableWorker(name string, enabled bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	w, ok := r.workers[name]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "worker %s not found", name)
	}
	toggler, ok := w.(Toggler)
	if !ok {
		return errors.Wrapf(errors.ErrInvalidInput, "worker %s cannot be toggled", name)
	}
	toggler.SetEnabled(enabled)
	r.health[name].Enabled = enabled
	return nil
}

func (r *Registry) MarkRunning(name string) error {
	return r.update(name, func(h *WorkerHealth) { h.Running = true })
}

// Observe records one finished run of name.
func (r *Registry) Observe(name string, took time.Duration, err error) error {
	at := r.now()
	return r.update(name, func(h *WorkerHealth) { h.observe(at, took, err) })
}

func (r *Registry) update(name string, fn func(*WorkerHealth)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.health[name]
	if !ok {
		return errors.Wrapf(errors.ErrNotFound, "worker %s not found", name)
	}
	fn(h)
	return nil
}

// Snapshot copies the run history of every worker.
func (r *Registry) Snapshot() map[string]WorkerHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]WorkerHealth, len(r.health))
	for name, h := range r.health {
		out[name] = *h
	}
	return out
}

// Stalled returns the sorted names of workers that are stalled at maxAge.
func (r *Registry) Stalled(maxAge time.Duration) []string {
	now := r.now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var stalled []string
	for name, h := range r.health {
		if h.Stalled(now, maxAge) {
			stalled = append(stalled, name)
		}
	}
	sort.Strings(stalled)
	return stalled
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.workers)
}
