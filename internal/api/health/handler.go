package health

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"pricewise/pkg/logger"
)

// Checker is a dependency that can report its connectivity.
type Checker interface {
	Health(ctx context.Context) error
}

// CheckerFunc adapts a function to Checker.
type CheckerFunc func(ctx context.Context) error

func (f CheckerFunc) Health(ctx context.Context) error { return f(ctx) }

// WorkerReporter lists workers that stopped running or keep failing.
type WorkerReporter interface {
	Stalled(maxAge time.Duration) []string
}

type component struct {
	name     string
	checker  Checker
	critical bool
}

// Handler serves the liveness, readiness and health probes.
type Handler struct {
	log          *logger.Logger
	components   []component
	workers      WorkerReporter
	workerMaxAge time.Duration
	startTime    time.Time
	serviceName  string
	version      string
}

func New(serviceName, version string) *Handler {
	return &Handler{
		log:         logger.Get().With("component", "health"),
		startTime:   time.Now(),
		serviceName: serviceName,
		version:     version,
	}
}

// AddCritical registers a dependency that must be up for readiness.
func (h *Handler) AddCritical(name string, c Checker) *Handler {
	h.components = append(h.components, component{name: name, checker: c, critical: true})
	return h
}

// AddOptional registers a dependency whose failure only degrades health.
func (h *Handler) AddOptional(name string, c Checker) *Handler {
	h.components = append(h.components, component{name: name, checker: c})
	return h
}

// WithWorkers reports workers that have not run within maxAge.
func (h *Handler) WithWorkers(w WorkerReporter, maxAge time.Duration) *Handler {
	h.workers = w
	h.workerMaxAge = maxAge
	return h
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status           string                     `json:"status"` // healthy, degraded, unhealthy
	Service          string                     `json:"service"`
	Version          string                     `json:"version"`
	Uptime           string                     `json:"uptime"`
	Timestamp        string                     `json:"timestamp"`
	Checks           map[string]ComponentHealth `json:"checks"`
	UnhealthyWorkers []string                   `json:"unhealthy_workers,omitempty"`
}

// ComponentHealth represents health of a single component
type ComponentHealth struct {
	Status       string `json:"status"`
	Critical     bool   `json:"critical"`
	ResponseTime string `json:"response_time,omitempty"`
	Error        string `json:"error,omitempty"`
}

// HandleLiveness returns 200 while the process serves requests.
func (h *Handler) HandleLiveness(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "alive"})
}

// HandleReadiness returns 503 when any critical dependency is down.
func (h *Handler) HandleReadiness(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	status := h.evaluate(ctx)
	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
		h.log.Warnw("Readiness check failed", "checks", status.Checks)
	}
	writeJSON(w, code, status)
}

// HandleHealth reports every check. Degraded still answers 200.
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	status := h.evaluate(ctx)
	if h.workers != nil {
		status.UnhealthyWorkers = h.workers.Stalled(h.workerMaxAge)
		if len(status.UnhealthyWorkers) > 0 && status.Status == "healthy" {
			status.Status = "degraded"
		}
	}

	code := http.StatusOK
	if status.Status == "unhealthy" {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, status)
}

func (h *Handler) evaluate(ctx context.Context) HealthStatus {
	checks := make(map[string]ComponentHealth, len(h.components))
	criticalDown, optionalDown := false, false

	for _, c := range h.components {
		ch := check(ctx, c)
		checks[c.name] = ch
		if ch.Status == "healthy" {
			continue
		}
		h.log.Warnw("Health check failed", "component", c.name, "error", ch.Error)
		if c.critical {
			criticalDown = true
		} else {
			optionalDown = true
		}
	}

	status := HealthStatus{
		Status:    "healthy",
		Service:   h.serviceName,
		Version:   h.version,
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Checks:    checks,
	}
	switch {
	case criticalDown:
		status.Status = "unhealthy"
	case optionalDown:
		status.Status = "degraded"
	}
	return status
}

func check(ctx context.Context, c component) ComponentHealth {
	start := time.Now()
	err := c.checker.Health(ctx)
	elapsed := time.Since(start)

	ch := ComponentHealth{
		Status:       "healthy",
		Critical:     c.critical,
		ResponseTime: elapsed.String(),
	}
	if err != nil {
		ch.Status = "unhealthy"
		ch.Error = err.Error()
	}
	return ch
}

// Components returns the registered check names, sorted.
func (h *Handler) Components() []string {
	names := make([]string, 0, len(h.components))
	for _, c := range h.components {
		names = append(names, c.name)
	}
	sort.Strings(names)
	return names
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
