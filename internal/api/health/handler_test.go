package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pricewise/pkg/errors"
)

func up() Checker   { return CheckerFunc(func(context.Context) error { return nil }) }
func down() Checker { return CheckerFunc(func(context.Context) error { return errors.ErrUnavailable }) }

type staticWorkers []string

func (s staticWorkers) Stalled(time.Duration) []string { return s }

func serve(t *testing.T, fn http.HandlerFunc) (int, HealthStatus) {
	t.Helper()
	rec := httptest.NewRecorder()
	fn(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	var status HealthStatus
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	return rec.Code, status
}

func TestReadiness(t *testing.T) {
	tests := []struct {
		name       string
		handler    *Handler
		wantCode   int
		wantStatus string
	}{
		{
			name:       "all up",
			handler:    New("pricewise", "test").AddCritical("postgres", up()).AddOptional("clickhouse", up()),
			wantCode:   http.StatusOK,
			wantStatus: "healthy",
		},
		{
			name:       "optional down",
			handler:    New("pricewise", "test").AddCritical("postgres", up()).AddOptional("clickhouse", down()),
			wantCode:   http.StatusOK,
			wantStatus: "degraded",
		},
		{
			name:       "critical down",
			handler:    New("pricewise", "test").AddCritical("postgres", down()).AddOptional("clickhouse", up()),
			wantCode:   http.StatusServiceUnavailable,
			wantStatus: "unhealthy",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, status := serve(t, tt.handler.HandleReadiness)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, status.Status)
			assert.Len(t, status.Checks, 2)
		})
	}
}

func TestHealthReportsStalledWorkers(t *testing.T) {
	h := New("pricewise", "test").
		AddCritical("postgres", up()).
		WithWorkers(staticWorkers{"batch_pricing"}, time.Hour)

	code, status := serve(t, h.HandleHealth)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "degraded", status.Status)
	assert.Equal(t, []string{"batch_pricing"}, status.UnhealthyWorkers)
	assert.Equal(t, []string{"postgres"}, h.Components())
}

func TestLiveness(t *testing.T) {
	rec := httptest.NewRecorder()
	New("pricewise", "test").AddCritical("postgres", down()).HandleLiveness(rec, httptest.NewRequest(http.MethodGet, "/live", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"alive"}`, rec.Body.String())
}
