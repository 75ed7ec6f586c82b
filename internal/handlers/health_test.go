package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

type stubSystemService struct {
	report services.SystemHealthReport
	err    error
	block  bool
}

func (s *stubSystemService) HealthReport(ctx context.Context) (services.SystemHealthReport, error) {
	if s.block {
		<-ctx.Done()
		return services.SystemHealthReport{}, ctx.Err()
	}
	return s.report, s.err
}

var _ services.SystemService = (*stubSystemService)(nil)

type readyBody struct {
	Status      string                        `json:"status"`
	Version     string                        `json:"version"`
	Environment string                        `json:"environment"`
	Checks      map[string]healthCheckPayload `json:"checks"`
	Details     []string                      `json:"details"`
}

func readyz(t *testing.T, h *HealthHandlers) (int, readyBody) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	var body readyBody
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body), rr.Body.String())
	return rr.Code, body
}

func TestHealthz_EchoesBuildInfo(t *testing.T) {
	start := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "2.4.0", CommitSHA: "f00dbabe", Environment: "staging", StartedAt: start}),
		WithHealthClock(func() time.Time { return start.Add(90 * time.Second) }),
	)

	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rr.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, domain.HealthStatusOK, body["status"])
	assert.Equal(t, "2.4.0", body["version"])
	assert.Equal(t, "f00dbabe", body["commitSha"])
	assert.Equal(t, "staging", body["environment"])
	assert.Equal(t, "1m30s", body["uptime"])
}

func TestReadyz_WithoutSystemServiceIsLive(t *testing.T) {
	code, body := readyz(t, NewHealthHandlers())
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, domain.HealthStatusOK, body.Status)
}

func TestReadyz_AllDependenciesUp(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			Version:     "2.4.0",
			GeneratedAt: now,
			Checks: map[string]domain.SystemHealthCheck{
				"postgres": {Status: domain.HealthStatusOK, Latency: 4 * time.Millisecond, CheckedAt: now},
				"kafka":    {Status: domain.HealthStatusOK, Latency: 12 * time.Millisecond, CheckedAt: now},
			},
		}}),
		WithHealthBuildInfo(services.BuildInfo{Environment: "prod"}),
		WithHealthClock(func() time.Time { return now }),
	)

	code, body := readyz(t, h)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "2.4.0", body.Version)
	assert.Equal(t, "prod", body.Environment, "build info fills gaps in the report")
	assert.Empty(t, body.Details)
	require.Contains(t, body.Checks, "kafka")
	assert.EqualValues(t, 12, body.Checks["kafka"].LatencyMS)
	assert.NotEmpty(t, body.Checks["postgres"].CheckedAt)
}

func TestReadyz_EventTransportDownFailsReadiness(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&stubSystemService{report: services.SystemHealthReport{
		Status: domain.HealthStatusError,
		Checks: map[string]domain.SystemHealthCheck{
			"firestore": {Status: domain.HealthStatusOK},
			"pubsub":    {Status: domain.HealthStatusError, Error: "topic order-events does not exist"},
			"secrets":   {Status: domain.HealthStatusDegraded, Detail: "serving fallback file"},
		},
	}}))

	code, body := readyz(t, h)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, domain.HealthStatusError, body.Status)
	assert.Equal(t, []string{
		"pubsub: topic order-events does not exist",
		"secrets: serving fallback file",
	}, body.Details)
}

func TestReadyz_CollectFailures(t *testing.T) {
	cases := map[string]*stubSystemService{
		"error":   {err: errors.New("registry closed")},
		"timeout": {block: true},
	}
	for name, svc := range cases {
		t.Run(name, func(t *testing.T) {
			h := NewHealthHandlers(WithHealthSystemService(svc), WithReadyTimeout(10*time.Millisecond))
			rr := httptest.NewRecorder()
			h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))

			assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
			assert.Equal(t, "health_check_failed", errorCode(t, rr))
		})
	}
}
