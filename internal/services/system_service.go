package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// BuildInfo captures runtime metadata exposed via health endpoints.
type BuildInfo struct {
	Version     string
	CommitSHA   string
	Environment string
	StartedAt   time.Time
}

// SystemServiceDeps bundles collaborators required to construct a system service.
// HealthRepository is normally the storage registry's probe set extended with the event transport.
// RequiredChecks names probes whose absence from a report is itself an error, such as the storage
// backend the order service cannot run without.
type SystemServiceDeps struct {
	HealthRepository repositories.HealthRepository
	RequiredChecks   []string
	Clock            func() time.Time
	Build            BuildInfo
}

type systemService struct {
	probes   repositories.HealthRepository
	required []string
	now      func() time.Time
	build    BuildInfo
}

var _ SystemService = (*systemService)(nil)

func NewSystemService(deps SystemServiceDeps) (SystemService, error) {
	if deps.HealthRepository == nil {
		return nil, errors.New("system service: health repository is required")
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	svc := &systemService{
		probes: deps.HealthRepository,
		now:    func() time.Time { return clock().UTC() },
		build:  deps.Build,
	}
	for _, name := range deps.RequiredChecks {
		if name = strings.TrimSpace(name); name != "" {
			svc.required = append(svc.required, name)
		}
	}
	if svc.build.StartedAt.IsZero() {
		svc.build.StartedAt = svc.now()
	}
	return svc, nil
}

func (s *systemService) HealthReport(ctx context.Context) (report SystemHealthReport, err error) {
	if ctx == nil {
		return SystemHealthReport{}, errors.New("system service: context is required")
	}
	ctx, span := startSpan(ctx, "SystemService.HealthReport")
	defer func() {
		span.SetAttributes(attribute.String("health.status", report.Status))
		endSpan(span, err)
	}()

	report, err = s.probes.Collect(ctx)
	if err != nil {
		return SystemHealthReport{}, err
	}

	now := s.now()
	if report.GeneratedAt.IsZero() {
		report.GeneratedAt = now
	} else {
		report.GeneratedAt = report.GeneratedAt.UTC()
	}
	if strings.TrimSpace(report.Version) == "" {
		report.Version = s.build.Version
	}
	if strings.TrimSpace(report.CommitSHA) == "" {
		report.CommitSHA = s.build.CommitSHA
	}
	if strings.TrimSpace(report.Environment) == "" {
		report.Environment = s.build.Environment
	}
	if report.Uptime <= 0 {
		report.Uptime = now.Sub(s.build.StartedAt)
	}

	if report.Checks == nil {
		report.Checks = map[string]domain.SystemHealthCheck{}
	}
	for _, name := range s.required {
		if _, ok := report.Checks[name]; !ok {
			report.Checks[name] = domain.SystemHealthCheck{
				Status:    domain.HealthStatusError,
				Error:     "check not registered",
				CheckedAt: now,
			}
		}
	}

	// A collector may report ok while one of its checks failed; the worst status wins.
	report.Status = worstStatus(report.Status, statusOfChecks(report.Checks))
	return report, nil
}

func statusOfChecks(checks map[string]domain.SystemHealthCheck) string {
	status := domain.HealthStatusOK
	for _, check := range checks {
		status = worstStatus(status, check.Status)
	}
	return status
}

func worstStatus(a, b string) string {
	if statusRank(b) > statusRank(a) {
		return b
	}
	if strings.TrimSpace(a) == "" {
		return domain.HealthStatusOK
	}
	return a
}

func statusRank(status string) int {
	switch status {
	case "", domain.HealthStatusOK:
		return 0
	case domain.HealthStatusError:
		return 2
	default:
		return 1
	}
}
