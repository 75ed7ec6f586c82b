package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	domain "github.com/a2z-dev007/ecommerce-backend/internal/domain"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

type routerStubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *routerStubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func serve(h http.Handler, method, path string, body io.Reader) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, body))
	return rr
}

func errorCode(t *testing.T, rr *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode error body %q: %v", rr.Body.String(), err)
	}
	code, _ := body["error"].(string)
	return code
}

func TestNewRouter_Probes(t *testing.T) {
	now := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	health := NewHealthHandlers(
		WithHealthSystemService(&routerStubSystemService{report: services.SystemHealthReport{
			Status:      domain.HealthStatusOK,
			GeneratedAt: now,
			Checks:      map[string]domain.SystemHealthCheck{"postgres": {Status: domain.HealthStatusOK}},
		}}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(health))

	rr := serve(router, http.MethodGet, "/healthz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("healthz: expected 200, got %d", rr.Code)
	}
	if ct := rr.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("healthz: unexpected content type %q", ct)
	}

	rr = serve(router, http.MethodGet, "/readyz", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("readyz: expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "postgres") {
		t.Fatalf("readyz: expected postgres check in %s", rr.Body.String())
	}
}

func TestNewRouter_UnmountedGroupsAnswerNotImplemented(t *testing.T) {
	router := NewRouter()

	for _, path := range []string{"/api/v1/orders", "/api/v1/orders/o1/cancel", "/api/v1/internal/orders/o1/payment"} {
		rr := serve(router, http.MethodPost, path, nil)
		if rr.Code != http.StatusNotImplemented {
			t.Fatalf("%s: expected 501, got %d", path, rr.Code)
		}
		if code := errorCode(t, rr); code != "not_implemented" {
			t.Fatalf("%s: unexpected error code %q", path, code)
		}
	}
}

func TestNewRouter_MountsRegistrars(t *testing.T) {
	router := NewRouter(
		WithOrderRoutes(func(r chi.Router) {
			r.Get("/{orderID}", func(w http.ResponseWriter, req *http.Request) {
				_, _ = io.WriteString(w, chi.URLParam(req, "orderID"))
			})
		}),
	)

	rr := serve(router, http.MethodGet, "/api/v1/orders/ord-42", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "ord-42" {
		t.Fatalf("expected 200 ord-42, got %d %q", rr.Code, rr.Body.String())
	}

	rr = serve(router, http.MethodDelete, "/api/v1/orders/ord-42", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "method_not_allowed" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestNewRouter_NotFound(t *testing.T) {
	rr := serve(NewRouter(), http.MethodGet, "/carts/mine", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if code := errorCode(t, rr); code != "route_not_found" {
		t.Fatalf("unexpected error code %q", code)
	}
}

func TestNewRouter_GroupMiddlewareStaysInGroup(t *testing.T) {
	tag := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-Collaborator-Gate", "on")
			next.ServeHTTP(w, r)
		})
	}
	noContent := func(r chi.Router) {
		r.Post("/orders/{orderID}/payment", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
		r.Get("/", func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	}
	router := NewRouter(
		WithInternalMiddlewares(tag),
		WithInternalRoutes(noContent),
		WithOrderRoutes(noContent),
	)

	rr := serve(router, http.MethodPost, "/api/v1/internal/orders/o1/payment", nil)
	if rr.Code != http.StatusNoContent || rr.Header().Get("X-Collaborator-Gate") != "on" {
		t.Fatalf("internal route: got %d gate=%q", rr.Code, rr.Header().Get("X-Collaborator-Gate"))
	}

	rr = serve(router, http.MethodGet, "/api/v1/orders", nil)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("orders route: expected 204, got %d", rr.Code)
	}
	if gate := rr.Header().Get("X-Collaborator-Gate"); gate != "" {
		t.Fatalf("internal middleware leaked into orders group: %q", gate)
	}
}

func TestNewRouter_LimitsRequestBodies(t *testing.T) {
	readAll := func(r chi.Router) {
		r.Post("/", func(w http.ResponseWriter, req *http.Request) {
			if _, err := io.ReadAll(req.Body); err != nil {
				w.WriteHeader(http.StatusRequestEntityTooLarge)
				return
			}
			w.WriteHeader(http.StatusAccepted)
		})
	}
	router := NewRouter(WithOrderRoutes(readAll), WithMaxBodyBytes(32))

	if rr := serve(router, http.MethodPost, "/api/v1/orders", strings.NewReader(`{"paymentMethod":"card"}`)); rr.Code != http.StatusAccepted {
		t.Fatalf("small body: expected 202, got %d", rr.Code)
	}
	if rr := serve(router, http.MethodPost, "/api/v1/orders", strings.NewReader(strings.Repeat("x", 64))); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("large body: expected 413, got %d", rr.Code)
	}
}
