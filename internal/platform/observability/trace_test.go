package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/requestctx"
)

const sampleTraceID = "105445aa7843bc8bf206b12000100000"

func TestParseCloudTraceContext(t *testing.T) {
	sc, ok := ParseCloudTraceContext(sampleTraceID + "/1;o=1")
	require.True(t, ok)
	assert.Equal(t, sampleTraceID, sc.TraceID().String())
	assert.Equal(t, "0000000000000001", sc.SpanID().String())
	assert.True(t, sc.IsSampled())
	assert.True(t, sc.IsRemote())

	sc, ok = ParseCloudTraceContext(sampleTraceID + "/00f067aa0ba902b7")
	require.True(t, ok, "hex span ids are tolerated")
	assert.Equal(t, "00f067aa0ba902b7", sc.SpanID().String())
	assert.False(t, sc.IsSampled())

	for _, header := range []string{
		"",
		sampleTraceID,
		"not-a-trace/1;o=1",
		sampleTraceID + "/0;o=1",
		sampleTraceID + "/abc;o=1",
	} {
		_, ok := ParseCloudTraceContext(header)
		assert.False(t, ok, header)
	}
}

func TestFormatCloudTraceContextRoundTrips(t *testing.T) {
	header := sampleTraceID + "/2;o=1"
	sc, ok := ParseCloudTraceContext(header)
	require.True(t, ok)
	assert.Equal(t, header, FormatCloudTraceContext(sc))
}

func TestTraceMiddlewareContinuesCloudTrace(t *testing.T) {
	var seen requestctx.TraceInfo
	router := chi.NewRouter()
	router.Use(TraceMiddleware("shop-prod"))
	router.Get("/api/v1/orders/{orderID}", func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.Trace(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/orders/01JQ8Z4V3N", nil)
	req.Header.Set(CloudTraceHeader, sampleTraceID+"/42;o=1")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, sampleTraceID, seen.TraceID)
	assert.Equal(t, "shop-prod", seen.ProjectID)
	assert.True(t, seen.Sampled)
	assert.Equal(t, sampleTraceID+"/42;o=1", rec.Header().Get(CloudTraceHeader))
}

func TestTraceMiddlewareWithoutParent(t *testing.T) {
	var seen requestctx.TraceInfo
	handler := TraceMiddleware("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = requestctx.Trace(r.Context())
		w.WriteHeader(http.StatusServiceUnavailable)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/orders", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Empty(t, rec.Header().Get(CloudTraceHeader), "no valid span without a provider or parent")
	assert.Empty(t, seen.ProjectID)
}
