package observability

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/requestctx"
)

func TestEventLogger_LevelFromEventName(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	hook := EventLogger(zap.New(core).Named("orders"), "order event")
	ctx := context.Background()

	hook(ctx, "orders.create.success", map[string]any{"orderId": "o1", "amount": 3750})
	hook(ctx, "orders.create.compensate", nil)
	hook(ctx, "orders.publish.failed", map[string]any{"error": "broker down"})

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.InfoLevel, entries[0].Level)
	assert.Equal(t, zapcore.WarnLevel, entries[1].Level)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)

	fields := entries[0].ContextMap()
	assert.Equal(t, "orders.create.success", fields["event"])
	assert.Equal(t, "o1", fields["orderId"])
	assert.Equal(t, "orders", entries[0].LoggerName)
}

func TestEventLogger_PrefersRequestLogger(t *testing.T) {
	fallbackCore, fallbackLogs := observer.New(zapcore.DebugLevel)
	requestCore, requestLogs := observer.New(zapcore.DebugLevel)

	hook := EventLogger(zap.New(fallbackCore), "order event")
	ctx := requestctx.WithLogger(context.Background(), zap.New(requestCore).With(zap.String("request_id", "r-1")))
	hook(ctx, "orders.cancel.success", nil)

	assert.Zero(t, fallbackLogs.Len())
	require.Equal(t, 1, requestLogs.Len())
	assert.Equal(t, "r-1", requestLogs.All()[0].ContextMap()["request_id"])
}

func TestRequestLoggerMiddleware_SeverityFollowsStatus(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	chain := func(h http.Handler) http.Handler {
		return InjectLoggerMiddleware(zap.New(core))(RequestLoggerMiddleware()(h))
	}

	for status, level := range map[int]zapcore.Level{
		http.StatusCreated:             zapcore.InfoLevel,
		http.StatusConflict:            zapcore.WarnLevel,
		http.StatusInternalServerError: zapcore.ErrorLevel,
	} {
		handler := chain(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(status)
		}))
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/orders", nil))

		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, level, entries[0].Level)
		assert.EqualValues(t, status, entries[0].ContextMap()["status"])
	}
}

func TestRecoveryMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	handler := RecoveryMiddleware(zap.New(core))(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/orders", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "internal_server_error")
	assert.Equal(t, 1, logs.FilterMessage("panic recovered").Len())
}

func TestPrintfAdapter_LogsAtConfiguredLevel(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	adapter := NewPrintfAdapter(zap.New(core), zapcore.WarnLevel)

	adapter.Printf("failed to write %d messages to %s", 3, "order-events")

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "failed to write 3 messages to order-events", entries[0].Message)

	NewPrintfAdapter(nil, zapcore.ErrorLevel).Printf("dropped")
}
