package idempotency

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/auth"
)

var fixedTime = time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)

func fixedClock() time.Time { return fixedTime }

func newOrderRequest(key, body string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/orders", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if key != "" {
		req.Header.Set("Idempotency-Key", key)
	}
	return req
}

func createdHandler(calls *atomic.Int32) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]any{"orderNumber": fmt.Sprintf("ORD-202503-%05d", n)})
	})
}

func TestMiddleware_PassesThroughWithoutKey(t *testing.T) {
	var calls atomic.Int32
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(createdHandler(&calls))

	for range 2 {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, newOrderRequest("", `{"email":"a@example.com"}`))
		if rr.Code != http.StatusCreated {
			t.Fatalf("expected 201, got %d", rr.Code)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected handler to run twice without a key, got %d", calls.Load())
	}
}

func TestMiddleware_RequiredKey(t *testing.T) {
	var calls atomic.Int32
	handler := Middleware(NewMemoryStore(), WithRequiredKey())(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest("", `{}`))

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	assertErrorCode(t, rr, "idempotency_key_required")
	if calls.Load() != 0 {
		t.Fatal("handler must not run")
	}
}

func TestMiddleware_ReplaysStoredResponse(t *testing.T) {
	var calls atomic.Int32
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(createdHandler(&calls))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newOrderRequest("checkout-1", `{"email":"a@example.com"}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newOrderRequest("checkout-1", `{"email":"a@example.com"}`))

	if calls.Load() != 1 {
		t.Fatalf("expected a single order creation, got %d", calls.Load())
	}
	if second.Code != http.StatusCreated {
		t.Fatalf("expected replayed 201, got %d", second.Code)
	}
	if second.Body.String() != first.Body.String() {
		t.Fatalf("replayed body differs: %q vs %q", second.Body.String(), first.Body.String())
	}
	if second.Header().Get(replayHeaderName) != "true" {
		t.Fatal("expected replay header")
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("expected stored content type, got %q", second.Header().Get("Content-Type"))
	}
}

func TestMiddleware_DifferentBodyConflicts(t *testing.T) {
	var calls atomic.Int32
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(createdHandler(&calls))

	handler.ServeHTTP(httptest.NewRecorder(), newOrderRequest("checkout-1", `{"email":"a@example.com"}`))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest("checkout-1", `{"email":"b@example.com"}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
	assertErrorCode(t, rr, "idempotency_key_conflict")
}

func TestMiddleware_KeysAreScopedPerCaller(t *testing.T) {
	var calls atomic.Int32
	handler := Middleware(NewMemoryStore(), WithClock(fixedClock))(createdHandler(&calls))

	for _, uid := range []string{"cust-1", "cust-2"} {
		req := newOrderRequest("checkout-1", `{}`)
		identity := &auth.Identity{UID: uid, Roles: []string{auth.RoleCustomer}}
		req = req.WithContext(auth.WithIdentity(req.Context(), identity))
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		if rr.Header().Get(replayHeaderName) != "" {
			t.Fatalf("caller %s must not receive another caller's replay", uid)
		}
	}
	if calls.Load() != 2 {
		t.Fatalf("expected two creations, got %d", calls.Load())
	}
}

func TestMiddleware_ServerErrorsAreNotStored(t *testing.T) {
	store := NewMemoryStore()
	var calls atomic.Int32
	handler := Middleware(store, WithClock(fixedClock))(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, newOrderRequest("checkout-1", `{}`))
	second := httptest.NewRecorder()
	handler.ServeHTTP(second, newOrderRequest("checkout-1", `{}`))

	if first.Code != http.StatusInternalServerError || second.Code != http.StatusCreated {
		t.Fatalf("expected 500 then 201, got %d then %d", first.Code, second.Code)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected retry to reach the handler, got %d calls", calls.Load())
	}
}

func TestMiddleware_InFlightKey(t *testing.T) {
	store := NewMemoryStore()
	if _, err := store.Reserve(context.Background(), "checkout-1|anonymous", "other", fixedTime, time.Hour); err != nil {
		t.Fatalf("seed reservation: %v", err)
	}
	var calls atomic.Int32
	handler := Middleware(store, WithClock(fixedClock))(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest("checkout-1", `{}`))

	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d", rr.Code)
	}
}

type failingStore struct{ *MemoryStore }

func (failingStore) Reserve(context.Context, string, string, time.Time, time.Duration) (Reservation, error) {
	return Reservation{}, errors.New("firestore unavailable")
}

func TestMiddleware_StoreFailure(t *testing.T) {
	var calls atomic.Int32
	handler := Middleware(failingStore{NewMemoryStore()})(createdHandler(&calls))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, newOrderRequest("checkout-1", `{}`))

	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
	if calls.Load() != 0 {
		t.Fatal("handler must not run when the store fails")
	}
}

func TestMemoryStore_ExpiryAndCleanup(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	if _, err := store.Reserve(ctx, "k1", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := store.SaveResponse(ctx, "k1", "fp", Response{Status: http.StatusCreated}, fixedTime, time.Minute); err != nil {
		t.Fatalf("save: %v", err)
	}

	res, err := store.Reserve(ctx, "k1", "fp", fixedTime.Add(30*time.Second), time.Minute)
	if err != nil || res.State != ReservationStateCompleted {
		t.Fatalf("expected completed reservation, got %v %v", res.State, err)
	}

	res, err = store.Reserve(ctx, "k1", "other", fixedTime.Add(2*time.Minute), time.Minute)
	if err != nil || res.State != ReservationStateNew {
		t.Fatalf("expired key should be reusable, got %v %v", res.State, err)
	}

	if _, err := store.Reserve(ctx, "k2", "fp", fixedTime, time.Minute); err != nil {
		t.Fatalf("reserve k2: %v", err)
	}
	removed, err := store.CleanupExpired(ctx, fixedTime.Add(90*time.Second), 10)
	if err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected k2 to be removed, removed %d", removed)
	}
}

func assertErrorCode(t *testing.T, rr *httptest.ResponseRecorder, code string) {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode error body: %v", err)
	}
	if payload["error"] != code {
		t.Fatalf("expected error %q, got %v", code, payload["error"])
	}
}
