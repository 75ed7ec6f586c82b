package handlers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/a2z-dev007/ecommerce-backend/internal/platform/auth"
	"github.com/a2z-dev007/ecommerce-backend/internal/platform/httpx"
	"github.com/a2z-dev007/ecommerce-backend/internal/services"
)

const (
	// CollaboratorPayments names the payment provider integration calling back with payment outcomes.
	CollaboratorPayments = "payments"
	// CollaboratorCarrier names the shipping carrier integration reporting tracking numbers.
	CollaboratorCarrier = "carrier"
)

// InternalOrderHandlers serves collaborator callbacks authenticated by Google-signed OIDC tokens.
type InternalOrderHandlers struct {
	validator *auth.ServiceValidator
	orders    services.OrderService
}

// NewInternalOrderHandlers wires the collaborator callbacks. A nil validator leaves the routes
// unauthenticated and is only meant for tests.
func NewInternalOrderHandlers(validator *auth.ServiceValidator, orders services.OrderService) *InternalOrderHandlers {
	return &InternalOrderHandlers{validator: validator, orders: orders}
}

// Routes registers /internal/orders callbacks.
func (h *InternalOrderHandlers) Routes(r chi.Router) {
	if r == nil {
		return
	}
	r.With(h.require(CollaboratorPayments)).Post("/orders/{orderID}/payment", h.paymentCallback)
	r.With(h.require(CollaboratorCarrier)).Post("/orders/{orderID}/tracking", h.trackingCallback)
}

func (h *InternalOrderHandlers) require(collaborator string) func(http.Handler) http.Handler {
	if h.validator == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return h.validator.RequireService(collaborator)
}

func (h *InternalOrderHandlers) paymentCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	applyPaymentUpdate(ctx, w, r, h.orders, orderID, serviceActor(r, CollaboratorPayments))
}

func (h *InternalOrderHandlers) trackingCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.orders == nil {
		httpx.WriteError(ctx, w, httpx.NewError("order_service_unavailable", "order service unavailable", http.StatusServiceUnavailable))
		return
	}
	orderID, ok := orderIDParam(ctx, w, r)
	if !ok {
		return
	}
	applyTracking(ctx, w, r, h.orders, orderID, serviceActor(r, CollaboratorCarrier))
}

// serviceActor renders the calling principal as "service:<collaborator>:<email or subject>".
func serviceActor(r *http.Request, collaborator string) string {
	actor := "service:" + collaborator
	identity, ok := auth.ServiceIdentityFromContext(r.Context())
	if !ok {
		return actor
	}
	principal := strings.TrimSpace(identity.Email)
	if principal == "" {
		principal = strings.TrimSpace(identity.Subject)
	}
	if principal == "" {
		return actor
	}
	return actor + ":" + principal
}
