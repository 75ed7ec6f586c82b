package services

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind is the caller-facing failure category.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindNotFound
	KindValidation
	KindConflict
)

func (k ErrorKind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	default:
		return "internal"
	}
}

// HTTPStatus maps the kind to its HTTP-status equivalent.
func (k ErrorKind) HTTPStatus() int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

var (
	// ErrEmptyCart indicates the customer has no cart or the cart has no items.
	ErrEmptyCart = errors.New("order: cart is empty")
	// ErrProductNotFound indicates a cart line references a missing product or variant.
	ErrProductNotFound = errors.New("order: product not found")
	// ErrInsufficientStock indicates tracked stock cannot cover the requested quantity.
	ErrInsufficientStock = errors.New("order: insufficient stock")
	// ErrOrderNotFound indicates the order does not exist or is not visible to the caller.
	ErrOrderNotFound = errors.New("order: not found")
	// ErrOrderNotCancellable indicates the order is shipped, delivered or already cancelled.
	ErrOrderNotCancellable = errors.New("order: cannot be cancelled")
	// ErrInvalidTransition indicates the requested status change is not permitted.
	ErrInvalidTransition = errors.New("order: invalid status transition")
	// ErrInvalidInput signals malformed caller input.
	ErrInvalidInput = errors.New("order: invalid input")
	// ErrOrderConflict indicates a concurrent modification or a duplicate order number.
	ErrOrderConflict = errors.New("order: conflict")
	// ErrInternal wraps persistence and other unexpected failures.
	ErrInternal = errors.New("order: internal error")
)

var sentinelKinds = map[error]struct {
	kind ErrorKind
	code string
}{
	ErrEmptyCart:           {KindValidation, "empty_cart"},
	ErrProductNotFound:     {KindNotFound, "product_not_found"},
	ErrInsufficientStock:   {KindConflict, "insufficient_stock"},
	ErrOrderNotFound:       {KindNotFound, "order_not_found"},
	ErrOrderNotCancellable: {KindConflict, "order_not_cancellable"},
	ErrInvalidTransition:   {KindValidation, "invalid_transition"},
	ErrInvalidInput:        {KindValidation, "invalid_input"},
	ErrOrderConflict:       {KindConflict, "order_conflict"},
	ErrInternal:            {KindInternal, "internal"},
}

// Error is the typed failure returned by the order core. Unwrap exposes the sentinel so callers can
// use errors.Is.
type Error struct {
	Kind    ErrorKind
	Code    string
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// HTTPStatus returns the HTTP status equivalent of the error kind.
func (e *Error) HTTPStatus() int {
	if e == nil {
		return http.StatusInternalServerError
	}
	return e.Kind.HTTPStatus()
}

// newError wraps sentinel with a formatted message and classifies it.
func newError(sentinel error, format string, args ...any) *Error {
	meta, ok := sentinelKinds[sentinel]
	if !ok {
		meta = sentinelKinds[ErrInternal]
	}
	msg := fmt.Sprintf(format, args...)
	return &Error{
		Kind:    meta.kind,
		Code:    meta.code,
		Message: msg,
		Err:     fmt.Errorf("%w: %s", sentinel, msg),
	}
}

// internalError wraps an unexpected failure while keeping the cause reachable.
func internalError(op string, err error) *Error {
	return &Error{
		Kind:    KindInternal,
		Code:    sentinelKinds[ErrInternal].code,
		Message: op + " failed",
		Err:     fmt.Errorf("%w: %s: %w", ErrInternal, op, err),
	}
}

// AsError extracts the typed service error from err.
func AsError(err error) (*Error, bool) {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr, true
	}
	return nil, false
}
