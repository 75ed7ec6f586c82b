package firestore

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/a2z-dev007/ecommerce-backend/internal/repositories"
)

// WrapError classifies a Firestore failure as a repositories.StoreError using its gRPC code.
// Context cancellation is passed through so callers can tell it apart from backend faults.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	var storeErr *repositories.StoreError
	if errors.As(err, &storeErr) {
		return err
	}

	kind := repositories.StoreErrorUnknown
	switch status.Code(err) {
	case codes.Canceled:
		return context.Canceled
	case codes.DeadlineExceeded:
		return context.DeadlineExceeded
	case codes.NotFound:
		kind = repositories.StoreErrorNotFound
	case codes.AlreadyExists, codes.FailedPrecondition, codes.Aborted:
		kind = repositories.StoreErrorConflict
	case codes.Unavailable, codes.ResourceExhausted, codes.Internal:
		kind = repositories.StoreErrorUnavailable
	}
	return &repositories.StoreError{Op: op, Kind: kind, Err: err}
}
