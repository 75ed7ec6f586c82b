package repositories

import (
	"errors"
	"fmt"
)

// CounterErrorCode classifies sequence counter failures.
type CounterErrorCode string

const (
	CounterErrorUnknown CounterErrorCode = "counter_unknown"
	// CounterErrorInvalidInput is an empty counter id or a non-positive step.
	CounterErrorInvalidInput CounterErrorCode = "counter_invalid_input"
)

// CounterError reports a failed Next on one counter, e.g. "orders:202503".
type CounterError struct {
	Code      CounterErrorCode
	CounterID string
	Message   string
	Err       error
}

func (e *CounterError) Error() string {
	if e == nil {
		return ""
	}
	if e.CounterID == "" {
		return fmt.Sprintf("counter: %s", e.Message)
	}
	return fmt.Sprintf("counter %s: %s", e.CounterID, e.Message)
}

func (e *CounterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewCounterError builds a CounterError. An empty message falls back to the code.
func NewCounterError(code CounterErrorCode, counterID, message string, err error) *CounterError {
	if message == "" {
		message = string(code)
	}
	return &CounterError{Code: code, CounterID: counterID, Message: message, Err: err}
}

// IsInvalidCounterInput reports whether err rejects the counter id or step rather than failing in
// the store.
func IsInvalidCounterInput(err error) bool {
	var counterErr *CounterError
	return errors.As(err, &counterErr) && counterErr.Code == CounterErrorInvalidInput
}
