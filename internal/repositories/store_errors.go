package repositories

import (
	"errors"
	"fmt"
)

// StoreErrorKind classifies backend failures independently of the storage engine.
type StoreErrorKind int

const (
	StoreErrorUnknown StoreErrorKind = iota
	StoreErrorNotFound
	StoreErrorConflict
	StoreErrorUnavailable
)

// StoreError is the RepositoryError produced by every storage backend.
type StoreError struct {
	Op   string
	Kind StoreErrorKind
	Err  error
}

var _ RepositoryError = (*StoreError)(nil)

func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return e.Op
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *StoreError) IsNotFound() bool    { return e != nil && e.Kind == StoreErrorNotFound }
func (e *StoreError) IsConflict() bool    { return e != nil && e.Kind == StoreErrorConflict }
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == StoreErrorUnavailable }

// NewNotFoundError reports a missing document or row.
func NewNotFoundError(op string, err error) error {
	if err == nil {
		err = errors.New("not found")
	}
	return &StoreError{Op: op, Kind: StoreErrorNotFound, Err: err}
}

// NewConflictError reports a uniqueness or version conflict.
func NewConflictError(op string, err error) error {
	if err == nil {
		err = errors.New("conflict")
	}
	return &StoreError{Op: op, Kind: StoreErrorConflict, Err: err}
}

// NewUnavailableError reports a transient backend outage.
func NewUnavailableError(op string, err error) error {
	if err == nil {
		err = errors.New("unavailable")
	}
	return &StoreError{Op: op, Kind: StoreErrorUnavailable, Err: err}
}

// IsNotFound reports whether err carries a not-found repository classification.
func IsNotFound(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsNotFound()
}

// IsConflict reports whether err carries a conflict repository classification.
func IsConflict(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsConflict()
}

// IsUnavailable reports whether err carries an unavailable repository classification.
func IsUnavailable(err error) bool {
	var repoErr RepositoryError
	return errors.As(err, &repoErr) && repoErr.IsUnavailable()
}
