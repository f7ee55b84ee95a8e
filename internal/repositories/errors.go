package repositories

import "fmt"

// StoreErrorKind classifies failures raised by non-Firestore stores.
type StoreErrorKind string

const (
	// StoreErrorNotFound indicates the addressed record does not exist in scope.
	StoreErrorNotFound StoreErrorKind = "not_found"
	// StoreErrorConflict indicates the write collided with existing state.
	StoreErrorConflict StoreErrorKind = "conflict"
	// StoreErrorUnavailable indicates the backend could not serve the request.
	StoreErrorUnavailable StoreErrorKind = "unavailable"
)

// StoreError implements RepositoryError for in-process stores.
type StoreError struct {
	Op      string
	Kind    StoreErrorKind
	Message string
	Err     error
}

var _ RepositoryError = (*StoreError)(nil)

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e == nil {
		return ""
	}
	if e.Op != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	return e.Message
}

// Unwrap exposes the underlying error, if any.
func (e *StoreError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsNotFound reports whether the record was missing.
func (e *StoreError) IsNotFound() bool { return e != nil && e.Kind == StoreErrorNotFound }

// IsConflict reports whether the write conflicted.
func (e *StoreError) IsConflict() bool { return e != nil && e.Kind == StoreErrorConflict }

// IsUnavailable reports whether the store was unavailable.
func (e *StoreError) IsUnavailable() bool { return e != nil && e.Kind == StoreErrorUnavailable }

// NewStoreError constructs a typed store error.
func NewStoreError(op string, kind StoreErrorKind, message string) *StoreError {
	if message == "" {
		message = string(kind)
	}
	return &StoreError{Op: op, Kind: kind, Message: message}
}
