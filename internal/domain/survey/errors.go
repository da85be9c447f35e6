package survey

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input.
	ErrValidation = errors.New("validation failed")
	// ErrAuthFailure marks bad credentials or a missing identity.
	ErrAuthFailure = errors.New("authentication failed")
	// ErrUnauthorized marks an authenticated caller that is not permitted.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrNotFound marks a referenced record that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrStorage marks a store or filesystem failure, including lock timeouts.
	ErrStorage = errors.New("storage failure")
	// ErrBusy marks a storage failure caused by a lock timeout. It is
	// transient and always accompanies ErrStorage.
	ErrBusy = errors.New("store busy")
)

// ValidationError describes one rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

type storageError struct {
	op  string
	err error
}

func (e *storageError) Error() string {
	return fmt.Sprintf("%s failed: %v", e.op, e.err)
}

func (e *storageError) Unwrap() []error { return []error{ErrStorage, e.err} }

// StorageError wraps err as an ErrStorage raised by op. Nil stays nil, and
// errors already classified as storage failures are returned unchanged.
func StorageError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrStorage) {
		return err
	}
	return &storageError{op: op, err: err}
}

// StorageOp returns the operation recorded by StorageError, or "" when err
// is not a storage failure.
func StorageOp(err error) string {
	var serr *storageError
	if errors.As(err, &serr) {
		return serr.op
	}
	return ""
}

// PublicMessage describes a storage failure without its cause, which may
// carry driver details or filesystem paths.
func PublicMessage(err error) string {
	op := StorageOp(err)
	if op == "" {
		op = "storage"
	}
	if errors.Is(err, ErrBusy) {
		return op + " failed: store busy, retry later"
	}
	return op + " failed"
}
