package entities

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the storage and metadata layers
var (
	// ErrTransferNotFound means the transfer id is unknown
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrTransferExpired means the transfer exists but is past its
	// retention window. Kept distinct from ErrTransferNotFound so the
	// boundary can say "link expired" rather than "never existed".
	ErrTransferExpired = errors.New("transfer expired")

	// ErrFileNotFound means the file id is unknown, does not belong to
	// the named transfer, or its blob is missing from storage
	ErrFileNotFound = errors.New("file not found")
)

// ValidationError reports bad upload input. It is returned before any
// byte reaches storage.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Reason
}

// NewValidationError creates a validation error with a formatted reason
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// StorageError wraps a filesystem failure from the storage layer
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s: %v", e.Op, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a metadata backend failure
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("metadata %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
