// Package storage provides custom error types for storage operations.
package storage

import "fmt"

// ErrStorageInitFailed indicates storage backend initialization failure.
type ErrStorageInitFailed struct {
	Backend string
	Cause   error
}

func (e *ErrStorageInitFailed) Error() string {
	return fmt.Sprintf("storage initialization failed (backend=%s): %v", e.Backend, e.Cause)
}

func (e *ErrStorageInitFailed) Unwrap() error {
	return e.Cause
}

// ErrInvalidFilePath indicates an invalid SQLite file path.
type ErrInvalidFilePath struct {
	Path   string
	Reason string
}

func (e *ErrInvalidFilePath) Error() string {
	return fmt.Sprintf("invalid file path '%s': %s", e.Path, e.Reason)
}

// ErrConnectionFailed indicates storage connection failure.
type ErrConnectionFailed struct {
	Backend string
	Cause   error
}

func (e *ErrConnectionFailed) Error() string {
	return fmt.Sprintf("storage connection failed (%s): %v", e.Backend, e.Cause)
}

func (e *ErrConnectionFailed) Unwrap() error {
	return e.Cause
}

// ErrSchemaInitFailed indicates database schema initialization failure.
type ErrSchemaInitFailed struct {
	Backend string
	Cause   error
}

func (e *ErrSchemaInitFailed) Error() string {
	return fmt.Sprintf("schema initialization failed (%s): %v", e.Backend, e.Cause)
}

func (e *ErrSchemaInitFailed) Unwrap() error {
	return e.Cause
}

// Error type classification for metrics.
const (
	ErrorTypeConnection = "connection"
	ErrorTypeNotFound    = "not_found"
	ErrorTypeValidation  = "validation"
	ErrorTypeSchema      = "schema"
	ErrorTypeUnknown     = "unknown"
)

// ClassifyError classifies an error for metrics labeling.
func ClassifyError(err error) string {
	switch {
	case err == nil:
		return ""
	case IsConnectionError(err):
		return ErrorTypeConnection
	case IsValidationError(err):
		return ErrorTypeValidation
	case IsSchemaError(err):
		return ErrorTypeSchema
	default:
		return ErrorTypeUnknown
	}
}

func IsConnectionError(err error) bool {
	_, ok := err.(*ErrConnectionFailed)
	return ok
}

func IsValidationError(err error) bool {
	_, ok := err.(*ErrInvalidFilePath)
	return ok
}

func IsSchemaError(err error) bool {
	_, ok := err.(*ErrSchemaInitFailed)
	return ok
}
