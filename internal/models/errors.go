package models

import (
	"database/sql"
	"errors"

	"github.com/lib/pq"
)

var (
	ErrInvalidKey            = errors.New("invalid or disabled API key")
	ErrKeyWebsiteMismatch    = errors.New("API key does not belong to this website")
	ErrPermissionDenied      = errors.New("you do not have permission to access this website")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrAccountNotInitialized = errors.New("user account not properly initialized, please log out and back in")
	ErrNotFound              = errors.New("not found")
)

// Error codes returned to API clients.
const (
	CodeInvalidKey            = "invalid_key"
	CodeKeyWebsiteMismatch    = "key_website_mismatch"
	CodePermissionDenied      = "permission_denied"
	CodeUnauthenticated       = "unauthenticated"
	CodeValidation            = "validation_error"
	CodePersistence           = "persistence_error"
	CodeAccountNotInitialized = "account_not_initialized"
	CodeNotFound              = "not_found"
	CodeInternal              = "internal_error"
)

// ValidationError reports a rejected input field.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func NewValidationError(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// PersistenceError wraps a failed store operation.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return "failed to " + e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistErr(op string, err error) error {
	if err == nil {
		return nil
	}
	return &PersistenceError{Op: op, Err: err}
}

// ErrorKind maps err onto one of the Code* constants.
func ErrorKind(err error) string {
	var validation *ValidationError
	var persistence *PersistenceError

	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidKey):
		return CodeInvalidKey
	case errors.Is(err, ErrKeyWebsiteMismatch):
		return CodeKeyWebsiteMismatch
	case errors.Is(err, ErrPermissionDenied):
		return CodePermissionDenied
	case errors.Is(err, ErrUnauthenticated):
		return CodeUnauthenticated
	case errors.Is(err, ErrAccountNotInitialized):
		return CodeAccountNotInitialized
	case errors.Is(err, ErrNotFound):
		return CodeNotFound
	case errors.As(err, &validation):
		return CodeValidation
	case errors.As(err, &persistence):
		return CodePersistence
	default:
		return CodeInternal
	}
}

// PostgreSQL SQLSTATE codes inspected by the store.
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pqCode(err error) string {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code)
	}
	return ""
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
