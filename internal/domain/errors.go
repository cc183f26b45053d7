package domain

import (
	"errors"
	"fmt"
)

// DomainError represents a domain-specific error
type DomainError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is reports whether target is a DomainError with the same code and message,
// so wrapped sentinels still match with errors.Is.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Code == t.Code && e.Message == t.Message
}

// NewDomainError creates a new DomainError
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     nil,
	}
}

// NewDomainErrorWithCause creates a new DomainError with an underlying cause
func NewDomainErrorWithCause(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Error codes
const (
	ErrCodeValidation    = "VALIDATION_ERROR"
	ErrCodeNotFound      = "NOT_FOUND"
	ErrCodeUnavailable   = "UNAVAILABLE"
	ErrCodeOracleFailure = "ORACLE_FAILURE"
	ErrCodeNotConfigured = "NOT_CONFIGURED"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeInternalError = "INTERNAL_ERROR"
)

// Invalid request errors
var (
	ErrEmptyQuery        = NewDomainError(ErrCodeValidation, "query has no searchable terms")
	ErrMissingSystem     = NewDomainError(ErrCodeValidation, "system is required")
	ErrInvalidPagination = NewDomainError(ErrCodeValidation, "limit and offset must be non-negative")
	ErrLimitTooLarge     = NewDomainError(ErrCodeValidation, "limit exceeds the maximum page size")
	ErrStaleCursor       = NewDomainError(ErrCodeValidation, "cursor belongs to a previous index build")
	ErrInvalidCursor     = NewDomainError(ErrCodeValidation, "invalid cursor")
	ErrMissingFocus      = NewDomainError(ErrCodeValidation, "focus or original text is required")
	ErrMissingColumn     = NewDomainError(ErrCodeValidation, "required vocabulary column missing")
)

// Not found errors
var (
	ErrUnknownSystem = NewDomainError(ErrCodeNotFound, "unknown vocabulary system")
)

// Availability errors
var (
	ErrIndexUnavailable  = NewDomainError(ErrCodeUnavailable, "vocabulary index unavailable")
	ErrLookupUnavailable = NewDomainError(ErrCodeUnavailable, "lookup service unavailable")
)

// Oracle errors
var (
	ErrOracleFailure       = NewDomainError(ErrCodeOracleFailure, "suggestion oracle returned an invalid verdict")
	ErrOracleNotConfigured = NewDomainError(ErrCodeNotConfigured, "suggestion oracle not configured")
	ErrLogNotConfigured    = NewDomainError(ErrCodeNotConfigured, "resolution log not configured")
)

// CodeOf returns the DomainError code found in err's chain, or "" when there is none.
func CodeOf(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsInvalidRequest reports whether err is a caller defect that must not be retried.
func IsInvalidRequest(err error) bool {
	code := CodeOf(err)
	return code == ErrCodeValidation || code == ErrCodeNotFound
}
