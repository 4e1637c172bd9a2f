// Package utils provides logging and error handling primitives shared by
// the extraction engine packages.
package utils

import (
	"errors"
	"fmt"
	"time"
)

// ErrorSeverity represents the severity level of an error.
type ErrorSeverity int

const (
	SeverityInfo ErrorSeverity = iota
	SeverityWarning
	SeverityError
	SeverityCritical
)

// String returns string representation of error severity.
func (s ErrorSeverity) String() string {
	switch s {
	case SeverityInfo:
		return "INFO"
	case SeverityWarning:
		return "WARNING"
	case SeverityError:
		return "ERROR"
	case SeverityCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// ErrorCode categorizes errors for handling and propagation decisions.
type ErrorCode string

const (
	// Fetch errors
	ErrCodeTimeout      ErrorCode = "TIMEOUT"
	ErrCodeClientError  ErrorCode = "CLIENT_ERROR"
	ErrCodeServerError  ErrorCode = "SERVER_ERROR"
	ErrCodeNetworkError ErrorCode = "NETWORK_ERROR"
	ErrCodeFetchFailed  ErrorCode = "FETCH_FAILED"
	ErrCodeInvalidURL   ErrorCode = "INVALID_URL"

	// Parse errors
	ErrCodeMalformedDocument ErrorCode = "MALFORMED_DOCUMENT"
	ErrCodeSelectorError     ErrorCode = "SELECTOR_ERROR"

	// Configuration errors
	ErrCodeAdapterNotFound      ErrorCode = "ADAPTER_NOT_FOUND"
	ErrCodeInvalidAdapterSchema ErrorCode = "INVALID_ADAPTER_SCHEMA"
	ErrCodeInvalidConfig        ErrorCode = "INVALID_CONFIG"

	// Orchestration errors
	ErrCodeJobNotFound     ErrorCode = "JOB_NOT_FOUND"
	ErrCodeAlreadyTerminal ErrorCode = "ALREADY_TERMINAL"
	ErrCodeStoreFailure    ErrorCode = "STORE_FAILURE"

	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
)

// StructuredError provides categorized error information with context.
type StructuredError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Severity  ErrorSeverity          `json:"severity"`
	Context   map[string]interface{} `json:"context,omitempty"`
	Cause     error                  `json:"-"`
	Timestamp time.Time              `json:"timestamp"`
	Retryable bool                   `json:"retryable"`
}

// Error implements the error interface.
func (e *StructuredError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error unwrapping.
func (e *StructuredError) Unwrap() error {
	return e.Cause
}

// Is checks if the error matches a target error code.
func (e *StructuredError) Is(target error) bool {
	if se, ok := target.(*StructuredError); ok {
		return e.Code == se.Code
	}
	return false
}

// WithContext adds contextual information to the error.
func (e *StructuredError) WithContext(key string, value interface{}) *StructuredError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// WithCause attaches the underlying error.
func (e *StructuredError) WithCause(cause error) *StructuredError {
	e.Cause = cause
	return e
}

// NewError creates a structured error with the given code and message.
func NewError(code ErrorCode, message string) *StructuredError {
	return &StructuredError{
		Code:      code,
		Message:   message,
		Severity:  SeverityError,
		Timestamp: time.Now(),
		Retryable: isRetryable(code),
	}
}

// NewErrorf creates a structured error with a formatted message.
func NewErrorf(code ErrorCode, format string, args ...interface{}) *StructuredError {
	return NewError(code, fmt.Sprintf(format, args...))
}

// WrapError wraps an existing error with a code and message.
func WrapError(cause error, code ErrorCode, message string) *StructuredError {
	return NewError(code, message).WithCause(cause)
}

// CodeOf returns the ErrorCode carried by err, or ErrCodeInternal when err
// is not structured.
func CodeOf(err error) ErrorCode {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Code
	}
	return ErrCodeInternal
}

// IsRetryable reports whether the error represents a transient failure.
func IsRetryable(err error) bool {
	var se *StructuredError
	if errors.As(err, &se) {
		return se.Retryable
	}
	return false
}

// isRetryable maps error codes to their default retry behavior.
func isRetryable(code ErrorCode) bool {
	switch code {
	case ErrCodeTimeout, ErrCodeServerError, ErrCodeNetworkError:
		return true
	default:
		return false
	}
}
