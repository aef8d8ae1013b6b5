package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
)

// Standard error types
var (
	ErrNotFound   = errors.New("resource not found")
	ErrBadRequest = errors.New("bad request")
	ErrInternal   = errors.New("internal server error")
	ErrValidation = errors.New("validation error")
	ErrTransport  = errors.New("transport error")
	ErrService    = errors.New("service error")
	ErrUnknown    = errors.New("unknown error")
	ErrTooLarge   = errors.New("payload too large")
	ErrContract   = errors.New("contract violation")
)

// Kind classifies where a failure originated
type Kind string

const (
	// KindValidation is a local input problem detected before any network call
	KindValidation Kind = "validation"
	// KindTransport means no response reached the caller (unreachable, timeout)
	KindTransport Kind = "transport"
	// KindService means the remote service answered with an error
	KindService Kind = "service"
	// KindUnknown is anything that could not be classified
	KindUnknown Kind = "unknown"
)

// AppError represents an application error with context
type AppError struct {
	Err        error             `json:"-"`
	Kind       Kind              `json:"kind"`
	Message    string            `json:"message"`
	Code       string            `json:"code"`
	StatusCode int               `json:"status_code"`
	Details    map[string]string `json:"details,omitempty"`
	// Raw keeps the remote error envelope details verbatim when they are not a flat map.
	Raw  json.RawMessage `json:"-"`
	Path string          `json:"path,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Err
}

// Retryable reports whether repeating the operation may succeed
func (e *AppError) Retryable() bool {
	return e.Kind == KindTransport
}

// New creates a new AppError
func New(code string, message string, statusCode int) *AppError {
	return &AppError{
		Kind:       KindUnknown,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, code string, message string, statusCode int) *AppError {
	return &AppError{
		Err:        err,
		Kind:       KindUnknown,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// WithDetails adds details to an AppError
func (e *AppError) WithDetails(details map[string]string) *AppError {
	e.Details = details
	return e
}

// WithKind overrides the classification
func (e *AppError) WithKind(kind Kind) *AppError {
	e.Kind = kind
	return e
}

// Common error constructors

func NotFound(resource string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Kind:       KindService,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		StatusCode: http.StatusNotFound,
	}
}

func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Kind:       KindService,
		Code:       "BAD_REQUEST",
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

func Internal(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Kind:       KindService,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		StatusCode: http.StatusInternalServerError,
	}
}

func TooLarge(message string) *AppError {
	return &AppError{
		Err:        ErrTooLarge,
		Kind:       KindService,
		Code:       "PAYLOAD_TOO_LARGE",
		Message:    message,
		StatusCode: http.StatusRequestEntityTooLarge,
	}
}

func Unavailable(message string) *AppError {
	return &AppError{
		Err:        ErrInternal,
		Kind:       KindService,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
	}
}

// Validation reports local input problems. StatusCode mirrors what the
// service would answer for the same input.
func Validation(message string, details map[string]string) *AppError {
	if message == "" {
		message = "validation failed"
	}
	return &AppError{
		Err:        ErrValidation,
		Kind:       KindValidation,
		Code:       "VALIDATION_ERROR",
		Message:    message,
		StatusCode: http.StatusUnprocessableEntity,
		Details:    details,
	}
}

// Transport wraps a failure where no response was received
func Transport(err error, message string) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %v", ErrTransport, err),
		Kind:    KindTransport,
		Code:    "TRANSPORT_ERROR",
		Message: message,
	}
}

// Service represents a structured error returned by the remote service
func Service(statusCode int, message string) *AppError {
	code := "SERVICE_ERROR"
	sentinel := ErrService
	if statusCode == http.StatusNotFound {
		code = "NOT_FOUND"
		sentinel = ErrNotFound
	}
	return &AppError{
		Err:        sentinel,
		Kind:       KindService,
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
	}
}

// Contract reports a response that does not match the expected shape
func Contract(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrContract,
		Kind:       KindService,
		Code:       "CONTRACT_VIOLATION",
		Message:    message,
		StatusCode: http.StatusBadGateway,
		Details:    details,
	}
}

// Unknown wraps an unclassifiable failure with a generic message
func Unknown(err error) *AppError {
	return &AppError{
		Err:     fmt.Errorf("%w: %v", ErrUnknown, err),
		Kind:    KindUnknown,
		Code:    "UNKNOWN_ERROR",
		Message: "An unexpected error occurred",
	}
}

// KindOf returns the classification of err, KindUnknown when err is not an AppError
func KindOf(err error) Kind {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindUnknown
}

// IsRetryable reports whether err is classified as safe to retry
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable()
	}
	return false
}

// Message returns the single human-readable message for err
func Message(err error) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return err.Error()
}

// Is checks if the error matches a target error
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As attempts to convert an error to a specific type
func As(err error, target any) bool {
	return errors.As(err, target)
}
