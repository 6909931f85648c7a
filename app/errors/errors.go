package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents different types of application errors
type ErrorCode string

const (
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeConflict        ErrorCode = "CONFLICT"
	ErrCodeUnauthorized    ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"
	ErrCodeTooManyRequests ErrorCode = "TOO_MANY_REQUESTS"
	ErrCodeUnavailable     ErrorCode = "UPSTREAM_UNAVAILABLE"
	ErrCodeInternal        ErrorCode = "INTERNAL_ERROR"

	// Mailer-side codes: provider failures are transient, permanent failures
	// are acknowledged and dropped.
	ErrCodeEmailProvider ErrorCode = "EMAIL_PROVIDER_ERROR"
	ErrCodePermanent     ErrorCode = "PERMANENT_FAILURE"
)

// AppError represents an application error with code and HTTP status
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
	Status  int

	// RetryAfter carries the resend cooldown remainder (seconds) for
	// TOO_MANY_REQUESTS responses. Zero means no hint.
	RetryAfter int
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewNotFound creates a new "not found" error
func NewNotFound(resource string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("%s not found", resource),
		Status:  http.StatusNotFound,
	}
}

// NewInvalidInput creates a new "invalid input" error
func NewInvalidInput(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInvalidInput,
		Message: message,
		Status:  http.StatusBadRequest,
	}
}

// NewConflict creates a new "conflict" error (e.g., duplicate email)
func NewConflict(message string) *AppError {
	return &AppError{
		Code:    ErrCodeConflict,
		Message: message,
		Status:  http.StatusConflict,
	}
}

// NewUnauthorized creates a new "unauthorized" error
func NewUnauthorized(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnauthorized,
		Message: message,
		Status:  http.StatusUnauthorized,
	}
}

// NewForbidden creates a new "forbidden" error
func NewForbidden(message string) *AppError {
	return &AppError{
		Code:    ErrCodeForbidden,
		Message: message,
		Status:  http.StatusForbidden,
	}
}

// NewTooManyRequests creates a new rate/cooldown error with a retry hint in seconds
func NewTooManyRequests(message string, retryAfter int) *AppError {
	return &AppError{
		Code:       ErrCodeTooManyRequests,
		Message:    message,
		Status:     http.StatusTooManyRequests,
		RetryAfter: retryAfter,
	}
}

// NewUnavailable creates an error for an unreachable upstream dependency
func NewUnavailable(message string) *AppError {
	return &AppError{
		Code:    ErrCodeUnavailable,
		Message: message,
		Status:  http.StatusBadGateway,
	}
}

// NewInternal creates a new "internal server" error
func NewInternal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// NewEmailProviderError creates an error for a failed email provider call
func NewEmailProviderError(message string, err error) *AppError {
	return &AppError{
		Code:    ErrCodeEmailProvider,
		Message: message,
		Err:     err,
		Status:  http.StatusBadGateway,
	}
}

// NewPermanent creates an error that must not be retried
func NewPermanent(message string) *AppError {
	return &AppError{
		Code:    ErrCodePermanent,
		Message: message,
		Status:  http.StatusInternalServerError,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(err error, code ErrorCode, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
		Status:  status,
	}
}
