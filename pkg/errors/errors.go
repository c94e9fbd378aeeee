package errors

import (
	"fmt"
	"net/http"
	"runtime/debug"
)

// Error codes raised by the application
const (
	CodeNotFound   = "NOT_FOUND"
	CodeConflict   = "CONFLICT"
	CodeValidation = "VALIDATION_ERROR"
	CodeUpstreamIO = "UPSTREAM_IO"
	CodeInternal   = "INTERNAL_ERROR"
)

// AppError represents an application error with HTTP status code and error code
type AppError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    any    `json:"details,omitempty"`
	Stack      string `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewError creates a new application error
func NewError(statusCode int, code string, message string) *AppError {
	return &AppError{
		StatusCode: statusCode,
		Code:       code,
		Message:    message,
		Stack:      string(debug.Stack()),
	}
}

// NewNotFoundError creates a 404 Not Found error
func NewNotFoundError(message string) *AppError {
	return NewError(http.StatusNotFound, CodeNotFound, message)
}

// NewConflictError creates a 409 Conflict error
func NewConflictError(message string) *AppError {
	return NewError(http.StatusConflict, CodeConflict, message)
}

// NewValidationError creates a 400 Bad Request error
func NewValidationError(message string) *AppError {
	return NewError(http.StatusBadRequest, CodeValidation, message)
}

// NewUpstreamIOError creates a 500 error for failed calls to external systems.
// The underlying cause is included in the message.
func NewUpstreamIOError(message string, cause error) *AppError {
	if cause != nil {
		message = fmt.Sprintf("%s: %s", message, cause.Error())
	}
	return NewError(http.StatusInternalServerError, CodeUpstreamIO, message)
}

// NewInternalServerError creates a 500 Internal Server Error
func NewInternalServerError(message string) *AppError {
	return NewError(http.StatusInternalServerError, CodeInternal, message)
}

// FromError converts a standard error to an AppError
// If the error is already an AppError, it is returned as-is
// Otherwise, it is wrapped as an internal server error
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	if appErr, ok := err.(*AppError); ok {
		return appErr
	}

	return NewInternalServerError(
		fmt.Sprintf("An unexpected error occurred: %s", err.Error()),
	)
}

// GetStatusCode extracts the HTTP status code from an AppError, returns 500 if not an AppError
func GetStatusCode(err error) int {
	if appErr, ok := err.(*AppError); ok {
		return appErr.StatusCode
	}
	return http.StatusInternalServerError
}

// GetErrorCode extracts the error code from an AppError, returns INTERNAL_ERROR if not an AppError
func GetErrorCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return CodeInternal
}

// IsCode reports whether err is an AppError carrying the given code
func IsCode(err error, code string) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}

// IsNotFound reports whether err is a NOT_FOUND application error
func IsNotFound(err error) bool {
	return IsCode(err, CodeNotFound)
}

// IsConflict reports whether err is a CONFLICT application error
func IsConflict(err error) bool {
	return IsCode(err, CodeConflict)
}
