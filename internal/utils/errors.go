package utils

import (
	"errors"
	"fmt"
	"net/http"
)

type AppError struct {
	Code    string
	Message string
	Origin  error // Original error that caused this error, if any
}

func (appErr *AppError) Error() string {
	if appErr.Origin != nil {
		return appErr.Message + ": " + appErr.Origin.Error()
	}
	return appErr.Message
}

func (appErr *AppError) Unwrap() error {
	return appErr.Origin
}

// Standard error codes for the application
const (
	// Domain errors, reported to callers as-is
	ErrNotFound     = "NOT_FOUND"
	ErrUnauthorized = "UNAUTHORIZED"
	ErrConflict     = "CONFLICT"
	ErrInvalidInput = "INVALID_INPUT"

	// Storage errors
	ErrDuplicate = "DUPLICATE" // unique constraint hit; callers decide what it means
	ErrTransient = "TRANSIENT" // connection loss, timeout, lock contention
	ErrDatabase  = "database_error"

	ErrInvalidToken = "INVALID_TOKEN"
)

// Error creation helper functions
func NewAppError(code string, message string, originalErr error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Origin:  originalErr,
	}
}

func NewNotFoundError(what string) *AppError {
	return &AppError{
		Code:    ErrNotFound,
		Message: "Not found: " + what,
	}
}

func NewUnauthorizedError(reason string) *AppError {
	return &AppError{
		Code:    ErrUnauthorized,
		Message: "Unauthorized: " + reason,
	}
}

func NewConflictError(reason string) *AppError {
	return &AppError{
		Code:    ErrConflict,
		Message: "Conflict: " + reason,
	}
}

func NewValidationError(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrInvalidInput,
		Message: fmt.Sprintf(format, args...),
	}
}

// ErrorCode returns the AppError code carried anywhere in err's chain, or "" if none.
func ErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// Helper method to check if an error is of a specific type
func IsErrorCode(err error, code string) bool {
	return err != nil && ErrorCode(err) == code
}

// IsLogicalError reports whether err is a domain failure that retrying cannot change.
func IsLogicalError(err error) bool {
	switch ErrorCode(err) {
	case ErrNotFound, ErrUnauthorized, ErrConflict, ErrInvalidInput, ErrDuplicate, ErrInvalidToken:
		return true
	}
	return false
}

// AppErrorToHTTPStatus converts an AppError code to an HTTP status code.
func AppErrorToHTTPStatus(errorCode string) int {
	switch errorCode {
	case "":
		return http.StatusOK
	case ErrNotFound:
		return http.StatusNotFound
	case ErrInvalidInput:
		return http.StatusBadRequest
	case ErrUnauthorized:
		return http.StatusForbidden
	case ErrInvalidToken:
		return http.StatusUnauthorized
	case ErrConflict, ErrDuplicate:
		return http.StatusConflict
	case ErrTransient:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
