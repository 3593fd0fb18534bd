package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode represents a unique error code
type ErrorCode int

// AppError represents an application error
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Err     error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError carrying the same code.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	return ok && t.Code == e.Code
}

func (e *AppError) StatusCode() int {
	if s, ok := statusByCode[e.Code]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// Common error codes
const (
	ErrNotFound ErrorCode = iota + 1000
	ErrBadRequest
	ErrUnauthorized
	ErrForbidden
	ErrInternal
	ErrSlotUnavailable
	ErrInvalidTransition
	ErrConfiguration
	ErrLookup
	ErrConflict
)

var statusByCode = map[ErrorCode]int{
	ErrNotFound:          http.StatusNotFound,
	ErrBadRequest:        http.StatusBadRequest,
	ErrUnauthorized:      http.StatusUnauthorized,
	ErrForbidden:         http.StatusForbidden,
	ErrInternal:          http.StatusInternalServerError,
	ErrSlotUnavailable:   http.StatusConflict,
	ErrInvalidTransition: http.StatusUnprocessableEntity,
	ErrConfiguration:     http.StatusUnprocessableEntity,
	ErrLookup:            http.StatusServiceUnavailable,
	ErrConflict:          http.StatusConflict,
}

func New(code ErrorCode, message string, err error) *AppError {
	return &AppError{Code: code, Message: message, Err: err}
}

func NotFound(resource string, err error) *AppError {
	return New(ErrNotFound, fmt.Sprintf("%s not found", resource), err)
}

func BadRequest(message string, err error) *AppError {
	return New(ErrBadRequest, message, err)
}

func Internal(err error) *AppError {
	return New(ErrInternal, "internal server error", err)
}

func Unauthorized(err error) *AppError {
	return New(ErrUnauthorized, "unauthorized", err)
}

func Conflict(message string, err error) *AppError {
	return New(ErrConflict, message, err)
}

// Lookup wraps a persistence failure that aborted an operation.
func Lookup(operation string, err error) *AppError {
	return New(ErrLookup, fmt.Sprintf("lookup failed: %s", operation), err)
}

// StatusCode resolves the HTTP status for any error in a chain.
func StatusCode(err error) int {
	var sc interface{ StatusCode() int }
	if stderrors.As(err, &sc) {
		return sc.StatusCode()
	}
	return http.StatusInternalServerError
}
