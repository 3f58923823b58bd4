package errors

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrCategoryNotFound   = errors.New("category not found")
	ErrSessionNotFound    = errors.New("session not found")
	ErrFilterNotFound     = errors.New("filter not found")
	ErrInvalidFilter      = errors.New("invalid filter")
	ErrUnknownSort        = errors.New("unknown sort option")
	ErrInvalidInput       = errors.New("invalid input")
	ErrTooManySessions    = errors.New("too many sessions")
	ErrCatalogUnavailable = errors.New("catalog unavailable")
	ErrInternal           = errors.New("internal error")
	ErrTimeout            = errors.New("operation timed out")
)

type AppError struct {
	Err        error
	Message    string
	StatusCode int
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Err.Error(), e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func New(sentinel error, statusCode int, message string) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    message,
		StatusCode: statusCode,
	}
}

func Newf(sentinel error, statusCode int, format string, args ...any) *AppError {
	return &AppError{
		Err:        sentinel,
		Message:    fmt.Sprintf(format, args...),
		StatusCode: statusCode,
	}
}

// Message returns the client-facing text for err.
func Message(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if HTTPStatusCode(err) == http.StatusInternalServerError {
		return ErrInternal.Error()
	}
	return err.Error()
}

func HTTPStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrCategoryNotFound), errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrFilterNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrInvalidFilter), errors.Is(err, ErrUnknownSort), errors.Is(err, ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, ErrTooManySessions):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrCatalogUnavailable), errors.Is(err, ErrTimeout):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
