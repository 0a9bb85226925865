// Package apperror defines the error taxonomy shared by the portal flows,
// the providers and the HTTP layer.
//
// Every error that reaches a user carries a Message meant to be displayed
// as-is. The sentinel in Err tells callers which class of failure occurred:
//
//	validation → local input check, no provider call was made
//	provider   → the auth/row-store backend refused; Message is its own text
//	not found  → a row lookup matched nothing
//	conflict   → a unique key already exists
//	busy       → the same flow is already running for this tab
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("Validation Error")
	ErrConflict   = errors.New("conflict")
	ErrProvider   = errors.New("provider error")
	ErrBusy       = errors.New("busy")
)

type AppError struct {
	Err     error  // actual error
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: lower-level error kept for logging
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Conflict reports a duplicate. The message is the one shown to the user.
func Conflict(message string) *AppError {
	return &AppError{
		Err:     ErrConflict,
		Message: message,
	}
}

// Provider wraps a failure reported by the auth or row-store backend.
// message is the backend's own text and is surfaced verbatim.
func Provider(message string, cause error) *AppError {
	if message == "" {
		message = "provider request failed"
	}
	return &AppError{
		Err:     ErrProvider,
		Message: message,
		Cause:   cause,
	}
}

// Busy reports that a flow was invoked while a previous run is still pending.
func Busy(flow string) *AppError {
	return &AppError{
		Err:     ErrBusy,
		Message: fmt.Sprintf("%s already in progress", flow),
	}
}

// UserMessage returns the message to show for err, or fallback when err is
// not an *AppError.
func UserMessage(err error, fallback string) string {
	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Message != "" {
		return appErr.Message
	}
	return fallback
}
