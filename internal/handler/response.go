package handler

// RESPONSE HELPERS:
// Every JSON response goes through writeJSON, every failure through
// writeError, so the API always answers with the same error shape:
//
//	{"error": "not_found", "message": "unknown control \"foo\""}

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/sakif/student-library/internal/apperror"
	"github.com/sakif/student-library/internal/view"
)

// ErrorResponse is the error body returned by every JSON endpoint.
type ErrorResponse struct {
	Error   string `json:"error"`   // Machine-readable error type (e.g., "not_found")
	Message string `json:"message"` // Human-readable description
}

// writeJSON sends a JSON response with the given status code.
// Headers and status must be written before the body.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode JSON response", slog.String("error", err.Error()))
		}
	}
}

// statusOf maps a domain or document error to an HTTP status and error type.
func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, apperror.ErrValidation):
		return http.StatusBadRequest, "validation_error"
	case errors.Is(err, apperror.ErrNotFound), errors.Is(err, view.ErrUnknownControl):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, apperror.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, apperror.ErrBusy), errors.Is(err, view.ErrControlDisabled):
		return http.StatusConflict, "busy"
	case errors.Is(err, view.ErrNoConfirmation):
		return http.StatusConflict, "no_confirmation"
	case errors.Is(err, apperror.ErrProvider):
		return http.StatusBadGateway, "provider_error"
	}
	return http.StatusInternalServerError, "internal_error"
}

// writeError maps err to a status and sends it. Only AppError messages and
// document errors reach the client; anything else gets a generic message.
func writeError(w http.ResponseWriter, err error) {
	status, errorType := statusOf(err)

	var appErr *apperror.AppError
	switch {
	case errors.As(err, &appErr):
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: appErr.Message})
	case status != http.StatusInternalServerError:
		writeJSON(w, status, ErrorResponse{Error: errorType, Message: err.Error()})
	default:
		// Never expose internal error details to the client.
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "An internal error occurred",
		})
	}
}
