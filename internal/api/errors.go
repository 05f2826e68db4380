// Package api exposes reelcast operations over JSON/HTTP.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/onnwee/reelcast/internal/apperr"
	"github.com/onnwee/reelcast/internal/middleware"
)

// Error codes used in {"error":{"code":...}} bodies.
const (
	ErrCodeAuthRequired  = "auth_required"
	ErrCodeForbidden     = "forbidden"
	ErrCodeNotFound      = "not_found"
	ErrCodeValidation    = "validation_error"
	ErrCodeLimitExceeded = "limit_exceeded"
	ErrCodeInvalidState  = "invalid_state"
	ErrCodeBadRequest    = "bad_request"
	ErrCodeInternal      = "internal_error"
)

// ErrorResponse represents the standard error response format.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains the error code and human-readable message.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError writes a JSON error body with status and records code for the
// request log.
func WriteError(w http.ResponseWriter, ctx context.Context, status int, code, message string) {
	middleware.SetErrorCode(ctx, code)

	data, err := json.Marshal(ErrorResponse{Error: ErrorDetail{Code: code, Message: message}})
	if err != nil {
		slog.ErrorContext(ctx, "failed to marshal error response", "error", err)
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("Internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		slog.ErrorContext(ctx, "failed to write error response", "error", err)
	}
}

// StatusForError maps an operation error onto an HTTP status and error code.
func StatusForError(err error) (int, string) {
	switch apperr.KindOf(err) {
	case apperr.ErrNotAuthenticated:
		return http.StatusUnauthorized, ErrCodeAuthRequired
	case apperr.ErrUnauthorized:
		return http.StatusForbidden, ErrCodeForbidden
	case apperr.ErrNotFound:
		return http.StatusNotFound, ErrCodeNotFound
	case apperr.ErrValidation:
		return http.StatusBadRequest, ErrCodeValidation
	case apperr.ErrLimitExceeded:
		return http.StatusConflict, ErrCodeLimitExceeded
	case apperr.ErrInvalidState:
		return http.StatusConflict, ErrCodeInvalidState
	}
	return http.StatusInternalServerError, ErrCodeInternal
}

// WriteAppError writes err using the apperr taxonomy. Errors without a kind
// are logged and reported as a generic internal error.
func WriteAppError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status, code := StatusForError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		if errors.Is(err, context.Canceled) {
			slog.InfoContext(ctx, "request canceled", "error", err)
		} else {
			slog.ErrorContext(ctx, "request failed", "error", err, "path", r.URL.Path)
		}
		message = "internal server error"
	}
	WriteError(w, ctx, status, code, message)
}

// writeJSON encodes v with status.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.ErrorContext(r.Context(), "failed to encode response", "error", err)
	}
}
