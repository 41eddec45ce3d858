package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/aryan0dhankhar/tasktracker/internal/domain"
	"github.com/aryan0dhankhar/tasktracker/internal/security/audit"
	"github.com/aryan0dhankhar/tasktracker/internal/security/middleware"
)

const maxBodyBytes = 1 << 20

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// MessageResponse acknowledges an operation without a payload
type MessageResponse struct {
	Message string `json:"message"`
}

var errInvalidBody = domain.NewError(domain.ErrInvalidInput, "invalid request body")

// StatusFor maps an error kind to its HTTP status. Uniqueness conflicts
// are reported as 400 like any other rejected input.
func StatusFor(err error) int {
	switch domain.KindOf(err) {
	case domain.ErrInvalidInput, domain.ErrConflict:
		return http.StatusBadRequest
	case domain.ErrUnauthorized, domain.ErrExpired:
		return http.StatusUnauthorized
	case domain.ErrForbidden:
		return http.StatusForbidden
	case domain.ErrNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError reports err to the client. Failures without a domain kind are
// logged and reported generically.
func writeError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	status := StatusFor(err)
	if status == http.StatusInternalServerError {
		log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", audit.RequestID(r.Context())),
			slog.String("error", err.Error()),
		)
		writeJSON(w, status, ErrorResponse{Error: "internal server error"})
		return
	}
	writeJSON(w, status, ErrorResponse{Error: domain.MessageOf(err)})
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return domain.NewError(domain.ErrInvalidInput, "request body is required")
		}
		return errInvalidBody
	}
	return nil
}

// caller returns the authenticated principal. Routes behind Authenticate
// always have one.
func caller(r *http.Request) domain.Principal {
	p, _ := middleware.PrincipalFrom(r.Context())
	return p
}

// NotFound answers unmatched routes
func NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "route not found"})
}
