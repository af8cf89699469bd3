package http

import (
	"encoding/json"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/gigconnect/internal/domain"
	"github.com/robertarktes/gigconnect/internal/observability"
)

type envelope struct {
	Data  any        `json:"data,omitempty"`
	Error *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type errorMapping struct {
	sentinel error
	code     string
	status   int
}

// Order matters: serialization failures are reported before plain conflicts.
var errorMappings = []errorMapping{
	{domain.ErrValidation, "VALIDATION_ERROR", http.StatusBadRequest},
	{domain.ErrUnauthenticated, "UNAUTHORIZED", http.StatusUnauthorized},
	{domain.ErrForbidden, "FORBIDDEN", http.StatusForbidden},
	{domain.ErrNotFound, "NOT_FOUND", http.StatusNotFound},
	{domain.ErrSerializationFailure, "RETRY_CONFLICT", http.StatusConflict},
	{domain.ErrConflict, "CONFLICT", http.StatusConflict},
	{domain.ErrRoleMismatch, "ROLE_MISMATCH", http.StatusUnprocessableEntity},
	{domain.ErrInvalidState, "STATE_CONFLICT", http.StatusUnprocessableEntity},
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Data: data})
}

func writeErrorCode(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(envelope{Error: &errorBody{Code: code, Message: msg}})
}

// writeError maps err onto the error envelope. Unknown errors are logged and hidden from the client.
func (h *Handlers) writeError(w http.ResponseWriter, r *http.Request, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.sentinel) {
			writeErrorCode(w, m.status, m.code, err.Error())
			return
		}
	}
	observability.LoggerFromContext(r.Context(), h.logger).
		WithError(err).
		WithField("path", r.URL.Path).
		Error("request failed")
	writeErrorCode(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal error")
}
