package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/perrindl/taskhive/internal/apperr"
)

// envelope is the uniform response shape used by every endpoint.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeSuccess sends a success envelope.
func writeSuccess(w http.ResponseWriter, status int, message string, data any) {
	writeJSON(w, status, envelope{Success: true, Message: message, Data: data})
}

// writeFailure sends a failure envelope with an error label. The label is
// a stable category, never collaborator internals.
func writeFailure(w http.ResponseWriter, status int, message, label string) {
	writeJSON(w, status, envelope{Success: false, Message: message, Error: label})
}

// writeAppError maps a service error to status code and envelope.
func (r *Router) writeAppError(w http.ResponseWriter, req *http.Request, err error) {
	kind := apperr.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		r.logger.Error("request failed", "path", req.URL.Path, "error", err)
	}
	writeFailure(w, status, apperr.MessageOf(err), labelForKind(kind))
}

func statusForKind(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation, apperr.KindUnauthenticated, apperr.KindAuth:
		return http.StatusBadRequest
	case apperr.KindForbidden:
		return http.StatusForbidden
	case apperr.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func labelForKind(kind apperr.Kind) string {
	switch kind {
	case apperr.KindValidation:
		return "validation"
	case apperr.KindUnauthenticated:
		return "not_authenticated"
	case apperr.KindForbidden:
		return "forbidden"
	case apperr.KindNotFound:
		return "not_found"
	case apperr.KindAuth:
		return "auth"
	case apperr.KindStore:
		return "store"
	default:
		return "internal"
	}
}
