package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/gray-logic-weather/internal/entry"
	"github.com/nerrad567/gray-logic-weather/internal/integration"
	"github.com/nerrad567/gray-logic-weather/internal/station"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest     = "bad_request"
	ErrCodeNotFound       = "not_found"
	ErrCodeConflict       = "conflict"
	ErrCodeInternal       = "internal_error"
	ErrCodeValidation     = "validation_error"
	ErrCodeCannotConnect  = "cannot_connect"
	ErrCodeSetupFailed    = "setup_failed"
	ErrCodeRefreshFailed  = "refresh_failed"
	ErrCodeUnavailable    = "unavailable"
	ErrCodeMethodNotAllow = "method_not_allowed"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeNotFound writes a 404 error response.
func writeNotFound(w http.ResponseWriter, message string) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeDomainError maps an integration, entry or station error onto a
// status code. Unrecognised errors are logged by the caller and reported
// as internal errors without their text.
func writeDomainError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, entry.ErrInvalidEntry):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, entry.ErrEntryNotFound), errors.Is(err, integration.ErrNotLoaded):
		writeNotFound(w, err.Error())
	case errors.Is(err, entry.ErrEntryExists), errors.Is(err, integration.ErrAlreadyLoaded):
		writeError(w, http.StatusConflict, ErrCodeConflict, err.Error())
	case errors.Is(err, integration.ErrCannotConnect):
		writeError(w, http.StatusBadGateway, ErrCodeCannotConnect, err.Error())
	case errors.Is(err, integration.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, err.Error())
	case errors.Is(err, integration.ErrSetupFailed):
		writeError(w, http.StatusBadGateway, ErrCodeSetupFailed, err.Error())
	case station.Classify(err) != station.KindUnknown:
		writeError(w, http.StatusBadGateway, ErrCodeRefreshFailed, err.Error())
	default:
		return false
	}
	return true
}
