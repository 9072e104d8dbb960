package main

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/wozniakbe/minimal-x/internal/prefs"
)

// APIError represents a structured error response.
type APIError struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIError{Error: msg, Code: status})
}

// storeErrorStatus maps a preference store error to an HTTP status.
func storeErrorStatus(err error) int {
	switch {
	case errors.Is(err, prefs.ErrUnknownKey), errors.Is(err, prefs.ErrInvalidValue):
		return http.StatusBadRequest
	case errors.Is(err, prefs.ErrContextInvalidated):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
