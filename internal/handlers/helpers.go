package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ternarybob/leadforge/internal/services/jobs"
)

// RequireMethod validates that the HTTP request uses the specified method.
// Returns true if the method matches, false otherwise (and writes error response).
func RequireMethod(w http.ResponseWriter, r *http.Request, method string) bool {
	if r.Method != method {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return false
	}
	return true
}

// WriteJSON writes a JSON response with the specified status code and data.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	return json.NewEncoder(w).Encode(data)
}

// WriteSuccess writes a standard success JSON response.
func WriteSuccess(w http.ResponseWriter, message string) error {
	return WriteJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": message,
	})
}

// WriteError writes a standard error JSON response.
func WriteError(w http.ResponseWriter, statusCode int, message string) error {
	return WriteJSON(w, statusCode, map[string]string{
		"status": "error",
		"error":  message,
	})
}

// UserID extracts the requesting user's id. Identity arrives from the
// fronting gateway in the X-User-ID header; single-tenant deployments
// without a gateway fall back to a fixed id.
func UserID(r *http.Request) string {
	if id := strings.TrimSpace(r.Header.Get("X-User-ID")); id != "" {
		return id
	}
	return "default"
}

// JobIDFromPath extracts the job id from paths shaped like
// /api/jobs/{id} or /api/jobs/{id}/action.
func JobIDFromPath(path, prefix string) (id string, rest string) {
	trimmed := strings.TrimPrefix(path, prefix)
	trimmed = strings.Trim(trimmed, "/")
	if trimmed == "" {
		return "", ""
	}
	parts := strings.SplitN(trimmed, "/", 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return parts[0], ""
}

// writeJobError maps job service errors onto HTTP status codes
func writeJobError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, jobs.ErrJobNotFound):
		WriteError(w, http.StatusNotFound, "job not found")
	case errors.Is(err, jobs.ErrNotOwner):
		WriteError(w, http.StatusForbidden, "job belongs to another user")
	case errors.Is(err, jobs.ErrTooManyJobs), errors.Is(err, jobs.ErrUserJobLimit):
		WriteError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, jobs.ErrNotCancellable), errors.Is(err, jobs.ErrNotResumable):
		WriteError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, jobs.ErrResumeUnavailable):
		WriteError(w, http.StatusServiceUnavailable, err.Error())
	default:
		WriteError(w, http.StatusInternalServerError, err.Error())
	}
}
