// Package handlers provides the HTTP handlers and middleware for the Attic
// REST API.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/atticlabs/attic/internal/storage"
)

// ErrorResponse is the standard error response format for the API.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Code    string                 `json:"code"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// QueueSizeGetter exposes the extraction queue depth for /api/stats.
type QueueSizeGetter interface {
	GetQueueSize() int
}

// extractID pulls a path parameter from the request.
func extractID(r *http.Request, key string) string {
	return r.PathValue(key)
}

// parseInt parses an integer from a string, returning defaultValue if parsing fails.
func parseInt(s string, defaultValue int) int {
	if s == "" {
		return defaultValue
	}
	val, err := strconv.Atoi(s)
	if err != nil {
		return defaultValue
	}
	return val
}

// respondJSON writes a JSON response with the given status code.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		// Headers are already sent, so log and move on.
		log.Printf("failed to encode JSON response: %v", err)
	}
}

// respondError writes an error response with the given status code.
func respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	errResp := ErrorResponse{
		Error: message,
		Code:  http.StatusText(statusCode),
	}

	if err != nil {
		errResp.Details = map[string]interface{}{
			"error": err.Error(),
		}
	}

	respondJSON(w, statusCode, errResp)
}

// respondStoreError maps storage sentinel errors onto HTTP status codes:
// validation 400, not-found 404, invalid-state and integrity 409, anything
// else 500.
func respondStoreError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, storage.ErrValidation):
		respondError(w, http.StatusBadRequest, message, err)
	case errors.Is(err, storage.ErrNotFound):
		respondError(w, http.StatusNotFound, message, err)
	case errors.Is(err, storage.ErrInvalidState):
		respondError(w, http.StatusConflict, message, err)
	case errors.Is(err, storage.ErrIntegrity):
		respondError(w, http.StatusConflict, message, err)
	default:
		respondError(w, http.StatusInternalServerError, message, err)
	}
}

// requestOwner returns the owner scope for the request. ResolveOwner fills
// the header with the configured default when the client sent none.
func requestOwner(r *http.Request) string {
	return r.Header.Get("X-Owner-ID")
}

// requireOwner writes a 400 response and returns "" when the request carries
// no owner scope.
func requireOwner(w http.ResponseWriter, r *http.Request) string {
	owner := requestOwner(r)
	if owner == "" {
		respondError(w, http.StatusBadRequest, "owner ID is required (X-Owner-ID header)", nil)
	}
	return owner
}
