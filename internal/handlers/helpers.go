package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/benvon/frog-planner/internal/database"
	"github.com/benvon/frog-planner/internal/lock"
	logpkg "github.com/benvon/frog-planner/internal/logger"
	"github.com/benvon/frog-planner/internal/planner"
	"github.com/benvon/frog-planner/internal/validation"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// maxErrorMessageLength bounds messages returned to clients
const maxErrorMessageLength = 200

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   true,
		"data":      data,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage strips control characters and truncates
func sanitizeErrorMessage(message string) string {
	return logpkg.SanitizeString(message, maxErrorMessageLength)
}

// respondJSONError sends an error JSON response with a sanitized message
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	respondJSONErrorFields(w, status, errorType, message, nil)
}

// respondJSONErrorFields is respondJSONError plus per-field messages
func respondJSONErrorFields(w http.ResponseWriter, status int, errorType, message string, fields map[string]string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	if len(fields) > 0 {
		sanitized := make(map[string]string, len(fields))
		for k, v := range fields {
			sanitized[logpkg.SanitizeString(k, 128)] = sanitizeErrorMessage(v)
		}
		response["fields"] = sanitized
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// respondServiceError maps planning errors onto HTTP statuses; anything
// unrecognised is logged and reported as a 500 without details
func respondServiceError(w http.ResponseWriter, logger *zap.Logger, operation string, err error) {
	var fieldErr *validation.Error
	var inputErr *planner.InputValidationError
	switch {
	case errors.Is(err, database.ErrJobNotFound):
		respondJSONError(w, http.StatusNotFound, "Not Found", "Job not found")
	case errors.Is(err, lock.ErrLockHeld):
		respondJSONError(w, http.StatusConflict, "Conflict", "A scheduling run is already in progress")
	case errors.As(err, &fieldErr):
		respondJSONErrorFields(w, http.StatusBadRequest, "Bad Request", "Validation failed", fieldErr.FieldErrors)
	case errors.As(err, &inputErr):
		respondJSONErrorFields(w, http.StatusBadRequest, "Bad Request", "Jobs cannot be scheduled as entered", inputErr.FieldErrors)
	case errors.Is(err, context.DeadlineExceeded):
		respondJSONError(w, http.StatusGatewayTimeout, "Gateway Timeout", "The operation timed out")
	default:
		logger.Error("request_failed",
			zap.String("operation", operation),
			zap.String("error", logpkg.SanitizeError(err)),
		)
		respondJSONError(w, http.StatusInternalServerError, "Internal Server Error", fmt.Sprintf("Failed to %s", operation))
	}
}

// decodeJSON decodes the request body into dst and writes an error response
// when it cannot; unknown fields are rejected
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			respondJSONError(w, http.StatusRequestEntityTooLarge, "Request Entity Too Large",
				fmt.Sprintf("Request body exceeds maximum size of %d bytes", maxBytesErr.Limit))
			return false
		}
		message := "Invalid request body"
		if strings.HasPrefix(err.Error(), "json: unknown field") {
			message = err.Error()
		}
		respondJSONError(w, http.StatusBadRequest, "Bad Request", message)
		return false
	}
	return true
}

// pathID parses the {id} route variable
func pathID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)["id"])
	if err != nil {
		respondJSONError(w, http.StatusBadRequest, "Bad Request", "Invalid job ID")
		return uuid.Nil, false
	}
	return id, true
}

// queryBool reads a boolean query parameter; absent means false
func queryBool(r *http.Request, name string) (bool, error) {
	switch strings.ToLower(r.URL.Query().Get(name)) {
	case "", "0", "false", "no":
		return false, nil
	case "1", "true", "yes":
		return true, nil
	default:
		return false, fmt.Errorf("%s must be true or false", name)
	}
}
