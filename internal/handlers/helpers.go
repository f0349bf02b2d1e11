// Package handlers contains the HTTP boundary: request decoding,
// identity checks, status mapping, and response encoding. Business
// rules live in the service packages.
package handlers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/taskpilot/taskpilot/internal/request"
	"github.com/taskpilot/taskpilot/internal/validation"
)

// sanitizeTextPtr sanitizes optional text input in place. A nil
// pointer stays nil; an explicit empty string stays empty so the
// clear-field semantics survive.
func sanitizeTextPtr(s *string) *string {
	if s == nil {
		return nil
	}
	clean := validation.SanitizeText(*s)
	return &clean
}

// respondJSON sends a JSON response
func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// sanitizeErrorMessage removes internal details from error messages
func sanitizeErrorMessage(message string) string {
	if len(message) > 200 {
		message = message[:200] + "..."
	}
	return message
}

// respondJSONError sends an error JSON response with sanitized error messages
func respondJSONError(w http.ResponseWriter, status int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	response := map[string]any{
		"success":   false,
		"error":     errorType,
		"message":   sanitizeErrorMessage(message),
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		http.Error(w, "Failed to encode response", http.StatusInternalServerError)
	}
}

// authorizeUserPath checks that the authenticated identity matches the
// {user_id} path segment. Responds and returns false on any mismatch.
func authorizeUserPath(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	identity := request.IdentityFromContext(r)
	if identity == nil {
		respondJSONError(w, http.StatusUnauthorized, "Unauthorized", "Authentication required")
		return uuid.Nil, false
	}

	pathUserID, err := uuid.Parse(mux.Vars(r)["user_id"])
	if err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Invalid user ID in path")
		return uuid.Nil, false
	}

	if pathUserID != identity.UserID {
		respondJSONError(w, http.StatusForbidden, "Forbidden", "Cannot access another user's resources")
		return uuid.Nil, false
	}

	return identity.UserID, true
}

// pathUUID parses a UUID path variable, responding 422 on failure.
func pathUUID(w http.ResponseWriter, r *http.Request, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(mux.Vars(r)[name])
	if err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Invalid "+name+" in path")
		return uuid.Nil, false
	}
	return id, true
}

// decodeJSON decodes the request body, responding 422 on failure.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		respondJSONError(w, http.StatusUnprocessableEntity, "Validation Error", "Invalid request body")
		return false
	}
	return true
}
