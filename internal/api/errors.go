package api

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/defi-health-scanner/internal/errors"
	"github.com/defi-health-scanner/internal/logging"
	"github.com/defi-health-scanner/internal/types"
)

// ErrorResponse represents an API error response.
type ErrorResponse struct {
	Error types.ServiceError `json:"error"`
}

// respondError sends an error response.
func respondError(w http.ResponseWriter, statusCode int, code, message string, details map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error: types.ServiceError{
			Code:    code,
			Message: message,
			Details: details,
		},
	}

	json.NewEncoder(w).Encode(response)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

// parseJSONBody parses JSON request body.
func parseJSONBody(r *http.Request, v interface{}) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

// Common error codes
const (
	ErrCodeInvalidInput  = "INVALID_INPUT"
	ErrCodeUnauthorized  = "UNAUTHORIZED"
	ErrCodeRateLimited   = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError = "INTERNAL_ERROR"
	internalErrorMessage = "An internal error occurred"
)

// respondServiceError maps a service error to its status and envelope.
// Internal failures are logged and reported without their cause.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	catErr := apperrors.Categorize(err)
	switch catErr.Category {
	case apperrors.CategorySystem, apperrors.CategoryDatabase, apperrors.CategoryCache:
		logging.FromContext(r.Context()).WithError(err).WithField("path", r.URL.Path).Error("request failed")
		respondError(w, catErr.StatusCode, ErrCodeInternalError, internalErrorMessage, nil)
	default:
		respondError(w, catErr.StatusCode, catErr.Code, catErr.Message, catErr.Details)
	}
}
