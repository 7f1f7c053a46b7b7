package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	apperrors "github.com/nft3d-scanner/internal/errors"
	"github.com/nft3d-scanner/internal/logging"
	"github.com/nft3d-scanner/internal/types"
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

	_ = json.NewEncoder(w).Encode(response)
}

// respondCategorized writes a categorized error as-is
func respondCategorized(w http.ResponseWriter, catErr *apperrors.CategorizedError) {
	svcErr := catErr.ToServiceError()
	respondError(w, catErr.StatusCode, svcErr.Code, svcErr.Message, svcErr.Details)
}

// respondJSON sends a JSON response.
func respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
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
	ErrCodeInvalidInput       = "INVALID_INPUT"
	ErrCodeNotFound           = "NOT_FOUND"
	ErrCodeRateLimitExceeded  = "RATE_LIMIT_EXCEEDED"
	ErrCodeInternalError      = "INTERNAL_ERROR"
	ErrCodeServiceUnavailable = "SERVICE_UNAVAILABLE"
	ErrCodeUnauthorized       = "UNAUTHORIZED"
	ErrCodeClientClosed       = "CLIENT_CLOSED_REQUEST"
)

// statusClientClosed is the nginx convention for a caller that went away
const statusClientClosed = 499

// respondServiceError maps a service error to its HTTP status and error
// body. Details of system errors stay in the log.
func respondServiceError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.FromContext(r.Context())

	if errors.Is(err, context.Canceled) {
		logger.Debug("Client went away before the result was ready")
		respondError(w, statusClientClosed, ErrCodeClientClosed, "request cancelled", nil)
		return
	}

	catErr := apperrors.Categorize(err)
	if apperrors.IsSystemError(catErr) {
		logger.WithError(err).WithField("category", catErr.Category).Error("Request failed")
	} else {
		logger.WithError(err).WithField("category", catErr.Category).Debug("Request rejected")
	}

	if catErr.Category == apperrors.CategorySystem {
		respondError(w, catErr.StatusCode, ErrCodeInternalError, "An internal error occurred", nil)
		return
	}
	respondCategorized(w, catErr)
}
