package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"

	"github.com/nft3d-scanner/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryConfiguration represents missing or invalid settings, such as
	// an absent provider credential
	CategoryConfiguration ErrorCategory = "configuration"
	// CategoryValidation represents rejected caller input
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents callers lacking the admin token
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryUpstream represents failures of the NFT provider
	CategoryUpstream ErrorCategory = "upstream"
	// CategoryRateLimit represents throttling, ours or the provider's
	CategoryRateLimit ErrorCategory = "rate_limit"
	// CategoryCache represents cache errors
	CategoryCache ErrorCategory = "cache"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
	// Transient marks failures that may succeed when repeated
	Transient bool
}

// Error implements the error interface
func (e *CategorizedError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *CategorizedError) Unwrap() error {
	return e.Cause
}

// ToServiceError converts to a ServiceError
func (e *CategorizedError) ToServiceError() *types.ServiceError {
	return &types.ServiceError{
		Code:    e.Code,
		Message: e.Message,
		Details: e.Details,
	}
}

// Configuration Errors

// NewConfigurationError reports a missing or unusable setting
func NewConfigurationError(setting string, message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "CONFIGURATION_ERROR",
		Message:    message,
		Details: map[string]interface{}{
			"setting": setting,
		},
	}
}

// NewMissingCredentialError reports that no provider API key is configured
func NewMissingCredentialError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryConfiguration,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "MISSING_CREDENTIAL",
		Message:    fmt.Sprintf("no API key configured for %s", provider),
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// Validation Errors (4xx)

// NewInvalidAddressError creates an invalid address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details: map[string]interface{}{
			"address": address,
		},
	}
}

// NewInvalidParameterError creates an invalid parameter error
func NewInvalidParameterError(param string, reason string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_PARAMETER",
		Message:    fmt.Sprintf("invalid parameter '%s': %s", param, reason),
		Details: map[string]interface{}{
			"parameter": param,
			"reason":    reason,
		},
	}
}

// NewUnsupportedNetworkError rejects a chain id outside the registry
func NewUnsupportedNetworkError(chain string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryValidation,
		StatusCode: http.StatusBadRequest,
		Code:       "UNSUPPORTED_NETWORK",
		Message:    fmt.Sprintf("unsupported network: %s", chain),
		Details: map[string]interface{}{
			"chain": chain,
		},
	}
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string, id string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryNotFound,
		StatusCode: http.StatusNotFound,
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found: %s", resource, id),
		Details: map[string]interface{}{
			"resource": resource,
			"id":       id,
		},
	}
}

// NewUnauthorizedError rejects a caller without valid admin credentials
func NewUnauthorizedError(resource string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    "missing or invalid admin token",
		Details: map[string]interface{}{
			"resource": resource,
		},
	}
}

// NewRateLimitError creates an error for callers exceeding our own limit
func NewRateLimitError(retryAfter int) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusTooManyRequests,
		Code:       "RATE_LIMIT_EXCEEDED",
		Message:    "rate limit exceeded",
		Details: map[string]interface{}{
			"retryAfter": retryAfter,
		},
	}
}

// Upstream Errors

// NewUpstreamRateLimitError reports a 429 from the provider
func NewUpstreamRateLimitError(provider string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryRateLimit,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_RATE_LIMIT",
		Message:    fmt.Sprintf("provider rate limit exceeded: %s", provider),
		Transient:  true,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewUpstreamTransportError reports a request that never got a response
func NewUpstreamTransportError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_TRANSPORT",
		Message:    fmt.Sprintf("request to %s failed", provider),
		Cause:      cause,
		Transient:  true,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewUpstreamStatusError reports a non-2xx provider response. Server side
// statuses are transient; other client errors are not.
func NewUpstreamStatusError(provider string, status int, body string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_STATUS",
		Message:    fmt.Sprintf("%s responded with status %d", provider, status),
		Transient:  status >= http.StatusInternalServerError,
		Details: map[string]interface{}{
			"provider": provider,
			"status":   status,
			"body":     body,
		},
	}
}

// NewUpstreamDecodeError reports a provider response that could not be parsed
func NewUpstreamDecodeError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUpstream,
		StatusCode: http.StatusBadGateway,
		Code:       "UPSTREAM_DECODE",
		Message:    fmt.Sprintf("invalid response from %s", provider),
		Cause:      cause,
		Details: map[string]interface{}{
			"provider": provider,
		},
	}
}

// NewDiscoveryFailedError wraps the error that aborted a discovery run
func NewDiscoveryFailedError(address string, chain types.ChainID, cause error) *CategorizedError {
	status := http.StatusBadGateway
	category := CategoryUpstream
	var catErr *CategorizedError
	if stderrors.As(cause, &catErr) && catErr.Category == CategoryConfiguration {
		status = catErr.StatusCode
		category = CategoryConfiguration
	}
	return &CategorizedError{
		Category:   category,
		StatusCode: status,
		Code:       "DISCOVERY_FAILED",
		Message:    fmt.Sprintf("could not discover assets for %s", address),
		Cause:      cause,
		Details: map[string]interface{}{
			"address": address,
			"chainId": chain,
		},
	}
}

// System Errors (5xx)

// NewInternalError creates an internal server error
func NewInternalError(message string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       "INTERNAL_ERROR",
		Message:    message,
		Cause:      cause,
	}
}

// NewDatabaseError creates a database error
func NewDatabaseError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryDatabase,
		StatusCode: http.StatusInternalServerError,
		Code:       "DATABASE_ERROR",
		Message:    fmt.Sprintf("database error during %s", operation),
		Cause:      cause,
		Transient:  true,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewCacheError creates a cache error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Transient:  true,
		Details: map[string]interface{}{
			"operation": operation,
		},
	}
}

// NewServiceUnavailableError creates a service unavailable error
func NewServiceUnavailableError(service string) *CategorizedError {
	return &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusServiceUnavailable,
		Code:       "SERVICE_UNAVAILABLE",
		Message:    fmt.Sprintf("service unavailable: %s", service),
		Details: map[string]interface{}{
			"service": service,
		},
	}
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	var catErr *CategorizedError
	if stderrors.As(err, &catErr) {
		return catErr
	}

	var svcErr *types.ServiceError
	if stderrors.As(err, &svcErr) {
		return categorizeServiceError(svcErr)
	}

	return NewInternalError("unexpected error", err)
}

// categorizeServiceError categorizes a ServiceError
func categorizeServiceError(err *types.ServiceError) *CategorizedError {
	catErr := &CategorizedError{
		Category:   CategorySystem,
		StatusCode: http.StatusInternalServerError,
		Code:       err.Code,
		Message:    err.Message,
		Details:    err.Details,
	}
	switch err.Code {
	case "INVALID_ADDRESS", "INVALID_PARAMETER", "UNSUPPORTED_NETWORK":
		catErr.Category = CategoryValidation
		catErr.StatusCode = http.StatusBadRequest
	case "UNAUTHORIZED":
		catErr.Category = CategoryAuthorization
		catErr.StatusCode = http.StatusUnauthorized
	case "NOT_FOUND", "ASSET_NOT_FOUND":
		catErr.Category = CategoryNotFound
		catErr.StatusCode = http.StatusNotFound
	case "MISSING_CREDENTIAL", "CONFIGURATION_ERROR":
		catErr.Category = CategoryConfiguration
		catErr.StatusCode = http.StatusServiceUnavailable
	}
	return catErr
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable
func IsRetryable(err error) bool {
	var catErr *CategorizedError
	if !stderrors.As(err, &catErr) {
		return false
	}
	return catErr.Transient
}

// IsCategory reports whether err carries the given category
func IsCategory(err error, category ErrorCategory) bool {
	var catErr *CategorizedError
	return stderrors.As(err, &catErr) && catErr.Category == category
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	return catErr.StatusCode >= 500
}
