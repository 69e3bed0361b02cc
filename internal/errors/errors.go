// Package errors categorizes scanner errors and maps them onto HTTP responses.
package errors

import (
	"fmt"
	"net/http"

	"github.com/defi-health-scanner/internal/types"
)

// ErrorCategory represents the category of an error
type ErrorCategory string

const (
	// CategoryUserInput represents user input errors (4xx)
	CategoryUserInput ErrorCategory = "user_input"
	// CategorySystem represents system errors (5xx)
	CategorySystem ErrorCategory = "system"
	// CategoryProvider represents upstream data provider errors
	CategoryProvider ErrorCategory = "provider"
	// CategoryDatabase represents database errors
	CategoryDatabase ErrorCategory = "database"
	// CategoryCache represents session/cache store errors
	CategoryCache ErrorCategory = "cache"
	// CategoryValidation represents validation errors
	CategoryValidation ErrorCategory = "validation"
	// CategoryAuthorization represents authorization errors
	CategoryAuthorization ErrorCategory = "authorization"
	// CategoryNotFound represents not found errors
	CategoryNotFound ErrorCategory = "not_found"
	// CategoryPayment represents missing or unverified report payments
	CategoryPayment ErrorCategory = "payment"
	// CategoryRebalance represents rebalance outcomes that are not a success
	CategoryRebalance ErrorCategory = "rebalance"
)

// Rebalance outcome codes
const (
	CodeAlreadyMeetsTarget = "ALREADY_MEETS_TARGET"
	CodeNothingToSwap      = "NOTHING_TO_SWAP"
	CodeNoChanges          = "NO_CHANGES"
	CodeZeroTotalScore     = "ZERO_TOTAL_SCORE"
	CodeSwapFailed         = "SWAP_FAILED"
)

// CategorizedError represents an error with category and HTTP status code
type CategorizedError struct {
	Category   ErrorCategory
	StatusCode int
	Code       string
	Message    string
	Details    map[string]interface{}
	Cause      error
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

// NewInvalidAddressError creates an invalid wallet address error
func NewInvalidAddressError(address string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryUserInput,
		StatusCode: http.StatusBadRequest,
		Code:       "INVALID_ADDRESS",
		Message:    fmt.Sprintf("invalid address format: %s", address),
		Details:    map[string]interface{}{"address": address},
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

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusUnauthorized,
		Code:       "UNAUTHORIZED",
		Message:    message,
	}
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryAuthorization,
		StatusCode: http.StatusForbidden,
		Code:       "FORBIDDEN",
		Message:    message,
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

// NewPaymentRequiredError is returned when a wallet has no active report access
func NewPaymentRequiredError(wallet string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPayment,
		StatusCode: http.StatusPaymentRequired,
		Code:       "PAYMENT_REQUIRED",
		Message:    "report access requires a verified payment",
		Details:    map[string]interface{}{"wallet": wallet},
	}
}

// NewPaymentNotVerifiedError is returned when a submitted payment transaction does not qualify
func NewPaymentNotVerifiedError(txHash string) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryPayment,
		StatusCode: http.StatusPaymentRequired,
		Code:       "PAYMENT_NOT_VERIFIED",
		Message:    fmt.Sprintf("payment transaction %s could not be verified", txHash),
		Details:    map[string]interface{}{"txHash": txHash},
	}
}

// NewRebalanceOutcomeError wraps a non-success rebalance outcome.
// Only a swap failure is a server-side problem; the others are conflicts with the request.
func NewRebalanceOutcomeError(code, message string, details map[string]interface{}, cause error) *CategorizedError {
	status := http.StatusConflict
	switch code {
	case CodeSwapFailed:
		status = http.StatusBadGateway
	case CodeZeroTotalScore:
		status = http.StatusUnprocessableEntity
	}
	return &CategorizedError{
		Category:   CategoryRebalance,
		StatusCode: status,
		Code:       code,
		Message:    message,
		Details:    details,
		Cause:      cause,
	}
}

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
		Details:    map[string]interface{}{"operation": operation},
	}
}

// NewCacheError creates a session store error
func NewCacheError(operation string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryCache,
		StatusCode: http.StatusInternalServerError,
		Code:       "CACHE_ERROR",
		Message:    fmt.Sprintf("cache error during %s", operation),
		Cause:      cause,
		Details:    map[string]interface{}{"operation": operation},
	}
}

// NewProviderError creates an upstream provider error
func NewProviderError(provider string, cause error) *CategorizedError {
	return &CategorizedError{
		Category:   CategoryProvider,
		StatusCode: http.StatusBadGateway,
		Code:       "PROVIDER_ERROR",
		Message:    fmt.Sprintf("data provider error: %s", provider),
		Cause:      cause,
		Details:    map[string]interface{}{"provider": provider},
	}
}

// serviceErrorRoutes maps ServiceError codes to their category and status
var serviceErrorRoutes = map[string]struct {
	category ErrorCategory
	status   int
}{
	"INVALID_INPUT":        {CategoryValidation, http.StatusBadRequest},
	"INVALID_ADDRESS":      {CategoryUserInput, http.StatusBadRequest},
	"INVALID_PARAMETER":    {CategoryValidation, http.StatusBadRequest},
	"UNAUTHORIZED":         {CategoryAuthorization, http.StatusUnauthorized},
	"FORBIDDEN":            {CategoryAuthorization, http.StatusForbidden},
	"USER_NOT_FOUND":       {CategoryNotFound, http.StatusNotFound},
	"FLOW_NOT_FOUND":       {CategoryNotFound, http.StatusNotFound},
	"REPORT_NOT_FOUND":     {CategoryNotFound, http.StatusNotFound},
	"PROJECT_NOT_FOUND":    {CategoryNotFound, http.StatusNotFound},
	"PAYMENT_REQUIRED":     {CategoryPayment, http.StatusPaymentRequired},
	"PAYMENT_NOT_VERIFIED": {CategoryPayment, http.StatusPaymentRequired},
	CodeAlreadyMeetsTarget: {CategoryRebalance, http.StatusConflict},
	CodeNothingToSwap:      {CategoryRebalance, http.StatusConflict},
	CodeNoChanges:          {CategoryRebalance, http.StatusConflict},
	CodeZeroTotalScore:     {CategoryRebalance, http.StatusUnprocessableEntity},
	CodeSwapFailed:         {CategoryRebalance, http.StatusBadGateway},
	"UPSTREAM_ERROR":       {CategoryProvider, http.StatusBadGateway},
}

// Categorize categorizes an existing error
func Categorize(err error) *CategorizedError {
	if err == nil {
		return nil
	}

	if catErr, ok := err.(*CategorizedError); ok {
		return catErr
	}

	if svcErr, ok := err.(*types.ServiceError); ok {
		route, known := serviceErrorRoutes[svcErr.Code]
		if !known {
			route.category, route.status = CategorySystem, http.StatusInternalServerError
		}
		return &CategorizedError{
			Category:   route.category,
			StatusCode: route.status,
			Code:       svcErr.Code,
			Message:    svcErr.Message,
			Details:    svcErr.Details,
		}
	}

	return NewInternalError("unexpected error", err)
}

// GetHTTPStatusCode returns the HTTP status code for an error
func GetHTTPStatusCode(err error) int {
	if catErr := Categorize(err); catErr != nil {
		return catErr.StatusCode
	}
	return http.StatusInternalServerError
}

// IsRetryable determines if an error is retryable.
// Rebalance outcomes never are: a failed swap must not be resubmitted automatically.
func IsRetryable(err error) bool {
	catErr := Categorize(err)
	if catErr == nil {
		return false
	}

	switch catErr.Category {
	case CategoryProvider, CategoryDatabase, CategoryCache:
		return true
	case CategorySystem:
		return catErr.StatusCode == http.StatusServiceUnavailable ||
			catErr.StatusCode == http.StatusGatewayTimeout
	default:
		return false
	}
}

// IsUserError determines if an error is a user error (4xx)
func IsUserError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 400 && catErr.StatusCode < 500
}

// IsSystemError determines if an error is a system error (5xx)
func IsSystemError(err error) bool {
	catErr := Categorize(err)
	return catErr != nil && catErr.StatusCode >= 500
}
