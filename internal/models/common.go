package models

import (
	"net/http"
)

// ErrorResponse represents a standard error response
type ErrorResponse struct {
	Success bool   `json:"success"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message, details string) *ErrorResponse {
	return &ErrorResponse{
		Success: false,
		Code:    code,
		Message: message,
		Details: details,
	}
}

// Common error codes
const (
	ErrCodeBadRequest          = "BAD_REQUEST"
	ErrCodeNotFound            = "NOT_FOUND"
	ErrCodeInternalError       = "INTERNAL_ERROR"
	ErrCodeDatabaseError       = "DATABASE_ERROR"
	ErrCodeValidationError     = "VALIDATION_ERROR"
	ErrCodeRateLimited         = "RATE_LIMITED"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeConsentExpired      = "CONSENT_EXPIRED"
	ErrCodeBatchNotFound       = "BATCH_NOT_FOUND"
	ErrCodeInvalidState        = "INVALID_STATE"
	ErrCodeAlreadyProcessing   = "ALREADY_PROCESSING"
	ErrCodeOTPNotSent          = "OTP_NOT_SENT"
	ErrCodeOTPExpired          = "EXPIRED"
	ErrCodeOTPAttemptsExceeded = "ATTEMPTS_EXCEEDED"
	ErrCodeOTPInvalid          = "INVALID_CODE"
	ErrCodeDocumentNotFound    = "DOCUMENT_NOT_FOUND"
	ErrCodeDownloadNotAllowed  = "DOWNLOAD_NOT_ALLOWED"
	ErrCodeShareTokenInvalid   = "SHARE_TOKEN_INVALID"
	ErrCodeUpstreamError       = "UPSTREAM_ERROR"
)

// Batch-level error codes recorded on ConsentBatch.Errors
const (
	BatchErrGenerationFailed = "GENERATION_FAILED"
	BatchErrEnqueueFailed    = "ENQUEUE_FAILED"
)

// HTTPStatusForErrorCode returns the appropriate HTTP status code for an error code
func HTTPStatusForErrorCode(code string) int {
	switch code {
	case ErrCodeBadRequest, ErrCodeValidationError, ErrCodeInvalidState, ErrCodeOTPNotSent,
		ErrCodeOTPExpired, ErrCodeOTPAttemptsExceeded, ErrCodeOTPInvalid:
		return http.StatusBadRequest
	case ErrCodeConsentExpired, ErrCodeShareTokenInvalid:
		return http.StatusUnauthorized
	case ErrCodeDownloadNotAllowed:
		return http.StatusForbidden
	case ErrCodeNotFound, ErrCodeUserNotFound, ErrCodeBatchNotFound, ErrCodeDocumentNotFound:
		return http.StatusNotFound
	case ErrCodeAlreadyProcessing:
		return http.StatusConflict
	case ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case ErrCodeUpstreamError:
		return http.StatusBadGateway
	case ErrCodeInternalError, ErrCodeDatabaseError:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// ServiceError is the error type returned by the service layer. Handlers map
// Code to an HTTP status via HTTPStatusForErrorCode.
type ServiceError struct {
	Code    string
	Message string
	Details string
}

func (e *ServiceError) Error() string {
	if e.Details != "" {
		return e.Code + ": " + e.Message + " (" + e.Details + ")"
	}
	return e.Code + ": " + e.Message
}

// NewServiceError creates a new service error
func NewServiceError(code, message, details string) *ServiceError {
	return &ServiceError{
		Code:    code,
		Message: message,
		Details: details,
	}
}
