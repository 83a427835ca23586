package utils

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/loanvault/document-consent-api/internal/models"
)

// CorrelationIDKey is the gin context key holding the request correlation ID
const CorrelationIDKey = "correlationID"

// SendErrorResponse sends an error JSON response
func SendErrorResponse(c *gin.Context, statusCode int, errCode, message, details string) {
	c.JSON(statusCode, models.NewErrorResponse(errCode, message, details))
}

// SendCreatedResponse sends a 201 Created response
func SendCreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// SendOKResponse sends a 200 OK response
func SendOKResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// SendValidationError sends a validation error response
func SendValidationError(c *gin.Context, details string) {
	SendErrorResponse(c, http.StatusBadRequest, models.ErrCodeValidationError, "Validation failed", details)
}

// SendInternalServerError sends a 500 Internal Server Error
func SendInternalServerError(c *gin.Context, message, details string) {
	SendErrorResponse(c, http.StatusInternalServerError, models.ErrCodeInternalError, message, details)
}

// SendServiceError writes err using the status mapped from its code.
// Errors that are not a ServiceError are reported as internal errors.
func SendServiceError(c *gin.Context, err error) {
	var se *models.ServiceError
	if errors.As(err, &se) {
		SendErrorResponse(c, models.HTTPStatusForErrorCode(se.Code), se.Code, se.Message, se.Details)
		return
	}
	SendInternalServerError(c, "Internal server error", "")
}

// GetCorrelationIDFromContext extracts correlation ID from context
func GetCorrelationIDFromContext(c *gin.Context) string {
	correlationID, exists := c.Get(CorrelationIDKey)
	if !exists {
		return ""
	}
	id, _ := correlationID.(string)
	return id
}

// AccessMetadataFromRequest describes the client of the current request
func AccessMetadataFromRequest(c *gin.Context) models.AccessMetadata {
	return models.AccessMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		SessionID: c.GetHeader("X-Session-ID"),
	}
}

// RequestMetadataFromRequest captures where a batch request came from
func RequestMetadataFromRequest(c *gin.Context) models.RequestMetadata {
	return models.RequestMetadata{
		IPAddress: c.ClientIP(),
		UserAgent: c.Request.UserAgent(),
		SessionID: c.GetHeader("X-Session-ID"),
		Source:    c.GetHeader("X-Request-Source"),
	}
}
