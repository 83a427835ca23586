package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/loanvault/document-consent-api/internal/utils"
)

// CorrelationIDHeader carries the request correlation ID in both directions
const CorrelationIDHeader = "X-Correlation-ID"

// CorrelationID reuses an inbound correlation ID or issues a new one, and
// echoes it on the response.
func CorrelationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		correlationID := extractCorrelationID(c)
		if correlationID == "" {
			correlationID = uuid.New().String()
		}
		c.Set(utils.CorrelationIDKey, correlationID)
		c.Header(CorrelationIDHeader, correlationID)
		c.Next()
	}
}

func extractCorrelationID(c *gin.Context) string {
	for _, header := range []string{CorrelationIDHeader, "X-Request-ID", "X-Trace-ID"} {
		if id := c.GetHeader(header); id != "" {
			return id
		}
	}
	return ""
}
