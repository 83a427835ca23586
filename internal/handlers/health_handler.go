package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// HealthHandler reports whether the backing store is reachable
type HealthHandler struct {
	check  func(ctx context.Context) error
	logger *logrus.Logger
}

// NewHealthHandler creates a new health handler instance
func NewHealthHandler(check func(ctx context.Context) error, logger *logrus.Logger) *HealthHandler {
	return &HealthHandler{check: check, logger: logger}
}

// Health handles GET /health
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	if h.check != nil {
		if err := h.check(ctx); err != nil {
			h.logger.WithError(err).Warn("Health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy"})
}
