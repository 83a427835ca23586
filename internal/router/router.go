package router

import (
	"context"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/handlers"
	"github.com/loanvault/document-consent-api/internal/middleware"
	"github.com/loanvault/document-consent-api/internal/service"
)

// Dependencies are the services the HTTP surface is built on
type Dependencies struct {
	BatchService    *service.BatchService
	DocumentService *service.DocumentService
	OTPLimiter      *middleware.RateLimiter
	HealthCheck     func(ctx context.Context) error
	Logger          *logrus.Logger
}

// SetupRouter configures all API routes
func SetupRouter(deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery(), middleware.CorrelationID(), middleware.RequestLogger(deps.Logger))

	healthHandler := handlers.NewHealthHandler(deps.HealthCheck, deps.Logger)
	batchHandler := handlers.NewBatchHandler(deps.BatchService, deps.DocumentService)
	documentHandler := handlers.NewDocumentHandler(deps.DocumentService)

	router.GET("/health", healthHandler.Health)

	otpLimit := func(c *gin.Context) { c.Next() }
	if deps.OTPLimiter != nil {
		otpLimit = deps.OTPLimiter.Middleware()
	}

	v1 := router.Group("/api/v1")
	{
		batches := v1.Group("/consent/batch")
		{
			batches.POST("", batchHandler.CreateBatch)
			batches.GET("/history/:panNumber", batchHandler.GetHistory)
			batches.POST("/:batchId/send-otp", otpLimit, batchHandler.SendOTP)
			batches.POST("/:batchId/resend-otp", otpLimit, batchHandler.ResendOTP)
			batches.POST("/:batchId/verify-otp", otpLimit, batchHandler.VerifyOTP)
			batches.GET("/:batchId/status", batchHandler.GetStatus)
			batches.GET("/:batchId/documents", batchHandler.ListDocuments)
		}

		documents := v1.Group("/documents")
		{
			documents.GET("/shared/:token", documentHandler.AccessShared)
			documents.GET("/:documentId", documentHandler.GetDocument)
			documents.GET("/:documentId/download", documentHandler.Download)
			documents.POST("/:documentId/access", documentHandler.RecordAccess)
			documents.POST("/:documentId/share", documentHandler.Share)
		}
	}

	return router
}
