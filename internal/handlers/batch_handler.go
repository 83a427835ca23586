package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/service"
	"github.com/loanvault/document-consent-api/internal/utils"
)

// BatchHandler handles batch consent HTTP requests
type BatchHandler struct {
	batchService    *service.BatchService
	documentService *service.DocumentService
}

// NewBatchHandler creates a new batch handler instance
func NewBatchHandler(batchService *service.BatchService, documentService *service.DocumentService) *BatchHandler {
	return &BatchHandler{
		batchService:    batchService,
		documentService: documentService,
	}
}

// CreateBatch handles POST /consent/batch
func (h *BatchHandler) CreateBatch(c *gin.Context) {
	var request models.CreateBatchRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}
	request.Metadata = utils.RequestMetadataFromRequest(c)

	resp, err := h.batchService.CreateBatch(c.Request.Context(), &request)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, resp)
}

// SendOTP handles POST /consent/batch/{batchId}/send-otp
func (h *BatchHandler) SendOTP(c *gin.Context) {
	resp, err := h.batchService.SendOTP(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// ResendOTP handles POST /consent/batch/{batchId}/resend-otp
func (h *BatchHandler) ResendOTP(c *gin.Context) {
	resp, err := h.batchService.ResendOTP(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// VerifyOTP handles POST /consent/batch/{batchId}/verify-otp
func (h *BatchHandler) VerifyOTP(c *gin.Context) {
	var request models.VerifyOTPRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	resp, err := h.batchService.VerifyOTP(c.Request.Context(), c.Param("batchId"), request.OTPCode)
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// GetStatus handles GET /consent/batch/{batchId}/status
func (h *BatchHandler) GetStatus(c *gin.Context) {
	resp, err := h.batchService.GetStatus(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// GetHistory handles GET /consent/batch/history/{panNumber}
func (h *BatchHandler) GetHistory(c *gin.Context) {
	resp, err := h.batchService.GetHistory(c.Request.Context(), c.Param("panNumber"), c.Query("status"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// ListDocuments handles GET /consent/batch/{batchId}/documents
func (h *BatchHandler) ListDocuments(c *gin.Context) {
	resp, err := h.documentService.ListByBatch(c.Request.Context(), c.Param("batchId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}
