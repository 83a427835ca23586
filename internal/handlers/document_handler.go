package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/service"
	"github.com/loanvault/document-consent-api/internal/utils"
)

// DocumentHandler handles generated document HTTP requests
type DocumentHandler struct {
	documentService *service.DocumentService
}

// NewDocumentHandler creates a new document handler instance
func NewDocumentHandler(documentService *service.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

// GetDocument handles GET /documents/{documentId}
func (h *DocumentHandler) GetDocument(c *gin.Context) {
	resp, err := h.documentService.Get(c.Request.Context(), c.Param("documentId"))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// RecordAccess handles POST /documents/{documentId}/access
func (h *DocumentHandler) RecordAccess(c *gin.Context) {
	var request models.RecordAccessRequest
	if err := c.ShouldBindJSON(&request); err != nil {
		utils.SendValidationError(c, err.Error())
		return
	}

	resp, err := h.documentService.RecordAccess(c.Request.Context(), c.Param("documentId"), request.AccessType, utils.AccessMetadataFromRequest(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// Download handles GET /documents/{documentId}/download.
// It counts the download and returns the file descriptor.
func (h *DocumentHandler) Download(c *gin.Context) {
	resp, err := h.documentService.RecordAccess(c.Request.Context(), c.Param("documentId"), models.AccessDownload, utils.AccessMetadataFromRequest(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}

// Share handles POST /documents/{documentId}/share
func (h *DocumentHandler) Share(c *gin.Context) {
	var request models.ShareDocumentRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&request); err != nil {
			utils.SendValidationError(c, err.Error())
			return
		}
	}

	resp, err := h.documentService.Share(c.Request.Context(), c.Param("documentId"), &request, utils.AccessMetadataFromRequest(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendCreatedResponse(c, resp)
}

// AccessShared handles GET /documents/shared/{token}
func (h *DocumentHandler) AccessShared(c *gin.Context) {
	resp, err := h.documentService.AccessShared(c.Request.Context(), c.Param("token"), utils.AccessMetadataFromRequest(c))
	if err != nil {
		utils.SendServiceError(c, err)
		return
	}
	utils.SendOKResponse(c, resp)
}
