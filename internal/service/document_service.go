package service

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/pkg/utils"
)

// DocumentService exposes generated documents and records access to them
type DocumentService struct {
	documents dao.DocumentStore
	batches   dao.BatchStore
	logger    *logrus.Logger
	locks     *batchLocks
	now       func() time.Time
}

// NewDocumentService creates a new document service instance
func NewDocumentService(documents dao.DocumentStore, batches dao.BatchStore, logger *logrus.Logger) *DocumentService {
	return &DocumentService{
		documents: documents,
		batches:   batches,
		logger:    logger,
		locks:     newBatchLocks(),
		now:       time.Now,
	}
}

// ListByBatch returns the documents generated for a batch
func (s *DocumentService) ListByBatch(ctx context.Context, batchID string) (*models.DocumentListResponse, error) {
	if err := utils.ValidateBatchID(batchID); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid batch ID", err.Error())
	}
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, models.NewServiceError(models.ErrCodeBatchNotFound, "Batch not found", batchID)
		}
		return nil, s.storeError(err, "Failed to load batch", logrus.Fields{"batchId": batchID})
	}

	docs, err := s.documents.ListByRequestID(ctx, batchID)
	if err != nil {
		return nil, s.storeError(err, "Failed to list documents", logrus.Fields{"batchId": batchID})
	}

	now := s.now()
	summaries := make([]models.DocumentSummary, 0, len(docs))
	for _, doc := range docs {
		summaries = append(summaries, doc.GetSummary(now))
	}

	return &models.DocumentListResponse{
		Success:   true,
		BatchID:   batchID,
		Documents: summaries,
		Total:     len(summaries),
	}, nil
}

// Get returns a single document
func (s *DocumentService) Get(ctx context.Context, documentID string) (*models.DocumentResponse, error) {
	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return &models.DocumentResponse{Success: true, Document: doc.GetSummary(s.now())}, nil
}

// RecordAccess appends an access log entry. Downloads are refused once the
// document is expired, not ready or out of downloads.
func (s *DocumentService) RecordAccess(ctx context.Context, documentID string, accessType models.AccessType, meta models.AccessMetadata) (*models.DocumentResponse, error) {
	unlock := s.locks.lock(documentID)
	defer unlock()

	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if accessType == models.AccessDownload && !doc.CanDownload(now) {
		return nil, models.NewServiceError(models.ErrCodeDownloadNotAllowed, "Document is not available for download", "")
	}

	doc.RecordAccess(accessType, meta, now)
	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, s.storeError(err, "Failed to record document access", logrus.Fields{"documentId": documentID})
	}

	s.logger.WithFields(logrus.Fields{
		"documentId":    documentID,
		"accessType":    accessType,
		"downloadCount": doc.DownloadCount,
	}).Info("Document access recorded")

	return &models.DocumentResponse{Success: true, Document: doc.GetSummary(now)}, nil
}

// Share issues a share token for a document
func (s *DocumentService) Share(ctx context.Context, documentID string, req *models.ShareDocumentRequest, meta models.AccessMetadata) (*models.ShareDocumentResponse, error) {
	unlock := s.locks.lock(documentID)
	defer unlock()

	doc, err := s.load(ctx, documentID)
	if err != nil {
		return nil, err
	}

	hours := req.ExpiresInHours
	if hours <= 0 {
		hours = models.DefaultShareExpiryHours
	}

	token, err := utils.GenerateShareToken()
	if err != nil {
		return nil, models.NewServiceError(models.ErrCodeInternalError, "Failed to generate share token", err.Error())
	}

	now := s.now()
	st := doc.AddShareToken(token, time.Duration(hours)*time.Hour, req.MaxAccess, now)
	doc.RecordAccess(models.AccessShare, meta, now)

	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, s.storeError(err, "Failed to share document", logrus.Fields{"documentId": documentID})
	}

	s.logger.WithFields(logrus.Fields{
		"documentId": documentID,
		"expiresAt":  st.ExpiresAt,
		"maxAccess":  st.MaxAccess,
	}).Info("Document share token issued")

	return &models.ShareDocumentResponse{
		Success:    true,
		DocumentID: documentID,
		Token:      st.Token,
		ExpiresAt:  st.ExpiresAt,
		MaxAccess:  st.MaxAccess,
	}, nil
}

// AccessShared validates a share token, counts the access and returns the document
func (s *DocumentService) AccessShared(ctx context.Context, token string, meta models.AccessMetadata) (*models.DocumentResponse, error) {
	if token == "" {
		return nil, models.NewServiceError(models.ErrCodeShareTokenInvalid, "Invalid or expired share link", "")
	}

	found, err := s.documents.GetByShareToken(ctx, token)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, models.NewServiceError(models.ErrCodeShareTokenInvalid, "Invalid or expired share link", "")
		}
		return nil, s.storeError(err, "Failed to resolve share link", nil)
	}

	unlock := s.locks.lock(found.DocumentID)
	defer unlock()

	doc, err := s.load(ctx, found.DocumentID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if doc.IsExpired(now) || !doc.ConsumeShareToken(token, now) {
		return nil, models.NewServiceError(models.ErrCodeShareTokenInvalid, "Invalid or expired share link", "")
	}
	doc.RecordAccess(models.AccessView, meta, now)

	if err := s.documents.Update(ctx, doc); err != nil {
		return nil, s.storeError(err, "Failed to record shared access", logrus.Fields{"documentId": doc.DocumentID})
	}

	return &models.DocumentResponse{Success: true, Document: doc.GetSummary(now)}, nil
}

func (s *DocumentService) load(ctx context.Context, documentID string) (*models.Document, error) {
	if err := utils.ValidateDocumentID(documentID); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid document ID", err.Error())
	}

	doc, err := s.documents.GetByID(ctx, documentID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, models.NewServiceError(models.ErrCodeDocumentNotFound, "Document not found", documentID)
		}
		return nil, s.storeError(err, "Failed to load document", logrus.Fields{"documentId": documentID})
	}
	return doc, nil
}

func (s *DocumentService) storeError(err error, message string, fields logrus.Fields) *models.ServiceError {
	s.logger.WithError(err).WithFields(fields).Error(message)
	return models.NewServiceError(models.ErrCodeDatabaseError, message, "")
}
