package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/dao"
)

// SweepResult reports how many records an expiry sweep removed
type SweepResult struct {
	BatchesDeleted   int64
	DocumentsDeleted int64
}

// CleanupService removes batches that can no longer be verified and
// documents past their expiry.
type CleanupService struct {
	batches   dao.BatchStore
	documents dao.DocumentStore
	logger    *logrus.Logger
	now       func() time.Time
}

// NewCleanupService creates a new cleanup service instance
func NewCleanupService(batches dao.BatchStore, documents dao.DocumentStore, logger *logrus.Logger) *CleanupService {
	return &CleanupService{
		batches:   batches,
		documents: documents,
		logger:    logger,
		now:       time.Now,
	}
}

// Sweep runs one expiry pass
func (s *CleanupService) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.now()
	var result SweepResult

	batches, err := s.batches.DeleteExpired(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to sweep batches: %w", err)
	}
	result.BatchesDeleted = batches

	docs, err := s.documents.DeleteExpired(ctx, now)
	if err != nil {
		return result, fmt.Errorf("failed to sweep documents: %w", err)
	}
	result.DocumentsDeleted = docs

	if result.BatchesDeleted > 0 || result.DocumentsDeleted > 0 {
		s.logger.WithFields(logrus.Fields{
			"batchesDeleted":   result.BatchesDeleted,
			"documentsDeleted": result.DocumentsDeleted,
		}).Info("Expiry sweep removed records")
	}
	return result, nil
}
