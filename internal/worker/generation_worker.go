package worker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/notification"
	"github.com/loanvault/document-consent-api/pkg/utils"
)

// ErrBatchNotProcessing is returned when a batch is handed to the worker in any other status
var ErrBatchNotProcessing = errors.New("batch is not in processing status")

const (
	documentsReadyNotification = "Your documents are ready for download!"
	documentStoragePrefix      = "/uploads/documents/"
)

// Nominal file sizes of generated documents, in bytes
var documentSizes = map[models.DocumentType]int64{
	models.DocStatementOfAccount: 245 * 1024,
	models.DocRepaymentSchedule:  128 * 1024,
	models.DocSanctionLetter:     96 * 1024,
	models.DocForeclosureLetter:  84 * 1024,
	models.DocNOC:                64 * 1024,
}

// GenerationSettings controls the documents the worker produces
type GenerationSettings struct {
	DocumentTTL  time.Duration
	MaxDownloads int
}

// DocumentGenerationWorker walks the selected loans of a processing batch,
// creates one document per requested type and finalizes the batch.
type DocumentGenerationWorker struct {
	batches   dao.BatchStore
	documents dao.DocumentStore
	notifier  notification.Notifier
	mode      models.RuntimeMode
	settings  GenerationSettings
	logger    *logrus.Logger
	now       func() time.Time
}

// NewDocumentGenerationWorker creates a DocumentGenerationWorker
func NewDocumentGenerationWorker(
	batches dao.BatchStore,
	documents dao.DocumentStore,
	notifier notification.Notifier,
	mode models.RuntimeMode,
	settings GenerationSettings,
	logger *logrus.Logger,
) *DocumentGenerationWorker {
	if settings.DocumentTTL <= 0 {
		settings.DocumentTTL = models.DefaultDocumentTTL
	}
	if settings.MaxDownloads <= 0 {
		settings.MaxDownloads = models.DefaultMaxDownloads
	}
	return &DocumentGenerationWorker{
		batches:   batches,
		documents: documents,
		notifier:  notifier,
		mode:      mode,
		settings:  settings,
		logger:    logger,
		now:       time.Now,
	}
}

// generationError records where generation stopped
type generationError struct {
	bankName     string
	documentType models.DocumentType
	err          error
}

func (e *generationError) Error() string {
	return e.err.Error()
}

func (e *generationError) Unwrap() error {
	return e.err
}

// bankTally counts a bank's documents across the loans of one run
type bankTally struct {
	requested int
	generated int
}

// generationRun carries the state of one pass over a batch. existing holds
// documents created by an earlier, interrupted pass.
type generationRun struct {
	batch    *models.ConsentBatch
	existing map[string]int
	banks    map[string]*bankTally
}

func documentKey(loanID string, docType models.DocumentType) string {
	return loanID + "/" + string(docType)
}

func (r *generationRun) tally(bank string) *bankTally {
	t, ok := r.banks[bank]
	if !ok {
		t = &bankTally{}
		r.banks[bank] = t
	}
	return t
}

// reuse consumes one previously generated document for the loan and type
func (r *generationRun) reuse(loanID string, docType models.DocumentType) bool {
	key := documentKey(loanID, docType)
	if r.existing[key] == 0 {
		return false
	}
	r.existing[key]--
	return true
}

// Process generates every requested document of the batch. Any failure,
// including a panic, ends the batch as failed with already generated
// documents kept. When ctx is cancelled the batch stays processing and a
// later Process call resumes it, reusing the documents already created.
func (w *DocumentGenerationWorker) Process(ctx context.Context, batchID string) (err error) {
	batch, err := w.batches.GetByID(ctx, batchID)
	if err != nil {
		return fmt.Errorf("failed to load batch %s: %w", batchID, err)
	}
	if batch.Status != models.BatchProcessing {
		return fmt.Errorf("batch %s has status %s: %w", batchID, batch.Status, ErrBatchNotProcessing)
	}

	logger := w.logger.WithField("batchId", batchID)
	currentBank := ""

	defer func() {
		if r := recover(); r != nil {
			err = w.fail(ctx, batch, &generationError{bankName: currentBank, err: fmt.Errorf("panic: %v", r)})
		}
	}()

	run, err := w.newRun(ctx, batch)
	if err != nil {
		return w.stop(ctx, batch, &generationError{err: err})
	}

	now := w.now()
	batch.UpdateStage(models.StageFetchingDocuments, models.StageDone, "", now)
	batch.UpdateStage(models.StageGeneratingDocuments, models.StageInProgress, "", now)
	batch.Progress.CurrentStage = models.StageGeneratingDocuments
	if err := w.save(ctx, batch, now); err != nil {
		return w.stop(ctx, batch, &generationError{err: err})
	}

	if len(run.existing) > 0 {
		logger.WithField("loans", len(batch.SelectedLoans)).Info("Document generation resumed")
	} else {
		logger.WithField("loans", len(batch.SelectedLoans)).Info("Document generation started")
	}

	for _, loan := range batch.SelectedLoans {
		currentBank = loan.BankName
		if err := w.processLoan(ctx, run, loan); err != nil {
			return w.stop(ctx, batch, err)
		}
	}

	return w.complete(ctx, batch)
}

func (w *DocumentGenerationWorker) newRun(ctx context.Context, batch *models.ConsentBatch) (*generationRun, error) {
	docs, err := w.documents.ListByRequestID(ctx, batch.BatchID)
	if err != nil {
		return nil, err
	}

	existing := make(map[string]int, len(docs))
	for _, doc := range docs {
		existing[documentKey(doc.LoanID, doc.DocumentType)]++
	}
	batch.DocumentsGenerated = 0

	return &generationRun{
		batch:    batch,
		existing: existing,
		banks:    make(map[string]*bankTally),
	}, nil
}

func (w *DocumentGenerationWorker) processLoan(ctx context.Context, run *generationRun, loan models.SelectedLoan) *generationError {
	batch := run.batch
	bank := loan.BankName
	tally := run.tally(bank)
	tally.requested += len(loan.RequestedDocuments)

	now := w.now()
	batch.UpdateBankStatus(bank, models.BankProcessing, models.BankUpdate{}.WithRequested(tally.requested), now)
	if err := w.save(ctx, batch, now); err != nil {
		return &generationError{bankName: bank, err: err}
	}

	for _, requestedDoc := range loan.RequestedDocuments {
		if run.reuse(loan.LoanID, requestedDoc.DocumentType) {
			tally.generated++
			batch.DocumentsGenerated++
			continue
		}

		if err := sleepContext(ctx, w.mode.DocumentLatency); err != nil {
			return &generationError{bankName: bank, documentType: requestedDoc.DocumentType, err: err}
		}

		now = w.now()
		doc := w.buildDocument(batch, loan, requestedDoc, now)
		if err := w.documents.Create(ctx, doc); err != nil {
			return &generationError{bankName: bank, documentType: requestedDoc.DocumentType, err: err}
		}

		tally.generated++
		batch.DocumentsGenerated++
		batch.SyncProgress()
		batch.UpdateBankStatus(bank, models.BankProcessing, models.BankUpdate{}.WithGenerated(tally.generated), now)
		batch.UpdateStage(models.StageGeneratingDocuments, models.StageInProgress,
			fmt.Sprintf("Generated %d of %d documents", batch.DocumentsGenerated, batch.TotalDocumentsRequested), now)
		if err := w.save(ctx, batch, now); err != nil {
			return &generationError{bankName: bank, documentType: requestedDoc.DocumentType, err: err}
		}

		w.logger.WithFields(logrus.Fields{
			"batchId":      batch.BatchID,
			"bankName":     bank,
			"documentType": requestedDoc.DocumentType,
			"documentId":   doc.DocumentID,
		}).Debug("Document generated")
	}

	now = w.now()
	batch.SyncProgress()
	batch.UpdateBankStatus(bank, models.BankCompleted, models.BankUpdate{}.WithGenerated(tally.generated), now)
	if err := w.save(ctx, batch, now); err != nil {
		return &generationError{bankName: bank, err: err}
	}
	return nil
}

func (w *DocumentGenerationWorker) buildDocument(batch *models.ConsentBatch, loan models.SelectedLoan, requested models.RequestedDocument, now time.Time) *models.Document {
	id := utils.GenerateDocumentID(now)
	fileName := fmt.Sprintf("%s_%s_%d.pdf", loan.BankName, requested.DocumentType, now.UnixMilli())
	checksum := sha256.Sum256([]byte(id + "/" + fileName))

	size, ok := documentSizes[requested.DocumentType]
	if !ok {
		size = 50 * 1024
	}

	return &models.Document{
		DocumentID:      id,
		RequestID:       batch.BatchID,
		PANNumber:       batch.PANNumber,
		LoanID:          loan.LoanID,
		AccountID:       loan.AccountID,
		BankName:        loan.BankName,
		DocumentType:    requested.DocumentType,
		DocumentSubType: requested.SubType,
		Status:          models.DocumentReady,
		FileName:        fileName,
		FilePath:        documentStoragePrefix + id + ".pdf",
		FileSize:        size,
		MimeType:        models.DefaultDocumentMimeType,
		DownloadURL:     models.DownloadPath(id),
		Checksum:        hex.EncodeToString(checksum[:]),
		SourceSystem:    w.mode.SourceSystem(),
		GeneratedAt:     utils.TimePtr(now),
		ExpiresAt:       now.Add(w.settings.DocumentTTL),
		MaxDownloads:    w.settings.MaxDownloads,
		ShareTokens:     []models.ShareToken{},
		AccessLog:       []models.AccessLogEntry{},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

func (w *DocumentGenerationWorker) complete(ctx context.Context, batch *models.ConsentBatch) error {
	now := w.now()
	batch.Status = models.BatchCompleted
	batch.ProcessingCompletedAt = utils.TimePtr(now)
	batch.CompletedAt = utils.TimePtr(now)
	batch.UpdateStage(models.StageGeneratingDocuments, models.StageDone,
		fmt.Sprintf("Generated %d documents", batch.DocumentsGenerated), now)
	batch.UpdateStage(models.StageCompleted, models.StageInProgress, "", now)
	batch.UpdateStage(models.StageCompleted, models.StageDone, "", now)
	batch.Progress.CurrentStage = models.StageCompleted
	batch.SyncProgress()
	batch.AddNotification(models.NotificationSMS, documentsReadyNotification, models.NotificationSent, now)

	if err := w.save(ctx, batch, now); err != nil {
		return w.stop(ctx, batch, &generationError{err: err})
	}

	if err := w.notifier.Send(ctx, notification.Message{
		Type:      models.NotificationSMS,
		BatchID:   batch.BatchID,
		Recipient: batch.PhoneNumber,
		Body:      documentsReadyNotification,
	}); err != nil {
		w.logger.WithError(err).WithField("batchId", batch.BatchID).Warn("Failed to deliver completion notification")
	}

	w.logger.WithFields(logrus.Fields{
		"batchId":            batch.BatchID,
		"documentsGenerated": batch.DocumentsGenerated,
	}).Info("Document generation completed")
	return nil
}

// stop routes a generation error: cancellation interrupts the batch, anything
// else fails it.
func (w *DocumentGenerationWorker) stop(ctx context.Context, batch *models.ConsentBatch, cause *generationError) error {
	if ctx.Err() != nil {
		return w.interrupt(ctx, batch, cause)
	}
	return w.fail(ctx, batch, cause)
}

// interrupt saves progress and leaves the batch processing for a later resume
func (w *DocumentGenerationWorker) interrupt(ctx context.Context, batch *models.ConsentBatch, cause *generationError) error {
	logger := w.logger.WithFields(logrus.Fields{
		"batchId":            batch.BatchID,
		"bankName":           cause.bankName,
		"documentsGenerated": batch.DocumentsGenerated,
	})

	batch.Status = models.BatchProcessing
	batch.CompletedAt = nil
	batch.ProcessingCompletedAt = nil
	if err := w.save(context.WithoutCancel(ctx), batch, w.now()); err != nil {
		logger.WithError(err).Error("Failed to record generation progress")
	}

	logger.WithError(cause.err).Warn("Document generation interrupted; batch left processing")
	return fmt.Errorf("document generation interrupted for batch %s: %w", batch.BatchID, cause)
}

// fail marks the batch failed. Documents and counters produced before the
// failure are kept; the remainder is counted as failed.
func (w *DocumentGenerationWorker) fail(ctx context.Context, batch *models.ConsentBatch, cause *generationError) error {
	now := w.now()
	message := cause.Error()

	batch.Status = models.BatchFailed
	batch.AddError(models.BatchErrGenerationFailed, message, cause.bankName, string(cause.documentType), now)
	if cause.bankName != "" {
		batch.UpdateBankStatus(cause.bankName, models.BankFailed, models.BankUpdate{}.WithError(message), now)
	}
	for _, stage := range batch.Progress.Stages.InProgress() {
		batch.UpdateStage(stage, models.StageFailed, message, now)
	}
	batch.DocumentsFailed = batch.TotalDocumentsRequested - batch.DocumentsGenerated
	batch.SyncProgress()

	logger := w.logger.WithFields(logrus.Fields{
		"batchId":            batch.BatchID,
		"bankName":           cause.bankName,
		"documentsGenerated": batch.DocumentsGenerated,
		"documentsFailed":    batch.DocumentsFailed,
	})

	if err := w.save(context.WithoutCancel(ctx), batch, now); err != nil {
		logger.WithError(err).Error("Failed to record generation failure")
	}

	logger.WithError(cause.err).Error("Document generation failed")
	return fmt.Errorf("document generation failed for batch %s: %w", batch.BatchID, cause)
}

func (w *DocumentGenerationWorker) save(ctx context.Context, batch *models.ConsentBatch, now time.Time) error {
	batch.UpdatedAt = now
	return w.batches.Update(ctx, batch)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
