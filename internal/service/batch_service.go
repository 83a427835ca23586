package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/client"
	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/notification"
	"github.com/loanvault/document-consent-api/pkg/utils"
)

// Response texts returned to API callers
const (
	estimatedTimeText   = "5-10 minutes"
	nextStepSendOTP     = "send_otp"
	otpSentNotification = "OTP sent for batch consent verification"
)

// TaskQueue schedules document generation for a verified batch
type TaskQueue interface {
	Enqueue(batchID string) error
}

// BatchSettings holds the timings applied to new and verified batches
type BatchSettings struct {
	ConsentTTL          time.Duration
	EstimatedProcessing time.Duration
}

// BatchService drives the consent batch state machine
type BatchService struct {
	batches  dao.BatchStore
	checker  client.ConsentChecker
	verifier *OTPVerifier
	notifier notification.Notifier
	queue    TaskQueue
	mode     models.RuntimeMode
	settings BatchSettings
	logger   *logrus.Logger
	locks    *batchLocks
	now      func() time.Time
}

// NewBatchService creates a new batch service instance
func NewBatchService(
	batches dao.BatchStore,
	checker client.ConsentChecker,
	verifier *OTPVerifier,
	notifier notification.Notifier,
	queue TaskQueue,
	mode models.RuntimeMode,
	settings BatchSettings,
	logger *logrus.Logger,
) *BatchService {
	return &BatchService{
		batches:  batches,
		checker:  checker,
		verifier: verifier,
		notifier: notifier,
		queue:    queue,
		mode:     mode,
		settings: settings,
		logger:   logger,
		locks:    newBatchLocks(),
		now:      time.Now,
	}
}

// CreateBatch validates the request, checks upstream consent and stores a pending batch
func (s *BatchService) CreateBatch(ctx context.Context, req *models.CreateBatchRequest) (*models.CreateBatchResponse, error) {
	req.PANNumber = utils.NormalizePAN(req.PANNumber)
	if err := utils.ValidatePAN(req.PANNumber); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid PAN number", err.Error())
	}
	if len(req.SelectedLoans) == 0 {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "At least one loan must be selected", "")
	}
	if err := utils.ValidateStruct(req); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid batch request", err.Error())
	}

	logger := s.logger.WithField("panNumber", utils.MaskPAN(req.PANNumber))

	user, err := s.checker.GetUser(ctx, req.PANNumber)
	if err != nil {
		if errors.Is(err, client.ErrUserNotFound) {
			return nil, models.NewServiceError(models.ErrCodeUserNotFound, "User not found", "")
		}
		logger.WithError(err).Error("Consent lookup failed")
		return nil, models.NewServiceError(models.ErrCodeUpstreamError, "Unable to verify CIBIL consent", err.Error())
	}

	now := s.now()
	if !user.IsCibilConsentValid(now) {
		return nil, models.NewServiceError(models.ErrCodeConsentExpired, "CIBIL consent expired or not granted", "")
	}

	batch := models.NewConsentBatch(utils.GenerateBatchID(now), req.PANNumber, req.SelectedLoans, s.settings.ConsentTTL, now)
	batch.ConsentText = utils.SanitizeString(req.ConsentText)
	batch.PhoneNumber = firstNonEmpty(req.PhoneNumber, user.PhoneNumber)
	batch.EmailAddress = firstNonEmpty(req.EmailAddress, user.Email)
	batch.RequestMetadata = req.Metadata
	batch.RequestMetadata.Source = firstNonEmpty(req.Source, req.Metadata.Source, models.SourceWeb)

	if err := s.batches.Create(ctx, batch); err != nil {
		logger.WithError(err).Error("Failed to store consent batch")
		return nil, models.NewServiceError(models.ErrCodeDatabaseError, "Failed to create batch consent request", "")
	}

	logger.WithFields(logrus.Fields{
		"batchId":        batch.BatchID,
		"totalLoans":     len(batch.SelectedLoans),
		"totalDocuments": batch.TotalDocumentsRequested,
	}).Info("Consent batch created")

	return &models.CreateBatchResponse{
		Success:        true,
		Message:        "Batch consent request created successfully",
		BatchID:        batch.BatchID,
		TotalLoans:     len(batch.SelectedLoans),
		TotalDocuments: batch.TotalDocumentsRequested,
		EstimatedTime:  estimatedTimeText,
		NextStep:       nextStepSendOTP,
	}, nil
}

// SendOTP issues the first OTP for a pending batch
func (s *BatchService) SendOTP(ctx context.Context, batchID string) (*models.SendOTPResponse, error) {
	return s.issueOTP(ctx, batchID, models.BatchPending, "OTP sent successfully")
}

// ResendOTP replaces the OTP of a batch awaiting verification and resets attempts
func (s *BatchService) ResendOTP(ctx context.Context, batchID string) (*models.SendOTPResponse, error) {
	return s.issueOTP(ctx, batchID, models.BatchOTPSent, "OTP resent successfully")
}

func (s *BatchService) issueOTP(ctx context.Context, batchID string, required models.BatchStatus, message string) (*models.SendOTPResponse, error) {
	unlock := s.locks.lock(batchID)
	defer unlock()

	batch, err := s.load(ctx, batchID)
	if err != nil {
		return nil, err
	}

	if batch.Status != required {
		return nil, models.NewServiceError(models.ErrCodeInvalidState,
			fmt.Sprintf("Batch is in %s state, expected %s", batch.Status, required), "")
	}

	now := s.now()
	if batch.IsConsentExpired(now) {
		return nil, models.NewServiceError(models.ErrCodeConsentExpired, "Batch consent window has expired", "")
	}

	code, err := s.verifier.Generate(batch, now)
	if err != nil {
		return nil, models.NewServiceError(models.ErrCodeInternalError, "Failed to generate OTP", err.Error())
	}

	batch.UpdateStage(models.StageConsentPending, models.StageDone, "", now)
	batch.UpdateStage(models.StageOTPVerification, models.StageInProgress, "", now)
	batch.Progress.CurrentStage = models.StageOTPVerification
	batch.AddNotification(models.NotificationSMS, otpSentNotification, models.NotificationSent, now)
	batch.UpdatedAt = now

	if err := s.batches.Update(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("batchId", batchID).Error("Failed to save OTP")
		return nil, models.NewServiceError(models.ErrCodeDatabaseError, "Failed to send OTP", "")
	}

	if err := s.notifier.Send(ctx, notification.Message{
		Type:      models.NotificationSMS,
		BatchID:   batchID,
		Recipient: batch.PhoneNumber,
		Body:      otpSentNotification,
	}); err != nil {
		s.logger.WithError(err).WithField("batchId", batchID).Warn("Failed to deliver OTP notification")
	}

	s.logger.WithFields(logrus.Fields{
		"batchId":   batchID,
		"expiresAt": batch.OTPExpiresAt,
	}).Info("Batch OTP issued")

	resp := &models.SendOTPResponse{
		Success:   true,
		Message:   message,
		BatchID:   batchID,
		ExpiresIn: int(s.verifier.TTL() / time.Second),
	}
	if s.mode.ExposeOTP {
		resp.DemoOTP = code
	}
	return resp, nil
}

// VerifyOTP checks the submitted code and, on success, schedules document generation
func (s *BatchService) VerifyOTP(ctx context.Context, batchID, code string) (*models.VerifyOTPResponse, error) {
	if err := utils.ValidateOTPCode(code); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid OTP code", err.Error())
	}

	unlock := s.locks.lock(batchID)
	defer unlock()

	batch, err := s.load(ctx, batchID)
	if err != nil {
		return nil, err
	}

	switch batch.Status {
	case models.BatchProcessing, models.BatchCompleted:
		return nil, models.NewServiceError(models.ErrCodeAlreadyProcessing, "Batch has already been verified", "")
	case models.BatchPending, models.BatchOTPSent:
	default:
		return nil, models.NewServiceError(models.ErrCodeInvalidState,
			fmt.Sprintf("Batch is in %s state and cannot be verified", batch.Status), "")
	}

	now := s.now()
	verifyErr := s.verifier.Verify(batch, code, now)
	if verifyErr == nil {
		s.startProcessing(batch, now)
	}
	batch.UpdatedAt = now

	if err := s.batches.Update(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("batchId", batchID).Error("Failed to save OTP verification")
		return nil, models.NewServiceError(models.ErrCodeDatabaseError, "Failed to verify OTP", "")
	}

	logger := s.logger.WithFields(logrus.Fields{"batchId": batchID, "attempts": batch.OTPAttempts})
	if verifyErr != nil {
		logger.WithError(verifyErr).Info("Batch OTP verification failed")
		return nil, otpServiceError(verifyErr)
	}

	if err := s.queue.Enqueue(batchID); err != nil {
		logger.WithError(err).Error("Failed to schedule document generation")
		s.failEnqueue(ctx, batch, err)
		return nil, models.NewServiceError(models.ErrCodeInternalError, "Failed to start document generation", "")
	}

	logger.Info("Batch OTP verified, document generation scheduled")

	return &models.VerifyOTPResponse{
		Success:             true,
		Message:             "OTP verified successfully. Document generation started.",
		BatchID:             batchID,
		Status:              batch.Status,
		EstimatedCompletion: batch.EstimatedCompletionTime,
	}, nil
}

func (s *BatchService) startProcessing(batch *models.ConsentBatch, now time.Time) {
	batch.Status = models.BatchProcessing
	batch.ProcessingStartedAt = utils.TimePtr(now)
	batch.EstimatedCompletionTime = utils.TimePtr(now.Add(s.settings.EstimatedProcessing))
	batch.UpdateStage(models.StageProcessingStarted, models.StageInProgress, "", now)
	batch.UpdateStage(models.StageProcessingStarted, models.StageDone, "", now)
	batch.UpdateStage(models.StageFetchingDocuments, models.StageInProgress, "", now)
	batch.Progress.CurrentStage = models.StageFetchingDocuments
}

func (s *BatchService) failEnqueue(ctx context.Context, batch *models.ConsentBatch, cause error) {
	now := s.now()
	batch.Status = models.BatchFailed
	batch.AddError(models.BatchErrEnqueueFailed, cause.Error(), "", "", now)
	batch.UpdateStage(models.StageFetchingDocuments, models.StageFailed, cause.Error(), now)
	batch.UpdatedAt = now
	if err := s.batches.Update(ctx, batch); err != nil {
		s.logger.WithError(err).WithField("batchId", batch.BatchID).Error("Failed to mark batch as failed")
	}
}

// GetStatus returns the polling view of a batch
func (s *BatchService) GetStatus(ctx context.Context, batchID string) (*models.BatchStatusResponse, error) {
	batch, err := s.load(ctx, batchID)
	if err != nil {
		return nil, err
	}

	return &models.BatchStatusResponse{
		Success:              true,
		Batch:                batch.GetSummary(s.now()),
		Status:               batch.Status,
		Progress:             batch.OverallProgress(),
		CurrentStage:         batch.Progress.CurrentStage,
		Stages:               batch.Progress.Stages.List(),
		BankProcessingStatus: batch.BankProcessingStatus.List(),
		DocumentsGenerated:   batch.DocumentsGenerated,
		DocumentsFailed:      batch.DocumentsFailed,
		Errors:               batch.Errors,
	}, nil
}

// GetHistory lists the batches of a PAN newest first, optionally filtered by status
func (s *BatchService) GetHistory(ctx context.Context, panNumber, status string) (*models.BatchHistoryResponse, error) {
	panNumber = utils.NormalizePAN(panNumber)
	if err := utils.ValidatePAN(panNumber); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid PAN number", err.Error())
	}

	var filter models.BatchStatus
	if status != "" {
		parsed, ok := models.ParseBatchStatus(status)
		if !ok {
			return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid status filter", status)
		}
		filter = parsed
	}

	batches, err := s.batches.ListByPAN(ctx, panNumber, filter)
	if err != nil {
		s.logger.WithError(err).WithField("panNumber", utils.MaskPAN(panNumber)).Error("Failed to list batches")
		return nil, models.NewServiceError(models.ErrCodeDatabaseError, "Failed to retrieve batch history", "")
	}

	now := s.now()
	summaries := make([]models.BatchSummary, 0, len(batches))
	for _, batch := range batches {
		summaries = append(summaries, batch.GetSummary(now))
	}

	return &models.BatchHistoryResponse{
		Success: true,
		Message: "Batch history retrieved successfully",
		Batches: summaries,
		Total:   len(summaries),
	}, nil
}

func (s *BatchService) load(ctx context.Context, batchID string) (*models.ConsentBatch, error) {
	if err := utils.ValidateBatchID(batchID); err != nil {
		return nil, models.NewServiceError(models.ErrCodeValidationError, "Invalid batch ID", err.Error())
	}

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, dao.ErrNotFound) {
			return nil, models.NewServiceError(models.ErrCodeBatchNotFound, "Batch not found", batchID)
		}
		s.logger.WithError(err).WithField("batchId", batchID).Error("Failed to load batch")
		return nil, models.NewServiceError(models.ErrCodeDatabaseError, "Failed to load batch", "")
	}
	return batch, nil
}

func otpServiceError(err error) *models.ServiceError {
	switch {
	case errors.Is(err, ErrOTPExpired):
		return models.NewServiceError(models.ErrCodeOTPExpired, "OTP has expired. Please request a new OTP.", "")
	case errors.Is(err, ErrOTPAttemptsExceeded):
		return models.NewServiceError(models.ErrCodeOTPAttemptsExceeded, "Maximum OTP attempts exceeded. Please request a new OTP.", "")
	case errors.Is(err, ErrOTPInvalid):
		return models.NewServiceError(models.ErrCodeOTPInvalid, "Invalid OTP code", "")
	case errors.Is(err, ErrOTPNotSent):
		return models.NewServiceError(models.ErrCodeOTPNotSent, "OTP has not been sent for this batch", "")
	default:
		return models.NewServiceError(models.ErrCodeInternalError, "OTP verification failed", err.Error())
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
