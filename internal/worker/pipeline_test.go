package worker_test

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanvault/document-consent-api/internal/client"
	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/notification"
	"github.com/loanvault/document-consent-api/internal/service"
	"github.com/loanvault/document-consent-api/internal/worker"
)

func TestBatchLifecycle_DemoModeEndToEnd(t *testing.T) {
	ctx := context.Background()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	mode := models.DemoModeWithOTP("123456")
	stores := dao.NewMemoryStores()
	notifier := notification.NewLogNotifier(logger)

	generator := worker.NewDocumentGenerationWorker(stores.Batches, stores.Documents, notifier, mode, worker.GenerationSettings{}, logger)
	dispatcher := worker.NewDispatcher(generator, worker.DispatcherConfig{QueueSize: 10, Concurrency: 2}, logger)
	dispatcher.Start(ctx)
	defer dispatcher.Stop(ctx)

	batches := service.NewBatchService(
		stores.Batches,
		client.NewDemoConsentChecker(),
		service.NewOTPVerifier(mode, 5*time.Minute, 3),
		notifier,
		dispatcher,
		mode,
		service.BatchSettings{ConsentTTL: 24 * time.Hour, EstimatedProcessing: 10 * time.Minute},
		logger,
	)
	documents := service.NewDocumentService(stores.Documents, stores.Batches, logger)

	created, err := batches.CreateBatch(ctx, &models.CreateBatchRequest{
		PANNumber: "ABCDE1234F",
		SelectedLoans: []models.SelectedLoan{
			{
				LoanID:    "LOAN_A",
				AccountID: "ACC_A",
				BankName:  "Bank A",
				RequestedDocuments: []models.RequestedDocument{
					{DocumentType: models.DocStatementOfAccount},
					{DocumentType: models.DocSanctionLetter},
				},
			},
			{
				LoanID:             "LOAN_B",
				AccountID:          "ACC_B",
				BankName:           "Bank B",
				RequestedDocuments: []models.RequestedDocument{{DocumentType: models.DocNOC}},
			},
		},
	})
	require.NoError(t, err)

	sent, err := batches.SendOTP(ctx, created.BatchID)
	require.NoError(t, err)
	assert.Equal(t, "123456", sent.DemoOTP)

	verified, err := batches.VerifyOTP(ctx, created.BatchID, "123456")
	require.NoError(t, err)
	assert.Equal(t, models.BatchProcessing, verified.Status)

	require.Eventually(t, func() bool {
		status, err := batches.GetStatus(ctx, created.BatchID)
		return err == nil && status.Status == models.BatchCompleted
	}, 5*time.Second, 10*time.Millisecond)

	status, err := batches.GetStatus(ctx, created.BatchID)
	require.NoError(t, err)
	assert.Equal(t, 100, status.Progress)
	assert.Equal(t, 3, status.DocumentsGenerated)
	assert.Equal(t, models.StageCompleted, status.CurrentStage)
	require.Len(t, status.BankProcessingStatus, 2)

	list, err := documents.ListByBatch(ctx, created.BatchID)
	require.NoError(t, err)
	require.Equal(t, 3, list.Total)

	download, err := documents.RecordAccess(ctx, list.Documents[0].DocumentID, models.AccessDownload, models.AccessMetadata{IPAddress: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, 1, download.Document.DownloadCount)

	_, err = batches.VerifyOTP(ctx, created.BatchID, "123456")
	var serviceErr *models.ServiceError
	require.ErrorAs(t, err, &serviceErr)
	assert.Equal(t, models.ErrCodeAlreadyProcessing, serviceErr.Code)
}
