package worker

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/service/mocks"
)

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// newProcessingBatch returns a batch in the state left by a successful OTP verification
func newProcessingBatch(now time.Time) *models.ConsentBatch {
	loans := []models.SelectedLoan{
		{
			LoanID:    "LOAN_A",
			AccountID: "ACC_A",
			BankName:  "Bank A",
			RequestedDocuments: []models.RequestedDocument{
				{DocumentType: models.DocStatementOfAccount},
				{DocumentType: models.DocRepaymentSchedule},
			},
		},
		{
			LoanID:    "LOAN_B",
			AccountID: "ACC_B",
			BankName:  "Bank B",
			RequestedDocuments: []models.RequestedDocument{
				{DocumentType: models.DocNOC},
			},
		},
	}
	batch := models.NewConsentBatch("BATCH_1_abcdef12", "ABCDE1234F", loans, 24*time.Hour, now)
	batch.PhoneNumber = "9876543210"
	batch.Status = models.BatchProcessing
	for _, stage := range []models.StageName{models.StageConsentPending, models.StageOTPVerification, models.StageProcessingStarted} {
		batch.UpdateStage(stage, models.StageDone, "", now)
	}
	batch.UpdateStage(models.StageFetchingDocuments, models.StageInProgress, "", now)
	batch.Progress.CurrentStage = models.StageFetchingDocuments
	return batch
}

// failingDocumentStore rejects documents of one bank
type failingDocumentStore struct {
	*dao.MemoryDocumentStore
	failBank string
	panics   bool
}

func (s *failingDocumentStore) Create(ctx context.Context, doc *models.Document) error {
	if doc.BankName == s.failBank {
		if s.panics {
			panic("bank adapter crashed")
		}
		return errors.New("bank API unavailable")
	}
	return s.MemoryDocumentStore.Create(ctx, doc)
}

type workerFixture struct {
	worker    *DocumentGenerationWorker
	batches   *dao.MemoryBatchStore
	documents dao.DocumentStore
	notifier  *mocks.MockNotifier
	batchID   string
}

func newWorkerFixture(t *testing.T, documents dao.DocumentStore) *workerFixture {
	t.Helper()
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	batches := dao.NewMemoryBatchStore()
	batch := newProcessingBatch(now)
	require.NoError(t, batches.Create(context.Background(), batch))

	notifier := &mocks.MockNotifier{}
	notifier.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()

	w := NewDocumentGenerationWorker(batches, documents, notifier, models.DemoModeWithOTP(""), GenerationSettings{}, newTestLogger())
	w.now = func() time.Time { return now }

	return &workerFixture{
		worker:    w,
		batches:   batches,
		documents: documents,
		notifier:  notifier,
		batchID:   batch.BatchID,
	}
}

func TestDocumentGenerationWorker_Process(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, dao.NewMemoryDocumentStore())

	require.NoError(t, f.worker.Process(ctx, f.batchID))

	batch, err := f.batches.GetByID(ctx, f.batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, batch.Status)
	assert.Equal(t, 3, batch.DocumentsGenerated)
	assert.Equal(t, 0, batch.DocumentsFailed)
	assert.Equal(t, 100, batch.Progress.Percentage)
	assert.Equal(t, models.StageCompleted, batch.Progress.CurrentStage)
	assert.NotNil(t, batch.CompletedAt)
	assert.NotNil(t, batch.ProcessingCompletedAt)
	assert.Empty(t, batch.Errors)

	for _, stage := range batch.Progress.Stages.List() {
		assert.Equal(t, models.StageDone, stage.Status, stage.StageName)
	}

	banks := batch.BankProcessingStatus.List()
	require.Len(t, banks, 2)
	assert.Equal(t, models.BankCompleted, banks[0].Status)
	assert.Equal(t, 2, banks[0].DocumentsRequested)
	assert.Equal(t, 2, banks[0].DocumentsGenerated)
	assert.Equal(t, models.BankCompleted, banks[1].Status)
	assert.Equal(t, 1, banks[1].DocumentsGenerated)

	require.NotEmpty(t, batch.Notifications)
	assert.Equal(t, "Your documents are ready for download!", batch.Notifications[len(batch.Notifications)-1].Message)
	f.notifier.AssertNumberOfCalls(t, "Send", 1)

	docs, err := f.documents.ListByRequestID(ctx, f.batchID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	doc := docs[0]
	assert.Equal(t, models.DocStatementOfAccount, doc.DocumentType)
	assert.Equal(t, models.DocumentReady, doc.Status)
	assert.Equal(t, models.SourceSystemGenerated, doc.SourceSystem)
	assert.Equal(t, "/uploads/documents/"+doc.DocumentID+".pdf", doc.FilePath)
	assert.Equal(t, models.DownloadPath(doc.DocumentID), doc.DownloadURL)
	assert.Regexp(t, `^Bank A_statement_of_account_\d+\.pdf$`, doc.FileName)
	assert.Len(t, doc.Checksum, 64)
	assert.Equal(t, models.DefaultMaxDownloads, doc.MaxDownloads)
	assert.Equal(t, 30, doc.DaysUntilExpiry(*doc.GeneratedAt))
}

func TestDocumentGenerationWorker_BankFailure(t *testing.T) {
	tests := []struct {
		name   string
		panics bool
	}{
		{name: "store error", panics: false},
		{name: "panic", panics: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			store := &failingDocumentStore{MemoryDocumentStore: dao.NewMemoryDocumentStore(), failBank: "Bank B", panics: tt.panics}
			f := newWorkerFixture(t, store)

			err := f.worker.Process(ctx, f.batchID)
			require.Error(t, err)

			batch, err := f.batches.GetByID(ctx, f.batchID)
			require.NoError(t, err)
			assert.Equal(t, models.BatchFailed, batch.Status)
			assert.Equal(t, 2, batch.DocumentsGenerated)
			assert.Equal(t, 1, batch.DocumentsFailed)
			assert.Nil(t, batch.CompletedAt)

			require.Len(t, batch.Errors, 1)
			assert.Equal(t, models.BatchErrGenerationFailed, batch.Errors[0].ErrorCode)
			assert.Equal(t, "Bank B", batch.Errors[0].BankName)

			bankA, ok := batch.BankProcessingStatus.Get("Bank A")
			require.True(t, ok)
			assert.Equal(t, models.BankCompleted, bankA.Status)
			bankB, ok := batch.BankProcessingStatus.Get("Bank B")
			require.True(t, ok)
			assert.Equal(t, models.BankFailed, bankB.Status)
			assert.NotEmpty(t, bankB.ErrorMessage)

			generating, _ := batch.Progress.Stages.Get(models.StageGeneratingDocuments)
			assert.Equal(t, models.StageFailed, generating.Status)
			completed, _ := batch.Progress.Stages.Get(models.StageCompleted)
			assert.Equal(t, models.StagePending, completed.Status)

			docs, err := store.ListByRequestID(ctx, f.batchID)
			require.NoError(t, err)
			assert.Len(t, docs, 2)
			f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
		})
	}
}

func TestDocumentGenerationWorker_RejectsBatchNotProcessing(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, dao.NewMemoryDocumentStore())
	batch, err := f.batches.GetByID(ctx, f.batchID)
	require.NoError(t, err)
	batch.Status = models.BatchCompleted
	require.NoError(t, f.batches.Update(ctx, batch))

	err = f.worker.Process(ctx, f.batchID)

	assert.ErrorIs(t, err, ErrBatchNotProcessing)
	docs, err := f.documents.ListByRequestID(ctx, f.batchID)
	require.NoError(t, err)
	assert.Empty(t, docs)
}

func TestDocumentGenerationWorker_UnknownBatch(t *testing.T) {
	f := newWorkerFixture(t, dao.NewMemoryDocumentStore())

	err := f.worker.Process(context.Background(), "BATCH_missing")

	assert.ErrorIs(t, err, dao.ErrNotFound)
}

func TestDocumentGenerationWorker_CancelledContextLeavesBatchProcessing(t *testing.T) {
	f := newWorkerFixture(t, dao.NewMemoryDocumentStore())
	f.worker.mode.DocumentLatency = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.worker.Process(ctx, f.batchID)
	require.ErrorIs(t, err, context.Canceled)

	batch, err := f.batches.GetByID(context.Background(), f.batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchProcessing, batch.Status)
	assert.Equal(t, 0, batch.DocumentsFailed)
	assert.Empty(t, batch.Errors)
	f.notifier.AssertNotCalled(t, "Send", mock.Anything, mock.Anything)
}

func TestDocumentGenerationWorker_ResumesInterruptedBatch(t *testing.T) {
	ctx := context.Background()
	f := newWorkerFixture(t, dao.NewMemoryDocumentStore())

	batch, err := f.batches.GetByID(ctx, f.batchID)
	require.NoError(t, err)
	earlier := f.worker.buildDocument(batch, batch.SelectedLoans[0], batch.SelectedLoans[0].RequestedDocuments[0], time.Now())
	require.NoError(t, f.documents.Create(ctx, earlier))

	require.NoError(t, f.worker.Process(ctx, f.batchID))

	batch, err = f.batches.GetByID(ctx, f.batchID)
	require.NoError(t, err)
	assert.Equal(t, models.BatchCompleted, batch.Status)
	assert.Equal(t, 3, batch.DocumentsGenerated)
	assert.Equal(t, 100, batch.Progress.Percentage)

	bankA, ok := batch.BankProcessingStatus.Get("Bank A")
	require.True(t, ok)
	assert.Equal(t, 2, bankA.DocumentsRequested)
	assert.Equal(t, 2, bankA.DocumentsGenerated)

	docs, err := f.documents.ListByRequestID(ctx, f.batchID)
	require.NoError(t, err)
	require.Len(t, docs, 3)
	assert.Equal(t, earlier.DocumentID, docs[0].DocumentID)
}
