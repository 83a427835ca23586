package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
)

type documentFixture struct {
	service   *DocumentService
	documents *dao.MemoryDocumentStore
	batches   *dao.MemoryBatchStore
	clock     *testClock
	batchID   string
}

func newDocumentFixture(t *testing.T) *documentFixture {
	t.Helper()
	clock := newTestClock()
	batches := dao.NewMemoryBatchStore()
	documents := dao.NewMemoryDocumentStore()

	batch := newPendingBatch(clock.Now())
	require.NoError(t, batches.Create(context.Background(), batch))

	svc := NewDocumentService(documents, batches, newTestLogger())
	svc.now = clock.Now

	return &documentFixture{
		service:   svc,
		documents: documents,
		batches:   batches,
		clock:     clock,
		batchID:   batch.BatchID,
	}
}

func (f *documentFixture) addDocument(t *testing.T, id string, maxDownloads int) *models.Document {
	t.Helper()
	now := f.clock.Now()
	doc := &models.Document{
		DocumentID:   id,
		RequestID:    f.batchID,
		PANNumber:    testPAN,
		LoanID:       "LOAN_A",
		AccountID:    "ACC_A",
		BankName:     "Bank A",
		DocumentType: models.DocStatementOfAccount,
		Status:       models.DocumentReady,
		FileName:     "Bank_A_statement_of_account.pdf",
		FileSize:     250 * 1024,
		MimeType:     models.DefaultDocumentMimeType,
		DownloadURL:  models.DownloadPath(id),
		SourceSystem: models.SourceSystemGenerated,
		GeneratedAt:  &now,
		ExpiresAt:    now.Add(30 * 24 * time.Hour),
		MaxDownloads: maxDownloads,
		ShareTokens:  []models.ShareToken{},
		AccessLog:    []models.AccessLogEntry{},
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	require.NoError(t, f.documents.Create(context.Background(), doc))
	return doc
}

func TestDocumentService_ListByBatch(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture(t)
	f.addDocument(t, "DOC_1", 10)
	f.addDocument(t, "DOC_2", 10)

	resp, err := f.service.ListByBatch(ctx, f.batchID)

	require.NoError(t, err)
	require.Equal(t, 2, resp.Total)
	assert.Equal(t, "DOC_1", resp.Documents[0].DocumentID)
	assert.Equal(t, "Statement of Account", resp.Documents[0].DisplayName)
	assert.Equal(t, "250.0 KB", resp.Documents[0].FileSize)
	assert.Equal(t, 30, resp.Documents[0].DaysUntilExpiry)
	assert.True(t, resp.Documents[0].CanDownload)

	_, err = f.service.ListByBatch(ctx, "BATCH_missing")
	assert.Equal(t, models.ErrCodeBatchNotFound, serviceErrorCode(err))
}

func TestDocumentService_Get(t *testing.T) {
	f := newDocumentFixture(t)
	f.addDocument(t, "DOC_1", 10)

	resp, err := f.service.Get(context.Background(), "DOC_1")
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/documents/DOC_1/download", resp.Document.DownloadURL)

	_, err = f.service.Get(context.Background(), "DOC_missing")
	assert.Equal(t, models.ErrCodeDocumentNotFound, serviceErrorCode(err))
}

func TestDocumentService_RecordAccess(t *testing.T) {
	ctx := context.Background()
	meta := models.AccessMetadata{IPAddress: "10.0.0.1", UserAgent: "test"}

	t.Run("downloads stop at the limit", func(t *testing.T) {
		f := newDocumentFixture(t)
		f.addDocument(t, "DOC_1", 2)

		for i := 1; i <= 2; i++ {
			resp, err := f.service.RecordAccess(ctx, "DOC_1", models.AccessDownload, meta)
			require.NoError(t, err)
			assert.Equal(t, i, resp.Document.DownloadCount)
		}

		_, err := f.service.RecordAccess(ctx, "DOC_1", models.AccessDownload, meta)
		assert.Equal(t, models.ErrCodeDownloadNotAllowed, serviceErrorCode(err))

		doc, err := f.documents.GetByID(ctx, "DOC_1")
		require.NoError(t, err)
		assert.Equal(t, 2, doc.DownloadCount)
		assert.Len(t, doc.AccessLog, 2)
		assert.NotNil(t, doc.LastDownloadedAt)
	})

	t.Run("views are always logged", func(t *testing.T) {
		f := newDocumentFixture(t)
		f.addDocument(t, "DOC_1", 1)
		f.clock.Advance(31 * 24 * time.Hour)

		resp, err := f.service.RecordAccess(ctx, "DOC_1", models.AccessView, meta)

		require.NoError(t, err)
		assert.Equal(t, 0, resp.Document.DownloadCount)
		assert.False(t, resp.Document.CanDownload)
	})

	t.Run("expired document cannot be downloaded", func(t *testing.T) {
		f := newDocumentFixture(t)
		f.addDocument(t, "DOC_1", 10)
		f.clock.Advance(31 * 24 * time.Hour)

		_, err := f.service.RecordAccess(ctx, "DOC_1", models.AccessDownload, meta)

		assert.Equal(t, models.ErrCodeDownloadNotAllowed, serviceErrorCode(err))
	})
}

func TestDocumentService_ShareAndAccess(t *testing.T) {
	ctx := context.Background()
	f := newDocumentFixture(t)
	f.addDocument(t, "DOC_1", 10)
	meta := models.AccessMetadata{IPAddress: "10.0.0.2"}

	share, err := f.service.Share(ctx, "DOC_1", &models.ShareDocumentRequest{MaxAccess: 2}, meta)
	require.NoError(t, err)
	assert.Len(t, share.Token, 64)
	assert.Equal(t, 2, share.MaxAccess)
	assert.True(t, f.clock.Now().Add(24*time.Hour).Equal(share.ExpiresAt))

	for i := 0; i < 2; i++ {
		resp, err := f.service.AccessShared(ctx, share.Token, meta)
		require.NoError(t, err)
		assert.Equal(t, "DOC_1", resp.Document.DocumentID)
	}

	_, err = f.service.AccessShared(ctx, share.Token, meta)
	assert.Equal(t, models.ErrCodeShareTokenInvalid, serviceErrorCode(err))

	doc, err := f.documents.GetByID(ctx, "DOC_1")
	require.NoError(t, err)
	require.Len(t, doc.AccessLog, 3)
	assert.Equal(t, models.AccessShare, doc.AccessLog[0].AccessType)
	assert.Equal(t, models.AccessView, doc.AccessLog[1].AccessType)
	assert.Equal(t, 2, doc.ShareTokens[0].AccessCount)
}

func TestDocumentService_AccessShared_Invalid(t *testing.T) {
	ctx := context.Background()

	t.Run("unknown token", func(t *testing.T) {
		f := newDocumentFixture(t)

		_, err := f.service.AccessShared(ctx, "nope", models.AccessMetadata{})

		assert.Equal(t, models.ErrCodeShareTokenInvalid, serviceErrorCode(err))
	})

	t.Run("expired token", func(t *testing.T) {
		f := newDocumentFixture(t)
		f.addDocument(t, "DOC_1", 10)
		share, err := f.service.Share(ctx, "DOC_1", &models.ShareDocumentRequest{ExpiresInHours: 1}, models.AccessMetadata{})
		require.NoError(t, err)
		f.clock.Advance(2 * time.Hour)

		_, err = f.service.AccessShared(ctx, share.Token, models.AccessMetadata{})

		assert.Equal(t, models.ErrCodeShareTokenInvalid, serviceErrorCode(err))
	})
}
