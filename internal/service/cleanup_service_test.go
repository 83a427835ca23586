package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/service/mocks"
)

func TestCleanupService_Sweep(t *testing.T) {
	ctx := context.Background()
	clock := newTestClock()
	batches := dao.NewMemoryBatchStore()
	documents := dao.NewMemoryDocumentStore()

	created := clock.Now().Add(-2 * time.Hour)
	lapsedOTP := newPendingBatch(created)
	lapsedOTP.BatchID = "BATCH_otp"
	lapsedOTP.Status = models.BatchOTPSent
	otpExpiry := created.Add(5 * time.Minute)
	lapsedOTP.OTPExpiresAt = &otpExpiry

	processing := newPendingBatch(created.Add(-48 * time.Hour))
	processing.BatchID = "BATCH_processing"
	processing.Status = models.BatchProcessing

	fresh := newPendingBatch(clock.Now())
	fresh.BatchID = "BATCH_fresh"

	for _, b := range []*models.ConsentBatch{lapsedOTP, processing, fresh} {
		require.NoError(t, batches.Create(ctx, b))
	}
	require.NoError(t, documents.Create(ctx, &models.Document{DocumentID: "DOC_old", ExpiresAt: clock.Now().Add(-time.Minute)}))
	require.NoError(t, documents.Create(ctx, &models.Document{DocumentID: "DOC_new", ExpiresAt: clock.Now().Add(time.Hour)}))

	svc := NewCleanupService(batches, documents, newTestLogger())
	svc.now = clock.Now

	result, err := svc.Sweep(ctx)

	require.NoError(t, err)
	assert.Equal(t, SweepResult{BatchesDeleted: 1, DocumentsDeleted: 1}, result)

	_, err = batches.GetByID(ctx, "BATCH_otp")
	assert.ErrorIs(t, err, dao.ErrNotFound)
	_, err = batches.GetByID(ctx, "BATCH_processing")
	assert.NoError(t, err)
	_, err = documents.GetByID(ctx, "DOC_new")
	assert.NoError(t, err)
}

func TestCleanupService_SweepBatchError(t *testing.T) {
	store := &mocks.MockBatchStore{}
	store.On("DeleteExpired", mock.Anything, mock.Anything).Return(int64(0), errors.New("lock wait timeout"))

	svc := NewCleanupService(store, dao.NewMemoryDocumentStore(), newTestLogger())

	_, err := svc.Sweep(context.Background())

	assert.ErrorContains(t, err, "failed to sweep batches")
}
