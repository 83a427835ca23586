package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/loanvault/document-consent-api/internal/models"
)

// MockBatchStore is a mock implementation of dao.BatchStore
type MockBatchStore struct {
	mock.Mock
}

func (m *MockBatchStore) Create(ctx context.Context, batch *models.ConsentBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchStore) GetByID(ctx context.Context, batchID string) (*models.ConsentBatch, error) {
	args := m.Called(ctx, batchID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.ConsentBatch), args.Error(1)
}

func (m *MockBatchStore) Update(ctx context.Context, batch *models.ConsentBatch) error {
	args := m.Called(ctx, batch)
	return args.Error(0)
}

func (m *MockBatchStore) ListByPAN(ctx context.Context, panNumber string, status models.BatchStatus) ([]*models.ConsentBatch, error) {
	args := m.Called(ctx, panNumber, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConsentBatch), args.Error(1)
}

func (m *MockBatchStore) ListByStatus(ctx context.Context, status models.BatchStatus) ([]*models.ConsentBatch, error) {
	args := m.Called(ctx, status)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*models.ConsentBatch), args.Error(1)
}

func (m *MockBatchStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	args := m.Called(ctx, now)
	return args.Get(0).(int64), args.Error(1)
}
