package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/loanvault/document-consent-api/internal/models"
)

// MockConsentChecker is a mock implementation of client.ConsentChecker
type MockConsentChecker struct {
	mock.Mock
}

func (m *MockConsentChecker) GetUser(ctx context.Context, panNumber string) (*models.UserProfile, error) {
	args := m.Called(ctx, panNumber)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.UserProfile), args.Error(1)
}
