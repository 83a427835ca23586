package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/loanvault/document-consent-api/internal/notification"
)

// MockNotifier is a mock implementation of notification.Notifier
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, msg notification.Message) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}
