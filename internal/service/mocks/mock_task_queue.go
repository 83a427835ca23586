package mocks

import (
	"github.com/stretchr/testify/mock"
)

// MockTaskQueue is a mock implementation of service.TaskQueue
type MockTaskQueue struct {
	mock.Mock
}

func (m *MockTaskQueue) Enqueue(batchID string) error {
	args := m.Called(batchID)
	return args.Error(0)
}
