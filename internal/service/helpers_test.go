package service

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/mock"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/internal/service/mocks"
)

const testPAN = "ABCDE1234F"

// testClock is a settable clock shared by the services under test
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// TestSetup contains common test dependencies
type TestSetup struct {
	Batches  *dao.MemoryBatchStore
	Checker  *mocks.MockConsentChecker
	Notifier *mocks.MockNotifier
	Queue    *mocks.MockTaskQueue
	Clock    *testClock
	Service  *BatchService
	Logger   *logrus.Logger
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// NewTestSetup wires a BatchService over an in-memory store and mocks
func NewTestSetup(mode models.RuntimeMode) *TestSetup {
	logger := newTestLogger()
	clock := newTestClock()
	batches := dao.NewMemoryBatchStore()
	checker := &mocks.MockConsentChecker{}
	notifier := &mocks.MockNotifier{}
	queue := &mocks.MockTaskQueue{}

	notifier.On("Send", mock.Anything, mock.Anything).Return(nil).Maybe()

	svc := NewBatchService(
		batches,
		checker,
		NewOTPVerifier(mode, 5*time.Minute, 3),
		notifier,
		queue,
		mode,
		BatchSettings{ConsentTTL: 24 * time.Hour, EstimatedProcessing: 10 * time.Minute},
		logger,
	)
	svc.now = clock.Now

	return &TestSetup{
		Batches:  batches,
		Checker:  checker,
		Notifier: notifier,
		Queue:    queue,
		Clock:    clock,
		Service:  svc,
		Logger:   logger,
	}
}

// ExpectValidUser makes the consent checker return a user with valid consent
func (ts *TestSetup) ExpectValidUser() {
	ts.Checker.On("GetUser", mock.Anything, testPAN).Return(&models.UserProfile{
		PANNumber:             testPAN,
		PhoneNumber:           "9876543210",
		Email:                 "user@example.com",
		CibilConsentGranted:   true,
		CibilConsentExpiresAt: ts.Clock.Now().Add(365 * 24 * time.Hour),
	}, nil)
}

// CreateBatch creates the two-bank batch used across tests and returns its ID
func (ts *TestSetup) CreateBatch() string {
	resp, err := ts.Service.CreateBatch(context.Background(), NewValidCreateRequest())
	if err != nil {
		panic(err)
	}
	return resp.BatchID
}

// NewValidCreateRequest returns a batch request for Bank A (2 documents) and Bank B (1 document)
func NewValidCreateRequest() *models.CreateBatchRequest {
	return &models.CreateBatchRequest{
		PANNumber: "abcde1234f",
		SelectedLoans: []models.SelectedLoan{
			{
				LoanID:    "LOAN_A",
				AccountID: "ACC_A",
				BankName:  "Bank A",
				RequestedDocuments: []models.RequestedDocument{
					{DocumentType: models.DocStatementOfAccount},
					{DocumentType: models.DocRepaymentSchedule, Priority: models.PriorityHigh},
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
		},
	}
}

func serviceErrorCode(err error) string {
	if se, ok := err.(*models.ServiceError); ok {
		return se.Code
	}
	return ""
}
