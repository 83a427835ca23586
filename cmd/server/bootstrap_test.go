package main

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanvault/document-consent-api/internal/config"
	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/middleware"
	"github.com/loanvault/document-consent-api/internal/models"
)

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name      string
		cfg       config.LoggingConfig
		wantLevel logrus.Level
		wantJSON  bool
	}{
		{name: "json debug", cfg: config.LoggingConfig{Level: "debug", Format: "json"}, wantLevel: logrus.DebugLevel, wantJSON: true},
		{name: "text warn", cfg: config.LoggingConfig{Level: "warn", Format: "text"}, wantLevel: logrus.WarnLevel},
		{name: "unknown level falls back to info", cfg: config.LoggingConfig{Level: "loud"}, wantLevel: logrus.InfoLevel, wantJSON: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger := newLogger(&tt.cfg)

			assert.Equal(t, tt.wantLevel, logger.GetLevel())
			_, isJSON := logger.Formatter.(*logrus.JSONFormatter)
			assert.Equal(t, tt.wantJSON, isJSON)
		})
	}
}

func newTestApp(enabled bool) *app {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return &app{
		cfg: &config.Config{
			Scheduler: config.SchedulerConfig{Enabled: enabled, CleanupSpec: "@every 1m"},
		},
		logger: logger,
		stores: dao.NewMemoryStores(),
	}
}

func TestNewScheduler_Disabled(t *testing.T) {
	sched, err := newTestApp(false).newScheduler(middleware.NewRateLimiter(1, 1))

	require.NoError(t, err)
	assert.Nil(t, sched)
}

func TestNewScheduler_RegistersHousekeeping(t *testing.T) {
	a := newTestApp(true)
	ctx := context.Background()

	expired := models.NewConsentBatch("BATCH_1", "ABCDE1234F", []models.SelectedLoan{{
		LoanID: "L1", AccountID: "A1", BankName: "Bank A",
		RequestedDocuments: []models.RequestedDocument{{DocumentType: models.DocNOC}},
	}}, time.Hour, time.Now().Add(-2*time.Hour))
	require.NoError(t, a.stores.Batches.Create(ctx, expired))

	sched, err := a.newScheduler(middleware.NewRateLimiter(1, 1))
	require.NoError(t, err)
	require.NotNil(t, sched)

	require.NoError(t, sched.RunNow("expiry-sweep"))
	_, err = a.stores.Batches.GetByID(ctx, "BATCH_1")
	assert.ErrorIs(t, err, dao.ErrNotFound)

	assert.NoError(t, sched.RunNow("rate-limiter-prune"))
	assert.Error(t, sched.RunNow("db-stats"), "memory backend has no pool stats")
}

func TestNewScheduler_InvalidSpec(t *testing.T) {
	a := newTestApp(true)
	a.cfg.Scheduler.CleanupSpec = "every now and then"

	_, err := a.newScheduler(middleware.NewRateLimiter(1, 1))

	assert.Error(t, err)
}
