package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/loanvault/document-consent-api/internal/models"
)

func newPendingBatch(now time.Time) *models.ConsentBatch {
	return models.NewConsentBatch("BATCH_1_abcdef12", testPAN, NewValidCreateRequest().SelectedLoans, 24*time.Hour, now)
}

func TestOTPVerifier_Generate(t *testing.T) {
	now := time.Now()

	t.Run("live mode issues a random six digit code", func(t *testing.T) {
		v := NewOTPVerifier(models.LiveMode(), 5*time.Minute, 3)
		batch := newPendingBatch(now)

		code, err := v.Generate(batch, now)

		require.NoError(t, err)
		assert.Regexp(t, `^[0-9]{6}$`, code)
		assert.Equal(t, code, batch.OTPCode)
		assert.Equal(t, models.BatchOTPSent, batch.Status)
		assert.Equal(t, 0, batch.OTPAttempts)
		require.NotNil(t, batch.OTPExpiresAt)
		assert.WithinDuration(t, now.Add(5*time.Minute), *batch.OTPExpiresAt, time.Millisecond)
	})

	t.Run("demo mode issues the fixed code", func(t *testing.T) {
		v := NewOTPVerifier(models.DemoModeWithOTP(""), 5*time.Minute, 3)
		batch := newPendingBatch(now)

		code, err := v.Generate(batch, now)

		require.NoError(t, err)
		assert.Equal(t, models.DefaultDemoOTP, code)
	})

	t.Run("refuses a batch that cannot move to otp_sent", func(t *testing.T) {
		v := NewOTPVerifier(models.LiveMode(), 5*time.Minute, 3)
		batch := newPendingBatch(now)
		batch.Status = models.BatchProcessing

		_, err := v.Generate(batch, now)

		assert.Error(t, err)
		assert.Empty(t, batch.OTPCode)
		assert.Nil(t, batch.OTPExpiresAt)
	})
}

func TestOTPVerifier_Verify(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name         string
		mode         models.RuntimeMode
		setup        func(b *models.ConsentBatch)
		code         string
		at           time.Time
		wantErr      error
		wantAttempts int
		wantStatus   models.BatchStatus
	}{
		{
			name:         "correct code",
			mode:         models.LiveMode(),
			code:         "111111",
			at:           now.Add(time.Minute),
			wantAttempts: 1,
			wantStatus:   models.BatchVerified,
		},
		{
			name:         "mismatch consumes an attempt",
			mode:         models.LiveMode(),
			code:         "222222",
			at:           now.Add(time.Minute),
			wantErr:      ErrOTPInvalid,
			wantAttempts: 1,
			wantStatus:   models.BatchOTPSent,
		},
		{
			name:         "expired code does not consume an attempt",
			mode:         models.LiveMode(),
			code:         "111111",
			at:           now.Add(6 * time.Minute),
			wantErr:      ErrOTPExpired,
			wantAttempts: 0,
			wantStatus:   models.BatchOTPSent,
		},
		{
			name:         "third mismatch reports attempts exceeded",
			mode:         models.LiveMode(),
			setup:        func(b *models.ConsentBatch) { b.OTPAttempts = 2 },
			code:         "222222",
			at:           now.Add(time.Minute),
			wantErr:      ErrOTPAttemptsExceeded,
			wantAttempts: 3,
			wantStatus:   models.BatchOTPSent,
		},
		{
			name:         "correct code after exhaustion is refused",
			mode:         models.LiveMode(),
			setup:        func(b *models.ConsentBatch) { b.OTPAttempts = 3 },
			code:         "111111",
			at:           now.Add(time.Minute),
			wantErr:      ErrOTPAttemptsExceeded,
			wantAttempts: 3,
			wantStatus:   models.BatchOTPSent,
		},
		{
			name:         "demo code bypasses counting and expiry",
			mode:         models.DemoModeWithOTP("123456"),
			setup:        func(b *models.ConsentBatch) { b.OTPAttempts = 2 },
			code:         "123456",
			at:           now.Add(10 * time.Minute),
			wantAttempts: 2,
			wantStatus:   models.BatchVerified,
		},
		{
			name:         "demo code refused once attempts are exhausted",
			mode:         models.DemoModeWithOTP("123456"),
			setup:        func(b *models.ConsentBatch) { b.OTPAttempts = 3 },
			code:         "123456",
			at:           now.Add(time.Minute),
			wantErr:      ErrOTPAttemptsExceeded,
			wantAttempts: 3,
			wantStatus:   models.BatchOTPSent,
		},
		{
			name:         "demo code accepted before any OTP is sent",
			mode:         models.DemoModeWithOTP("123456"),
			setup:        func(b *models.ConsentBatch) { b.Status = models.BatchPending },
			code:         "123456",
			at:           now,
			wantAttempts: 0,
			wantStatus:   models.BatchVerified,
		},
		{
			name:         "live code before any OTP is sent",
			mode:         models.LiveMode(),
			setup:        func(b *models.ConsentBatch) { b.Status = models.BatchPending },
			code:         "111111",
			at:           now,
			wantErr:      ErrOTPNotSent,
			wantAttempts: 0,
			wantStatus:   models.BatchPending,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := NewOTPVerifier(tt.mode, 5*time.Minute, 3)
			batch := newPendingBatch(now)
			batch.Status = models.BatchOTPSent
			batch.OTPCode = "111111"
			sent := now
			expires := now.Add(5 * time.Minute)
			batch.OTPSentAt = &sent
			batch.OTPExpiresAt = &expires
			if tt.setup != nil {
				tt.setup(batch)
			}

			err := v.Verify(batch, tt.code, tt.at)

			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				require.NotNil(t, batch.OTPVerifiedAt)
				require.NotNil(t, batch.ConsentGrantedAt)
				stage, _ := batch.Progress.Stages.Get(models.StageOTPVerification)
				assert.Equal(t, models.StageDone, stage.Status)
			}
			assert.Equal(t, tt.wantAttempts, batch.OTPAttempts)
			assert.Equal(t, tt.wantStatus, batch.Status)
		})
	}
}

func TestOTPVerifier_FourthAttemptAlwaysExceeded(t *testing.T) {
	now := time.Now()
	v := NewOTPVerifier(models.LiveMode(), 5*time.Minute, 3)
	batch := newPendingBatch(now)
	_, err := v.Generate(batch, now)
	require.NoError(t, err)

	wrong := "000000"
	if batch.OTPCode == wrong {
		wrong = "999999"
	}

	assert.ErrorIs(t, v.Verify(batch, wrong, now), ErrOTPInvalid)
	assert.ErrorIs(t, v.Verify(batch, wrong, now), ErrOTPInvalid)
	assert.ErrorIs(t, v.Verify(batch, wrong, now), ErrOTPAttemptsExceeded)
	assert.ErrorIs(t, v.Verify(batch, batch.OTPCode, now), ErrOTPAttemptsExceeded)
	assert.Equal(t, 3, batch.OTPAttempts)
	assert.Equal(t, models.BatchOTPSent, batch.Status)
}

func TestOTPVerifier_DemoModeLockout(t *testing.T) {
	now := time.Now()
	v := NewOTPVerifier(models.DemoModeWithOTP("123456"), 5*time.Minute, 3)
	batch := newPendingBatch(now)
	_, err := v.Generate(batch, now)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		assert.Error(t, v.Verify(batch, "000000", now))
	}

	assert.ErrorIs(t, v.Verify(batch, "123456", now), ErrOTPAttemptsExceeded)
	assert.Equal(t, 3, batch.OTPAttempts)
	assert.Equal(t, models.BatchOTPSent, batch.Status)
}
