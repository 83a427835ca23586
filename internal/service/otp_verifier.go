package service

import (
	"crypto/rand"
	"crypto/subtle"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/loanvault/document-consent-api/internal/models"
	"github.com/loanvault/document-consent-api/pkg/utils"
)

// OTP verification failures
var (
	ErrOTPNotSent          = errors.New("otp has not been sent for this batch")
	ErrOTPExpired          = errors.New("otp has expired")
	ErrOTPAttemptsExceeded = errors.New("maximum otp attempts exceeded")
	ErrOTPInvalid          = errors.New("invalid otp code")
)

const otpDigits = 6

// OTPVerifier issues and checks the one-time code that authorizes a batch
type OTPVerifier struct {
	mode        models.RuntimeMode
	ttl         time.Duration
	maxAttempts int
}

// NewOTPVerifier creates an OTPVerifier
func NewOTPVerifier(mode models.RuntimeMode, ttl time.Duration, maxAttempts int) *OTPVerifier {
	return &OTPVerifier{mode: mode, ttl: ttl, maxAttempts: maxAttempts}
}

// TTL returns how long an issued code stays valid
func (v *OTPVerifier) TTL() time.Duration {
	return v.ttl
}

// Generate issues a fresh code on the batch, resets the attempt counter and
// moves the batch to otp_sent.
func (v *OTPVerifier) Generate(batch *models.ConsentBatch, now time.Time) (string, error) {
	if !batch.Status.CanTransition(models.BatchOTPSent) {
		return "", fmt.Errorf("cannot issue otp for batch in status %s", batch.Status)
	}

	code := v.mode.FixedOTP()
	if code == "" {
		var err error
		if code, err = randomNumericCode(otpDigits); err != nil {
			return "", err
		}
	}

	batch.OTPCode = code
	batch.OTPSentAt = utils.TimePtr(now)
	batch.OTPExpiresAt = utils.TimePtr(now.Add(v.ttl))
	batch.OTPAttempts = 0
	batch.Status = models.BatchOTPSent
	return code, nil
}

// Verify checks code against the batch. Attempts are counted on the batch
// even when verification fails, so the caller must persist it either way.
// A locked out batch refuses the demo code too.
func (v *OTPVerifier) Verify(batch *models.ConsentBatch, code string, now time.Time) error {
	awaiting := batch.Status == models.BatchOTPSent
	if !awaiting && !(batch.Status == models.BatchPending && v.mode.IsDemoCode(code)) {
		return ErrOTPNotSent
	}

	if batch.OTPAttempts >= v.maxAttempts {
		return ErrOTPAttemptsExceeded
	}

	if v.mode.IsDemoCode(code) {
		return v.markVerified(batch, now)
	}

	if batch.IsOTPExpired(now) {
		return ErrOTPExpired
	}

	batch.OTPAttempts++
	if subtle.ConstantTimeCompare([]byte(code), []byte(batch.OTPCode)) != 1 {
		if batch.OTPAttempts >= v.maxAttempts {
			return ErrOTPAttemptsExceeded
		}
		return ErrOTPInvalid
	}

	return v.markVerified(batch, now)
}

func (v *OTPVerifier) markVerified(batch *models.ConsentBatch, now time.Time) error {
	if err := batch.TransitionTo(models.BatchVerified); err != nil {
		return err
	}
	batch.OTPVerifiedAt = utils.TimePtr(now)
	batch.ConsentGrantedAt = utils.TimePtr(now)
	batch.UpdateStage(models.StageConsentPending, models.StageDone, "", now)
	batch.UpdateStage(models.StageOTPVerification, models.StageDone, "OTP verified", now)
	batch.Progress.CurrentStage = models.StageProcessingStarted
	return nil
}

func randomNumericCode(digits int) (string, error) {
	limit := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(digits)), nil)
	n, err := rand.Int(rand.Reader, limit)
	if err != nil {
		return "", fmt.Errorf("failed to generate otp: %w", err)
	}
	return fmt.Sprintf("%0*d", digits, n), nil
}
