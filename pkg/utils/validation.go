package utils

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	panRegex = regexp.MustCompile(`^[A-Z]{5}[0-9]{4}[A-Z]$`)
	otpRegex = regexp.MustCompile(`^[0-9]{6}$`)

	validate     *validator.Validate
	validateOnce sync.Once
)

// Validator returns the shared struct validator. It reads the same `binding`
// tags gin uses so service-level validation matches request binding.
func Validator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		validate.SetTagName("binding")
		_ = RegisterValidations(validate)
	})
	return validate
}

// RegisterValidations registers the custom tags on v
func RegisterValidations(v *validator.Validate) error {
	return v.RegisterValidation("pan", func(fl validator.FieldLevel) bool {
		return IsValidPAN(strings.ToUpper(fl.Field().String()))
	})
}

// ValidateStruct validates s against its binding tags and flattens the
// first failure into a readable error.
func ValidateStruct(s interface{}) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	if verrs, ok := err.(validator.ValidationErrors); ok && len(verrs) > 0 {
		fe := verrs[0]
		if fe.Param() != "" {
			return fmt.Errorf("%s failed on '%s=%s'", fe.Namespace(), fe.Tag(), fe.Param())
		}
		return fmt.Errorf("%s failed on '%s'", fe.Namespace(), fe.Tag())
	}
	return err
}

// NormalizePAN trims and uppercases a PAN
func NormalizePAN(pan string) string {
	return strings.ToUpper(strings.TrimSpace(pan))
}

// IsValidPAN checks the ten-character PAN format (AAAAA9999A)
func IsValidPAN(pan string) bool {
	return panRegex.MatchString(pan)
}

// ValidatePAN validates an already normalized PAN
func ValidatePAN(pan string) error {
	if pan == "" {
		return fmt.Errorf("PAN number is required")
	}
	if len(pan) != 10 {
		return fmt.Errorf("PAN number must be 10 characters")
	}
	if !IsValidPAN(pan) {
		return fmt.Errorf("invalid PAN number format")
	}
	return nil
}

// MaskPAN hides all but the last four characters
func MaskPAN(pan string) string {
	if len(pan) <= 4 {
		return pan
	}
	return strings.Repeat("*", len(pan)-4) + pan[len(pan)-4:]
}

// ValidateOTPCode validates a six digit OTP
func ValidateOTPCode(code string) error {
	if code == "" {
		return fmt.Errorf("OTP code is required")
	}
	if !otpRegex.MatchString(code) {
		return fmt.Errorf("OTP code must be 6 digits")
	}
	return nil
}

// ValidateBatchID validates batch ID format
func ValidateBatchID(batchID string) error {
	if batchID == "" {
		return fmt.Errorf("batch ID cannot be empty")
	}
	if len(batchID) > 64 {
		return fmt.Errorf("batch ID too long (max 64 characters)")
	}
	return nil
}

// ValidateDocumentID validates document ID format
func ValidateDocumentID(documentID string) error {
	if documentID == "" {
		return fmt.Errorf("document ID cannot be empty")
	}
	if len(documentID) > 64 {
		return fmt.Errorf("document ID too long (max 64 characters)")
	}
	return nil
}

// SanitizeString removes dangerous characters from user input
func SanitizeString(input string) string {
	input = strings.ReplaceAll(input, "\x00", "")
	return strings.TrimSpace(input)
}
