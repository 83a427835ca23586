package models

import "time"

// DefaultDemoOTP is used when demo mode is on and no code is configured.
const DefaultDemoOTP = "123456"

// RuntimeMode controls demo versus live behaviour. It is built once from
// configuration and handed to the OTP verifier and the generation worker.
type RuntimeMode struct {
	DemoMode bool
	DemoOTP  string
	// ExposeOTP returns the issued code in the send-OTP response.
	ExposeOTP bool
	// DocumentLatency simulates the round trip to a bank per document.
	DocumentLatency time.Duration
}

// LiveMode returns a RuntimeMode with every bypass disabled.
func LiveMode() RuntimeMode {
	return RuntimeMode{}
}

// DemoModeWithOTP returns a RuntimeMode that accepts the given fixed code.
func DemoModeWithOTP(code string) RuntimeMode {
	if code == "" {
		code = DefaultDemoOTP
	}
	return RuntimeMode{DemoMode: true, DemoOTP: code, ExposeOTP: true}
}

// FixedOTP returns the configured demo code, or an empty string in live mode.
func (m RuntimeMode) FixedOTP() string {
	if !m.DemoMode {
		return ""
	}
	if m.DemoOTP == "" {
		return DefaultDemoOTP
	}
	return m.DemoOTP
}

// IsDemoCode reports whether code is the demo bypass code.
func (m RuntimeMode) IsDemoCode(code string) bool {
	fixed := m.FixedOTP()
	return fixed != "" && code == fixed
}

// SourceSystem names where generated documents come from.
func (m RuntimeMode) SourceSystem() string {
	if m.DemoMode {
		return SourceSystemGenerated
	}
	return SourceSystemBankAPI
}
