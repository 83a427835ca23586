package models

import "time"

// UserProfile is the identity record resolved for a PAN by the upstream
// PAN/CIBIL service.
type UserProfile struct {
	PANNumber             string    `json:"panNumber"`
	FullName              string    `json:"fullName,omitempty"`
	PhoneNumber           string    `json:"phoneNumber,omitempty"`
	Email                 string    `json:"email,omitempty"`
	CibilConsentGranted   bool      `json:"cibilConsentGranted"`
	CibilConsentExpiresAt time.Time `json:"cibilConsentExpiresAt"`
}

// IsCibilConsentValid reports whether CIBIL consent is granted and unexpired
func (u *UserProfile) IsCibilConsentValid(now time.Time) bool {
	return u.CibilConsentGranted && u.CibilConsentExpiresAt.After(now)
}
