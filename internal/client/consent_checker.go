package client

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/loanvault/document-consent-api/internal/models"
)

// ErrUserNotFound is returned when no identity exists for a PAN
var ErrUserNotFound = errors.New("user not found")

// ConsentChecker resolves the PAN identity and its CIBIL consent
type ConsentChecker interface {
	GetUser(ctx context.Context, panNumber string) (*models.UserProfile, error)
}

// DemoConsentChecker answers from an in-process profile table. Unregistered
// PANs get a synthetic profile with consent valid for a year.
type DemoConsentChecker struct {
	mu       sync.RWMutex
	profiles map[string]models.UserProfile
	now      func() time.Time
}

// NewDemoConsentChecker creates a DemoConsentChecker
func NewDemoConsentChecker() *DemoConsentChecker {
	return &DemoConsentChecker{
		profiles: make(map[string]models.UserProfile),
		now:      time.Now,
	}
}

// Register adds or replaces a profile
func (d *DemoConsentChecker) Register(profile models.UserProfile) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.profiles[profile.PANNumber] = profile
}

// GetUser implements ConsentChecker
func (d *DemoConsentChecker) GetUser(_ context.Context, panNumber string) (*models.UserProfile, error) {
	d.mu.RLock()
	profile, ok := d.profiles[panNumber]
	d.mu.RUnlock()

	if !ok {
		profile = models.UserProfile{
			PANNumber:             panNumber,
			FullName:              "Demo User",
			CibilConsentGranted:   true,
			CibilConsentExpiresAt: d.now().AddDate(1, 0, 0),
		}
	}
	return &profile, nil
}
