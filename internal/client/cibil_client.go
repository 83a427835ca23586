package client

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/config"
	"github.com/loanvault/document-consent-api/internal/models"
)

// CibilClient looks up PAN identities and CIBIL consent over HTTP
type CibilClient struct {
	http   *resty.Client
	logger *logrus.Logger
}

// NewCibilClient creates a CibilClient for the configured upstream
func NewCibilClient(cfg *config.CibilConfig, logger *logrus.Logger) *CibilClient {
	timeout := 10 * time.Second
	if cfg.Timeout > 0 {
		timeout = cfg.Timeout
	}

	httpClient := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() >= http.StatusInternalServerError
		})

	return &CibilClient{http: httpClient, logger: logger}
}

// GetUser implements ConsentChecker
func (c *CibilClient) GetUser(ctx context.Context, panNumber string) (*models.UserProfile, error) {
	var profile models.UserProfile

	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("pan", panNumber).
		SetResult(&profile).
		Get("/users/{pan}/cibil-consent")
	if err != nil {
		return nil, fmt.Errorf("failed to call consent service: %w", err)
	}

	switch resp.StatusCode() {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, ErrUserNotFound
	default:
		c.logger.WithFields(logrus.Fields{
			"status": resp.StatusCode(),
			"body":   resp.String(),
		}).Error("Consent service returned an unexpected status")
		return nil, fmt.Errorf("consent service returned status %d", resp.StatusCode())
	}

	if profile.PANNumber == "" {
		profile.PANNumber = panNumber
	}
	return &profile, nil
}
