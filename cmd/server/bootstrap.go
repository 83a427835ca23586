package main

import (
	"fmt"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/client"
	"github.com/loanvault/document-consent-api/internal/config"
	"github.com/loanvault/document-consent-api/internal/dao"
)

// app holds the components shared by every command
type app struct {
	cfg     *config.Config
	logger  *logrus.Logger
	stores  *dao.Stores
	checker client.ConsentChecker
}

func newLogger(cfg *config.LoggingConfig) *logrus.Logger {
	logger := logrus.New()
	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	return logger
}

func bootstrap(configPath string) (*app, error) {
	// Release mode unless GIN_MODE says otherwise
	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := newLogger(&cfg.Logging)
	logger.WithFields(logrus.Fields{
		"version":    version,
		"build_date": buildDate,
		"config":     configPath,
		"storage":    cfg.Storage.Backend,
		"demo_mode":  cfg.Runtime.DemoMode,
		"log_level":  logger.GetLevel().String(),
	}).Info("Configuration loaded successfully")

	stores, err := dao.NewStores(cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	var checker client.ConsentChecker
	if cfg.Runtime.DemoMode {
		checker = client.NewDemoConsentChecker()
	} else {
		checker = client.NewCibilClient(&cfg.Cibil, logger)
	}

	return &app{cfg: cfg, logger: logger, stores: stores, checker: checker}, nil
}

func (a *app) close() {
	if err := a.stores.Close(); err != nil {
		a.logger.WithError(err).Error("Failed to close storage")
	}
}
