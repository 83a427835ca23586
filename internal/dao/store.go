package dao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/loanvault/document-consent-api/internal/config"
	"github.com/loanvault/document-consent-api/internal/database"
	"github.com/loanvault/document-consent-api/internal/models"
)

// ErrNotFound is returned when the requested record does not exist
var ErrNotFound = errors.New("record not found")

// BatchStore persists consent batches
type BatchStore interface {
	Create(ctx context.Context, batch *models.ConsentBatch) error
	GetByID(ctx context.Context, batchID string) (*models.ConsentBatch, error)
	Update(ctx context.Context, batch *models.ConsentBatch) error
	// ListByPAN returns batches newest first. An empty status matches all.
	ListByPAN(ctx context.Context, panNumber string, status models.BatchStatus) ([]*models.ConsentBatch, error)
	// ListByStatus returns every batch in status, oldest first
	ListByStatus(ctx context.Context, status models.BatchStatus) ([]*models.ConsentBatch, error)
	// DeleteExpired removes batches whose OTP or consent window lapsed
	// before verification.
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// DocumentStore persists generated documents
type DocumentStore interface {
	Create(ctx context.Context, doc *models.Document) error
	GetByID(ctx context.Context, documentID string) (*models.Document, error)
	Update(ctx context.Context, doc *models.Document) error
	ListByRequestID(ctx context.Context, requestID string) ([]*models.Document, error)
	GetByShareToken(ctx context.Context, token string) (*models.Document, error)
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// Stores bundles the backends selected at startup
type Stores struct {
	Batches   BatchStore
	Documents DocumentStore
	// HealthCheck reports backend reachability
	HealthCheck func(ctx context.Context) error
	// Close releases backend resources
	Close func() error
	// LogStats logs connection pool statistics; nil for the memory backend
	LogStats func()
}

// NewStores builds the stores for the configured backend
func NewStores(cfg *config.Config, logger *logrus.Logger) (*Stores, error) {
	switch cfg.Storage.Backend {
	case config.StorageMySQL:
		db, err := database.Initialize(&cfg.Database.LoanDocs, logger)
		if err != nil {
			return nil, err
		}
		return NewMySQLStores(db), nil
	case config.StorageMemory, "":
		logger.Warn("Using in-memory storage; data is lost on restart")
		return NewMemoryStores(), nil
	default:
		return nil, fmt.Errorf("unsupported storage backend: %s", cfg.Storage.Backend)
	}
}

// NewMySQLStores builds MySQL-backed stores over db
func NewMySQLStores(db *database.DB) *Stores {
	return &Stores{
		Batches:     NewConsentBatchDAO(db),
		Documents:   NewDocumentDAO(db),
		HealthCheck: db.HealthCheck,
		Close:       db.Close,
		LogStats:    db.LogStats,
	}
}

// NewMemoryStores builds process-local stores
func NewMemoryStores() *Stores {
	return &Stores{
		Batches:     NewMemoryBatchStore(),
		Documents:   NewMemoryDocumentStore(),
		HealthCheck: func(context.Context) error { return nil },
		Close:       func() error { return nil },
	}
}
