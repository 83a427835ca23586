package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/loanvault/document-consent-api/internal/database"
	"github.com/loanvault/document-consent-api/internal/models"
)

const documentColumns = `
	DOCUMENT_ID, REQUEST_ID, PAN_NUMBER, LOAN_ID, ACCOUNT_ID, BANK_NAME,
	DOCUMENT_TYPE, DOCUMENT_SUB_TYPE, STATUS,
	FILE_NAME, FILE_PATH, FILE_SIZE, MIME_TYPE, DOWNLOAD_URL, CHECKSUM,
	SOURCE_SYSTEM, GENERATED_AT, EXPIRES_AT, DOWNLOAD_COUNT, MAX_DOWNLOADS, LAST_DOWNLOADED_AT,
	SHARE_TOKENS, ACCESS_LOG, CREATED_AT, UPDATED_AT`

type documentRow struct {
	DocumentID       string      `db:"DOCUMENT_ID"`
	RequestID        string      `db:"REQUEST_ID"`
	PANNumber        string      `db:"PAN_NUMBER"`
	LoanID           string      `db:"LOAN_ID"`
	AccountID        string      `db:"ACCOUNT_ID"`
	BankName         string      `db:"BANK_NAME"`
	DocumentType     string      `db:"DOCUMENT_TYPE"`
	DocumentSubType  string      `db:"DOCUMENT_SUB_TYPE"`
	Status           string      `db:"STATUS"`
	FileName         string      `db:"FILE_NAME"`
	FilePath         string      `db:"FILE_PATH"`
	FileSize         int64       `db:"FILE_SIZE"`
	MimeType         string      `db:"MIME_TYPE"`
	DownloadURL      string      `db:"DOWNLOAD_URL"`
	Checksum         string      `db:"CHECKSUM"`
	SourceSystem     string      `db:"SOURCE_SYSTEM"`
	GeneratedAt      *time.Time  `db:"GENERATED_AT"`
	ExpiresAt        time.Time   `db:"EXPIRES_AT"`
	DownloadCount    int         `db:"DOWNLOAD_COUNT"`
	MaxDownloads     int         `db:"MAX_DOWNLOADS"`
	LastDownloadedAt *time.Time  `db:"LAST_DOWNLOADED_AT"`
	ShareTokens      models.JSON `db:"SHARE_TOKENS"`
	AccessLog        models.JSON `db:"ACCESS_LOG"`
	CreatedAt        time.Time   `db:"CREATED_AT"`
	UpdatedAt        time.Time   `db:"UPDATED_AT"`
}

func toDocumentRow(d *models.Document) (*documentRow, error) {
	shareTokens, err := models.NewJSON(d.ShareTokens)
	if err != nil {
		return nil, err
	}
	accessLog, err := models.NewJSON(d.AccessLog)
	if err != nil {
		return nil, err
	}
	return &documentRow{
		DocumentID:       d.DocumentID,
		RequestID:        d.RequestID,
		PANNumber:        d.PANNumber,
		LoanID:           d.LoanID,
		AccountID:        d.AccountID,
		BankName:         d.BankName,
		DocumentType:     string(d.DocumentType),
		DocumentSubType:  d.DocumentSubType,
		Status:           string(d.Status),
		FileName:         d.FileName,
		FilePath:         d.FilePath,
		FileSize:         d.FileSize,
		MimeType:         d.MimeType,
		DownloadURL:      d.DownloadURL,
		Checksum:         d.Checksum,
		SourceSystem:     d.SourceSystem,
		GeneratedAt:      d.GeneratedAt,
		ExpiresAt:        d.ExpiresAt,
		DownloadCount:    d.DownloadCount,
		MaxDownloads:     d.MaxDownloads,
		LastDownloadedAt: d.LastDownloadedAt,
		ShareTokens:      shareTokens,
		AccessLog:        accessLog,
		CreatedAt:        d.CreatedAt,
		UpdatedAt:        d.UpdatedAt,
	}, nil
}

func (r *documentRow) toModel() (*models.Document, error) {
	d := &models.Document{
		DocumentID:       r.DocumentID,
		RequestID:        r.RequestID,
		PANNumber:        r.PANNumber,
		LoanID:           r.LoanID,
		AccountID:        r.AccountID,
		BankName:         r.BankName,
		DocumentType:     models.DocumentType(r.DocumentType),
		DocumentSubType:  r.DocumentSubType,
		Status:           models.DocumentStatus(r.Status),
		FileName:         r.FileName,
		FilePath:         r.FilePath,
		FileSize:         r.FileSize,
		MimeType:         r.MimeType,
		DownloadURL:      r.DownloadURL,
		Checksum:         r.Checksum,
		SourceSystem:     r.SourceSystem,
		GeneratedAt:      r.GeneratedAt,
		ExpiresAt:        r.ExpiresAt,
		DownloadCount:    r.DownloadCount,
		MaxDownloads:     r.MaxDownloads,
		LastDownloadedAt: r.LastDownloadedAt,
		CreatedAt:        r.CreatedAt,
		UpdatedAt:        r.UpdatedAt,
	}
	if err := r.ShareTokens.Decode(&d.ShareTokens); err != nil {
		return nil, fmt.Errorf("failed to decode SHARE_TOKENS: %w", err)
	}
	if err := r.AccessLog.Decode(&d.AccessLog); err != nil {
		return nil, fmt.Errorf("failed to decode ACCESS_LOG: %w", err)
	}
	return d, nil
}

// DocumentDAO handles database operations for generated documents
type DocumentDAO struct {
	db *database.DB
}

// NewDocumentDAO creates a new DocumentDAO instance
func NewDocumentDAO(db *database.DB) *DocumentDAO {
	return &DocumentDAO{db: db}
}

// Create inserts a new document
func (dao *DocumentDAO) Create(ctx context.Context, doc *models.Document) error {
	row, err := toDocumentRow(doc)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}

	query := `INSERT INTO LOAN_DOCUMENT (` + documentColumns + `) VALUES (
		:DOCUMENT_ID, :REQUEST_ID, :PAN_NUMBER, :LOAN_ID, :ACCOUNT_ID, :BANK_NAME,
		:DOCUMENT_TYPE, :DOCUMENT_SUB_TYPE, :STATUS,
		:FILE_NAME, :FILE_PATH, :FILE_SIZE, :MIME_TYPE, :DOWNLOAD_URL, :CHECKSUM,
		:SOURCE_SYSTEM, :GENERATED_AT, :EXPIRES_AT, :DOWNLOAD_COUNT, :MAX_DOWNLOADS, :LAST_DOWNLOADED_AT,
		:SHARE_TOKENS, :ACCESS_LOG, :CREATED_AT, :UPDATED_AT
	)`

	if _, err := dao.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

// GetByID retrieves a document by ID
func (dao *DocumentDAO) GetByID(ctx context.Context, documentID string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM LOAN_DOCUMENT WHERE DOCUMENT_ID = ?`

	var row documentRow
	if err := dao.db.GetContext(ctx, &row, query, documentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("document %s: %w", documentID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return row.toModel()
}

// Update rewrites the mutable columns of a document
func (dao *DocumentDAO) Update(ctx context.Context, doc *models.Document) error {
	row, err := toDocumentRow(doc)
	if err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}

	query := `
		UPDATE LOAN_DOCUMENT SET
			STATUS = :STATUS, FILE_SIZE = :FILE_SIZE, DOWNLOAD_URL = :DOWNLOAD_URL, CHECKSUM = :CHECKSUM,
			GENERATED_AT = :GENERATED_AT, EXPIRES_AT = :EXPIRES_AT,
			DOWNLOAD_COUNT = :DOWNLOAD_COUNT, MAX_DOWNLOADS = :MAX_DOWNLOADS,
			LAST_DOWNLOADED_AT = :LAST_DOWNLOADED_AT,
			SHARE_TOKENS = :SHARE_TOKENS, ACCESS_LOG = :ACCESS_LOG, UPDATED_AT = :UPDATED_AT
		WHERE DOCUMENT_ID = :DOCUMENT_ID`

	if _, err := dao.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to update document: %w", err)
	}
	return nil
}

// ListByRequestID returns the documents generated for a batch in creation order
func (dao *DocumentDAO) ListByRequestID(ctx context.Context, requestID string) ([]*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM LOAN_DOCUMENT WHERE REQUEST_ID = ? ORDER BY CREATED_AT ASC`

	var rows []documentRow
	if err := dao.db.SelectContext(ctx, &rows, query, requestID); err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return documentsFromRows(rows)
}

// GetByShareToken finds the document carrying the given share token
func (dao *DocumentDAO) GetByShareToken(ctx context.Context, token string) (*models.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM LOAN_DOCUMENT
		WHERE JSON_CONTAINS(SHARE_TOKENS, JSON_OBJECT('token', ?)) LIMIT 1`

	var row documentRow
	if err := dao.db.GetContext(ctx, &row, query, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("share token: %w", ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get document by share token: %w", err)
	}
	return row.toModel()
}

// DeleteExpired removes documents past their expiry
func (dao *DocumentDAO) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := dao.db.ExecContext(ctx, `DELETE FROM LOAN_DOCUMENT WHERE EXPIRES_AT < ?`, now)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired documents: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

func documentsFromRows(rows []documentRow) ([]*models.Document, error) {
	docs := make([]*models.Document, 0, len(rows))
	for i := range rows {
		doc, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		docs = append(docs, doc)
	}
	return docs, nil
}
