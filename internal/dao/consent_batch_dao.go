package dao

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/loanvault/document-consent-api/internal/database"
	"github.com/loanvault/document-consent-api/internal/models"
)

const batchColumns = `
	BATCH_ID, PAN_NUMBER, REQUEST_TYPE, STATUS,
	OTP_CODE, OTP_SENT_AT, OTP_EXPIRES_AT, OTP_VERIFIED_AT, OTP_ATTEMPTS,
	SELECTED_LOANS, TOTAL_DOCUMENTS_REQUESTED, DOCUMENTS_GENERATED, DOCUMENTS_FAILED,
	PROCESSING_STARTED_AT, PROCESSING_COMPLETED_AT, ESTIMATED_COMPLETION_TIME,
	CONSENT_TEXT, CONSENT_VERSION, CONSENT_GRANTED_AT, CONSENT_EXPIRES_AT,
	PHONE_NUMBER, EMAIL_ADDRESS,
	PROGRESS, BANK_PROCESSING_STATUS, REQUEST_METADATA, ERRORS, NOTIFICATIONS,
	CREATED_AT, UPDATED_AT, COMPLETED_AT`

// batchRow is the CONSENT_BATCH row shape. Nested aggregates live in JSON columns.
type batchRow struct {
	BatchID                 string      `db:"BATCH_ID"`
	PANNumber               string      `db:"PAN_NUMBER"`
	RequestType             string      `db:"REQUEST_TYPE"`
	Status                  string      `db:"STATUS"`
	OTPCode                 string      `db:"OTP_CODE"`
	OTPSentAt               *time.Time  `db:"OTP_SENT_AT"`
	OTPExpiresAt            *time.Time  `db:"OTP_EXPIRES_AT"`
	OTPVerifiedAt           *time.Time  `db:"OTP_VERIFIED_AT"`
	OTPAttempts             int         `db:"OTP_ATTEMPTS"`
	SelectedLoans           models.JSON `db:"SELECTED_LOANS"`
	TotalDocumentsRequested int         `db:"TOTAL_DOCUMENTS_REQUESTED"`
	DocumentsGenerated      int         `db:"DOCUMENTS_GENERATED"`
	DocumentsFailed         int         `db:"DOCUMENTS_FAILED"`
	ProcessingStartedAt     *time.Time  `db:"PROCESSING_STARTED_AT"`
	ProcessingCompletedAt   *time.Time  `db:"PROCESSING_COMPLETED_AT"`
	EstimatedCompletionTime *time.Time  `db:"ESTIMATED_COMPLETION_TIME"`
	ConsentText             string      `db:"CONSENT_TEXT"`
	ConsentVersion          string      `db:"CONSENT_VERSION"`
	ConsentGrantedAt        *time.Time  `db:"CONSENT_GRANTED_AT"`
	ConsentExpiresAt        time.Time   `db:"CONSENT_EXPIRES_AT"`
	PhoneNumber             string      `db:"PHONE_NUMBER"`
	EmailAddress            string      `db:"EMAIL_ADDRESS"`
	Progress                models.JSON `db:"PROGRESS"`
	BankProcessingStatus    models.JSON `db:"BANK_PROCESSING_STATUS"`
	RequestMetadata         models.JSON `db:"REQUEST_METADATA"`
	Errors                  models.JSON `db:"ERRORS"`
	Notifications           models.JSON `db:"NOTIFICATIONS"`
	CreatedAt               time.Time   `db:"CREATED_AT"`
	UpdatedAt               time.Time   `db:"UPDATED_AT"`
	CompletedAt             *time.Time  `db:"COMPLETED_AT"`
}

func toBatchRow(b *models.ConsentBatch) (*batchRow, error) {
	row := &batchRow{
		BatchID:                 b.BatchID,
		PANNumber:               b.PANNumber,
		RequestType:             string(b.RequestType),
		Status:                  string(b.Status),
		OTPCode:                 b.OTPCode,
		OTPSentAt:               b.OTPSentAt,
		OTPExpiresAt:            b.OTPExpiresAt,
		OTPVerifiedAt:           b.OTPVerifiedAt,
		OTPAttempts:             b.OTPAttempts,
		TotalDocumentsRequested: b.TotalDocumentsRequested,
		DocumentsGenerated:      b.DocumentsGenerated,
		DocumentsFailed:         b.DocumentsFailed,
		ProcessingStartedAt:     b.ProcessingStartedAt,
		ProcessingCompletedAt:   b.ProcessingCompletedAt,
		EstimatedCompletionTime: b.EstimatedCompletionTime,
		ConsentText:             b.ConsentText,
		ConsentVersion:          b.ConsentVersion,
		ConsentGrantedAt:        b.ConsentGrantedAt,
		ConsentExpiresAt:        b.ConsentExpiresAt,
		PhoneNumber:             b.PhoneNumber,
		EmailAddress:            b.EmailAddress,
		CreatedAt:               b.CreatedAt,
		UpdatedAt:               b.UpdatedAt,
		CompletedAt:             b.CompletedAt,
	}

	columns := []struct {
		dst *models.JSON
		src interface{}
	}{
		{&row.SelectedLoans, b.SelectedLoans},
		{&row.Progress, b.Progress},
		{&row.BankProcessingStatus, b.BankProcessingStatus},
		{&row.RequestMetadata, b.RequestMetadata},
		{&row.Errors, b.Errors},
		{&row.Notifications, b.Notifications},
	}
	for _, col := range columns {
		data, err := models.NewJSON(col.src)
		if err != nil {
			return nil, err
		}
		*col.dst = data
	}
	return row, nil
}

func (r *batchRow) toModel() (*models.ConsentBatch, error) {
	b := &models.ConsentBatch{
		BatchID:                 r.BatchID,
		PANNumber:               r.PANNumber,
		RequestType:             models.RequestType(r.RequestType),
		Status:                  models.BatchStatus(r.Status),
		OTPCode:                 r.OTPCode,
		OTPSentAt:               r.OTPSentAt,
		OTPExpiresAt:            r.OTPExpiresAt,
		OTPVerifiedAt:           r.OTPVerifiedAt,
		OTPAttempts:             r.OTPAttempts,
		TotalDocumentsRequested: r.TotalDocumentsRequested,
		DocumentsGenerated:      r.DocumentsGenerated,
		DocumentsFailed:         r.DocumentsFailed,
		ProcessingStartedAt:     r.ProcessingStartedAt,
		ProcessingCompletedAt:   r.ProcessingCompletedAt,
		EstimatedCompletionTime: r.EstimatedCompletionTime,
		ConsentText:             r.ConsentText,
		ConsentVersion:          r.ConsentVersion,
		ConsentGrantedAt:        r.ConsentGrantedAt,
		ConsentExpiresAt:        r.ConsentExpiresAt,
		PhoneNumber:             r.PhoneNumber,
		EmailAddress:            r.EmailAddress,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
		CompletedAt:             r.CompletedAt,
	}

	columns := []struct {
		name string
		src  models.JSON
		dst  interface{}
	}{
		{"SELECTED_LOANS", r.SelectedLoans, &b.SelectedLoans},
		{"PROGRESS", r.Progress, &b.Progress},
		{"BANK_PROCESSING_STATUS", r.BankProcessingStatus, &b.BankProcessingStatus},
		{"REQUEST_METADATA", r.RequestMetadata, &b.RequestMetadata},
		{"ERRORS", r.Errors, &b.Errors},
		{"NOTIFICATIONS", r.Notifications, &b.Notifications},
	}
	for _, col := range columns {
		if err := col.src.Decode(col.dst); err != nil {
			return nil, fmt.Errorf("failed to decode %s: %w", col.name, err)
		}
	}
	return b, nil
}

// ConsentBatchDAO handles database operations for consent batches
type ConsentBatchDAO struct {
	db *database.DB
}

// NewConsentBatchDAO creates a new ConsentBatchDAO instance
func NewConsentBatchDAO(db *database.DB) *ConsentBatchDAO {
	return &ConsentBatchDAO{db: db}
}

// Create inserts a new batch
func (dao *ConsentBatchDAO) Create(ctx context.Context, batch *models.ConsentBatch) error {
	row, err := toBatchRow(batch)
	if err != nil {
		return fmt.Errorf("failed to create consent batch: %w", err)
	}

	query := `INSERT INTO CONSENT_BATCH (` + batchColumns + `) VALUES (
		:BATCH_ID, :PAN_NUMBER, :REQUEST_TYPE, :STATUS,
		:OTP_CODE, :OTP_SENT_AT, :OTP_EXPIRES_AT, :OTP_VERIFIED_AT, :OTP_ATTEMPTS,
		:SELECTED_LOANS, :TOTAL_DOCUMENTS_REQUESTED, :DOCUMENTS_GENERATED, :DOCUMENTS_FAILED,
		:PROCESSING_STARTED_AT, :PROCESSING_COMPLETED_AT, :ESTIMATED_COMPLETION_TIME,
		:CONSENT_TEXT, :CONSENT_VERSION, :CONSENT_GRANTED_AT, :CONSENT_EXPIRES_AT,
		:PHONE_NUMBER, :EMAIL_ADDRESS,
		:PROGRESS, :BANK_PROCESSING_STATUS, :REQUEST_METADATA, :ERRORS, :NOTIFICATIONS,
		:CREATED_AT, :UPDATED_AT, :COMPLETED_AT
	)`

	if _, err := dao.db.NamedExecContext(ctx, query, row); err != nil {
		return fmt.Errorf("failed to create consent batch: %w", err)
	}
	return nil
}

// GetByID retrieves a batch by ID
func (dao *ConsentBatchDAO) GetByID(ctx context.Context, batchID string) (*models.ConsentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM CONSENT_BATCH WHERE BATCH_ID = ?`

	var row batchRow
	if err := dao.db.GetContext(ctx, &row, query, batchID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("consent batch %s: %w", batchID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get consent batch: %w", err)
	}
	return row.toModel()
}

// Update rewrites every mutable column of the batch
func (dao *ConsentBatchDAO) Update(ctx context.Context, batch *models.ConsentBatch) error {
	row, err := toBatchRow(batch)
	if err != nil {
		return fmt.Errorf("failed to update consent batch: %w", err)
	}

	query := `
		UPDATE CONSENT_BATCH SET
			STATUS = :STATUS,
			OTP_CODE = :OTP_CODE, OTP_SENT_AT = :OTP_SENT_AT, OTP_EXPIRES_AT = :OTP_EXPIRES_AT,
			OTP_VERIFIED_AT = :OTP_VERIFIED_AT, OTP_ATTEMPTS = :OTP_ATTEMPTS,
			SELECTED_LOANS = :SELECTED_LOANS,
			TOTAL_DOCUMENTS_REQUESTED = :TOTAL_DOCUMENTS_REQUESTED,
			DOCUMENTS_GENERATED = :DOCUMENTS_GENERATED, DOCUMENTS_FAILED = :DOCUMENTS_FAILED,
			PROCESSING_STARTED_AT = :PROCESSING_STARTED_AT,
			PROCESSING_COMPLETED_AT = :PROCESSING_COMPLETED_AT,
			ESTIMATED_COMPLETION_TIME = :ESTIMATED_COMPLETION_TIME,
			CONSENT_GRANTED_AT = :CONSENT_GRANTED_AT, CONSENT_EXPIRES_AT = :CONSENT_EXPIRES_AT,
			PHONE_NUMBER = :PHONE_NUMBER, EMAIL_ADDRESS = :EMAIL_ADDRESS,
			PROGRESS = :PROGRESS, BANK_PROCESSING_STATUS = :BANK_PROCESSING_STATUS,
			ERRORS = :ERRORS, NOTIFICATIONS = :NOTIFICATIONS,
			UPDATED_AT = :UPDATED_AT, COMPLETED_AT = :COMPLETED_AT
		WHERE BATCH_ID = :BATCH_ID`

	// MySQL reports zero affected rows for an unchanged row, so the batch is
	// locked and checked for existence first.
	return dao.db.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		var exists int
		if err := tx.GetContext(ctx, &exists, `SELECT 1 FROM CONSENT_BATCH WHERE BATCH_ID = ? FOR UPDATE`, batch.BatchID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("consent batch %s: %w", batch.BatchID, ErrNotFound)
			}
			return fmt.Errorf("failed to lock consent batch: %w", err)
		}
		if _, err := tx.NamedExecContext(ctx, query, row); err != nil {
			return fmt.Errorf("failed to update consent batch: %w", err)
		}
		return nil
	})
}

// ListByPAN returns the batches of a PAN, newest first
func (dao *ConsentBatchDAO) ListByPAN(ctx context.Context, panNumber string, status models.BatchStatus) ([]*models.ConsentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM CONSENT_BATCH WHERE PAN_NUMBER = ?`
	args := []interface{}{panNumber}
	if status != "" {
		query += ` AND STATUS = ?`
		args = append(args, string(status))
	}
	query += ` ORDER BY CREATED_AT DESC`

	return dao.selectBatches(ctx, query, args...)
}

// ListByStatus returns every batch in status, oldest first
func (dao *ConsentBatchDAO) ListByStatus(ctx context.Context, status models.BatchStatus) ([]*models.ConsentBatch, error) {
	query := `SELECT ` + batchColumns + ` FROM CONSENT_BATCH WHERE STATUS = ? ORDER BY CREATED_AT ASC`
	return dao.selectBatches(ctx, query, string(status))
}

func (dao *ConsentBatchDAO) selectBatches(ctx context.Context, query string, args ...interface{}) ([]*models.ConsentBatch, error) {
	var rows []batchRow
	if err := dao.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list consent batches: %w", err)
	}

	batches := make([]*models.ConsentBatch, 0, len(rows))
	for i := range rows {
		batch, err := rows[i].toModel()
		if err != nil {
			return nil, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

// DeleteExpired removes batches that can no longer be verified
func (dao *ConsentBatchDAO) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	query := `
		DELETE FROM CONSENT_BATCH
		WHERE (OTP_EXPIRES_AT < ? AND STATUS = ?)
		   OR (CONSENT_EXPIRES_AT < ? AND STATUS IN (?, ?))`

	result, err := dao.db.ExecContext(ctx, query,
		now, string(models.BatchOTPSent),
		now, string(models.BatchPending), string(models.BatchOTPSent),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired consent batches: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}
