package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// BatchStatus is the primary lifecycle state of a ConsentBatch
type BatchStatus string

const (
	BatchPending    BatchStatus = "pending"
	BatchOTPSent    BatchStatus = "otp_sent"
	BatchVerified   BatchStatus = "verified"
	BatchProcessing BatchStatus = "processing"
	BatchCompleted  BatchStatus = "completed"
	BatchFailed     BatchStatus = "failed"
	BatchExpired    BatchStatus = "expired"
)

// batchTransitions lists the allowed lifecycle edges
var batchTransitions = map[BatchStatus][]BatchStatus{
	BatchPending:    {BatchOTPSent, BatchVerified, BatchExpired},
	BatchOTPSent:    {BatchOTPSent, BatchVerified, BatchFailed, BatchExpired},
	BatchVerified:   {BatchProcessing, BatchFailed},
	BatchProcessing: {BatchCompleted, BatchFailed},
}

// CanTransition reports whether the lifecycle allows moving from s to next
func (s BatchStatus) CanTransition(next BatchStatus) bool {
	for _, allowed := range batchTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseBatchStatus converts s to a known BatchStatus
func ParseBatchStatus(s string) (BatchStatus, bool) {
	switch status := BatchStatus(s); status {
	case BatchPending, BatchOTPSent, BatchVerified, BatchProcessing, BatchCompleted, BatchFailed, BatchExpired:
		return status, true
	}
	return "", false
}

// IsTerminal reports whether the status is final
func (s BatchStatus) IsTerminal() bool {
	return s == BatchCompleted || s == BatchFailed || s == BatchExpired
}

// RequestType distinguishes batch consent from per-loan consent
type RequestType string

const (
	RequestTypeSingleOTPBatch    RequestType = "SINGLE_OTP_BATCH"
	RequestTypeIndividualConsent RequestType = "INDIVIDUAL_CONSENT"
)

// DocumentType is a kind of loan document that can be requested
type DocumentType string

const (
	DocStatementOfAccount DocumentType = "statement_of_account"
	DocRepaymentSchedule  DocumentType = "repayment_schedule"
	DocSanctionLetter     DocumentType = "sanction_letter"
	DocForeclosureLetter  DocumentType = "foreclosure_letter"
	DocNOC                DocumentType = "noc"
	DocOther              DocumentType = "other"
)

// Priority of a requested document
type Priority string

const (
	PriorityHigh   Priority = "HIGH"
	PriorityMedium Priority = "MEDIUM"
	PriorityLow    Priority = "LOW"
)

// NotificationType is the delivery channel of a notification
type NotificationType string

const (
	NotificationSMS   NotificationType = "SMS"
	NotificationEmail NotificationType = "EMAIL"
	NotificationPush  NotificationType = "PUSH"
)

// Notification delivery statuses
const (
	NotificationSent      = "sent"
	NotificationDelivered = "delivered"
	NotificationFailed    = "failed"
)

// Request sources
const (
	SourceWeb    = "WEB"
	SourceMobile = "MOBILE"
	SourceAPI    = "API"
)

// DefaultConsentVersion is stamped on batches that do not carry one
const DefaultConsentVersion = "1.0"

// RequestedDocument is one document type requested for a loan
type RequestedDocument struct {
	DocumentType DocumentType `json:"documentType" binding:"required,oneof=statement_of_account repayment_schedule sanction_letter foreclosure_letter noc"`
	SubType      string       `json:"subType,omitempty" binding:"omitempty,max=64"`
	Priority     Priority     `json:"priority,omitempty" binding:"omitempty,oneof=HIGH MEDIUM LOW"`
}

// SelectedLoan is a pre-resolved loan account chosen for document retrieval
type SelectedLoan struct {
	LoanID             string              `json:"loanId" binding:"required,max=64"`
	AccountID          string              `json:"accountId" binding:"required,max=64"`
	BankName           string              `json:"bankName" binding:"required,max=128"`
	LoanType           string              `json:"loanType,omitempty"`
	OutstandingAmount  float64             `json:"outstandingAmount,omitempty" binding:"gte=0"`
	RequestedDocuments []RequestedDocument `json:"requestedDocuments" binding:"required,min=1,dive"`
}

// Progress holds the coarse-grained timeline of a batch
type Progress struct {
	Percentage   int          `json:"percentage"`
	CurrentStage StageName    `json:"currentStage"`
	Stages       StageTracker `json:"stages"`
}

// BatchError is an append-only error record
type BatchError struct {
	ErrorCode    string    `json:"errorCode"`
	ErrorMessage string    `json:"errorMessage"`
	BankName     string    `json:"bankName,omitempty"`
	DocumentType string    `json:"documentType,omitempty"`
	Timestamp    time.Time `json:"timestamp"`
	Resolved     bool      `json:"resolved"`
}

// Notification is an append-only record of a message sent to the user
type Notification struct {
	Type    NotificationType `json:"type"`
	Message string           `json:"message"`
	SentAt  time.Time        `json:"sentAt"`
	Status  string           `json:"status"`
}

// RequestMetadata captures where a batch request came from
type RequestMetadata struct {
	IPAddress string `json:"ipAddress,omitempty"`
	UserAgent string `json:"userAgent,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
	Source    string `json:"source,omitempty"`
}

// ConsentBatch is the aggregate root of a batch consent and document
// generation request.
type ConsentBatch struct {
	BatchID     string      `json:"batchId"`
	PANNumber   string      `json:"panNumber"`
	RequestType RequestType `json:"requestType"`
	Status      BatchStatus `json:"status"`

	OTPCode       string     `json:"-"`
	OTPSentAt     *time.Time `json:"otpSentAt,omitempty"`
	OTPExpiresAt  *time.Time `json:"otpExpiresAt,omitempty"`
	OTPVerifiedAt *time.Time `json:"otpVerifiedAt,omitempty"`
	OTPAttempts   int        `json:"otpAttempts"`

	SelectedLoans []SelectedLoan `json:"selectedLoans"`

	TotalDocumentsRequested int `json:"totalDocumentsRequested"`
	DocumentsGenerated      int `json:"documentsGenerated"`
	DocumentsFailed         int `json:"documentsFailed"`

	ProcessingStartedAt     *time.Time `json:"processingStartedAt,omitempty"`
	ProcessingCompletedAt   *time.Time `json:"processingCompletedAt,omitempty"`
	EstimatedCompletionTime *time.Time `json:"estimatedCompletionTime,omitempty"`

	ConsentText      string     `json:"consentText,omitempty"`
	ConsentVersion   string     `json:"consentVersion"`
	ConsentGrantedAt *time.Time `json:"consentGrantedAt,omitempty"`
	ConsentExpiresAt time.Time  `json:"consentExpiresAt"`

	PhoneNumber  string `json:"phoneNumber,omitempty"`
	EmailAddress string `json:"emailAddress,omitempty"`

	Progress             Progress        `json:"progress"`
	BankProcessingStatus BankLedger      `json:"bankProcessingStatus"`
	RequestMetadata      RequestMetadata `json:"requestMetadata"`
	Errors               []BatchError    `json:"errors"`
	Notifications        []Notification  `json:"notifications"`

	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// NewConsentBatch builds a pending batch with the stage tracker seeded and
// totals computed from the selected loans.
func NewConsentBatch(batchID, panNumber string, loans []SelectedLoan, consentTTL time.Duration, now time.Time) *ConsentBatch {
	batch := &ConsentBatch{
		BatchID:          batchID,
		PANNumber:        panNumber,
		RequestType:      RequestTypeSingleOTPBatch,
		Status:           BatchPending,
		SelectedLoans:    loans,
		ConsentVersion:   DefaultConsentVersion,
		ConsentExpiresAt: now.Add(consentTTL),
		Progress: Progress{
			CurrentStage: StageConsentPending,
			Stages:       NewStageTracker(now),
		},
		Errors:        []BatchError{},
		Notifications: []Notification{},
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	for i := range batch.SelectedLoans {
		for j := range batch.SelectedLoans[i].RequestedDocuments {
			if batch.SelectedLoans[i].RequestedDocuments[j].Priority == "" {
				batch.SelectedLoans[i].RequestedDocuments[j].Priority = PriorityMedium
			}
		}
	}
	batch.CalculateTotalDocuments()
	return batch
}

// CalculateTotalDocuments sets and returns the sum of requested documents over all loans
func (b *ConsentBatch) CalculateTotalDocuments() int {
	total := 0
	for _, loan := range b.SelectedLoans {
		total += len(loan.RequestedDocuments)
	}
	b.TotalDocumentsRequested = total
	return total
}

// OverallProgress returns round(generated / requested * 100), or 0 for an empty batch
func (b *ConsentBatch) OverallProgress() int {
	if b.TotalDocumentsRequested == 0 {
		return 0
	}
	return int(math.Round(float64(b.DocumentsGenerated) / float64(b.TotalDocumentsRequested) * 100))
}

// SyncProgress refreshes the stored percentage from the counters
func (b *ConsentBatch) SyncProgress() {
	b.Progress.Percentage = b.OverallProgress()
}

// IsOTPExpired reports whether the current OTP is past its expiry
func (b *ConsentBatch) IsOTPExpired(now time.Time) bool {
	return b.OTPExpiresAt != nil && b.OTPExpiresAt.Before(now)
}

// IsConsentExpired reports whether the batch consent window has closed
func (b *ConsentBatch) IsConsentExpired(now time.Time) bool {
	return b.ConsentExpiresAt.Before(now)
}

// TransitionTo moves the batch to next if the lifecycle allows it
func (b *ConsentBatch) TransitionTo(next BatchStatus) error {
	if !b.Status.CanTransition(next) {
		return fmt.Errorf("cannot move batch from %s to %s", b.Status, next)
	}
	b.Status = next
	return nil
}

// UpdateStage applies the stage update rule; terminal stages are not changed
func (b *ConsentBatch) UpdateStage(name StageName, status StageStatus, details string, now time.Time) bool {
	return b.Progress.Stages.Update(name, status, details, now)
}

// UpdateBankStatus applies the bank status update rule
func (b *ConsentBatch) UpdateBankStatus(bankName string, status BankStatus, update BankUpdate, now time.Time) {
	b.BankProcessingStatus.Update(bankName, status, update, now)
}

// AddError appends an error record
func (b *ConsentBatch) AddError(code, message, bankName, documentType string, now time.Time) {
	b.Errors = append(b.Errors, BatchError{
		ErrorCode:    code,
		ErrorMessage: message,
		BankName:     bankName,
		DocumentType: documentType,
		Timestamp:    now,
	})
}

// AddNotification appends a notification record
func (b *ConsentBatch) AddNotification(kind NotificationType, message, status string, now time.Time) {
	if status == "" {
		status = NotificationSent
	}
	b.Notifications = append(b.Notifications, Notification{
		Type:    kind,
		Message: message,
		SentAt:  now,
		Status:  status,
	})
}

// BankNames returns the distinct bank names of the selected loans, in order
func (b *ConsentBatch) BankNames() []string {
	seen := make(map[string]bool)
	var names []string
	for _, loan := range b.SelectedLoans {
		if !seen[loan.BankName] {
			seen[loan.BankName] = true
			names = append(names, loan.BankName)
		}
	}
	return names
}

// Clone returns a deep copy of the batch
func (b *ConsentBatch) Clone() (*ConsentBatch, error) {
	data, err := json.Marshal(b)
	if err != nil {
		return nil, err
	}
	var clone ConsentBatch
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	// OTPCode is not serialized
	clone.OTPCode = b.OTPCode
	return &clone, nil
}

// BatchSummary is the persisted-fields view of a batch
type BatchSummary struct {
	BatchID                 string      `json:"batchId"`
	PANNumber               string      `json:"panNumber"`
	Status                  BatchStatus `json:"status"`
	TotalLoans              int         `json:"totalLoans"`
	TotalDocumentsRequested int         `json:"totalDocumentsRequested"`
	DocumentsGenerated      int         `json:"documentsGenerated"`
	DocumentsFailed         int         `json:"documentsFailed"`
	Progress                int         `json:"progress"`
	CurrentStage            StageName   `json:"currentStage"`
	CreatedAt               time.Time   `json:"createdAt"`
	EstimatedCompletionTime *time.Time  `json:"estimatedCompletionTime,omitempty"`
	IsConsentExpired        bool        `json:"isConsentExpired"`
}

// GetSummary derives the summary from stored fields only
func (b *ConsentBatch) GetSummary(now time.Time) BatchSummary {
	return BatchSummary{
		BatchID:                 b.BatchID,
		PANNumber:               b.PANNumber,
		Status:                  b.Status,
		TotalLoans:              len(b.SelectedLoans),
		TotalDocumentsRequested: b.TotalDocumentsRequested,
		DocumentsGenerated:      b.DocumentsGenerated,
		DocumentsFailed:         b.DocumentsFailed,
		Progress:                b.OverallProgress(),
		CurrentStage:            b.Progress.CurrentStage,
		CreatedAt:               b.CreatedAt,
		EstimatedCompletionTime: b.EstimatedCompletionTime,
		IsConsentExpired:        b.IsConsentExpired(now),
	}
}
