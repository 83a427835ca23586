package models

import "time"

// CreateBatchRequest is the API payload for creating a batch consent
type CreateBatchRequest struct {
	PANNumber     string         `json:"panNumber" binding:"required,len=10"`
	SelectedLoans []SelectedLoan `json:"selectedLoans" binding:"required,min=1,dive"`
	PhoneNumber   string         `json:"phoneNumber,omitempty" binding:"omitempty,numeric,min=10,max=15"`
	EmailAddress  string         `json:"emailAddress,omitempty" binding:"omitempty,email"`
	ConsentText   string         `json:"consentText,omitempty" binding:"omitempty,max=4096"`
	Source        string         `json:"source,omitempty" binding:"omitempty,oneof=WEB MOBILE API"`

	// Populated by the handler from the HTTP request
	Metadata RequestMetadata `json:"-"`
}

// CreateBatchResponse is returned after a batch is created
type CreateBatchResponse struct {
	Success        bool   `json:"success"`
	Message        string `json:"message"`
	BatchID        string `json:"batchId"`
	TotalLoans     int    `json:"totalLoans"`
	TotalDocuments int    `json:"totalDocuments"`
	EstimatedTime  string `json:"estimatedTime"`
	NextStep       string `json:"nextStep"`
}

// SendOTPResponse is returned after an OTP is issued
type SendOTPResponse struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	BatchID   string `json:"batchId"`
	ExpiresIn int    `json:"expiresIn"`
	DemoOTP   string `json:"demoOtp,omitempty"`
}

// VerifyOTPRequest is the API payload for verifying an OTP
type VerifyOTPRequest struct {
	OTPCode string `json:"otpCode" binding:"required,len=6,numeric"`
}

// VerifyOTPResponse is returned once generation has been scheduled
type VerifyOTPResponse struct {
	Success             bool        `json:"success"`
	Message             string      `json:"message"`
	BatchID             string      `json:"batchId"`
	Status              BatchStatus `json:"status"`
	EstimatedCompletion *time.Time  `json:"estimatedCompletion,omitempty"`
}

// BatchStatusResponse is the polling view of a batch
type BatchStatusResponse struct {
	Success              bool         `json:"success"`
	Batch                BatchSummary `json:"batch"`
	Status               BatchStatus  `json:"status"`
	Progress             int          `json:"progress"`
	CurrentStage         StageName    `json:"currentStage"`
	Stages               []Stage      `json:"stages"`
	BankProcessingStatus []BankEntry  `json:"bankProcessingStatus"`
	DocumentsGenerated   int          `json:"documentsGenerated"`
	DocumentsFailed      int          `json:"documentsFailed"`
	Errors               []BatchError `json:"errors,omitempty"`
}

// BatchHistoryResponse lists batch summaries for a PAN
type BatchHistoryResponse struct {
	Success bool           `json:"success"`
	Message string         `json:"message"`
	Batches []BatchSummary `json:"batches"`
	Total   int            `json:"total"`
}

// DocumentListResponse lists documents generated for a batch
type DocumentListResponse struct {
	Success   bool              `json:"success"`
	BatchID   string            `json:"batchId"`
	Documents []DocumentSummary `json:"documents"`
	Total     int               `json:"total"`
}

// RecordAccessRequest is the API payload for recording a document access
type RecordAccessRequest struct {
	AccessType AccessType `json:"accessType" binding:"required,oneof=VIEW DOWNLOAD"`
}

// ShareDocumentRequest is the API payload for creating a share token
type ShareDocumentRequest struct {
	ExpiresInHours int `json:"expiresInHours,omitempty" binding:"omitempty,min=1,max=720"`
	MaxAccess      int `json:"maxAccess,omitempty" binding:"omitempty,min=1,max=100"`
}

// ShareDocumentResponse carries a newly issued share token
type ShareDocumentResponse struct {
	Success    bool      `json:"success"`
	DocumentID string    `json:"documentId"`
	Token      string    `json:"token"`
	ExpiresAt  time.Time `json:"expiresAt"`
	MaxAccess  int       `json:"maxAccess"`
}

// DocumentResponse wraps a single document summary
type DocumentResponse struct {
	Success  bool            `json:"success"`
	Document DocumentSummary `json:"document"`
}
