package models

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

// DocumentStatus is the lifecycle status of a generated document
type DocumentStatus string

const (
	DocumentPending    DocumentStatus = "pending"
	DocumentProcessing DocumentStatus = "processing"
	DocumentReady      DocumentStatus = "ready"
	DocumentDownloaded DocumentStatus = "downloaded"
	DocumentFailed     DocumentStatus = "failed"
	DocumentExpired    DocumentStatus = "expired"
)

// AccessType classifies an access log entry
type AccessType string

const (
	AccessView     AccessType = "VIEW"
	AccessDownload AccessType = "DOWNLOAD"
	AccessShare    AccessType = "SHARE"
	AccessDelete   AccessType = "DELETE"
)

// Source systems for generated documents
const (
	SourceSystemBankAPI   = "BANK_API"
	SourceSystemGenerated = "GENERATED"
)

// Document defaults
const (
	DefaultMaxDownloads       = 10
	DefaultShareMaxAccess     = 5
	DefaultShareExpiryHours   = 24
	DefaultDocumentMimeType   = "application/pdf"
	DefaultDocumentTTL        = 30 * 24 * time.Hour
	documentDownloadURLPrefix = "/api/v1/documents/"
)

var documentDisplayNames = map[DocumentType]string{
	DocStatementOfAccount: "Statement of Account",
	DocRepaymentSchedule:  "Repayment Schedule",
	DocSanctionLetter:     "Sanction Letter",
	DocForeclosureLetter:  "Foreclosure Letter",
	DocNOC:                "No Objection Certificate",
	DocOther:              "Other Document",
}

// DisplayNameFor returns the human-readable name of a document type
func DisplayNameFor(docType DocumentType) string {
	if name, ok := documentDisplayNames[docType]; ok {
		return name
	}
	return string(docType)
}

// ShareToken grants limited access to a document
type ShareToken struct {
	Token       string    `json:"token"`
	CreatedAt   time.Time `json:"createdAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	AccessCount int       `json:"accessCount"`
	MaxAccess   int       `json:"maxAccess"`
	IsActive    bool      `json:"isActive"`
}

// AccessLogEntry is an append-only audit record
type AccessLogEntry struct {
	AccessedAt time.Time  `json:"accessedAt"`
	AccessType AccessType `json:"accessType"`
	IPAddress  string     `json:"ipAddress,omitempty"`
	UserAgent  string     `json:"userAgent,omitempty"`
	SessionID  string     `json:"sessionId,omitempty"`
}

// AccessMetadata describes the client performing an access
type AccessMetadata struct {
	IPAddress string
	UserAgent string
	SessionID string
}

// Document is one generated file artifact tied to a loan and document type
type Document struct {
	DocumentID      string         `json:"documentId"`
	RequestID       string         `json:"requestId"`
	PANNumber       string         `json:"panNumber"`
	LoanID          string         `json:"loanId"`
	AccountID       string         `json:"accountId"`
	BankName        string         `json:"bankName"`
	DocumentType    DocumentType   `json:"documentType"`
	DocumentSubType string         `json:"documentSubType,omitempty"`
	Status          DocumentStatus `json:"status"`

	FileName    string `json:"fileName"`
	FilePath    string `json:"filePath"`
	FileSize    int64  `json:"fileSize"`
	MimeType    string `json:"mimeType"`
	DownloadURL string `json:"downloadUrl,omitempty"`
	Checksum    string `json:"checksum,omitempty"`

	SourceSystem     string     `json:"sourceSystem"`
	GeneratedAt      *time.Time `json:"generatedAt,omitempty"`
	ExpiresAt        time.Time  `json:"expiresAt"`
	DownloadCount    int        `json:"downloadCount"`
	MaxDownloads     int        `json:"maxDownloads"`
	LastDownloadedAt *time.Time `json:"lastDownloadedAt,omitempty"`

	ShareTokens []ShareToken     `json:"shareTokens"`
	AccessLog   []AccessLogEntry `json:"accessLog"`

	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DownloadPath returns the API path serving the document
func DownloadPath(documentID string) string {
	return documentDownloadURLPrefix + documentID + "/download"
}

// IsExpired reports whether the document is past its expiry
func (d *Document) IsExpired(now time.Time) bool {
	return d.ExpiresAt.Before(now)
}

// DaysUntilExpiry returns the whole days remaining, rounded up, never negative
func (d *Document) DaysUntilExpiry(now time.Time) int {
	days := int(math.Ceil(d.ExpiresAt.Sub(now).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// CanDownload reports whether a download is currently allowed
func (d *Document) CanDownload(now time.Time) bool {
	return d.Status == DocumentReady && !d.IsExpired(now) && d.DownloadCount < d.MaxDownloads
}

// RecordAccess appends an access log entry and counts downloads
func (d *Document) RecordAccess(accessType AccessType, meta AccessMetadata, now time.Time) {
	d.AccessLog = append(d.AccessLog, AccessLogEntry{
		AccessedAt: now,
		AccessType: accessType,
		IPAddress:  meta.IPAddress,
		UserAgent:  meta.UserAgent,
		SessionID:  meta.SessionID,
	})
	if accessType == AccessDownload {
		d.DownloadCount++
		downloaded := now
		d.LastDownloadedAt = &downloaded
	}
	d.UpdatedAt = now
}

// AddShareToken appends an active share token
func (d *Document) AddShareToken(token string, ttl time.Duration, maxAccess int, now time.Time) ShareToken {
	if maxAccess <= 0 {
		maxAccess = DefaultShareMaxAccess
	}
	st := ShareToken{
		Token:     token,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
		MaxAccess: maxAccess,
		IsActive:  true,
	}
	d.ShareTokens = append(d.ShareTokens, st)
	d.UpdatedAt = now
	return st
}

// ConsumeShareToken validates token and counts the access.
// It returns false if the token is unknown, inactive, expired or exhausted.
func (d *Document) ConsumeShareToken(token string, now time.Time) bool {
	for i := range d.ShareTokens {
		st := &d.ShareTokens[i]
		if st.Token == token && st.IsActive && st.ExpiresAt.After(now) && st.AccessCount < st.MaxAccess {
			st.AccessCount++
			d.UpdatedAt = now
			return true
		}
	}
	return false
}

// FormatFileSize renders a byte count with a binary unit suffix
func FormatFileSize(size int64) string {
	if size <= 0 {
		return "Unknown"
	}
	units := []string{"B", "KB", "MB", "GB"}
	value := float64(size)
	unit := 0
	for value >= 1024 && unit < len(units)-1 {
		value /= 1024
		unit++
	}
	return fmt.Sprintf("%.1f %s", value, units[unit])
}

// DocumentSummary is the client-facing view of a document
type DocumentSummary struct {
	DocumentID      string         `json:"documentId"`
	BankName        string         `json:"bankName"`
	LoanID          string         `json:"loanId"`
	DocumentType    DocumentType   `json:"documentType"`
	DisplayName     string         `json:"displayName"`
	Status          DocumentStatus `json:"status"`
	FileName        string         `json:"fileName"`
	FileSize        string         `json:"fileSize"`
	GeneratedAt     *time.Time     `json:"generatedAt,omitempty"`
	ExpiresAt       time.Time      `json:"expiresAt"`
	DaysUntilExpiry int            `json:"daysUntilExpiry"`
	DownloadCount   int            `json:"downloadCount"`
	MaxDownloads    int            `json:"maxDownloads"`
	CanDownload     bool           `json:"canDownload"`
	DownloadURL     string         `json:"downloadUrl,omitempty"`
}

// GetSummary builds the client-facing view
func (d *Document) GetSummary(now time.Time) DocumentSummary {
	return DocumentSummary{
		DocumentID:      d.DocumentID,
		BankName:        d.BankName,
		LoanID:          d.LoanID,
		DocumentType:    d.DocumentType,
		DisplayName:     DisplayNameFor(d.DocumentType),
		Status:          d.Status,
		FileName:        d.FileName,
		FileSize:        FormatFileSize(d.FileSize),
		GeneratedAt:     d.GeneratedAt,
		ExpiresAt:       d.ExpiresAt,
		DaysUntilExpiry: d.DaysUntilExpiry(now),
		DownloadCount:   d.DownloadCount,
		MaxDownloads:    d.MaxDownloads,
		CanDownload:     d.CanDownload(now),
		DownloadURL:     d.DownloadURL,
	}
}

// Clone returns a deep copy of the document
func (d *Document) Clone() (*Document, error) {
	data, err := json.Marshal(d)
	if err != nil {
		return nil, err
	}
	var clone Document
	if err := json.Unmarshal(data, &clone); err != nil {
		return nil, err
	}
	return &clone, nil
}
