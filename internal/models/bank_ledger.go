package models

import (
	"encoding/json"
	"time"
)

// BankStatus is the processing status of a single bank within a batch
type BankStatus string

const (
	BankPending    BankStatus = "pending"
	BankProcessing BankStatus = "processing"
	BankCompleted  BankStatus = "completed"
	BankFailed     BankStatus = "failed"
)

// BankEntry is the per-bank sub-progress record
type BankEntry struct {
	BankName           string     `json:"bankName"`
	Status             BankStatus `json:"status"`
	DocumentsRequested int        `json:"documentsRequested"`
	DocumentsGenerated int        `json:"documentsGenerated"`
	StartedAt          *time.Time `json:"startedAt,omitempty"`
	CompletedAt        *time.Time `json:"completedAt,omitempty"`
	ErrorMessage       string     `json:"errorMessage,omitempty"`
}

// BankUpdate carries the optional fields of a bank status update.
// Nil fields are left untouched.
type BankUpdate struct {
	DocumentsRequested *int
	DocumentsGenerated *int
	ErrorMessage       *string
}

// WithRequested sets DocumentsRequested
func (u BankUpdate) WithRequested(n int) BankUpdate {
	u.DocumentsRequested = &n
	return u
}

// WithGenerated sets DocumentsGenerated
func (u BankUpdate) WithGenerated(n int) BankUpdate {
	u.DocumentsGenerated = &n
	return u
}

// WithError sets ErrorMessage
func (u BankUpdate) WithError(msg string) BankUpdate {
	u.ErrorMessage = &msg
	return u
}

// BankLedger keeps bank entries keyed by bank name while preserving insertion
// order. It serializes as an ordered JSON array.
type BankLedger struct {
	order   []string
	entries map[string]*BankEntry
}

// Update finds or creates the bank entry and applies status and the supplied fields.
func (l *BankLedger) Update(bankName string, status BankStatus, update BankUpdate, now time.Time) {
	if l.entries == nil {
		l.entries = make(map[string]*BankEntry)
	}
	entry, ok := l.entries[bankName]
	if !ok {
		entry = &BankEntry{BankName: bankName, Status: BankPending}
		l.entries[bankName] = entry
		l.order = append(l.order, bankName)
	}

	previous := entry.Status
	entry.Status = status

	if update.DocumentsRequested != nil {
		entry.DocumentsRequested = *update.DocumentsRequested
	}
	if update.DocumentsGenerated != nil {
		entry.DocumentsGenerated = *update.DocumentsGenerated
	}
	if update.ErrorMessage != nil {
		entry.ErrorMessage = *update.ErrorMessage
	}

	if status == BankProcessing && entry.StartedAt == nil {
		started := now
		entry.StartedAt = &started
	}
	if (status == BankCompleted || status == BankFailed) && (previous != status || entry.CompletedAt == nil) {
		completed := now
		entry.CompletedAt = &completed
	}
}

// Get returns a copy of the bank entry
func (l BankLedger) Get(bankName string) (BankEntry, bool) {
	entry, ok := l.entries[bankName]
	if !ok {
		return BankEntry{}, false
	}
	return *entry, true
}

// List returns copies of all entries in insertion order
func (l BankLedger) List() []BankEntry {
	entries := make([]BankEntry, 0, len(l.order))
	for _, name := range l.order {
		entries = append(entries, *l.entries[name])
	}
	return entries
}

// Len returns the number of banks referenced so far
func (l BankLedger) Len() int {
	return len(l.order)
}

// MarshalJSON implements json.Marshaler
func (l BankLedger) MarshalJSON() ([]byte, error) {
	return json.Marshal(l.List())
}

// UnmarshalJSON implements json.Unmarshaler
func (l *BankLedger) UnmarshalJSON(data []byte) error {
	var entries []BankEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return err
	}
	l.order = nil
	l.entries = make(map[string]*BankEntry, len(entries))
	for i := range entries {
		entry := entries[i]
		if _, dup := l.entries[entry.BankName]; !dup {
			l.order = append(l.order, entry.BankName)
		}
		l.entries[entry.BankName] = &entry
	}
	return nil
}
