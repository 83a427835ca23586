package models

import (
	"encoding/json"
	"time"
)

// StageName identifies a coarse-grained phase of batch processing
type StageName string

const (
	StageConsentPending      StageName = "CONSENT_PENDING"
	StageOTPVerification     StageName = "OTP_VERIFICATION"
	StageProcessingStarted   StageName = "PROCESSING_STARTED"
	StageFetchingDocuments   StageName = "FETCHING_DOCUMENTS"
	StageGeneratingDocuments StageName = "GENERATING_DOCUMENTS"
	StageCompleted           StageName = "COMPLETED"
)

// BatchStages lists the stages seeded into every new batch, in display order
var BatchStages = []StageName{
	StageConsentPending,
	StageOTPVerification,
	StageProcessingStarted,
	StageFetchingDocuments,
	StageGeneratingDocuments,
	StageCompleted,
}

// StageStatus is the status of a single stage
type StageStatus string

const (
	StagePending    StageStatus = "pending"
	StageInProgress StageStatus = "in_progress"
	StageDone       StageStatus = "completed"
	StageFailed     StageStatus = "failed"
)

// IsTerminal reports whether no further transition is accepted for the stage
func (s StageStatus) IsTerminal() bool {
	return s == StageDone || s == StageFailed
}

// Stage is one entry of the progress timeline
type Stage struct {
	StageName   StageName   `json:"stageName"`
	Status      StageStatus `json:"status"`
	StartedAt   *time.Time  `json:"startedAt,omitempty"`
	CompletedAt *time.Time  `json:"completedAt,omitempty"`
	Details     string      `json:"details,omitempty"`
}

// StageTracker keeps stages keyed by name while preserving insertion order.
// It serializes as an ordered JSON array.
type StageTracker struct {
	order   []StageName
	entries map[StageName]*Stage
}

// NewStageTracker seeds the six batch stages with CONSENT_PENDING in progress.
func NewStageTracker(now time.Time) StageTracker {
	var t StageTracker
	for _, name := range BatchStages {
		t.upsert(name)
	}
	t.Update(StageConsentPending, StageInProgress, "", now)
	return t
}

func (t *StageTracker) upsert(name StageName) *Stage {
	if t.entries == nil {
		t.entries = make(map[StageName]*Stage)
	}
	if stage, ok := t.entries[name]; ok {
		return stage
	}
	stage := &Stage{StageName: name, Status: StagePending}
	t.entries[name] = stage
	t.order = append(t.order, name)
	return stage
}

// Update finds or creates the stage and applies the new status.
// A stage already completed or failed is left unchanged and false is returned.
func (t *StageTracker) Update(name StageName, status StageStatus, details string, now time.Time) bool {
	stage := t.upsert(name)
	if stage.Status.IsTerminal() {
		return false
	}

	stage.Status = status
	stage.Details = details

	if status == StageInProgress && stage.StartedAt == nil {
		started := now
		stage.StartedAt = &started
	}
	if status.IsTerminal() {
		completed := now
		stage.CompletedAt = &completed
	}
	return true
}

// Get returns a copy of the named stage
func (t StageTracker) Get(name StageName) (Stage, bool) {
	stage, ok := t.entries[name]
	if !ok {
		return Stage{}, false
	}
	return *stage, true
}

// InProgress returns the names of stages currently in progress, in order
func (t StageTracker) InProgress() []StageName {
	var names []StageName
	for _, name := range t.order {
		if t.entries[name].Status == StageInProgress {
			names = append(names, name)
		}
	}
	return names
}

// List returns copies of all stages in insertion order
func (t StageTracker) List() []Stage {
	stages := make([]Stage, 0, len(t.order))
	for _, name := range t.order {
		stages = append(stages, *t.entries[name])
	}
	return stages
}

// Len returns the number of stages
func (t StageTracker) Len() int {
	return len(t.order)
}

// MarshalJSON implements json.Marshaler
func (t StageTracker) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.List())
}

// UnmarshalJSON implements json.Unmarshaler
func (t *StageTracker) UnmarshalJSON(data []byte) error {
	var stages []Stage
	if err := json.Unmarshal(data, &stages); err != nil {
		return err
	}
	t.order = nil
	t.entries = make(map[StageName]*Stage, len(stages))
	for i := range stages {
		stage := stages[i]
		if _, dup := t.entries[stage.StageName]; !dup {
			t.order = append(t.order, stage.StageName)
		}
		t.entries[stage.StageName] = &stage
	}
	return nil
}
