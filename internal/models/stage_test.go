package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStageTracker(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewStageTracker(now)

	require.Equal(t, len(BatchStages), tracker.Len())
	for i, stage := range tracker.List() {
		assert.Equal(t, BatchStages[i], stage.StageName)
	}

	pending, ok := tracker.Get(StageConsentPending)
	require.True(t, ok)
	assert.Equal(t, StageInProgress, pending.Status)
	require.NotNil(t, pending.StartedAt)
	assert.True(t, pending.StartedAt.Equal(now))
	assert.Equal(t, []StageName{StageConsentPending}, tracker.InProgress())
}

func TestStageTracker_Update(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	later := start.Add(time.Minute)

	tests := []struct {
		name      string
		setup     func(*StageTracker)
		stage     StageName
		status    StageStatus
		wantOK    bool
		wantState StageStatus
	}{
		{
			name:      "pending to in progress",
			stage:     StageOTPVerification,
			status:    StageInProgress,
			wantOK:    true,
			wantState: StageInProgress,
		},
		{
			name:      "in progress to completed",
			stage:     StageConsentPending,
			status:    StageDone,
			wantOK:    true,
			wantState: StageDone,
		},
		{
			name: "completed stage is immutable",
			setup: func(tr *StageTracker) {
				tr.Update(StageConsentPending, StageDone, "", start)
			},
			stage:     StageConsentPending,
			status:    StageFailed,
			wantOK:    false,
			wantState: StageDone,
		},
		{
			name: "failed stage is immutable",
			setup: func(tr *StageTracker) {
				tr.Update(StageFetchingDocuments, StageFailed, "bank down", start)
			},
			stage:     StageFetchingDocuments,
			status:    StageInProgress,
			wantOK:    false,
			wantState: StageFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tracker := NewStageTracker(start)
			if tt.setup != nil {
				tt.setup(&tracker)
			}

			ok := tracker.Update(tt.stage, tt.status, "", later)

			assert.Equal(t, tt.wantOK, ok)
			stage, found := tracker.Get(tt.stage)
			require.True(t, found)
			assert.Equal(t, tt.wantState, stage.Status)
		})
	}
}

func TestStageTracker_Timestamps(t *testing.T) {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	tracker := NewStageTracker(start)

	tracker.Update(StageConsentPending, StageInProgress, "", start.Add(time.Minute))
	tracker.Update(StageConsentPending, StageDone, "verified", start.Add(2*time.Minute))

	stage, _ := tracker.Get(StageConsentPending)
	require.NotNil(t, stage.StartedAt)
	require.NotNil(t, stage.CompletedAt)
	assert.True(t, stage.StartedAt.Equal(start), "startedAt is set once")
	assert.True(t, stage.CompletedAt.Equal(start.Add(2*time.Minute)))
	assert.Equal(t, "verified", stage.Details)
}

func TestStageTracker_UnknownStageAppended(t *testing.T) {
	tracker := NewStageTracker(time.Now())

	assert.True(t, tracker.Update(StageName("MANUAL_REVIEW"), StageInProgress, "", time.Now()))

	stages := tracker.List()
	require.Len(t, stages, len(BatchStages)+1)
	assert.Equal(t, StageName("MANUAL_REVIEW"), stages[len(stages)-1].StageName)
}

func TestStageTracker_JSONKeepsOrder(t *testing.T) {
	tracker := NewStageTracker(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC))

	data, err := json.Marshal(tracker)
	require.NoError(t, err)

	var decoded StageTracker
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, tracker.List(), decoded.List())
	assert.True(t, decoded.Update(StageConsentPending, StageDone, "", time.Now()))
}
