package scheduler

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScheduler_Register(t *testing.T) {
	logger, _ := test.NewNullLogger()

	tests := []struct {
		name    string
		spec    string
		wantErr bool
	}{
		{name: "every interval", spec: "@every 1m"},
		{name: "five field cron", spec: "*/5 * * * *"},
		{name: "garbage", spec: "whenever", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := New(logger, time.Second)
			err := s.Register("cleanup", tt.spec, func(context.Context) error { return nil })
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestScheduler_RunNow(t *testing.T) {
	logger, hook := test.NewNullLogger()
	s := New(logger, time.Second)

	var deadlineSet bool
	calls := 0
	require.NoError(t, s.Register("cleanup", "@every 1h", func(ctx context.Context) error {
		calls++
		_, deadlineSet = ctx.Deadline()
		return errors.New("store unavailable")
	}))

	require.NoError(t, s.RunNow("cleanup"))

	assert.Equal(t, 1, calls)
	assert.True(t, deadlineSet)
	entry := hook.LastEntry()
	require.NotNil(t, entry)
	assert.Equal(t, logrus.ErrorLevel, entry.Level)
	assert.Equal(t, "cleanup", entry.Data["job"])

	assert.Error(t, s.RunNow("missing"))
}

func TestScheduler_RunNowRecoversPanic(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := New(logger, 0)
	require.NoError(t, s.Register("boom", "@every 1h", func(context.Context) error { panic("boom") }))

	assert.NotPanics(t, func() { _ = s.RunNow("boom") })
}

func TestScheduler_StartStop(t *testing.T) {
	logger, _ := test.NewNullLogger()
	s := New(logger, 0)
	require.NoError(t, s.Register("noop", "@every 1h", func(context.Context) error { return nil }))

	s.Start()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}
