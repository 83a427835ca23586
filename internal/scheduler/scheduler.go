package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// Job is one housekeeping task run on a cron schedule
type Job func(ctx context.Context) error

// Scheduler runs housekeeping jobs. A job still running when its next tick
// arrives is skipped, and a panicking job is logged and recovered.
type Scheduler struct {
	cron    *cron.Cron
	logger  *logrus.Logger
	timeout time.Duration
	entries map[string]cron.EntryID
}

// New creates a Scheduler. Each job run gets a context bounded by timeout.
func New(logger *logrus.Logger, timeout time.Duration) *Scheduler {
	cronLogger := cron.PrintfLogger(logger)
	return &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger),
			cron.SkipIfStillRunning(cronLogger),
		)),
		logger:  logger,
		timeout: timeout,
		entries: make(map[string]cron.EntryID),
	}
}

// Register adds job under name with a cron spec such as "@every 1m"
func (s *Scheduler) Register(name, spec string, job Job) error {
	id, err := s.cron.AddFunc(spec, func() { s.run(name, job) })
	if err != nil {
		return fmt.Errorf("failed to schedule %s: %w", name, err)
	}
	s.entries[name] = id
	s.logger.WithFields(logrus.Fields{"job": name, "spec": spec}).Info("Scheduled job registered")
	return nil
}

// RunNow runs a registered job synchronously through the same wrappers as a tick
func (s *Scheduler) RunNow(name string) error {
	id, ok := s.entries[name]
	if !ok {
		return fmt.Errorf("unknown job %s", name)
	}
	s.cron.Entry(id).WrappedJob.Run()
	return nil
}

// Start begins running jobs in the background
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.WithField("jobs", len(s.entries)).Info("Scheduler started")
}

// Stop stops scheduling and waits for running jobs until ctx is done
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.logger.Info("Scheduler stopped")
	case <-ctx.Done():
		s.logger.Warn("Scheduler stop timed out with jobs still running")
	}
}

func (s *Scheduler) run(name string, job Job) {
	ctx := context.Background()
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	start := time.Now()
	logger := s.logger.WithField("job", name)
	if err := job(ctx); err != nil {
		logger.WithError(err).Error("Scheduled job failed")
		return
	}
	logger.WithField("durationMs", time.Since(start).Milliseconds()).Debug("Scheduled job finished")
}
