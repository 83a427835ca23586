package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/loanvault/document-consent-api/internal/middleware"
	"github.com/loanvault/document-consent-api/internal/notification"
	"github.com/loanvault/document-consent-api/internal/router"
	"github.com/loanvault/document-consent-api/internal/scheduler"
	"github.com/loanvault/document-consent-api/internal/service"
	"github.com/loanvault/document-consent-api/internal/worker"
)

const (
	jobTimeout        = 30 * time.Second
	limiterIdleWindow = 10 * time.Minute
	limiterPruneSpec  = "@every 5m"
	dbStatsSpec       = "@every 1m"
)

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API, generation worker and housekeeping scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap(*configPath)
			if err != nil {
				return err
			}
			defer a.close()
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(parent context.Context) error {
	cfg := a.cfg
	logger := a.logger
	mode := cfg.RuntimeMode()
	notifier := notification.NewLogNotifier(logger)

	generator := worker.NewDocumentGenerationWorker(
		a.stores.Batches,
		a.stores.Documents,
		notifier,
		mode,
		worker.GenerationSettings{DocumentTTL: cfg.Batch.DocumentTTL, MaxDownloads: cfg.Batch.MaxDownloads},
		logger,
	)
	dispatcher := worker.NewDispatcher(generator, worker.DispatcherConfig{
		QueueSize:   cfg.Worker.QueueSize,
		Concurrency: cfg.Worker.Concurrency,
		StartDelay:  cfg.Batch.WorkerStartDelay,
	}, logger)

	batchService := service.NewBatchService(
		a.stores.Batches,
		a.checker,
		service.NewOTPVerifier(mode, cfg.Batch.OTPTTL, cfg.Batch.OTPMaxAttempts),
		notifier,
		dispatcher,
		mode,
		service.BatchSettings{ConsentTTL: cfg.Batch.ConsentTTL, EstimatedProcessing: cfg.Batch.EstimatedProcessing},
		logger,
	)
	documentService := service.NewDocumentService(a.stores.Documents, a.stores.Batches, logger)
	limiter := middleware.NewRateLimiter(cfg.RateLimit.OTPRequestsPerSecond, cfg.RateLimit.OTPBurst)

	sched, err := a.newScheduler(limiter)
	if err != nil {
		return err
	}

	ginRouter := router.SetupRouter(router.Dependencies{
		BatchService:    batchService,
		DocumentService: documentService,
		OTPLimiter:      limiter,
		HealthCheck:     a.stores.HealthCheck,
		Logger:          logger,
	})

	server := &http.Server{
		Addr:           cfg.Server.GetServerAddress(),
		Handler:        ginRouter,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Stopped explicitly once the HTTP server has drained
	dispatcher.Start(parent)
	if _, err := dispatcher.Resume(parent, a.stores.Batches); err != nil {
		logger.WithError(err).Error("Failed to resume interrupted generation tasks")
	}
	if sched != nil {
		sched.Start()
	}

	serverErr := make(chan error, 1)
	go func() {
		logger.WithField("address", server.Addr).Info("Starting HTTP server...")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		if err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if sched != nil {
				sched.Stop(stopCtx)
			}
			dispatcher.Stop(stopCtx)
			return fmt.Errorf("http server failed: %w", err)
		}
	case <-ctx.Done():
	}

	logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}
	if sched != nil {
		sched.Stop(shutdownCtx)
	}
	dispatcher.Stop(shutdownCtx)

	logger.Info("Server exited gracefully")
	return nil
}

// newScheduler registers the housekeeping jobs. It returns nil when the
// scheduler is disabled.
func (a *app) newScheduler(limiter *middleware.RateLimiter) (*scheduler.Scheduler, error) {
	if !a.cfg.Scheduler.Enabled {
		a.logger.Info("Scheduler disabled; expired records are kept until the cleanup command runs")
		return nil, nil
	}

	sched := scheduler.New(a.logger, jobTimeout)
	cleanup := service.NewCleanupService(a.stores.Batches, a.stores.Documents, a.logger)

	if err := sched.Register("expiry-sweep", a.cfg.Scheduler.CleanupSpec, func(ctx context.Context) error {
		_, err := cleanup.Sweep(ctx)
		return err
	}); err != nil {
		return nil, err
	}

	if err := sched.Register("rate-limiter-prune", limiterPruneSpec, func(context.Context) error {
		if n := limiter.Prune(limiterIdleWindow); n > 0 {
			a.logger.WithField("visitors", n).Debug("Pruned idle rate limiter entries")
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if a.stores.LogStats != nil {
		if err := sched.Register("db-stats", dbStatsSpec, func(context.Context) error {
			a.stores.LogStats()
			return nil
		}); err != nil {
			return nil, err
		}
	}

	a.logger.WithFields(logrus.Fields{
		"cleanup_spec": a.cfg.Scheduler.CleanupSpec,
	}).Info("Scheduler configured")
	return sched, nil
}
