package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/loanvault/document-consent-api/internal/dao"
	"github.com/loanvault/document-consent-api/internal/models"
)

// Dispatcher errors
var (
	ErrAlreadyInFlight   = errors.New("generation already queued or running for batch")
	ErrQueueFull         = errors.New("generation queue is full")
	ErrDispatcherStopped = errors.New("dispatcher is stopped")
)

// Processor runs the generation task for one batch
type Processor interface {
	Process(ctx context.Context, batchID string) error
}

// DispatcherConfig sizes the dispatcher
type DispatcherConfig struct {
	QueueSize   int
	Concurrency int
	StartDelay  time.Duration
}

// Dispatcher runs generation tasks on a fixed set of goroutines. A batch ID
// stays in flight from Enqueue until its task returns, and is refused while
// in flight.
type Dispatcher struct {
	processor Processor
	cfg       DispatcherConfig
	logger    *logrus.Logger
	queue     chan string
	quit      chan struct{}

	mu       sync.Mutex
	inFlight map[string]struct{}
	stopped  bool
	cancel   context.CancelFunc
	group    *errgroup.Group
}

// NewDispatcher creates a Dispatcher
func NewDispatcher(processor Processor, cfg DispatcherConfig, logger *logrus.Logger) *Dispatcher {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 100
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Dispatcher{
		processor: processor,
		cfg:       cfg,
		logger:    logger,
		queue:     make(chan string, cfg.QueueSize),
		quit:      make(chan struct{}),
		inFlight:  make(map[string]struct{}),
	}
}

// Enqueue schedules generation for batchID without blocking
func (d *Dispatcher) Enqueue(batchID string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return ErrDispatcherStopped
	}
	if _, busy := d.inFlight[batchID]; busy {
		return ErrAlreadyInFlight
	}

	select {
	case d.queue <- batchID:
		d.inFlight[batchID] = struct{}{}
		d.logger.WithField("batchId", batchID).Debug("Generation task queued")
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker goroutines. Running tasks see ctx; Stop does not
// cancel it unless its own deadline passes first.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.group != nil || d.stopped {
		return
	}

	taskCtx, cancel := context.WithCancel(ctx)
	group, groupCtx := errgroup.WithContext(taskCtx)
	d.cancel = cancel
	d.group = group

	for i := 0; i < d.cfg.Concurrency; i++ {
		group.Go(func() error {
			d.run(groupCtx)
			return nil
		})
	}

	d.logger.WithFields(logrus.Fields{
		"concurrency": d.cfg.Concurrency,
		"queueSize":   d.cfg.QueueSize,
		"startDelay":  d.cfg.StartDelay,
	}).Info("Document generation dispatcher started")
}

// Resume re-enqueues batches left processing by an earlier run
func (d *Dispatcher) Resume(ctx context.Context, batches dao.BatchStore) (int, error) {
	processing, err := batches.ListByStatus(ctx, models.BatchProcessing)
	if err != nil {
		return 0, fmt.Errorf("failed to load processing batches: %w", err)
	}

	resumed := 0
	for _, batch := range processing {
		err := d.Enqueue(batch.BatchID)
		switch {
		case err == nil:
			resumed++
		case errors.Is(err, ErrAlreadyInFlight):
		default:
			d.logger.WithError(err).WithField("batchId", batch.BatchID).Warn("Failed to resume generation task")
		}
	}

	if resumed > 0 {
		d.logger.WithField("resumed", resumed).Info("Resumed interrupted generation tasks")
	}
	return resumed, nil
}

// Stop refuses new tasks and waits for running ones to finish. Queued tasks
// that have not started are dropped and their batches stay processing. If ctx
// ends first, running tasks are cancelled and Stop waits for them to return.
func (d *Dispatcher) Stop(ctx context.Context) {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	close(d.quit)
	cancel, group := d.cancel, d.group
	d.mu.Unlock()

	if group == nil {
		return
	}

	done := make(chan struct{})
	go func() {
		_ = group.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		d.logger.Warn("Dispatcher stop deadline reached; interrupting running generation tasks")
		cancel()
		<-done
	}
	cancel()

	d.logger.WithField("pending", len(d.queue)).Info("Document generation dispatcher stopped")
}

// InFlight reports whether batchID is queued or running
func (d *Dispatcher) InFlight(batchID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.inFlight[batchID]
	return ok
}

func (d *Dispatcher) run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-d.quit:
			return
		case batchID := <-d.queue:
			if d.stopping() {
				d.release(batchID)
				return
			}
			d.handle(ctx, batchID)
		}
	}
}

func (d *Dispatcher) stopping() bool {
	select {
	case <-d.quit:
		return true
	default:
		return false
	}
}

func (d *Dispatcher) handle(ctx context.Context, batchID string) {
	defer d.release(batchID)

	if !d.wait(ctx, d.cfg.StartDelay) {
		return
	}

	if err := d.processor.Process(ctx, batchID); err != nil {
		d.logger.WithError(err).WithField("batchId", batchID).Error("Generation task failed")
	}
}

// wait sleeps for delay and reports false if the dispatcher stopped meanwhile
func (d *Dispatcher) wait(ctx context.Context, delay time.Duration) bool {
	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-d.quit:
		return false
	case <-timer.C:
		return true
	}
}

func (d *Dispatcher) release(batchID string) {
	d.mu.Lock()
	delete(d.inFlight, batchID)
	d.mu.Unlock()
}
