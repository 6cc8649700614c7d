package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// Stepper performs one step on whichever batch has outstanding work.
type Stepper interface {
	RunNextAvailableStep(ctx context.Context) (*batch.StepResult, error)
}

// Sweeper reclaims abandoned claims across all batches.
type Sweeper interface {
	ReclaimAllStale(ctx context.Context) (store.ReclaimResult, error)
}

// WakeSource lets idle workers block until new work is signalled.
type WakeSource interface {
	// Wait reports whether a signal arrived before timeout elapsed.
	Wait(ctx context.Context, timeout time.Duration) (bool, error)
}

// Config holds configuration for the dispatcher
type Config struct {
	// WorkerCount determines how many goroutines step batches concurrently
	WorkerCount int

	// PollInterval is how long an idle worker waits before looking again
	PollInterval time.Duration

	// SweepInterval defines how often abandoned claims are reclaimed.
	// Ignored without a Sweeper.
	SweepInterval time.Duration

	// MaxStepsPerPoll bounds how many steps a worker runs before yielding
	MaxStepsPerPoll int
}

// DefaultConfig returns a Config with reasonable defaults
func DefaultConfig() Config {
	return Config{
		WorkerCount:     2,
		PollInterval:    5 * time.Second,
		SweepInterval:   time.Minute,
		MaxStepsPerPoll: 20,
	}
}

// Dispatcher drives batches in the background by calling a Stepper from a
// pool of workers, plus an optional periodic stale sweep.
type Dispatcher struct {
	stepper Stepper
	sweeper Sweeper
	wake    WakeSource
	config  Config
	logger  *slog.Logger

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
	running bool
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithSweeper enables the periodic stale sweep.
func WithSweeper(s Sweeper) Option {
	return func(d *Dispatcher) { d.sweeper = s }
}

// WithWakeSource lets idle workers wake early on new work.
func WithWakeSource(w WakeSource) Option {
	return func(d *Dispatcher) { d.wake = w }
}

// NewDispatcher creates a dispatcher. Zero config fields take the defaults.
func NewDispatcher(stepper Stepper, config Config, logger *slog.Logger, opts ...Option) *Dispatcher {
	def := DefaultConfig()
	if config.WorkerCount <= 0 {
		config.WorkerCount = def.WorkerCount
	}
	if config.PollInterval <= 0 {
		config.PollInterval = def.PollInterval
	}
	if config.SweepInterval <= 0 {
		config.SweepInterval = def.SweepInterval
	}
	if config.MaxStepsPerPoll <= 0 {
		config.MaxStepsPerPoll = def.MaxStepsPerPoll
	}
	if logger == nil {
		logger = slog.Default()
	}

	d := &Dispatcher{
		stepper: stepper,
		config:  config,
		logger:  logger.With("component", "batch_dispatcher"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Start reclaims stale claims once, then launches the workers and the sweep.
// Calling Start on a running dispatcher is a no-op.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.running {
		return
	}

	d.ctx, d.cancel = context.WithCancel(ctx)
	d.running = true

	if d.sweeper != nil {
		d.sweep()
	}

	for i := 0; i < d.config.WorkerCount; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	if d.sweeper != nil {
		d.wg.Add(1)
		go d.sweepLoop()
	}

	d.logger.Info("dispatcher started",
		"workers", d.config.WorkerCount,
		"poll_interval", d.config.PollInterval,
		"sweep", d.sweeper != nil,
		"wake_source", d.wake != nil)
}

// Stop cancels the workers and waits for in-flight steps to return.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.running {
		d.mu.Unlock()
		return
	}
	d.cancel()
	d.running = false
	d.mu.Unlock()

	d.wg.Wait()
	d.logger.Info("dispatcher stopped")
}

// worker alternates between draining available work and waiting.
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()

	logger := d.logger.With("worker_id", id)
	logger.Debug("starting worker")

	for {
		if d.ctx.Err() != nil {
			logger.Debug("stopping worker")
			return
		}

		if d.drain(logger) {
			continue
		}
		d.idle(logger)
	}
}

// drain steps until nothing is left or the per-poll bound is reached. It
// reports whether the bound was hit while work was still being processed.
func (d *Dispatcher) drain(logger *slog.Logger) bool {
	processed := false
	for steps := 0; steps < d.config.MaxStepsPerPoll; steps++ {
		res, err := d.stepper.RunNextAvailableStep(d.ctx)
		if err != nil {
			if d.ctx.Err() == nil {
				logger.Error("step failed", "error", err)
			}
			return false
		}

		switch res.Outcome {
		case batch.OutcomeProcessed:
			processed = true
			logger.Debug("step processed",
				"batch_id", res.BatchID,
				"batch_status", res.BatchStatus)
		case batch.OutcomeDone:
			// The batch was finalized; another may be runnable.
			processed = false
			logger.Debug("batch finalized", "batch_id", res.BatchID, "batch_status", res.BatchStatus)
		default:
			return false
		}
	}
	return processed
}

// idle waits for a wake signal or the poll interval, whichever comes first.
func (d *Dispatcher) idle(logger *slog.Logger) {
	if d.wake != nil {
		_, err := d.wake.Wait(d.ctx, d.config.PollInterval)
		if err == nil || d.ctx.Err() != nil {
			return
		}
		logger.Warn("wake source failed, falling back to polling", "error", err)
	}

	timer := time.NewTimer(d.config.PollInterval)
	defer timer.Stop()
	select {
	case <-d.ctx.Done():
	case <-timer.C:
	}
}

// sweepLoop periodically resets tasks whose claims went stale.
func (d *Dispatcher) sweepLoop() {
	defer d.wg.Done()

	ticker := time.NewTicker(d.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.ctx.Done():
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *Dispatcher) sweep() {
	res, err := d.sweeper.ReclaimAllStale(d.ctx)
	if err != nil {
		if d.ctx.Err() == nil {
			d.logger.Error("stale sweep failed", "error", err)
		}
		return
	}
	if res.Reset > 0 || res.Exhausted > 0 {
		d.logger.Info("reclaimed stale tasks", "reset", res.Reset, "exhausted", res.Exhausted)
	}
}
