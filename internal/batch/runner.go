package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// Limits applied to caller-supplied sizes.
const (
	DefaultJobLimit     = 100
	MaxJobLimit         = 200
	DefaultExecuteSteps = 20
	MaxExecuteSteps     = 50
	DefaultRunOnceSteps = 1
	MaxRunOnceSteps     = 20
	MaxCompletions      = 20
	MaxTaskErrorLength  = 500
	summaryTaskLimit    = 100
)

// Config tunes claim and reclamation behavior.
type Config struct {
	// StaleAfter is how long a RUNNING task may go without completing before
	// its claim is considered abandoned.
	StaleAfter time.Duration
	// MaxAttempts caps stale reclamation; zero means unbounded.
	MaxAttempts int
	// ClaimRetries bounds how many lost claim races one ClaimNext tolerates.
	ClaimRetries int
	// ExecuteEnabled gates Execute.
	ExecuteEnabled bool
}

// DefaultConfig returns the runner defaults.
func DefaultConfig() Config {
	return Config{
		StaleAfter:   15 * time.Minute,
		ClaimRetries: 5,
	}
}

// Artifacts are the generated documents for one job.
type Artifacts struct {
	ResumePDFURL *string
	CoverPDFURL  *string
}

// ArtifactBuilder generates the application artifacts for a job.
type ArtifactBuilder interface {
	Build(ctx context.Context, userID uuid.UUID, job *domain.Job) (*Artifacts, error)
}

// Metrics observes runner activity. Implementations must be safe for
// concurrent use.
type Metrics interface {
	ClaimAttempt(won bool)
	Reclaimed(res store.ReclaimResult)
	Step(outcome Outcome)
}

type nopMetrics struct{}

func (nopMetrics) ClaimAttempt(bool)             {}
func (nopMetrics) Reclaimed(store.ReclaimResult) {}
func (nopMetrics) Step(Outcome)                  {}

// Runner drives application batches. It keeps no state between calls: every
// transition is a conditional update in the BatchStore, so any number of
// Runners may share one store.
type Runner struct {
	store   store.BatchStore
	jobs    store.JobStore
	apps    store.ApplicationStore
	builder ArtifactBuilder
	events  events.EventEmitter
	metrics Metrics
	cfg     Config
	now     func() time.Time
	logger  *slog.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithEmitter publishes lifecycle events to emitter.
func WithEmitter(emitter events.EventEmitter) Option {
	return func(r *Runner) { r.events = emitter }
}

// WithMetrics records runner activity.
func WithMetrics(m Metrics) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(r *Runner) { r.now = now }
}

// WithLogger sets the fallback logger used when the context carries none.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// NewRunner creates a Runner. Zero config values fall back to DefaultConfig.
func NewRunner(
	batchStore store.BatchStore,
	jobStore store.JobStore,
	appStore store.ApplicationStore,
	builder ArtifactBuilder,
	cfg Config,
	opts ...Option,
) *Runner {
	if batchStore == nil || jobStore == nil || appStore == nil {
		panic("batch runner requires batch, job and application stores")
	}
	def := DefaultConfig()
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = def.StaleAfter
	}
	if cfg.ClaimRetries <= 0 {
		cfg.ClaimRetries = def.ClaimRetries
	}
	if cfg.MaxAttempts < 0 {
		cfg.MaxAttempts = 0
	}

	r := &Runner{
		store:   batchStore,
		jobs:    jobStore,
		apps:    appStore,
		builder: builder,
		events:  events.NopEmitter{},
		metrics: nopMetrics{},
		cfg:     cfg,
		now:     time.Now,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "batch_runner")
	return r
}

// Config returns the effective runner configuration.
func (r *Runner) Config() Config {
	return r.cfg
}

func (r *Runner) clock() time.Time {
	return r.now().UTC()
}

func (r *Runner) log(ctx context.Context) *slog.Logger {
	return logger.FromContextOrDefault(ctx, r.logger)
}

func (r *Runner) emit(ctx context.Context, eventType string, payload events.BatchEvent) {
	event, err := events.NewEvent(eventType, payload)
	if err == nil {
		err = r.events.EmitEvent(ctx, event)
	}
	if err != nil {
		r.log(ctx).Warn("failed to emit batch event",
			"event_type", eventType,
			"batch_id", payload.BatchID,
			"error", err)
	}
}

func clamp(v, def, lo, hi int) int {
	if v == 0 {
		return def
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
