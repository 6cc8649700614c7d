package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/phrazzld/jobtrail-api/internal/generation"
	"github.com/phrazzld/jobtrail-api/internal/platform/gemini"
	"github.com/phrazzld/jobtrail-api/internal/platform/latex"
	"github.com/phrazzld/jobtrail-api/internal/platform/metrics"
	"github.com/phrazzld/jobtrail-api/internal/platform/postgres"
	"github.com/phrazzld/jobtrail-api/internal/platform/redisq"
	"github.com/phrazzld/jobtrail-api/internal/service/auth"
	"github.com/phrazzld/jobtrail-api/internal/store"
	"github.com/phrazzld/jobtrail-api/internal/worker"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// stores groups the persistence dependencies of the runner.
type stores struct {
	batches store.BatchStore
	jobs    store.JobStore
	apps    store.ApplicationStore
}

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	registry *prometheus.Registry
	metrics  *metrics.Metrics

	jwtService     auth.JWTService
	workerVerifier auth.SecretVerifier

	emitter    *events.InMemoryEventEmitter
	runner     *batch.Runner
	wake       *redisq.WakeQueue
	dispatcher *worker.Dispatcher
}

// newApplication wires the Postgres stores and the artifact pipeline, then
// assembles the rest of the application around them.
func newApplication(ctx context.Context, cfg *config.Config, logger *slog.Logger, db *sql.DB) (*application, error) {
	st := stores{
		batches: postgres.NewPostgresBatchStore(db, logger),
		jobs:    postgres.NewPostgresJobStore(db, logger),
		apps:    postgres.NewPostgresApplicationStore(db, logger),
	}

	builder, err := newArtifactBuilder(ctx, cfg, logger, st.apps)
	if err != nil {
		return nil, err
	}

	return assembleApplication(cfg, logger, db, st, builder)
}

// newArtifactBuilder connects the optional Gemini and LaTeX integrations.
// Missing configuration leaves the matching dependency nil, so tasks fail
// with an unavailable error instead of blocking startup.
func newArtifactBuilder(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	apps store.ApplicationStore,
) (*generation.Builder, error) {
	var tailor generation.Tailor
	if cfg.LLM.GeminiAPIKey != "" {
		t, err := gemini.NewTailor(ctx, logger.With("component", "gemini_tailor"), cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize Gemini tailor: %w", err)
		}
		tailor = t
		logger.Info("Gemini tailor initialized", "model", cfg.LLM.ModelName)
	} else {
		logger.Warn("Gemini API key not configured; artifact builds will fail")
	}

	var compiler generation.Compiler
	if cfg.Artifacts.LatexURL != "" {
		compiler = latex.NewClient(cfg.Artifacts.LatexURL, cfg.Artifacts.LatexToken,
			cfg.Artifacts.RequestTimeout(), logger)
		logger.Info("LaTeX renderer configured")
	} else {
		logger.Warn("LaTeX renderer not configured; artifact builds will fail")
	}

	return generation.NewBuilder(tailor, compiler, apps, logger), nil
}

// assembleApplication builds everything that does not depend on the
// concrete store or builder implementations.
func assembleApplication(
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	st stores,
	builder batch.ArtifactBuilder,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	app.jwtService, err = auth.NewJWTService(cfg.Auth)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
	}
	app.workerVerifier = auth.NewWorkerSecretVerifier(cfg.Batch.WorkerSecret)
	if cfg.Batch.WorkerSecret == "" {
		logger.Warn("Worker secret not configured; the worker route will reject every call")
	}

	app.registry = prometheus.NewRegistry()
	app.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	app.metrics = metrics.New(app.registry)

	app.emitter = events.NewInMemoryEventEmitter(logger)
	app.emitter.RegisterHandler(app.metrics)

	if cfg.Redis.URL != "" {
		app.wake, err = redisq.NewFromURL(cfg.Redis.URL, cfg.Redis.Key, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to configure redis wake queue: %w", err)
		}
		app.emitter.RegisterHandler(app.wake)
		logger.Info("Redis wake queue configured", "key", app.wake.Key())
	}

	app.runner = batch.NewRunner(st.batches, st.jobs, st.apps, builder,
		batch.Config{
			StaleAfter:     cfg.Batch.StaleAfter(),
			MaxAttempts:    cfg.Batch.MaxAttempts,
			ClaimRetries:   cfg.Batch.ClaimRetries,
			ExecuteEnabled: cfg.Batch.ExecuteEnabled,
		},
		batch.WithLogger(logger),
		batch.WithMetrics(app.metrics),
		batch.WithEmitter(app.emitter),
	)

	if cfg.Worker.Enabled {
		opts := []worker.Option{worker.WithSweeper(app.runner)}
		if app.wake != nil {
			opts = append(opts, worker.WithWakeSource(app.wake))
		}
		app.dispatcher = worker.NewDispatcher(app.runner, worker.Config{
			WorkerCount:     cfg.Worker.Count,
			PollInterval:    cfg.Worker.PollInterval(),
			SweepInterval:   cfg.Worker.SweepInterval(),
			MaxStepsPerPoll: cfg.Worker.MaxStepsPerPoll,
		}, logger, opts...)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run starts the background dispatcher if enabled and serves HTTP until
// shutdown.
func (app *application) Run(ctx context.Context) error {
	if app.dispatcher != nil {
		app.dispatcher.Start(ctx)
	}

	if err := app.startHTTPServer(ctx, app.setupRouter()); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// cleanup handles graceful shutdown of application resources.
func (app *application) cleanup() {
	if app.dispatcher != nil {
		app.dispatcher.Stop()
	}
	if app.wake != nil {
		if err := app.wake.Close(); err != nil {
			app.logger.Warn("Error closing redis client", "error", err)
		}
	}
	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
