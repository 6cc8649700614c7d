// Package main implements the entry point for the jobtrail API server, which
// runs batches of tailored job applications for its users.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"os"

	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
)

func main() {
	migrateCmd := flag.String("migrate", "", "Run database migrations (up|down|status|version|create|reset)")
	migrationName := flag.String("name", "", "Name for the new migration file (used with -migrate=create)")
	verbose := flag.Bool("verbose", false, "Enable verbose logging for migrations")
	validateMigrations := flag.Bool("validate-migrations", false, "Check that every embedded migration has been applied")
	flag.Parse()

	cfg, l, err := initializeApp()
	if err != nil {
		// The structured logger may not exist yet.
		log.Fatalf("Failed to initialize application: %v", err)
	}

	if *migrateCmd != "" || *validateMigrations {
		if err := handleMigrations(context.Background(), cfg, l, *migrateCmd, *migrationName, *verbose, *validateMigrations); err != nil {
			l.Error("Migration failed", "error", err)
			os.Exit(1)
		}
		return
	}

	if err := run(context.Background(), cfg, l); err != nil {
		l.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

// initializeApp loads configuration and sets up structured logging.
func initializeApp() (*config.Config, *slog.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	l, err := logger.Setup(cfg.Server)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to set up logger: %w", err)
	}

	l.Info("Server configuration loaded",
		"port", cfg.Server.Port,
		"log_level", cfg.Server.LogLevel,
		"execute_enabled", cfg.Batch.ExecuteEnabled,
		"worker_enabled", cfg.Worker.Enabled)
	l.Debug("Optional integrations",
		"gemini_configured", cfg.LLM.GeminiAPIKey != "",
		"latex_configured", cfg.Artifacts.LatexURL != "",
		"redis_configured", cfg.Redis.URL != "",
		"worker_secret_configured", cfg.Batch.WorkerSecret != "")

	return cfg, l, nil
}

// run opens the database, wires the application and serves until shutdown.
func run(ctx context.Context, cfg *config.Config, l *slog.Logger) error {
	db, err := setupAppDatabase(ctx, cfg, l)
	if err != nil {
		return err
	}

	app, err := newApplication(ctx, cfg, l, db)
	if err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	return app.Run(ctx)
}
