package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"path"
	"sort"
	"time"

	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/phrazzld/jobtrail-api/internal/platform/postgres/migrations"
	"github.com/pressly/goose/v3"
)

const (
	// migrationTableName is shared with the test database helpers.
	migrationTableName = "schema_migrations"
	// migrationsSourceDir is where -migrate=create writes new files. It must
	// match the directory the migrations package embeds.
	migrationsSourceDir = "internal/platform/postgres/migrations"
)

var errNoMigrationOperation = errors.New("no migration operation specified")

// slogGooseLogger adapts the goose logger interface to slog.
type slogGooseLogger struct {
	logger *slog.Logger
}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, v...))
}

// Fatalf logs at error level and does not exit; the error reaches main.
func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, v...))
}

// handleMigrations dispatches the migration flags of main.
func handleMigrations(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	command string,
	name string,
	verbose bool,
	validateOnly bool,
) error {
	migrationLogger := logger.With("component", "migrations")

	if command == "create" {
		if name == "" {
			return errors.New("migration name is required for create (use -name)")
		}
		goose.SetLogger(&slogGooseLogger{logger: migrationLogger})
		goose.SetBaseFS(nil)
		return goose.Create(nil, migrationsSourceDir, name, "sql")
	}
	if command == "" && !validateOnly {
		return errNoMigrationOperation
	}

	db, err := setupAppDatabase(ctx, cfg, migrationLogger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			migrationLogger.Warn("Failed to close database", "error", cerr)
		}
	}()

	if validateOnly {
		return verifyAppliedMigrations(ctx, db, migrations.FS, migrationLogger)
	}
	return runMigrations(ctx, db, command, verbose, migrationLogger)
}

// runMigrations executes a goose command against the embedded migrations.
func runMigrations(ctx context.Context, db *sql.DB, command string, verbose bool, logger *slog.Logger) error {
	goose.SetLogger(&slogGooseLogger{logger: logger})
	goose.SetVerbose(verbose)
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(migrationTableName)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}

	start := time.Now()
	logger.Info("Starting migration command", "command", command)
	if err := goose.RunContext(ctx, command, db, "."); err != nil {
		return fmt.Errorf("migration command %q failed: %w", command, err)
	}
	logger.Info("Migration command completed",
		"command", command,
		"duration_ms", time.Since(start).Milliseconds())
	return nil
}

// embeddedVersions lists the versions of the SQL files in fsys, ascending.
func embeddedVersions(fsys fs.FS) ([]int64, error) {
	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return nil, fmt.Errorf("failed to read migrations: %w", err)
	}
	versions := make([]int64, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || path.Ext(e.Name()) != ".sql" {
			continue
		}
		v, err := goose.NumericComponent(e.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid migration file %s: %w", e.Name(), err)
		}
		versions = append(versions, v)
	}
	sort.Slice(versions, func(i, j int) bool { return versions[i] < versions[j] })
	return versions, nil
}

// verifyAppliedMigrations checks that every embedded migration is recorded
// as applied in the goose version table.
func verifyAppliedMigrations(ctx context.Context, db *sql.DB, fsys fs.FS, logger *slog.Logger) error {
	expected, err := embeddedVersions(fsys)
	if err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx,
		fmt.Sprintf("SELECT version_id, is_applied FROM %s ORDER BY id", migrationTableName))
	if err != nil {
		return fmt.Errorf("failed to query migration history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	// goose records down migrations as rows with is_applied false; the
	// latest row per version wins.
	applied := make(map[int64]bool)
	for rows.Next() {
		var version int64
		var isApplied bool
		if err := rows.Scan(&version, &isApplied); err != nil {
			return fmt.Errorf("failed to scan migration row: %w", err)
		}
		if version == 0 {
			continue
		}
		applied[version] = isApplied
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error while iterating migration rows: %w", err)
	}

	var missing []int64
	for _, v := range expected {
		if !applied[v] {
			missing = append(missing, v)
		}
	}
	if len(missing) > 0 {
		logger.Error("Migrations not applied", "missing", missing, "expected", len(expected))
		return fmt.Errorf("%d of %d migrations not applied: %v", len(missing), len(expected), missing)
	}

	logger.Info("All migrations applied", "count", len(expected))
	return nil
}

// maskDatabaseURL hides the password of a database URL for logging.
func maskDatabaseURL(dbURL string) string {
	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "invalid-url"
	}
	if parsed.User != nil {
		if _, ok := parsed.User.Password(); ok {
			parsed.User = url.UserPassword(parsed.User.Username(), "****")
		}
	}
	return parsed.String()
}
