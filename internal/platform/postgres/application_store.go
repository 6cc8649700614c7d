package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// PostgresApplicationStore implements store.ApplicationStore on PostgreSQL.
type PostgresApplicationStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresApplicationStore creates an application store.
// If logger is nil, a default logger will be used.
func NewPostgresApplicationStore(db store.DBTX, logger *slog.Logger) *PostgresApplicationStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresApplicationStore{
		db:     db,
		logger: logger.With(slog.String("component", "application_store")),
	}
}

var _ store.ApplicationStore = (*PostgresApplicationStore)(nil)

// UpsertArtifacts implements store.ApplicationStore.UpsertArtifacts.
// A nil URL keeps the stored value.
func (s *PostgresApplicationStore) UpsertArtifacts(ctx context.Context, app *domain.Application) error {
	if app.ID == uuid.Nil {
		app.ID = uuid.New()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO applications (id, user_id, job_id, resume_pdf_url, cover_pdf_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (user_id, job_id) DO UPDATE
		SET resume_pdf_url = COALESCE(EXCLUDED.resume_pdf_url, applications.resume_pdf_url),
		    cover_pdf_url = COALESCE(EXCLUDED.cover_pdf_url, applications.cover_pdf_url),
		    updated_at = EXCLUDED.updated_at`,
		app.ID, app.UserID, app.JobID, app.ResumePDFURL, app.CoverPDFURL, app.UpdatedAt)
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to upsert application",
			slog.String("error", err.Error()),
			slog.String("job_id", app.JobID.String()))
		return fmt.Errorf("failed to upsert application: %w", MapError(err))
	}
	return nil
}

// ListByJobIDs implements store.ApplicationStore.ListByJobIDs.
func (s *PostgresApplicationStore) ListByJobIDs(
	ctx context.Context,
	userID uuid.UUID,
	jobIDs []uuid.UUID,
) ([]*domain.Application, error) {
	if len(jobIDs) == 0 {
		return nil, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, job_id, resume_pdf_url, cover_pdf_url, created_at, updated_at
		FROM applications
		WHERE user_id = $1 AND job_id = ANY($2::uuid[])`,
		userID, uuidStrings(jobIDs))
	if err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var apps []*domain.Application
	for rows.Next() {
		var (
			a      domain.Application
			resume sql.NullString
			cover  sql.NullString
		)
		if err := rows.Scan(&a.ID, &a.UserID, &a.JobID, &resume, &cover, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan application: %w", err)
		}
		a.ResumePDFURL = nullStringPtr(resume)
		a.CoverPDFURL = nullStringPtr(cover)
		apps = append(apps, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating applications: %w", err)
	}
	return apps, nil
}
