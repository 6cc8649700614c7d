package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

const jobColumns = `id, user_id, title, company, job_url, status, description, created_at, updated_at`

// PostgresJobStore implements store.JobStore on PostgreSQL.
type PostgresJobStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresJobStore creates a job store. If logger is nil, a default logger will be used.
func NewPostgresJobStore(db store.DBTX, logger *slog.Logger) *PostgresJobStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &PostgresJobStore{
		db:     db,
		logger: logger.With(slog.String("component", "job_store")),
	}
}

var _ store.JobStore = (*PostgresJobStore)(nil)

// ListEligibleJobs implements store.JobStore.ListEligibleJobs.
func (s *PostgresJobStore) ListEligibleJobs(ctx context.Context, q store.JobQuery) ([]*domain.Job, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if len(q.JobIDs) > 0 {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM jobs
			WHERE user_id = $1 AND status = 'NEW' AND id = ANY($2::uuid[])
			ORDER BY updated_at DESC, id`,
			q.UserID, uuidStrings(q.JobIDs))
	} else {
		rows, err = s.db.QueryContext(ctx, `
			SELECT `+jobColumns+` FROM jobs
			WHERE user_id = $1 AND status = 'NEW'
			ORDER BY updated_at DESC, id
			LIMIT $2`,
			q.UserID, q.Limit)
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to list eligible jobs",
			slog.String("error", err.Error()),
			slog.String("user_id", q.UserID.String()))
		return nil, fmt.Errorf("failed to list eligible jobs: %w", MapError(err))
	}
	defer func() { _ = rows.Close() }()

	var jobs []*domain.Job
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating jobs: %w", err)
	}
	return jobs, nil
}

// GetJob implements store.JobStore.GetJob.
func (s *PostgresJobStore) GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+jobColumns+` FROM jobs WHERE id = $1 AND user_id = $2`,
		jobID, userID)

	job, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, store.ErrJobNotFound
	}
	if err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Error("failed to get job",
			slog.String("error", err.Error()),
			slog.String("job_id", jobID.String()))
		return nil, fmt.Errorf("failed to get job: %w", MapError(err))
	}
	return job, nil
}

func scanJob(row rowScanner) (*domain.Job, error) {
	var (
		j           domain.Job
		company     sql.NullString
		description sql.NullString
	)
	err := row.Scan(&j.ID, &j.UserID, &j.Title, &company, &j.JobURL, &j.Status, &description,
		&j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	j.Company = nullStringPtr(company)
	j.Description = nullStringPtr(description)
	return &j, nil
}

func uuidStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
