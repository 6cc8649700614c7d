package store

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
)

// JobQuery selects jobs eligible for a new batch.
type JobQuery struct {
	UserID uuid.UUID
	// JobIDs restricts the selection; when empty Limit applies instead.
	JobIDs []uuid.UUID
	Limit  int
}

// JobStore reads the job records batches are built from.
type JobStore interface {
	// ListEligibleJobs returns the user's NEW jobs, newest updated first.
	ListEligibleJobs(ctx context.Context, query JobQuery) ([]*domain.Job, error)

	// GetJob returns the user's job. ErrJobNotFound otherwise.
	GetJob(ctx context.Context, userID, jobID uuid.UUID) (*domain.Job, error)
}

// ApplicationStore persists generated application artifacts.
type ApplicationStore interface {
	// UpsertArtifacts records the artifact URLs for the user's job.
	UpsertArtifacts(ctx context.Context, app *domain.Application) error

	// ListByJobIDs returns the user's applications for the given jobs.
	ListByJobIDs(ctx context.Context, userID uuid.UUID, jobIDs []uuid.UUID) ([]*domain.Application, error)
}
