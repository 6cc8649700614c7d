package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
)

// ClaimCandidate is the oldest PENDING task of a batch together with the job
// context a builder needs.
type ClaimCandidate struct {
	TaskID   uuid.UUID
	JobID    uuid.UUID
	Attempt  int
	JobTitle string
	Company  *string
	JobURL   string
}

// BatchStatusUpdate describes a reconciled batch state.
type BatchStatusUpdate struct {
	Status      domain.BatchStatus
	Error       *string
	StartedAt   time.Time
	CompletedAt *time.Time
	Now         time.Time
}

// TaskCompletion describes a RUNNING task's transition to a terminal status.
type TaskCompletion struct {
	TaskID uuid.UUID
	Status domain.TaskStatus
	Error  *string
	// Attempt, when set, restricts the transition to the claim that produced it.
	Attempt     *int
	CompletedAt time.Time
}

// ReclaimResult reports what a stale sweep changed.
type ReclaimResult struct {
	// Reset counts tasks moved back to PENDING.
	Reset int64
	// Exhausted counts tasks failed because they reached the attempt cap.
	Exhausted int64
}

// ReclaimOptions scopes a stale sweep.
type ReclaimOptions struct {
	// BatchID limits the sweep to one batch; nil sweeps every batch.
	BatchID *uuid.UUID
	// StaleBefore is the startedAt cut-off for abandoned claims.
	StaleBefore time.Time
	// MaxAttempts caps reclamation; zero means unbounded.
	MaxAttempts int
	Now         time.Time
}

// BatchStore defines the persistence operations of the batch runner.
// Every mutating method is a conditional update keyed on current status and
// reports through its bool result whether this caller's transition won.
type BatchStore interface {
	// InTx runs fn against a store bound to a single transaction. Implementations
	// already inside a transaction run fn directly.
	InTx(ctx context.Context, fn func(BatchStore) error) error

	// CreateBatch inserts the batch and one PENDING task per job.
	// Duplicate job IDs are ignored.
	CreateBatch(ctx context.Context, batch *domain.Batch, jobIDs []uuid.UUID) error

	// GetBatch returns the batch owned by userID. ErrBatchNotFound otherwise.
	GetBatch(ctx context.Context, userID, batchID uuid.UUID) (*domain.Batch, error)

	// FindActiveBatch returns the newest QUEUED or RUNNING batch of the user.
	// ErrBatchNotFound when none exists.
	FindActiveBatch(ctx context.Context, userID uuid.UUID) (*domain.Batch, error)

	// LatestBatch returns the most recently updated batch of the user.
	// ErrBatchNotFound when the user has none.
	LatestBatch(ctx context.Context, userID uuid.UUID) (*domain.Batch, error)

	// StartBatch moves a QUEUED batch to RUNNING.
	StartBatch(ctx context.Context, batchID uuid.UUID, now time.Time) (bool, error)

	// UpdateBatchStatus writes a reconciled state while the batch is still
	// QUEUED or RUNNING.
	UpdateBatchStatus(ctx context.Context, batchID uuid.UUID, update BatchStatusUpdate) (bool, error)

	// CancelBatch moves a non-terminal batch to CANCELLED with the given reason.
	CancelBatch(ctx context.Context, batchID uuid.UUID, reason string, now time.Time) (bool, error)

	// NextRunnableBatch returns the least recently updated non-terminal batch of
	// any user that has a PENDING task, a RUNNING task started before
	// staleBefore, or no open task left. ErrBatchNotFound when none qualifies.
	NextRunnableBatch(ctx context.Context, staleBefore time.Time) (*domain.Batch, error)

	// ReclaimStaleTasks resets abandoned RUNNING tasks to PENDING.
	ReclaimStaleTasks(ctx context.Context, opts ReclaimOptions) (ReclaimResult, error)

	// NextPendingTask returns the oldest PENDING task of the batch, or nil.
	NextPendingTask(ctx context.Context, batchID uuid.UUID) (*ClaimCandidate, error)

	// ClaimTask moves a PENDING task to RUNNING.
	ClaimTask(ctx context.Context, taskID uuid.UUID, now time.Time) (bool, error)

	// GetTask returns the task owned by userID within batchID.
	// ErrTaskNotFound otherwise.
	GetTask(ctx context.Context, userID, batchID, taskID uuid.UUID) (*domain.Task, error)

	// CompleteTask moves a RUNNING task to a terminal status.
	CompleteTask(ctx context.Context, completion TaskCompletion) (bool, error)

	// SkipOpenTasks moves every PENDING or RUNNING task of the batch to SKIPPED.
	SkipOpenTasks(ctx context.Context, batchID uuid.UUID, reason string, now time.Time) (int64, error)

	// CountTasksByStatus groups the batch's tasks by status.
	CountTasksByStatus(ctx context.Context, userID, batchID uuid.UUID) (domain.Progress, error)

	// LatestFailedTaskError returns the error of the most recently updated
	// FAILED task, or nil.
	LatestFailedTaskError(ctx context.Context, batchID uuid.UUID) (*string, error)

	// FailedJobIDs returns distinct job IDs of FAILED tasks, newest updated first.
	FailedJobIDs(ctx context.Context, userID, batchID uuid.UUID, limit int) ([]uuid.UUID, error)

	// ListTasks returns up to limit tasks with the given status joined with
	// their jobs. FAILED tasks come newest updated first, other statuses newest
	// completed first.
	ListTasks(ctx context.Context, userID, batchID uuid.UUID, status domain.TaskStatus, limit int) ([]domain.TaskView, error)
}
