package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// BatchStatus represents the lifecycle state of an application batch.
type BatchStatus string

// Possible batch status values. SUCCEEDED, FAILED and CANCELLED are terminal.
const (
	BatchStatusQueued    BatchStatus = "QUEUED"
	BatchStatusRunning   BatchStatus = "RUNNING"
	BatchStatusSucceeded BatchStatus = "SUCCEEDED"
	BatchStatusFailed    BatchStatus = "FAILED"
	BatchStatusCancelled BatchStatus = "CANCELLED"
)

// BatchScope describes how the jobs of a batch were selected.
type BatchScope string

// Possible batch scopes.
const (
	BatchScopeNew         BatchScope = "NEW"
	BatchScopeRetryFailed BatchScope = "RETRY_FAILED"
)

// TaskStatus represents the processing state of a single batch task.
type TaskStatus string

// Possible task status values. SUCCEEDED, FAILED and SKIPPED are terminal.
const (
	TaskStatusPending   TaskStatus = "PENDING"
	TaskStatusRunning   TaskStatus = "RUNNING"
	TaskStatusSucceeded TaskStatus = "SUCCEEDED"
	TaskStatusFailed    TaskStatus = "FAILED"
	TaskStatusSkipped   TaskStatus = "SKIPPED"
)

// Messages recorded on batches and tasks by the runner.
const (
	CancelledByUserMessage     = "Cancelled by user"
	DefaultTaskFailureMessage  = "TASK_FAILED"
	DefaultBatchFailureMessage = "One or more tasks failed."
	NoTasksRemainMessage       = "No tasks remain."
	StaleAttemptsExhausted     = "STALE_ATTEMPTS_EXHAUSTED"
)

// Validation errors for batches and tasks.
var (
	ErrEmptyBatchID     = errors.New("batch ID cannot be empty")
	ErrEmptyBatchUserID = errors.New("batch user ID cannot be empty")
	ErrInvalidBatch     = errors.New("invalid batch status")
	ErrInvalidScope     = errors.New("invalid batch scope")
	ErrEmptyBatchJobs   = errors.New("batch must contain at least one job")
	ErrInvalidTask      = errors.New("invalid task status")
)

// IsTerminal reports whether the batch can no longer change state.
func (s BatchStatus) IsTerminal() bool {
	switch s {
	case BatchStatusSucceeded, BatchStatusFailed, BatchStatusCancelled:
		return true
	default:
		return false
	}
}

// IsActive reports whether the batch still accepts work.
func (s BatchStatus) IsActive() bool {
	return s == BatchStatusQueued || s == BatchStatusRunning
}

// Valid reports whether s is a known batch status.
func (s BatchStatus) Valid() bool {
	return s.IsActive() || s.IsTerminal()
}

// IsTerminal reports whether the task has finished processing.
func (s TaskStatus) IsTerminal() bool {
	switch s {
	case TaskStatusSucceeded, TaskStatusFailed, TaskStatusSkipped:
		return true
	default:
		return false
	}
}

// Valid reports whether s is a known task status.
func (s TaskStatus) Valid() bool {
	return s == TaskStatusPending || s == TaskStatusRunning || s.IsTerminal()
}

// Batch is a user-scoped unit of work containing one task per target job.
type Batch struct {
	ID            uuid.UUID   `json:"id"`
	UserID        uuid.UUID   `json:"-"`
	Scope         BatchScope  `json:"scope"`
	Status        BatchStatus `json:"status"`
	TotalCount    int         `json:"totalCount"`
	Error         *string     `json:"error"`
	SourceBatchID *uuid.UUID  `json:"sourceBatchId,omitempty"`
	CreatedAt     time.Time   `json:"createdAt"`
	UpdatedAt     time.Time   `json:"updatedAt"`
	StartedAt     *time.Time  `json:"startedAt"`
	CompletedAt   *time.Time  `json:"completedAt"`
}

// NewBatch creates a QUEUED batch for the given user with one slot per job.
// The returned batch has fresh ID and timestamps.
func NewBatch(userID uuid.UUID, scope BatchScope, jobCount int) (*Batch, error) {
	now := time.Now().UTC()
	batch := &Batch{
		ID:         uuid.New(),
		UserID:     userID,
		Scope:      scope,
		Status:     BatchStatusQueued,
		TotalCount: jobCount,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := batch.Validate(); err != nil {
		return nil, err
	}

	return batch, nil
}

// Validate checks that the batch carries consistent data.
func (b *Batch) Validate() error {
	if b.ID == uuid.Nil {
		return ErrEmptyBatchID
	}
	if b.UserID == uuid.Nil {
		return ErrEmptyBatchUserID
	}
	if !b.Status.Valid() {
		return ErrInvalidBatch
	}
	if b.Scope != BatchScopeNew && b.Scope != BatchScopeRetryFailed {
		return ErrInvalidScope
	}
	if b.TotalCount < 1 {
		return ErrEmptyBatchJobs
	}
	return nil
}

// Task is one job's artifact-generation unit within a batch.
type Task struct {
	ID          uuid.UUID  `json:"id"`
	BatchID     uuid.UUID  `json:"batchId"`
	UserID      uuid.UUID  `json:"-"`
	JobID       uuid.UUID  `json:"jobId"`
	Status      TaskStatus `json:"status"`
	Attempt     int        `json:"attempt"`
	StartedAt   *time.Time `json:"startedAt"`
	CompletedAt *time.Time `json:"completedAt"`
	Error       *string    `json:"error"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// TaskView is a task joined with the job fields shown to users.
type TaskView struct {
	Task
	JobTitle string  `json:"jobTitle"`
	Company  *string `json:"company"`
	JobURL   string  `json:"jobUrl"`
}

// Progress holds per-status task counts for one batch.
type Progress struct {
	Pending   int `json:"pending"`
	Running   int `json:"running"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Add increments the counter matching status by n.
func (p *Progress) Add(status TaskStatus, n int) {
	switch status {
	case TaskStatusPending:
		p.Pending += n
	case TaskStatusRunning:
		p.Running += n
	case TaskStatusSucceeded:
		p.Succeeded += n
	case TaskStatusFailed:
		p.Failed += n
	case TaskStatusSkipped:
		p.Skipped += n
	}
}

// Open returns the number of tasks that have not finished.
func (p Progress) Open() int {
	return p.Pending + p.Running
}

// Total returns the number of tasks counted.
func (p Progress) Total() int {
	return p.Pending + p.Running + p.Succeeded + p.Failed + p.Skipped
}

// NextBatchStatus derives the batch status implied by progress.
// Open tasks keep the batch RUNNING, any failure makes a finished batch FAILED,
// and a finished batch without failures is SUCCEEDED. A batch whose tasks are
// all gone, for example because their jobs were deleted, is FAILED.
// Terminal statuses are returned unchanged.
func NextBatchStatus(current BatchStatus, progress Progress) BatchStatus {
	if current.IsTerminal() {
		return current
	}

	switch {
	case progress.Open() > 0:
		return BatchStatusRunning
	case progress.Failed > 0, progress.Total() == 0:
		return BatchStatusFailed
	default:
		return BatchStatusSucceeded
	}
}
