package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
)

// CreateBatchRequest defines the payload for creating a batch. When
// SelectedJobIDs is set only those jobs are considered and Limit is ignored.
type CreateBatchRequest struct {
	Scope          string      `json:"scope"          validate:"omitempty,oneof=NEW"`
	Limit          *int        `json:"limit"          validate:"omitempty,min=1,max=200"`
	SelectedJobIDs []uuid.UUID `json:"selectedJobIds" validate:"omitempty,min=1,max=200"`
}

// CompleteTaskRequest defines the payload for completing a claimed task.
type CompleteTaskRequest struct {
	Status  string  `json:"status"  validate:"required,oneof=SUCCEEDED FAILED SKIPPED"`
	Error   *string `json:"error"   validate:"omitempty,max=500"`
	Attempt *int    `json:"attempt" validate:"omitempty,min=0"`
}

// RetryFailedRequest defines the payload for retrying a batch's failures.
type RetryFailedRequest struct {
	Limit *int `json:"limit" validate:"omitempty,min=1,max=200"`
}

// CompletedTask is one externally built result reported through run-once.
type CompletedTask struct {
	TaskID  uuid.UUID `json:"taskId"  validate:"required"`
	Status  string    `json:"status"  validate:"required,oneof=SUCCEEDED FAILED SKIPPED"`
	Error   *string   `json:"error"   validate:"omitempty,max=500"`
	Attempt *int      `json:"attempt" validate:"omitempty,min=0"`
}

// RunOnceRequest defines the payload of a run-once call.
type RunOnceRequest struct {
	MaxSteps       *int            `json:"maxSteps"       validate:"omitempty,min=1,max=20"`
	CompletedTasks []CompletedTask `json:"completedTasks" validate:"omitempty,max=20,dive"`
}

// ExecuteRequest defines the payload of an in-process execute call.
type ExecuteRequest struct {
	MaxSteps *int `json:"maxSteps" validate:"omitempty,min=1,max=50"`
}

// WorkerNextRequest defines the payload of the worker route.
type WorkerNextRequest struct {
	MaxSteps *int `json:"maxSteps" validate:"omitempty,min=1,max=20"`
}

// BatchResponse wraps a created batch.
type BatchResponse struct {
	Batch *domain.Batch `json:"batch"`
}

// RetryFailedResponse is the created retry batch and where it came from.
type RetryFailedResponse struct {
	Batch         *domain.Batch `json:"batch"`
	SourceBatchID uuid.UUID     `json:"sourceBatchId"`
}

// LatestBatchResponse points at the user's most recently updated batch. All
// fields are null when the user has none.
type LatestBatchResponse struct {
	BatchID   *uuid.UUID          `json:"batchId"`
	Status    *domain.BatchStatus `json:"status"`
	UpdatedAt *time.Time          `json:"updatedAt"`
}

// TriggerDisabledMessage explains why the trigger route always answers 410.
const TriggerDisabledMessage = "Automatic trigger execution is disabled. " +
	"Use the worker route or step the batch with claim and run-once."

func (c CompletedTask) toCompletion() batch.Completion {
	return batch.Completion{
		TaskID:  c.TaskID,
		Status:  domain.TaskStatus(c.Status),
		Error:   c.Error,
		Attempt: c.Attempt,
	}
}

func intOrZero(p *int) int {
	if p == nil {
		return 0
	}
	return *p
}
