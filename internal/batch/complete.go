package batch

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// Completion reports the outcome of a claimed task.
type Completion struct {
	TaskID uuid.UUID
	Status domain.TaskStatus
	Error  *string
	// Attempt, when set, must match the attempt that was claimed.
	Attempt *int
}

// CompleteResult is the state after a completion was applied.
type CompleteResult struct {
	TaskStatus  domain.TaskStatus  `json:"taskStatus"`
	BatchStatus domain.BatchStatus `json:"batchStatus"`
	Progress    domain.Progress    `json:"progress"`
}

// CompleteTask moves a RUNNING task to a terminal status and reconciles the
// batch. Repeating a completion that already took effect is a no-op; any
// other completion of a task that is not RUNNING fails with INVALID_STATE.
func (r *Runner) CompleteTask(ctx context.Context, userID, batchID uuid.UUID, c Completion) (*CompleteResult, error) {
	if !c.Status.IsTerminal() {
		return nil, invalidState("Invalid task status")
	}

	task, err := r.store.GetTask(ctx, userID, batchID, c.TaskID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFound("Task not found")
	}
	if err != nil {
		return nil, wrapErr("complete_task", err)
	}

	if task.Status != domain.TaskStatusRunning {
		return r.completeRepeated(ctx, userID, batchID, task, c.Status)
	}

	var msg *string
	if c.Status == domain.TaskStatusFailed {
		m := domain.DefaultTaskFailureMessage
		if c.Error != nil && strings.TrimSpace(*c.Error) != "" {
			m = strings.TrimSpace(*c.Error)
		}
		msg = &m
	}

	won, err := r.store.CompleteTask(ctx, store.TaskCompletion{
		TaskID:      c.TaskID,
		Status:      c.Status,
		Error:       msg,
		Attempt:     c.Attempt,
		CompletedAt: r.clock(),
	})
	if err != nil {
		return nil, wrapErr("complete_task", err)
	}
	if !won {
		// Reclaimed, cancelled or completed by someone else since the read.
		fresh, err := r.store.GetTask(ctx, userID, batchID, c.TaskID)
		if err != nil {
			return nil, wrapErr("complete_task", err)
		}
		if fresh.Status == domain.TaskStatusRunning {
			return nil, invalidState("Task attempt is no longer current")
		}
		return r.completeRepeated(ctx, userID, batchID, fresh, c.Status)
	}

	taskID := c.TaskID
	r.emit(ctx, events.TaskCompleted, events.BatchEvent{
		BatchID: batchID, UserID: userID, TaskID: &taskID, Status: string(c.Status),
	})

	status, progress, err := r.reconcile(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("complete_task", err)
	}
	return &CompleteResult{TaskStatus: c.Status, BatchStatus: status, Progress: progress}, nil
}

func (r *Runner) completeRepeated(
	ctx context.Context,
	userID, batchID uuid.UUID,
	task *domain.Task,
	requested domain.TaskStatus,
) (*CompleteResult, error) {
	if !task.Status.IsTerminal() || task.Status != requested {
		return nil, invalidState("Task is not running")
	}
	status, progress, err := r.reconcile(ctx, userID, batchID)
	if err != nil {
		return nil, wrapErr("complete_task", err)
	}
	return &CompleteResult{TaskStatus: task.Status, BatchStatus: status, Progress: progress}, nil
}
