package batch_test

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteTask_Errors(t *testing.T) {
	f := newFixture(t, batch.Config{})
	ctx := context.Background()
	b, _ := f.newBatch(t, 2)
	running := f.claim(t, b.ID)
	pending := f.store.Tasks(b.ID)[1]

	tests := []struct {
		name     string
		userID   uuid.UUID
		taskID   uuid.UUID
		status   domain.TaskStatus
		wantCode string
	}{
		{name: "unknown task", userID: f.userID, taskID: uuid.New(), status: domain.TaskStatusSucceeded, wantCode: batch.CodeNotFound},
		{name: "other user's task", userID: uuid.New(), taskID: running.ID, status: domain.TaskStatusSucceeded, wantCode: batch.CodeNotFound},
		{name: "pending task", userID: f.userID, taskID: pending.ID, status: domain.TaskStatusSucceeded, wantCode: batch.CodeInvalidState},
		{name: "non-terminal status", userID: f.userID, taskID: running.ID, status: domain.TaskStatusPending, wantCode: batch.CodeInvalidState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.runner.CompleteTask(ctx, tt.userID, b.ID, batch.Completion{TaskID: tt.taskID, Status: tt.status})
			re, ok := batch.AsRunnerError(err)
			require.True(t, ok, "expected a runner error, got %v", err)
			assert.Equal(t, tt.wantCode, re.Code)
		})
	}

	assert.Equal(t, domain.TaskStatusRunning, f.store.Task(running.ID).Status)
	assert.Equal(t, domain.TaskStatusPending, f.store.Task(pending.ID).Status)
}

func TestCompleteTask_NonRunningTaskIsNeverMutated(t *testing.T) {
	f := newFixture(t, batch.Config{})
	b, _ := f.newBatch(t, 2)
	task := f.claim(t, b.ID)
	f.complete(t, b.ID, task.ID, domain.TaskStatusFailed)
	before := f.store.Task(task.ID)

	_, err := f.runner.CompleteTask(context.Background(), f.userID, b.ID, batch.Completion{
		TaskID: task.ID, Status: domain.TaskStatusSucceeded,
	})
	assert.ErrorIs(t, err, batch.ErrInvalidState)
	assert.Equal(t, before, f.store.Task(task.ID))
}

func TestCompleteTask_RepeatedCompletionIsIdempotent(t *testing.T) {
	f := newFixture(t, batch.Config{})
	b, _ := f.newBatch(t, 2)
	task := f.claim(t, b.ID)

	first := f.complete(t, b.ID, task.ID, domain.TaskStatusSucceeded)
	second := f.complete(t, b.ID, task.ID, domain.TaskStatusSucceeded)

	assert.Equal(t, first, second)
	assert.Equal(t, domain.Progress{Pending: 1, Succeeded: 1}, second.Progress)

	completed := 0
	for _, typ := range f.events.Types() {
		if typ == events.TaskCompleted {
			completed++
		}
	}
	assert.Equal(t, 1, completed, "a repeated completion emits nothing")
}

func TestCompleteTask_FailureMessage(t *testing.T) {
	tests := []struct {
		name   string
		status domain.TaskStatus
		input  *string
		want   *string
	}{
		{name: "trimmed", status: domain.TaskStatusFailed, input: strPtr("  compile error \n"), want: strPtr("compile error")},
		{name: "blank defaults", status: domain.TaskStatusFailed, input: strPtr("   "), want: strPtr(domain.DefaultTaskFailureMessage)},
		{name: "missing defaults", status: domain.TaskStatusFailed, want: strPtr(domain.DefaultTaskFailureMessage)},
		{name: "ignored on success", status: domain.TaskStatusSucceeded, input: strPtr("stray"), want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, batch.Config{})
			b, _ := f.newBatch(t, 1)
			task := f.claim(t, b.ID)

			_, err := f.runner.CompleteTask(context.Background(), f.userID, b.ID, batch.Completion{
				TaskID: task.ID, Status: tt.status, Error: tt.input,
			})
			require.NoError(t, err)

			stored := f.store.Task(task.ID)
			assert.Equal(t, tt.want, stored.Error)
			assert.NotNil(t, stored.CompletedAt)
		})
	}
}

func TestCompleteTask_StaleAttemptIsDiscarded(t *testing.T) {
	f := newFixture(t, batch.Config{})
	b, _ := f.newBatch(t, 1)
	task := f.claim(t, b.ID)

	// Simulate a reclaim and a fresh claim by another worker.
	f.store.UpdateTask(task.ID, func(tk *domain.Task) { tk.Attempt = 1 })

	oldAttempt := 0
	_, err := f.runner.CompleteTask(context.Background(), f.userID, b.ID, batch.Completion{
		TaskID: task.ID, Status: domain.TaskStatusSucceeded, Attempt: &oldAttempt,
	})
	assert.ErrorIs(t, err, batch.ErrInvalidState)
	assert.Equal(t, domain.TaskStatusRunning, f.store.Task(task.ID).Status)

	current := 1
	res, err := f.runner.CompleteTask(context.Background(), f.userID, b.ID, batch.Completion{
		TaskID: task.ID, Status: domain.TaskStatusSucceeded, Attempt: &current,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.BatchStatusSucceeded, res.BatchStatus)
}

func TestCompleteTask_AfterCancelIsRejected(t *testing.T) {
	f := newFixture(t, batch.Config{})
	b, _ := f.newBatch(t, 1)
	task := f.claim(t, b.ID)

	_, err := f.runner.Cancel(context.Background(), f.userID, b.ID)
	require.NoError(t, err)

	_, err = f.runner.CompleteTask(context.Background(), f.userID, b.ID, batch.Completion{
		TaskID: task.ID, Status: domain.TaskStatusSucceeded,
	})
	assert.ErrorIs(t, err, batch.ErrInvalidState)
	assert.Equal(t, domain.TaskStatusSkipped, f.store.Task(task.ID).Status)
	assert.Equal(t, domain.BatchStatusCancelled, f.store.Batch(b.ID).Status)
}
