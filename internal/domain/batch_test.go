package domain

import (
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextBatchStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		current  BatchStatus
		progress Progress
		want     BatchStatus
	}{
		{"queued with pending", BatchStatusQueued, Progress{Pending: 2}, BatchStatusRunning},
		{"running with running task", BatchStatusRunning, Progress{Running: 1, Succeeded: 3}, BatchStatusRunning},
		{"all succeeded", BatchStatusRunning, Progress{Succeeded: 3}, BatchStatusSucceeded},
		{"failure wins once finished", BatchStatusRunning, Progress{Succeeded: 2, Failed: 1}, BatchStatusFailed},
		{"only skipped", BatchStatusRunning, Progress{Skipped: 4}, BatchStatusSucceeded},
		{"no tasks left fails queued batch", BatchStatusQueued, Progress{}, BatchStatusFailed},
		{"no tasks left fails running batch", BatchStatusRunning, Progress{}, BatchStatusFailed},
		{"terminal is immutable", BatchStatusCancelled, Progress{Pending: 1}, BatchStatusCancelled},
		{"succeeded stays succeeded", BatchStatusSucceeded, Progress{Failed: 1}, BatchStatusSucceeded},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, NextBatchStatus(tt.current, tt.progress))
		})
	}
}

func TestStatusPredicates(t *testing.T) {
	t.Parallel()

	assert.True(t, BatchStatusFailed.IsTerminal())
	assert.True(t, BatchStatusCancelled.IsTerminal())
	assert.False(t, BatchStatusRunning.IsTerminal())
	assert.True(t, BatchStatusQueued.IsActive())
	assert.False(t, BatchStatus("PAUSED").Valid())

	assert.True(t, TaskStatusSkipped.IsTerminal())
	assert.False(t, TaskStatusRunning.IsTerminal())
	assert.True(t, TaskStatusPending.Valid())
	assert.False(t, TaskStatus("DONE").Valid())
}

func TestProgress(t *testing.T) {
	t.Parallel()

	var p Progress
	p.Add(TaskStatusPending, 2)
	p.Add(TaskStatusRunning, 1)
	p.Add(TaskStatusSucceeded, 3)
	p.Add(TaskStatusFailed, 1)
	p.Add(TaskStatusSkipped, 4)
	p.Add(TaskStatus("UNKNOWN"), 9)

	assert.Equal(t, Progress{Pending: 2, Running: 1, Succeeded: 3, Failed: 1, Skipped: 4}, p)
	assert.Equal(t, 3, p.Open())
	assert.Equal(t, 11, p.Total())
}

func TestNewBatch(t *testing.T) {
	t.Parallel()

	userID := uuid.New()
	batch, err := NewBatch(userID, BatchScopeNew, 3)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, batch.ID)
	assert.Equal(t, userID, batch.UserID)
	assert.Equal(t, BatchStatusQueued, batch.Status)
	assert.Equal(t, 3, batch.TotalCount)
	assert.Nil(t, batch.StartedAt)
	assert.False(t, batch.CreatedAt.IsZero())

	_, err = NewBatch(uuid.Nil, BatchScopeNew, 1)
	assert.ErrorIs(t, err, ErrEmptyBatchUserID)

	_, err = NewBatch(userID, BatchScope("EVERYTHING"), 1)
	assert.ErrorIs(t, err, ErrInvalidScope)

	_, err = NewBatch(userID, BatchScopeRetryFailed, 0)
	assert.ErrorIs(t, err, ErrEmptyBatchJobs)
}

func TestValidationError(t *testing.T) {
	t.Parallel()

	err := NewValidationError("id", "has invalid format", ErrInvalidID)
	assert.Equal(t, "id has invalid format", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidID))
}
