package store

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsNotFoundError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{name: "nil error", err: nil, expected: false},
		{name: "generic error", err: errors.New("some error"), expected: false},
		{name: "ErrNotFound", err: ErrNotFound, expected: true},
		{name: "wrapped ErrNotFound", err: fmt.Errorf("lookup: %w", ErrNotFound), expected: true},
		{name: "ErrBatchNotFound", err: ErrBatchNotFound, expected: true},
		{name: "ErrTaskNotFound", err: ErrTaskNotFound, expected: true},
		{name: "wrapped ErrJobNotFound", err: fmt.Errorf("load job: %w", ErrJobNotFound), expected: true},
		{name: "ErrDuplicate", err: ErrDuplicate, expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsNotFoundError(tt.err))
		})
	}
}

func TestIsDuplicateError(t *testing.T) {
	assert.True(t, IsDuplicateError(fmt.Errorf("insert: %w", ErrDuplicate)))
	assert.False(t, IsDuplicateError(ErrNotFound))
	assert.False(t, IsDuplicateError(nil))
}

func TestSpecificNotFoundErrorsAreDistinct(t *testing.T) {
	assert.False(t, errors.Is(ErrBatchNotFound, ErrTaskNotFound))
	assert.False(t, errors.Is(ErrTaskNotFound, ErrBatchNotFound))
	assert.False(t, errors.Is(ErrJobNotFound, ErrBatchNotFound))
}

func TestStoreError(t *testing.T) {
	originalErr := errors.New("database connection failed")
	storeErr := NewStoreError("batch", "claim", "database error", originalErr)

	assert.Equal(t, "claim operation on batch failed: database error: database connection failed", storeErr.Error())
	assert.ErrorIs(t, storeErr, originalErr)

	bare := NewStoreError("task", "complete", "no rows", nil)
	assert.Equal(t, "complete operation on task failed: no rows", bare.Error())
	assert.Nil(t, bare.Unwrap())
}
