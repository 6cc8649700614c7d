package batch

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/domain"
)

// Public error codes carried by RunnerError.
const (
	CodeNotFound     = "NOT_FOUND"
	CodeInvalidState = "INVALID_STATE"
)

// Sentinel errors matched by RunnerError through errors.Is.
var (
	ErrNotFound     = errors.New("batch runner: not found")
	ErrInvalidState = errors.New("batch runner: invalid state")
)

// Boundary errors of the lifecycle operations.
var (
	// ErrActiveBatchExists is matched by *ActiveBatchError.
	ErrActiveBatchExists = errors.New("an active batch already exists")
	ErrNoEligibleJobs    = errors.New("no eligible jobs")
	ErrExecuteDisabled   = errors.New("batch execute is disabled")
)

// RunnerError is an expected failure of a runner operation. Code is safe to
// expose to clients.
type RunnerError struct {
	Code    string
	Message string
}

// Error implements the error interface.
func (e *RunnerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Is matches ErrNotFound and ErrInvalidState by code.
func (e *RunnerError) Is(target error) bool {
	switch target {
	case ErrNotFound:
		return e.Code == CodeNotFound
	case ErrInvalidState:
		return e.Code == CodeInvalidState
	}
	return false
}

func notFound(message string) *RunnerError {
	return &RunnerError{Code: CodeNotFound, Message: message}
}

func invalidState(message string) *RunnerError {
	return &RunnerError{Code: CodeInvalidState, Message: message}
}

// AsRunnerError returns the RunnerError in err's chain, if any.
func AsRunnerError(err error) (*RunnerError, bool) {
	var re *RunnerError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

// ActiveBatchError reports the batch that blocks creating a new one.
type ActiveBatchError struct {
	BatchID uuid.UUID
	Status  domain.BatchStatus
}

// Error implements the error interface.
func (e *ActiveBatchError) Error() string {
	return fmt.Sprintf("active batch %s is %s", e.BatchID, e.Status)
}

// Is matches ErrActiveBatchExists.
func (e *ActiveBatchError) Is(target error) bool {
	return target == ErrActiveBatchExists
}

// OperationError wraps an unexpected failure with the operation that hit it.
type OperationError struct {
	// Operation is the runner operation that failed (e.g., "claim_next")
	Operation string
	Err       error
}

// Error implements the error interface.
func (e *OperationError) Error() string {
	return fmt.Sprintf("batch runner %s failed: %v", e.Operation, e.Err)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *OperationError) Unwrap() error {
	return e.Err
}

// wrapErr passes expected errors through unchanged and wraps everything else.
func wrapErr(operation string, err error) error {
	if err == nil {
		return nil
	}
	var re *RunnerError
	if errors.As(err, &re) ||
		errors.Is(err, ErrActiveBatchExists) ||
		errors.Is(err, ErrNoEligibleJobs) ||
		errors.Is(err, ErrExecuteDisabled) {
		return err
	}
	return &OperationError{Operation: operation, Err: err}
}
