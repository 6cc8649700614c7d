package api

import (
	"errors"
	"net/http"

	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/service/auth"
	"github.com/phrazzld/jobtrail-api/internal/store"
)

// Error codes returned in the "error" field of every failed response.
const (
	CodeNotFound          = batch.CodeNotFound
	CodeInvalidState      = batch.CodeInvalidState
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInvalidParams     = "INVALID_PARAMS"
	CodeInvalidBody       = "INVALID_BODY"
	CodeActiveBatchExists = "ACTIVE_BATCH_EXISTS"
	CodeNoEligibleJobs    = "NO_ELIGIBLE_JOBS"
	CodeExecuteDisabled   = "EXECUTE_DISABLED"
	CodeTriggerDisabled   = "TRIGGER_DISABLED"
	CodeInternal          = "INTERNAL_ERROR"
)

// ErrInvalidBody marks a request body that could not be decoded or failed
// validation.
var ErrInvalidBody = errors.New("invalid request body")

// BodyError carries the per-field validation details of an invalid body.
type BodyError struct {
	Err     error
	Details []shared.FieldError
}

// Error implements the error interface.
func (e *BodyError) Error() string {
	return ErrInvalidBody.Error() + ": " + e.Err.Error()
}

// Unwrap returns the decode or validation error.
func (e *BodyError) Unwrap() error {
	return e.Err
}

// Is matches ErrInvalidBody.
func (e *BodyError) Is(target error) bool {
	return target == ErrInvalidBody
}

func newBodyError(err error) *BodyError {
	return &BodyError{Err: err, Details: shared.ValidationDetails(err)}
}

// MapErrorToStatusCode maps internal errors to HTTP status codes. Unknown
// errors are 500 so internal failures never masquerade as client mistakes.
func MapErrorToStatusCode(err error) int {
	return errorResponseFor(err).Code
}

// errorResponseFor translates err into the client-safe response body.
// Messages come only from runner errors and fixed strings, never from the
// raw error text.
func errorResponseFor(err error) shared.ErrorResponse {
	var (
		activeErr *batch.ActiveBatchError
		bodyErr   *BodyError
		valErr    *domain.ValidationError
	)

	switch {
	case err == nil:
		return shared.ErrorResponse{Code: http.StatusInternalServerError, Error: CodeInternal}

	case errors.As(err, &bodyErr):
		resp := shared.ErrorResponse{Code: http.StatusBadRequest, Error: CodeInvalidBody}
		if len(bodyErr.Details) > 0 {
			resp.Details = bodyErr.Details
		}
		return resp

	case errors.As(err, &valErr), errors.Is(err, domain.ErrInvalidID):
		return shared.ErrorResponse{Code: http.StatusBadRequest, Error: CodeInvalidParams}

	case errors.Is(err, domain.ErrUnauthorized),
		errors.Is(err, auth.ErrInvalidToken),
		errors.Is(err, auth.ErrExpiredToken),
		errors.Is(err, auth.ErrTokenNotYetValid),
		errors.Is(err, auth.ErrWrongTokenType),
		errors.Is(err, auth.ErrMissingToken),
		errors.Is(err, auth.ErrSecretMismatch):
		return shared.ErrorResponse{Code: http.StatusUnauthorized, Error: CodeUnauthorized}

	case errors.As(err, &activeErr):
		return shared.ErrorResponse{
			Code:    http.StatusConflict,
			Error:   CodeActiveBatchExists,
			BatchID: activeErr.BatchID.String(),
			Status:  string(activeErr.Status),
		}

	case errors.Is(err, batch.ErrNoEligibleJobs):
		return shared.ErrorResponse{Code: http.StatusBadRequest, Error: CodeNoEligibleJobs}

	case errors.Is(err, batch.ErrExecuteDisabled):
		return shared.ErrorResponse{
			Code:    http.StatusGone,
			Error:   CodeExecuteDisabled,
			Message: "Batch execute is disabled. Use the worker route or step the batch with claim and run-once.",
		}

	case errors.Is(err, batch.ErrNotFound), errors.Is(err, store.ErrNotFound):
		return shared.ErrorResponse{Code: http.StatusNotFound, Error: CodeNotFound}

	case errors.Is(err, batch.ErrInvalidState):
		resp := shared.ErrorResponse{Code: http.StatusConflict, Error: CodeInvalidState}
		if re, ok := batch.AsRunnerError(err); ok {
			resp.Message = re.Message
		}
		return resp

	case errors.Is(err, store.ErrDuplicate):
		return shared.ErrorResponse{Code: http.StatusConflict, Error: CodeInvalidState}

	case errors.Is(err, store.ErrInvalidEntity):
		return shared.ErrorResponse{Code: http.StatusBadRequest, Error: CodeInvalidBody}

	default:
		return shared.ErrorResponse{Code: http.StatusInternalServerError, Error: CodeInternal}
	}
}

// HandleAPIError writes the response for err and logs the redacted cause.
// Unexpected failures log at ERROR; auth failures are raised to WARN.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error) {
	resp := errorResponseFor(err)

	var opts []shared.ResponseOption
	if resp.Code == http.StatusUnauthorized {
		opts = append(opts, shared.WithElevatedLogLevel())
	}
	shared.RespondWithErrorAndLog(w, r, resp, err, opts...)
}
