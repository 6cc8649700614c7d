package api_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/jobtrail-api/internal/api"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkerHandler_Next(t *testing.T) {
	t.Parallel()

	t.Run("rejects a wrong secret", func(t *testing.T) {
		h := newHarness(t, batch.Config{})
		h.newBatch(t, 1)

		rec := h.do(t, http.MethodPost, "/worker/next", nil, withSecret("guess"))
		require.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, api.CodeUnauthorized, decodeMap(t, rec)["error"])

		rec = h.do(t, http.MethodPost, "/worker/next", nil, withToken(h.token))
		require.Equal(t, http.StatusUnauthorized, rec.Code, "a user token is not a worker credential")
	})

	t.Run("idle without work", func(t *testing.T) {
		h := newHarness(t, batch.Config{})

		rec := h.do(t, http.MethodPost, "/worker/next", nil, withSecret(testWorkerSecret))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"outcome":"idle"}`, rec.Body.String())
	})

	t.Run("default processes one task", func(t *testing.T) {
		h := newHarness(t, batch.Config{})
		b := h.newBatch(t, 2)

		rec := h.do(t, http.MethodPost, "/worker/next", nil, withSecret(testWorkerSecret))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res batch.StepResult
		decodeInto(t, rec, &res)
		assert.Equal(t, batch.OutcomeProcessed, res.Outcome)
		require.NotNil(t, res.BatchID)
		assert.Equal(t, b.ID, *res.BatchID)
		require.NotNil(t, res.Task)
		assert.Equal(t, domain.TaskStatusSucceeded, res.Task.Status)
	})

	t.Run("loops while tasks are processed", func(t *testing.T) {
		h := newHarness(t, batch.Config{})
		b := h.newBatch(t, 2)

		rec := h.do(t, http.MethodPost, "/worker/next", map[string]interface{}{"maxSteps": 5}, withSecret(testWorkerSecret))
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		var res batch.StepResult
		decodeInto(t, rec, &res)
		assert.NotEqual(t, batch.OutcomeProcessed, res.Outcome, "the loop ends on the first unproductive step")

		for _, task := range h.store.Tasks(b.ID) {
			assert.Equal(t, domain.TaskStatusSucceeded, task.Status)
		}
		assert.Equal(t, domain.BatchStatusSucceeded, h.store.Batch(b.ID).Status)
	})

	t.Run("validates maxSteps", func(t *testing.T) {
		h := newHarness(t, batch.Config{})

		rec := h.do(t, http.MethodPost, "/worker/next", map[string]interface{}{"maxSteps": 21}, withSecret(testWorkerSecret))
		require.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Equal(t, api.CodeInvalidBody, decodeMap(t, rec)["error"])
	})
}

type scriptedStepper struct {
	results []*batch.StepResult
	err     error
	calls   int
}

func (s *scriptedStepper) RunNextAvailableStep(context.Context) (*batch.StepResult, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	if s.calls > len(s.results) {
		return &batch.StepResult{Outcome: batch.OutcomeIdle}, nil
	}
	return s.results[s.calls-1], nil
}

func serveWorker(stepper api.Stepper, body string) *httptest.ResponseRecorder {
	r := chi.NewRouter()
	pass := func(next http.Handler) http.Handler { return next }
	r.Mount("/worker", api.NewWorkerHandler(stepper, nil).Routes(pass))

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/worker/next", strings.NewReader(body)))
	return rec
}

func TestWorkerHandler_StopsAtBound(t *testing.T) {
	t.Parallel()

	processed := &batch.StepResult{Outcome: batch.OutcomeProcessed}
	stepper := &scriptedStepper{results: []*batch.StepResult{processed, processed, processed, processed}}

	rec := serveWorker(stepper, `{"maxSteps":3}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, stepper.calls)
	assert.JSONEq(t, `{"outcome":"processed"}`, rec.Body.String())
}

func TestWorkerHandler_StopsOnDone(t *testing.T) {
	t.Parallel()

	stepper := &scriptedStepper{results: []*batch.StepResult{
		{Outcome: batch.OutcomeProcessed},
		{Outcome: batch.OutcomeDone, BatchStatus: domain.BatchStatusSucceeded},
		{Outcome: batch.OutcomeProcessed},
	}}

	rec := serveWorker(stepper, `{"maxSteps":20}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 2, stepper.calls)
	assert.JSONEq(t, `{"outcome":"done","batchStatus":"SUCCEEDED"}`, rec.Body.String())
}

func TestWorkerHandler_StepFailure(t *testing.T) {
	t.Parallel()

	stepper := &scriptedStepper{err: errors.New("connection refused to postgres://app:pw@db")}

	rec := serveWorker(stepper, "")
	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, api.CodeInternal, decodeMap(t, rec)["error"])
	assert.NotContains(t, rec.Body.String(), "pw@db")
}
