package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
)

// defaultWorkerSteps is used when the caller sends no maxSteps.
const defaultWorkerSteps = 1

// Stepper advances whichever batch has work next.
type Stepper interface {
	RunNextAvailableStep(ctx context.Context) (*batch.StepResult, error)
}

// WorkerHandler serves the secret-authenticated worker route.
type WorkerHandler struct {
	stepper Stepper
	logger  *slog.Logger
}

// NewWorkerHandler creates a new WorkerHandler.
func NewWorkerHandler(stepper Stepper, logger *slog.Logger) *WorkerHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &WorkerHandler{
		stepper: stepper,
		logger:  logger.With("component", "worker_handler"),
	}
}

// Routes returns the worker routes wrapped by guard.
func (h *WorkerHandler) Routes(guard func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()
	r.With(guard).Post("/next", h.Next)
	return r
}

// Next handles POST /worker/next requests. It steps until a step does not
// process a task or maxSteps is reached, and returns the last result.
func (h *WorkerHandler) Next(w http.ResponseWriter, r *http.Request) {
	var req WorkerNextRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}
	maxSteps := defaultWorkerSteps
	if req.MaxSteps != nil {
		maxSteps = *req.MaxSteps
	}

	log := logger.FromContextOrDefault(r.Context(), h.logger)
	last := &batch.StepResult{Outcome: batch.OutcomeIdle}
	steps := 0
	for steps < maxSteps {
		res, err := h.stepper.RunNextAvailableStep(r.Context())
		if err != nil {
			HandleAPIError(w, r, err)
			return
		}
		last = res
		steps++
		if res.Outcome != batch.OutcomeProcessed {
			break
		}
	}

	log.Debug("worker steps finished", "steps", steps, "outcome", last.Outcome)
	shared.RespondWithJSON(w, r, http.StatusOK, last)
}
