package api

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
)

// BatchRunner is the subset of *batch.Runner the user routes drive.
type BatchRunner interface {
	Create(ctx context.Context, userID uuid.UUID, opts batch.CreateOptions) (*domain.Batch, error)
	Latest(ctx context.Context, userID uuid.UUID) (*domain.Batch, error)
	Detail(ctx context.Context, userID, batchID uuid.UUID) (*batch.Detail, error)
	Summary(ctx context.Context, userID, batchID uuid.UUID) (*batch.Summary, error)
	ClaimNext(ctx context.Context, userID, batchID uuid.UUID) (*batch.ClaimResult, error)
	CompleteTask(ctx context.Context, userID, batchID uuid.UUID, c batch.Completion) (*batch.CompleteResult, error)
	Cancel(ctx context.Context, userID, batchID uuid.UUID) (*batch.CancelResult, error)
	RetryFailed(ctx context.Context, userID, sourceID uuid.UUID, limit int) (*domain.Batch, error)
	RunOnce(ctx context.Context, userID, batchID uuid.UUID, in batch.RunOnceInput) (*batch.RunOnceResult, error)
	Execute(ctx context.Context, userID, batchID uuid.UUID, maxSteps int) (*batch.ExecuteResult, error)
	Config() batch.Config
}

var _ BatchRunner = (*batch.Runner)(nil)

// BatchHandler serves the user-facing application batch routes.
type BatchHandler struct {
	runner BatchRunner
	logger *slog.Logger
}

// NewBatchHandler creates a new BatchHandler.
func NewBatchHandler(runner BatchRunner, logger *slog.Logger) *BatchHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &BatchHandler{
		runner: runner,
		logger: logger.With("component", "batch_handler"),
	}
}

// Routes returns the user routes, each wrapped by authenticate. Execute
// checks its feature flag before authentication so a disabled deployment
// answers 410 to everyone.
func (h *BatchHandler) Routes(authenticate func(http.Handler) http.Handler) chi.Router {
	r := chi.NewRouter()

	r.With(h.requireExecuteEnabled, authenticate).Post("/{id}/execute", h.Execute)

	r.Group(func(r chi.Router) {
		r.Use(authenticate)

		r.Post("/", h.Create)
		r.Get("/latest", h.Latest)
		r.Get("/{id}", h.Detail)
		r.Get("/{id}/summary", h.Summary)
		r.Post("/{id}/claim", h.Claim)
		r.Patch("/{id}/tasks/{taskId}", h.CompleteTask)
		r.Post("/{id}/cancel", h.Cancel)
		r.Post("/{id}/retry-failed", h.RetryFailed)
		r.Post("/{id}/run-once", h.RunOnce)
		r.Post("/{id}/trigger", h.Trigger)
	})
	return r
}

func (h *BatchHandler) log(r *http.Request) *slog.Logger {
	return logger.FromContextOrDefault(r.Context(), h.logger)
}

// Create handles POST / requests.
func (h *BatchHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized)
		return
	}

	var req CreateBatchRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	b, err := h.runner.Create(r.Context(), userID, batch.CreateOptions{
		Limit:  intOrZero(req.Limit),
		JobIDs: req.SelectedJobIDs,
	})
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	h.log(r).Info("batch created via API", "batch_id", b.ID, "total_count", b.TotalCount)
	shared.RespondWithJSON(w, r, http.StatusCreated, BatchResponse{Batch: b})
}

// Latest handles GET /latest requests.
func (h *BatchHandler) Latest(w http.ResponseWriter, r *http.Request) {
	userID, ok := getUserIDFromContext(r)
	if !ok {
		HandleAPIError(w, r, domain.ErrUnauthorized)
		return
	}

	b, err := h.runner.Latest(r.Context(), userID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	var resp LatestBatchResponse
	if b != nil {
		resp = LatestBatchResponse{BatchID: &b.ID, Status: &b.Status, UpdatedAt: &b.UpdatedAt}
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}

// Detail handles GET /{id} requests.
func (h *BatchHandler) Detail(w http.ResponseWriter, r *http.Request) {
	userID, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	detail, err := h.runner.Detail(r.Context(), userID, batchID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, detail)
}

// Summary handles GET /{id}/summary requests.
func (h *BatchHandler) Summary(w http.ResponseWriter, r *http.Request) {
	userID, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	summary, err := h.runner.Summary(r.Context(), userID, batchID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, summary)
}

// Claim handles POST /{id}/claim requests.
func (h *BatchHandler) Claim(w http.ResponseWriter, r *http.Request) {
	userID, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.runner.ClaimNext(r.Context(), userID, batchID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	if res.Kind == batch.ClaimNotFound {
		HandleAPIError(w, r, batch.ErrNotFound)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// CompleteTask handles PATCH /{id}/tasks/{taskId} requests.
func (h *BatchHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	userID, ids, ok := handleUserIDAndPathUUIDs(w, r, "id", "taskId")
	if !ok {
		return
	}

	var req CompleteTaskRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	res, err := h.runner.CompleteTask(r.Context(), userID, ids[0], CompletedTask{
		TaskID:  ids[1],
		Status:  req.Status,
		Error:   req.Error,
		Attempt: req.Attempt,
	}.toCompletion())
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// Cancel handles POST /{id}/cancel requests.
func (h *BatchHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	userID, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	res, err := h.runner.Cancel(r.Context(), userID, batchID)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// RetryFailed handles POST /{id}/retry-failed requests.
func (h *BatchHandler) RetryFailed(w http.ResponseWriter, r *http.Request) {
	userID, sourceID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RetryFailedRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	b, err := h.runner.RetryFailed(r.Context(), userID, sourceID, intOrZero(req.Limit))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}

	h.log(r).Info("retry batch created via API", "batch_id", b.ID, "source_batch_id", sourceID)
	shared.RespondWithJSON(w, r, http.StatusCreated, RetryFailedResponse{Batch: b, SourceBatchID: sourceID})
}

// RunOnce handles POST /{id}/run-once requests.
func (h *BatchHandler) RunOnce(w http.ResponseWriter, r *http.Request) {
	userID, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req RunOnceRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	in := batch.RunOnceInput{
		MaxSteps:    intOrZero(req.MaxSteps),
		Completions: make([]batch.Completion, 0, len(req.CompletedTasks)),
	}
	for _, c := range req.CompletedTasks {
		in.Completions = append(in.Completions, c.toCompletion())
	}

	res, err := h.runner.RunOnce(r.Context(), userID, batchID, in)
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// Execute handles POST /{id}/execute requests.
func (h *BatchHandler) Execute(w http.ResponseWriter, r *http.Request) {
	userID, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}

	var req ExecuteRequest
	if err := decodeAndValidate(r, &req); err != nil {
		HandleAPIError(w, r, err)
		return
	}

	res, err := h.runner.Execute(r.Context(), userID, batchID, intOrZero(req.MaxSteps))
	if err != nil {
		HandleAPIError(w, r, err)
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, res)
}

// Trigger handles POST /{id}/trigger requests. Automatic triggering was
// retired; the route stays so old clients get a clear answer.
func (h *BatchHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	_, batchID, ok := handleUserIDAndPathUUID(w, r, "id")
	if !ok {
		return
	}
	shared.RespondWithErrorBody(w, r, shared.ErrorResponse{
		Code:    http.StatusGone,
		Error:   CodeTriggerDisabled,
		Message: TriggerDisabledMessage,
		BatchID: batchID.String(),
	})
}

func (h *BatchHandler) requireExecuteEnabled(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !h.runner.Config().ExecuteEnabled {
			HandleAPIError(w, r, batch.ErrExecuteDisabled)
			return
		}
		next.ServeHTTP(w, r)
	})
}
