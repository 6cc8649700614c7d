package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/api"
	"github.com/phrazzld/jobtrail-api/internal/api/middleware"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/mocks"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger/logtest"
	"github.com/phrazzld/jobtrail-api/internal/service/auth"
	"github.com/stretchr/testify/require"
)

const testWorkerSecret = "worker-secret-for-tests"

type harness struct {
	store  *mocks.MemoryStore
	runner *batch.Runner
	router http.Handler
	jwt    auth.JWTService
	userID uuid.UUID
	token  string
}

func newHarness(t *testing.T, cfg batch.Config) *harness {
	t.Helper()
	log, _ := logtest.New(t)

	jwtSvc, err := auth.NewJWTService(config.AuthConfig{
		JWTSecret:            "api-handler-test-secret-32-characters!",
		TokenLifetimeMinutes: 30,
	})
	require.NoError(t, err)

	h := &harness{store: mocks.NewMemoryStore(), jwt: jwtSvc, userID: uuid.New()}
	h.runner = batch.NewRunner(h.store, h.store, h.store,
		mocks.NewMockArtifactBuilderWithURLs("https://pdf/resume.pdf", "https://pdf/cover.pdf"),
		cfg, batch.WithLogger(log))
	h.token = h.tokenFor(t, h.userID)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	api.MountBatchRoutes(r,
		api.NewBatchHandler(h.runner, log),
		api.NewWorkerHandler(h.runner, log),
		middleware.NewAuthMiddleware(jwtSvc).Authenticate,
		middleware.RequireWorkerSecret(auth.NewWorkerSecretVerifier(testWorkerSecret)))
	h.router = r
	return h
}

func (h *harness) tokenFor(t *testing.T, userID uuid.UUID) string {
	t.Helper()
	token, err := h.jwt.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	return token
}

// addJobs stores n NEW jobs for userID, newest first.
func (h *harness) addJobs(userID uuid.UUID, n int) []*domain.Job {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	jobs := make([]*domain.Job, n)
	for i := 0; i < n; i++ {
		company := fmt.Sprintf("Company %d", i)
		jobs[i] = &domain.Job{
			ID:        uuid.New(),
			UserID:    userID,
			Title:     fmt.Sprintf("Engineer %d", i),
			Company:   &company,
			JobURL:    fmt.Sprintf("https://jobs.example.com/%d", i),
			Status:    domain.JobStatusNew,
			CreatedAt: base,
			UpdatedAt: base.Add(-time.Duration(i) * time.Minute),
		}
		h.store.AddJob(jobs[i])
	}
	return jobs
}

// newBatch creates a batch over n fresh jobs of the harness user.
func (h *harness) newBatch(t *testing.T, n int) *domain.Batch {
	t.Helper()
	h.addJobs(h.userID, n)
	b, err := h.runner.Create(context.Background(), h.userID, batch.CreateOptions{})
	require.NoError(t, err)
	return b
}

type requestOption func(*http.Request)

func withToken(token string) requestOption {
	return func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }
}

func withSecret(secret string) requestOption {
	return func(r *http.Request) { r.Header.Set(batch.WorkerSecretHeader, secret) }
}

func (h *harness) do(t *testing.T, method, path string, body interface{}, opts ...requestOption) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	switch b := body.(type) {
	case nil:
	case string:
		buf.WriteString(b)
	default:
		require.NoError(t, json.NewEncoder(&buf).Encode(b))
	}
	req := httptest.NewRequest(method, api.BatchRoutesPrefix+path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	rec := httptest.NewRecorder()
	h.router.ServeHTTP(rec, req)
	return rec
}

// doUser sends an authenticated request as the harness user.
func (h *harness) doUser(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	return h.do(t, method, path, body, withToken(h.token))
}

func decodeMap(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func decodeInto(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String())
}
