package main

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/api"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/generation"
	"github.com/phrazzld/jobtrail-api/internal/mocks"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger/logtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testWorkerSecret = "server-test-worker-secret"

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080, LogLevel: "debug"},
		Database: config.DatabaseConfig{URL: "postgres://app:pw@localhost:5432/jobtrail", MaxOpenConns: 5},
		Auth: config.AuthConfig{
			JWTSecret:            "server-test-jwt-secret-of-32-characters",
			TokenLifetimeMinutes: 30,
		},
		Batch: config.BatchConfig{
			StaleAfterMinutes: 15,
			ClaimRetries:      5,
			WorkerSecret:      testWorkerSecret,
		},
		Worker: config.WorkerConfig{
			Count:                1,
			PollIntervalSeconds:  5,
			SweepIntervalSeconds: 60,
			MaxStepsPerPoll:      1,
		},
		LLM:       config.LLMConfig{ModelName: "gemini-2.0-flash", RetryDelaySeconds: 1},
		Artifacts: config.ArtifactsConfig{RequestTimeoutSeconds: 5},
	}
}

func newTestApplication(t *testing.T, cfg *config.Config) *application {
	t.Helper()
	log, _ := logtest.New(t)
	mem := mocks.NewMemoryStore()
	app, err := assembleApplication(cfg, log, nil, stores{batches: mem, jobs: mem, apps: mem},
		mocks.NewMockArtifactBuilderWithURLs("https://pdf/r.pdf", "https://pdf/c.pdf"))
	require.NoError(t, err)
	return app
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestSetupRouter_Health(t *testing.T) {
	t.Parallel()

	t.Run("without database", func(t *testing.T) {
		t.Parallel()
		app := newTestApplication(t, testConfig())

		rec := serve(app.setupRouter(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "OK", rec.Body.String())
	})

	t.Run("database ping fails", func(t *testing.T) {
		t.Parallel()
		db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		defer func() { _ = db.Close() }()
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))

		app := newTestApplication(t, testConfig())
		app.db = db

		rec := serve(app.setupRouter(), httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestSetupRouter_Metrics(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t, testConfig())
	router := app.setupRouter()

	serve(router, httptest.NewRequest(http.MethodGet, "/health", nil))
	rec := serve(router, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "jobtrail_http_requests_total")
	assert.Contains(t, body, `path="/health"`)
	assert.Contains(t, body, "go_goroutines")
}

func TestSetupRouter_BatchRoutes(t *testing.T) {
	t.Parallel()
	app := newTestApplication(t, testConfig())
	router := app.setupRouter()

	rec := serve(router, httptest.NewRequest(http.MethodGet, api.BatchRoutesPrefix+"/latest", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	token, err := app.jwtService.GenerateToken(context.Background(), uuid.New())
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, api.BatchRoutesPrefix+"/latest", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec = serve(router, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"batchId":null,"status":null,"updatedAt":null}`, rec.Body.String())

	req = httptest.NewRequest(http.MethodPost, api.BatchRoutesPrefix+"/worker/next", nil)
	req.Header.Set(batch.WorkerSecretHeader, testWorkerSecret)
	rec = serve(router, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"outcome":"idle"}`, rec.Body.String())
}

func TestSetupRouter_CORS(t *testing.T) {
	t.Parallel()
	cfg := testConfig()
	cfg.Server.CORSAllowedOrigins = []string{"https://app.example.com"}
	router := newTestApplication(t, cfg).setupRouter()

	req := httptest.NewRequest(http.MethodOptions, api.BatchRoutesPrefix+"/latest", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec := serve(router, req)
	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodOptions, api.BatchRoutesPrefix+"/latest", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rec = serve(router, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAssembleApplication(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		mutate         func(*config.Config)
		wantErr        bool
		wantDispatcher bool
		wantWake       bool
	}{
		{name: "defaults", mutate: func(*config.Config) {}},
		{
			name:           "worker enabled",
			mutate:         func(c *config.Config) { c.Worker.Enabled = true },
			wantDispatcher: true,
		},
		{
			name: "redis configured",
			mutate: func(c *config.Config) {
				c.Worker.Enabled = true
				c.Redis.URL = "redis://localhost:6379/0"
			},
			wantDispatcher: true,
			wantWake:       true,
		},
		{
			name:    "bad redis url",
			mutate:  func(c *config.Config) { c.Redis.URL = "http://localhost:6379" },
			wantErr: true,
		},
		{
			name:    "short jwt secret",
			mutate:  func(c *config.Config) { c.Auth.JWTSecret = "short" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := testConfig()
			tt.mutate(cfg)
			log, _ := logtest.New(t)
			mem := mocks.NewMemoryStore()

			app, err := assembleApplication(cfg, log, nil, stores{batches: mem, jobs: mem, apps: mem}, &mocks.MockArtifactBuilder{})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			t.Cleanup(app.cleanup)

			assert.Equal(t, tt.wantDispatcher, app.dispatcher != nil)
			assert.Equal(t, tt.wantWake, app.wake != nil)
			assert.Equal(t, cfg.Batch.StaleAfter(), app.runner.Config().StaleAfter)
		})
	}
}

func TestNewArtifactBuilder_Unconfigured(t *testing.T) {
	t.Parallel()
	log, _ := logtest.New(t)

	builder, err := newArtifactBuilder(context.Background(), testConfig(), log, mocks.NewMemoryStore())
	require.NoError(t, err)

	_, err = builder.Build(context.Background(), uuid.New(), &domain.Job{ID: uuid.New(), Title: "Engineer"})
	assert.ErrorIs(t, err, generation.ErrTailorUnavailable)
}
