package main

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phrazzld/jobtrail-api/internal/api"
	apiMiddleware "github.com/phrazzld/jobtrail-api/internal/api/middleware"
	"github.com/phrazzld/jobtrail-api/internal/batch"
)

const healthPingTimeout = 2 * time.Second

// setupRouter creates the router with the middleware stack and every route.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(app.metrics.Middleware)
	if origins := app.config.Server.CORSAllowedOrigins; len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: origins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", batch.WorkerSecretHeader},
			ExposedHeaders: []string{apiMiddleware.TraceIDHeader},
			MaxAge:         300,
		}))
	}

	api.MountBatchRoutes(r,
		api.NewBatchHandler(app.runner, app.logger),
		api.NewWorkerHandler(app.runner, app.logger),
		apiMiddleware.NewAuthMiddleware(app.jwtService).Authenticate,
		apiMiddleware.RequireWorkerSecret(app.workerVerifier),
	)

	r.Get("/health", app.health)
	r.Method(http.MethodGet, "/metrics", app.metrics.Handler())

	return r
}

// health reports OK when the database answers a ping.
func (app *application) health(w http.ResponseWriter, r *http.Request) {
	if app.db != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthPingTimeout)
		defer cancel()
		if err := app.db.PingContext(ctx); err != nil {
			app.logger.Warn("Health check failed", "error", err)
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
	}

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("OK")); err != nil {
		app.logger.Error("Failed to write health check response", "error", err)
	}
}
