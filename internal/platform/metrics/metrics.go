// Package metrics exposes Prometheus instrumentation for the HTTP server and
// the batch runner.
package metrics

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/events"
	"github.com/phrazzld/jobtrail-api/internal/store"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "jobtrail"
	unmatched = "unmatched"
)

// Metrics holds every collector of the service.
type Metrics struct {
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
	claimAttempts   *prometheus.CounterVec
	reclaimedTasks  *prometheus.CounterVec
	completedTasks  *prometheus.CounterVec
	batchesCreated  prometheus.Counter
	batchesFinished *prometheus.CounterVec
	workerSteps     *prometheus.CounterVec
	gatherer        prometheus.Gatherer
}

var _ batch.Metrics = (*Metrics)(nil)

// New creates the collectors and registers them with reg. A nil reg uses a
// fresh registry, which is what tests want.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	m := &Metrics{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests.",
		}, []string{"method", "path", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path"}),
		claimAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_claim_attempts_total",
			Help:      "Conditional task claims by result.",
		}, []string{"result"}),
		reclaimedTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_reclaimed_tasks_total",
			Help:      "Stale RUNNING tasks reset to PENDING or failed at the attempt cap.",
		}, []string{"action"}),
		completedTasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_completed_tasks_total",
			Help:      "Tasks moved to a terminal status by a completion.",
		}, []string{"status"}),
		batchesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_created_total",
			Help:      "Batches created, including retry batches.",
		}),
		batchesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_finished_total",
			Help:      "Batches that reached a terminal status.",
		}, []string{"status"}),
		workerSteps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batch_worker_steps_total",
			Help:      "Cross-user worker steps by outcome.",
		}, []string{"outcome"}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.httpRequests,
		m.httpDuration,
		m.claimAttempts,
		m.reclaimedTasks,
		m.completedTasks,
		m.batchesCreated,
		m.batchesFinished,
		m.workerSteps,
	)

	for _, o := range []batch.Outcome{batch.OutcomeProcessed, batch.OutcomeDone, batch.OutcomeNotFound, batch.OutcomeIdle} {
		m.workerSteps.WithLabelValues(string(o))
	}
	m.claimAttempts.WithLabelValues("won")
	m.claimAttempts.WithLabelValues("lost")

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

// Middleware records request count and duration for every HTTP request.
// Uses the chi route pattern (not the raw path) to avoid unbounded cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		path := routePattern(r)
		m.httpRequests.WithLabelValues(r.Method, path, strconv.Itoa(status)).Inc()
		m.httpDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx != nil && rctx.RoutePattern() != "" {
		return rctx.RoutePattern()
	}
	return unmatched
}

// ClaimAttempt implements batch.Metrics.
func (m *Metrics) ClaimAttempt(won bool) {
	result := "lost"
	if won {
		result = "won"
	}
	m.claimAttempts.WithLabelValues(result).Inc()
}

// Reclaimed implements batch.Metrics.
func (m *Metrics) Reclaimed(res store.ReclaimResult) {
	m.reclaimedTasks.WithLabelValues("reset").Add(float64(res.Reset))
	m.reclaimedTasks.WithLabelValues("exhausted").Add(float64(res.Exhausted))
}

// Step implements batch.Metrics.
func (m *Metrics) Step(outcome batch.Outcome) {
	m.workerSteps.WithLabelValues(string(outcome)).Inc()
}

// HandleEvent counts batch lifecycle events. It implements events.EventHandler.
func (m *Metrics) HandleEvent(_ context.Context, e *events.Event) error {
	switch e.Type {
	case events.BatchCreated:
		m.batchesCreated.Inc()
	case events.TaskCompleted, events.BatchFinished:
		p, err := e.BatchPayload()
		if err != nil {
			return err
		}
		if e.Type == events.TaskCompleted {
			m.completedTasks.WithLabelValues(p.Status).Inc()
		} else {
			m.batchesFinished.WithLabelValues(p.Status).Inc()
		}
	}
	return nil
}
