package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
)

// TraceIDHeader echoes the request's trace ID to the client.
const TraceIDHeader = "X-Trace-ID"

// NewTraceMiddleware assigns every request a trace ID and a request-scoped
// logger derived from base that carries it. Apply it early in the chain so
// later handlers and error responses share the ID.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			traceID := shared.NewTraceID()

			ctx := logger.WithLogger(r.Context(), base)
			ctx = logger.WithTraceID(ctx, traceID)
			ctx = shared.WithTraceID(ctx, traceID)

			w.Header().Set(TraceIDHeader, traceID)
			logger.FromContext(ctx).Debug("request started",
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.String("remote_addr", r.RemoteAddr))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
