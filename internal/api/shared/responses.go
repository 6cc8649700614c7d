package shared

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
	"github.com/phrazzld/jobtrail-api/internal/redact"
)

// ErrorResponse defines the standard error response structure. Error carries
// a stable, machine-readable code such as NOT_FOUND or INVALID_STATE.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
	Details any    `json:"details,omitempty"`

	// Populated for conflicts that point at another batch.
	BatchID string `json:"batchId,omitempty"`
	Status  string `json:"status,omitempty"`

	Code    int    `json:"-"` // Not serialized to JSON, used for logging
	TraceID string `json:"trace_id,omitempty"`
}

// ResponseOption defines a function to customize response behavior.
type ResponseOption func(*responseOptions)

type responseOptions struct {
	elevateLogLevel bool
}

// WithElevatedLogLevel returns a ResponseOption that raises 4xx errors to WARN level
// instead of the default DEBUG level.
func WithElevatedLogLevel() ResponseOption {
	return func(opts *responseOptions) {
		opts.elevateLogLevel = true
	}
}

// RespondWithJSON writes a JSON response with the given status code and data.
func RespondWithJSON(w http.ResponseWriter, r *http.Request, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.FromContextOrDefault(r.Context(), slog.Default()).
			Error("failed to encode JSON response", "error", err)
	}
}

// RespondWithError writes a JSON error response carrying code and an optional
// message. The trace ID is taken from the request context when present.
func RespondWithError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	RespondWithErrorBody(w, r, ErrorResponse{Code: status, Error: code, Message: message})
}

// RespondWithErrorBody writes body as the error response, using body.Code as
// the HTTP status.
func RespondWithErrorBody(w http.ResponseWriter, r *http.Request, body ErrorResponse) {
	body.TraceID = GetTraceID(r.Context())

	slog.Debug("sending error response",
		"status_code", body.Code,
		"error_code", body.Error,
		"trace_id", body.TraceID,
		"path", r.URL.Path,
		"method", r.Method)

	RespondWithJSON(w, r, body.Code, body)
}

// RespondWithErrorAndLog writes a JSON error response and logs the detailed,
// redacted error alongside it. Only body reaches the client.
//
// Log level strategy:
// - 5xx errors: ERROR
// - 429 Too Many Requests: WARN
// - other 4xx errors: DEBUG, or WARN with WithElevatedLogLevel()
func RespondWithErrorAndLog(
	w http.ResponseWriter,
	r *http.Request,
	body ErrorResponse,
	err error,
	opts ...ResponseOption,
) {
	traceID := GetTraceID(r.Context())
	status := body.Code

	logAttrs := []slog.Attr{
		slog.String("trace_id", traceID),
		slog.String("path", r.URL.Path),
		slog.String("method", r.Method),
		slog.Int("status_code", status),
		slog.String("error_code", body.Error),
	}

	if err != nil {
		logAttrs = append(logAttrs,
			slog.String("error", redact.Error(err)),
			slog.String("error_type", fmt.Sprintf("%T", err)))
	}

	responseOpts := responseOptions{}
	for _, opt := range opts {
		opt(&responseOpts)
	}

	logLevel := slog.LevelDebug
	if status >= http.StatusInternalServerError {
		logLevel = slog.LevelError
	} else if status == http.StatusTooManyRequests {
		logLevel = slog.LevelWarn
	} else if responseOpts.elevateLogLevel && status >= http.StatusBadRequest {
		logLevel = slog.LevelWarn
	}

	log := logger.FromContextOrDefault(r.Context(), slog.Default())
	log.LogAttrs(r.Context(), logLevel, "API error response", logAttrs...)

	body.TraceID = traceID
	RespondWithJSON(w, r, status, body)
}
