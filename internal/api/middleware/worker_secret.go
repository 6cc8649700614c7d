package middleware

import (
	"errors"
	"net/http"

	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/batch"
	"github.com/phrazzld/jobtrail-api/internal/service/auth"
)

// RequireWorkerSecret guards the worker routes with the shared secret carried
// in the batch.WorkerSecretHeader header. An unset secret is a deployment
// error and answers 500 rather than letting every caller through.
func RequireWorkerSecret(verifier auth.SecretVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			err := verifier.Verify(r.Header.Get(batch.WorkerSecretHeader))
			switch {
			case err == nil:
				next.ServeHTTP(w, r)
			case errors.Is(err, auth.ErrSecretNotConfigured):
				shared.RespondWithErrorAndLog(w, r, shared.ErrorResponse{
					Code:    http.StatusInternalServerError,
					Error:   "WORKER_SECRET_NOT_CONFIGURED",
					Message: "Worker secret is not configured",
				}, err)
			default:
				shared.RespondWithErrorAndLog(w, r, unauthorized(), err, shared.WithElevatedLogLevel())
			}
		})
	}
}
