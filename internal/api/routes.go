package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// BatchRoutesPrefix is where the application batch routes are mounted.
const BatchRoutesPrefix = "/api/application-batches"

// MountBatchRoutes registers the user routes behind authenticate and the
// worker route behind workerGuard under BatchRoutesPrefix.
func MountBatchRoutes(
	r chi.Router,
	batches *BatchHandler,
	worker *WorkerHandler,
	authenticate func(http.Handler) http.Handler,
	workerGuard func(http.Handler) http.Handler,
) {
	r.Route(BatchRoutesPrefix, func(r chi.Router) {
		r.Mount("/worker", worker.Routes(workerGuard))
		r.Mount("/", batches.Routes(authenticate))
	})
}
