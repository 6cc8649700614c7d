package api

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/domain"
	"github.com/phrazzld/jobtrail-api/internal/platform/logger"
)

// getUserIDFromContext extracts the authenticated user's UUID from the request
// context, where the authentication middleware placed it.
func getUserIDFromContext(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// getPathUUID parses the named chi path parameter as a UUID.
func getPathUUID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, domain.NewValidationError(paramName, "is required", domain.ErrValidation)
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, domain.NewValidationError(paramName, "has invalid format", domain.ErrInvalidID)
	}

	return id, nil
}

// handleUserIDAndPathUUIDs resolves the caller and every named path UUID.
// On failure it writes the error response and returns ok=false.
func handleUserIDAndPathUUIDs(
	w http.ResponseWriter,
	r *http.Request,
	paramNames ...string,
) (userID uuid.UUID, ids []uuid.UUID, ok bool) {
	log := logger.FromContextOrDefault(r.Context(), slog.Default())

	userID, ok = getUserIDFromContext(r)
	if !ok {
		log.Warn("user ID not found or invalid in request context")
		HandleAPIError(w, r, domain.ErrUnauthorized)
		return uuid.Nil, nil, false
	}

	ids = make([]uuid.UUID, 0, len(paramNames))
	for _, name := range paramNames {
		id, err := getPathUUID(r, name)
		if err != nil {
			log.Debug("invalid path parameter",
				slog.String("param_name", name),
				slog.String("value", chi.URLParam(r, name)))
			HandleAPIError(w, r, err)
			return uuid.Nil, nil, false
		}
		ids = append(ids, id)
	}
	return userID, ids, true
}

// handleUserIDAndPathUUID is handleUserIDAndPathUUIDs for a single parameter.
func handleUserIDAndPathUUID(w http.ResponseWriter, r *http.Request, paramName string) (uuid.UUID, uuid.UUID, bool) {
	userID, ids, ok := handleUserIDAndPathUUIDs(w, r, paramName)
	if !ok {
		return uuid.Nil, uuid.Nil, false
	}
	return userID, ids[0], true
}

// decodeAndValidate decodes the JSON body into v and validates it. An empty
// body is accepted; v keeps its zero value. Failures are *BodyError.
func decodeAndValidate(r *http.Request, v interface{}) error {
	if err := shared.DecodeJSON(r, v); err != nil {
		return newBodyError(err)
	}
	if err := shared.ValidateRequest(v); err != nil {
		return newBodyError(err)
	}
	return nil
}
