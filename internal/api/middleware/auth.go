package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/api/shared"
	"github.com/phrazzld/jobtrail-api/internal/service/auth"
)

// CodeUnauthorized is the error code of every rejected credential.
const CodeUnauthorized = "UNAUTHORIZED"

// UserIDKey is the context key under which the authenticated user ID is stored.
const UserIDKey = shared.UserIDContextKey

// AuthMiddleware provides JWT authentication for routes.
type AuthMiddleware struct {
	jwtService auth.JWTService
}

// NewAuthMiddleware creates a new AuthMiddleware with the given dependencies.
func NewAuthMiddleware(jwtService auth.JWTService) *AuthMiddleware {
	return &AuthMiddleware{
		jwtService: jwtService,
	}
}

// Authenticate validates the bearer token and adds the user ID to the request
// context. Every failure answers 401 UNAUTHORIZED without saying why.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r.Header.Get("Authorization"))
		if !ok {
			shared.RespondWithErrorAndLog(w, r, unauthorized(), auth.ErrMissingToken)
			return
		}

		claims, err := m.jwtService.ValidateToken(r.Context(), token)
		if err != nil {
			var opts []shared.ResponseOption
			if !errors.Is(err, auth.ErrExpiredToken) {
				// Expired tokens are routine; forged or malformed ones are not.
				opts = append(opts, shared.WithElevatedLogLevel())
			}
			shared.RespondWithErrorAndLog(w, r, unauthorized(), err, opts...)
			return
		}
		if claims == nil || claims.UserID == uuid.Nil {
			shared.RespondWithErrorAndLog(w, r, unauthorized(), auth.ErrInvalidToken, shared.WithElevatedLogLevel())
			return
		}

		ctx := context.WithValue(r.Context(), shared.UserIDContextKey, claims.UserID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func bearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

func unauthorized() shared.ErrorResponse {
	return shared.ErrorResponse{Code: http.StatusUnauthorized, Error: CodeUnauthorized}
}

// GetUserID extracts the user ID from the request context.
// Returns the user ID and a boolean indicating if it was found.
func GetUserID(r *http.Request) (uuid.UUID, bool) {
	userID, ok := r.Context().Value(shared.UserIDContextKey).(uuid.UUID)
	return userID, ok
}
