package auth

import (
	"context"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/jobtrail-api/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret-that-is-long-enough-for-testing"

func newTestJWTService(t *testing.T, secret string, lifetime time.Duration, now func() time.Time) JWTService {
	t.Helper()
	svc, err := NewJWTServiceWithClock(config.AuthConfig{
		JWTSecret:            secret,
		TokenLifetimeMinutes: int(lifetime / time.Minute),
	}, now)
	require.NoError(t, err)
	return svc
}

func TestNewJWTService_RejectsShortSecret(t *testing.T) {
	t.Parallel()

	_, err := NewJWTService(config.AuthConfig{JWTSecret: "short", TokenLifetimeMinutes: 60})
	assert.Error(t, err)
}

func TestGenerateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lifetime := 60 * time.Minute
	userID := uuid.New()
	svc := newTestJWTService(t, testSecret, lifetime, func() time.Time { return fixedTime })

	token, err := svc.GenerateToken(context.Background(), userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := svc.ValidateToken(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, userID.String(), claims.Subject)
	assert.Equal(t, accessTokenType, claims.TokenType)
	assert.Equal(t, fixedTime.Unix(), claims.IssuedAt.Unix())
	assert.Equal(t, fixedTime.Add(lifetime).Unix(), claims.ExpiresAt.Unix())
	assert.NotEmpty(t, claims.ID)
}

func signRaw(t *testing.T, claims jwtCustomClaims, method jwt.SigningMethod, key any) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func TestValidateToken(t *testing.T) {
	t.Parallel()

	fixedTime := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	lifetime := 60 * time.Minute
	userID := uuid.New()
	at := func(ts time.Time) func() time.Time { return func() time.Time { return ts } }

	issued := newTestJWTService(t, testSecret, lifetime, at(fixedTime))
	token, err := issued.GenerateToken(context.Background(), userID)
	require.NoError(t, err)

	refreshClaims := jwtCustomClaims{
		UserID:    userID,
		TokenType: "refresh",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
		},
	}
	noUserClaims := jwtCustomClaims{
		TokenType: accessTokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(fixedTime.Add(time.Hour)),
		},
	}

	tests := []struct {
		name    string
		svc     JWTService
		token   string
		wantErr error
	}{
		{name: "valid token", svc: issued, token: token},
		{
			name:  "within clock skew",
			svc:   newTestJWTService(t, testSecret, lifetime, at(fixedTime.Add(lifetime+time.Minute))),
			token: token,
		},
		{
			name:    "expired token",
			svc:     newTestJWTService(t, testSecret, lifetime, at(fixedTime.Add(lifetime+time.Hour))),
			token:   token,
			wantErr: ErrExpiredToken,
		},
		{
			name:    "invalid signature",
			svc:     newTestJWTService(t, "wrong-secret-that-is-long-enough-for-testing", lifetime, at(fixedTime)),
			token:   token,
			wantErr: ErrInvalidToken,
		},
		{name: "malformed token", svc: issued, token: "this.is.not.a.valid.jwt.token", wantErr: ErrInvalidToken},
		{
			name:    "wrong token type",
			svc:     issued,
			token:   signRaw(t, refreshClaims, jwt.SigningMethodHS256, []byte(testSecret)),
			wantErr: ErrWrongTokenType,
		},
		{
			name:    "other hmac method",
			svc:     issued,
			token:   signRaw(t, refreshClaims, jwt.SigningMethodHS512, []byte(testSecret)),
			wantErr: ErrInvalidToken,
		},
		{
			name:    "missing user id",
			svc:     issued,
			token:   signRaw(t, noUserClaims, jwt.SigningMethodHS256, []byte(testSecret)),
			wantErr: ErrInvalidToken,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			claims, err := tt.svc.ValidateToken(context.Background(), tt.token)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, claims)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, userID, claims.UserID)
		})
	}
}
