package auth

import (
	"crypto/subtle"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// SecretVerifier checks the shared secret presented by worker callers.
type SecretVerifier interface {
	Verify(presented string) error
}

// WorkerSecretVerifier accepts either a plain configured secret, compared in
// constant time, or a bcrypt hash of it.
type WorkerSecretVerifier struct {
	configured string
	hashed     bool
}

// NewWorkerSecretVerifier wraps the configured secret. An empty secret makes
// every Verify call return ErrSecretNotConfigured.
func NewWorkerSecretVerifier(configured string) *WorkerSecretVerifier {
	return &WorkerSecretVerifier{
		configured: configured,
		hashed:     isBcryptHash(configured),
	}
}

// Verify returns nil when presented matches.
func (v *WorkerSecretVerifier) Verify(presented string) error {
	if v.configured == "" {
		return ErrSecretNotConfigured
	}
	if presented == "" {
		return ErrSecretMismatch
	}
	if v.hashed {
		if bcrypt.CompareHashAndPassword([]byte(v.configured), []byte(presented)) != nil {
			return ErrSecretMismatch
		}
		return nil
	}
	if subtle.ConstantTimeCompare([]byte(v.configured), []byte(presented)) != 1 {
		return ErrSecretMismatch
	}
	return nil
}

// HashSecret returns the bcrypt hash to store instead of the plain secret.
func HashSecret(secret string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	h, err := bcrypt.GenerateFromPassword([]byte(secret), cost)
	return string(h), err
}

func isBcryptHash(s string) bool {
	if len(s) != 60 {
		return false
	}
	return strings.HasPrefix(s, "$2a$") || strings.HasPrefix(s, "$2b$") || strings.HasPrefix(s, "$2y$")
}
