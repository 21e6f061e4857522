package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"net/http"

	"github.com/verdantlabs/checkout/internal/domain/auth"
)

type identityKey struct{}

// Identity is the authenticated caller attached to the request context by
// the API key middleware.
type Identity struct {
	UserID string
	Admin  bool
}

// IdentityFrom extracts the authenticated caller from ctx. The second return
// is false on unauthenticated requests, which only happens on routes mounted
// outside the auth middleware.
func IdentityFrom(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(identityKey{}).(Identity)
	return id, ok
}

// SecurityHandler authenticates API requests via HMAC-SHA256 hashed API keys.
type SecurityHandler struct {
	apikeys auth.Repository
	pepper  []byte
}

// NewSecurityHandler creates a SecurityHandler with the given API key
// repository and HMAC pepper.
func NewSecurityHandler(apikeys auth.Repository, pepper []byte) *SecurityHandler {
	return &SecurityHandler{
		apikeys: apikeys,
		pepper:  pepper,
	}
}

// hashKey computes the HMAC-SHA256 of a raw API key under the pepper.
func (s *SecurityHandler) hashKey(key string) []byte {
	mac := hmac.New(sha256.New, s.pepper)
	mac.Write([]byte(key))
	return mac.Sum(nil)
}

// authenticate resolves the raw API key to a caller identity, performing a
// constant-time comparison to prevent timing side-channels even though the
// lookup already succeeded.
func (s *SecurityHandler) authenticate(ctx context.Context, key string) (Identity, error) {
	hash := s.hashKey(key)

	info, err := s.apikeys.FindByHash(ctx, hex.EncodeToString(hash))
	if err != nil {
		return Identity{}, errUnauthorized
	}

	storedBytes, err := hex.DecodeString(info.KeyHash)
	if err != nil {
		return Identity{}, errUnauthorized
	}
	if subtle.ConstantTimeCompare(hash, storedBytes) != 1 {
		return Identity{}, errUnauthorized
	}

	return Identity{UserID: info.UserID, Admin: info.Admin}, nil
}

// Middleware authenticates each request from the X-API-Key header and stores
// the resolved identity in the request context.
func (s *SecurityHandler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Header.Get("X-API-Key")
		if key == "" {
			writeError(w, http.StatusUnauthorized, "missing API key", "")
			return
		}

		id, err := s.authenticate(r.Context(), key)
		if err != nil {
			writeError(w, http.StatusUnauthorized, "invalid API key", "")
			return
		}

		ctx := context.WithValue(r.Context(), identityKey{}, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects authenticated callers whose key does not carry the
// admin flag. It must be mounted inside Middleware.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, ok := IdentityFrom(r.Context())
		if !ok || !id.Admin {
			writeError(w, http.StatusForbidden, "admin access required", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
