package api

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/kalambet/vita/internal/storage"
)

type contextKey string

const userIDKey contextKey = "user_id"

// TokenResolver maps a bearer token to a user identity.
// Implemented by storage.Store.
type TokenResolver interface {
	ResolveToken(token string) (string, error)
}

// UserAuth authenticates per-user requests: the bearer token is resolved
// against api_tokens and the owning user id is placed in the request
// context. Identity comes from the credential, never from the body.
func UserAuth(resolver TokenResolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r)
			if !ok {
				httpError(w, http.StatusUnauthorized, "authentication_error", "missing bearer token")
				return
			}

			userID, err := resolver.ResolveToken(token)
			if err != nil {
				if errors.Is(err, storage.ErrNotFound) {
					httpError(w, http.StatusUnauthorized, "authentication_error", "invalid bearer token")
					return
				}
				httpError(w, http.StatusInternalServerError, "api_error", "resolving token: %v", err)
				return
			}

			ctx := context.WithValue(r.Context(), userIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// AdminAuth guards operator endpoints with the single service token from
// config.
func AdminAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, ok := bearerToken(r)
			if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
				httpError(w, http.StatusUnauthorized, "authentication_error", "invalid or missing bearer token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || len(auth) == len(prefix) {
		return "", false
	}
	return auth[len(prefix):], true
}

// UserID returns the authenticated user id placed by UserAuth.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(userIDKey).(string)
	return id
}
