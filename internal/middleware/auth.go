// Package middleware contains HTTP middleware for the FluentBridge API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed with Stack.
package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/mwilcek/fluentbridge/internal/auth"
	"github.com/mwilcek/fluentbridge/internal/handler"
	"github.com/mwilcek/fluentbridge/internal/store"
)

// =============================================================================
// Auth Middleware
// =============================================================================

// AuthMiddleware resolves API bearer tokens to user identities.
type AuthMiddleware struct {
	tokens store.TokenVerifier
	logger *slog.Logger
}

// NewAuthMiddleware creates an AuthMiddleware.
func NewAuthMiddleware(tokens store.TokenVerifier, logger *slog.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		tokens: tokens,
		logger: logger,
	}
}

// WithUser attempts to resolve the Authorization bearer token and, on
// success, stores the user ID in the request context. The request
// continues either way; pair with RequireUser on protected routes.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token, ok := bearerToken(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		userID, err := m.tokens.UserIDForToken(r.Context(), TokenDigest(token))
		if err != nil {
			// Invalid token: continue unauthenticated rather than
			// leaking whether the token exists.
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUserID(r.Context(), userID)))
	})
}

// RequireUser rejects requests without an authenticated user. Must run
// after WithUser.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUserID(r.Context()) == uuid.Nil {
			handler.UnauthorizedResponse(w, r, m.logger)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// TokenDigest returns the hex-encoded SHA-256 digest of a raw API
// token. Only digests are stored or looked up; raw tokens never touch
// the store.
func TokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

func bearerToken(r *http.Request) (string, bool) {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) {
		return "", false
	}
	token := strings.TrimSpace(auth[len(prefix):])
	return token, token != ""
}

// =============================================================================
// Middleware Stack
// =============================================================================

// Stack composes middlewares so the first argument is the outermost.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
