// Package auth provides authentication context helpers.
//
// This package is designed to be imported by both middleware and handler
// packages without causing import cycles.
package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const userContextKey contextKey = "user"

// GetUserID retrieves the authenticated user ID from the context.
// Returns uuid.Nil if no user is authenticated.
func GetUserID(ctx context.Context) uuid.UUID {
	id, ok := ctx.Value(userContextKey).(uuid.UUID)
	if !ok {
		return uuid.Nil
	}
	return id
}

// GetUserIDFromRequest retrieves the authenticated user ID from the
// request context.
func GetUserIDFromRequest(r *http.Request) uuid.UUID {
	return GetUserID(r.Context())
}

// SetUserID stores a user ID in the context. Called by authentication
// middleware after resolving an API token.
func SetUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userContextKey, id)
}
