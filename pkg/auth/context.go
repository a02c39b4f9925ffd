// Package auth validates memoir access tokens and exposes the authenticated
// user ID to downstream handlers through the request context.
package auth

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

type contextKey string

// UserIDKey is the context key under which the middleware stores the
// authenticated user's UUID.
const UserIDKey contextKey = "auth.userID"

// WithUserID returns a context carrying the given user ID.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, UserIDKey, userID)
}

// GetUserID extracts the authenticated user's UUID from the context.
// Returns uuid.Nil and false when the request was not authenticated.
func GetUserID(ctx context.Context) (uuid.UUID, bool) {
	userID, ok := ctx.Value(UserIDKey).(uuid.UUID)
	if !ok || userID == uuid.Nil {
		return uuid.Nil, false
	}
	return userID, true
}

// RequireUserID extracts the authenticated user's UUID from the context and
// returns an error if not present. Use when the operation cannot proceed
// without a user scope.
func RequireUserID(ctx context.Context) (uuid.UUID, error) {
	userID, ok := GetUserID(ctx)
	if !ok {
		return uuid.Nil, fmt.Errorf("user ID not found in context")
	}
	return userID, nil
}
