// Package auth carries the authenticated user through a request's context
// and issues/validates the JWT session tokens used by the HTTP surface.
// Secrets (JWT signing key, DB URL) are consumed from the environment,
// never hardcoded, following the same auth.GetUserFromContext
// contract used elsewhere in this codebase.
package auth

import (
	"context"

	"github.com/tradecopier/copier/internal/model"
)

type contextKey string

const userKey contextKey = "user"

// WithUser returns a context carrying the authenticated user.
func WithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userKey, user)
}

// GetUserFromContext returns the authenticated user stored by WithUser.
func GetUserFromContext(ctx context.Context) (*model.User, bool) {
	user, ok := ctx.Value(userKey).(*model.User)
	return user, ok
}
