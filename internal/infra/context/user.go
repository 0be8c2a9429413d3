package context

import (
	"context"

	"github.com/mkrupp/homecase-auth/internal/domain"
)

const contextKeyUser = contextKey("user")

// UserFromContext returns the user resolved for the current request.
// Returns nil and false for anonymous requests.
func UserFromContext(ctx context.Context) (*domain.User, bool) {
	user, ok := ctx.Value(contextKeyUser).(*domain.User)

	return user, ok && user != nil
}

// WithUser creates a new context carrying the resolved user for the rest of the request.
// A nil user marks the request as anonymous.
func WithUser(ctx context.Context, user *domain.User) context.Context {
	return context.WithValue(ctx, contextKeyUser, user)
}
