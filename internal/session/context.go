package session

import "context"

type contextKey struct{}

// WithSession returns a context carrying the request's session.
func WithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, contextKey{}, sess)
}

// FromContext returns the request's session, if one was attached.
func FromContext(ctx context.Context) (*Session, bool) {
	sess, ok := ctx.Value(contextKey{}).(*Session)

	return sess, ok && sess != nil
}
