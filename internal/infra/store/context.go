package store

import "context"

type contextKey struct{}

// WithConn returns a context carrying the request's Conn.
func WithConn(ctx context.Context, conn *Conn) context.Context {
	return context.WithValue(ctx, contextKey{}, conn)
}

// ConnFromContext returns the request's Conn, if one was attached.
func ConnFromContext(ctx context.Context) (*Conn, bool) {
	conn, ok := ctx.Value(contextKey{}).(*Conn)

	return conn, ok && conn != nil
}
