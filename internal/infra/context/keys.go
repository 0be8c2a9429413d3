// Package context holds typed accessors for request-scoped values shared by
// the transport, logging and service layers.
package context

type contextKey string
