package http

import (
	"net/http"

	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
)

// StoreMiddleware creates middleware that gives every request its own store
// connection. The connection is opened on first use and released when the
// request ends, also if the handler panics. Uncommitted writes are discarded.
func StoreMiddleware(next http.Handler, st *store.Store, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn := st.Acquire()

		defer func() {
			if err := conn.Close(); err != nil {
				log.ErrorContext(r.Context(), "release store connection failed", "error", err)
			}
		}()

		next.ServeHTTP(w, r.WithContext(store.WithConn(r.Context(), conn)))
	})
}
