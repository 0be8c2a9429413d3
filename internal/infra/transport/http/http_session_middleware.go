package http

import (
	"net/http"

	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/session"
)

// sessionResponseWriter writes the session cookie right before the response
// header goes out, the last moment a cookie can still be set.
type sessionResponseWriter struct {
	http.ResponseWriter

	save  func()
	saved bool
}

func (w *sessionResponseWriter) flush() {
	if w.saved {
		return
	}

	w.saved = true
	w.save()
}

func (w *sessionResponseWriter) WriteHeader(code int) {
	w.flush()
	w.ResponseWriter.WriteHeader(code)
}

func (w *sessionResponseWriter) Write(b []byte) (int, error) {
	w.flush()

	return w.ResponseWriter.Write(b) //nolint:wrapcheck
}

func (w *sessionResponseWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// SessionMiddleware creates middleware that loads the client session from its
// cookie and saves it back if a handler changed it. A cookie that fails
// verification is logged and replaced by an anonymous session.
func SessionMiddleware(next http.Handler, sessions *session.Manager, log logging.Logger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := sessions.Load(r)
		if err != nil {
			log.InfoContext(r.Context(), "discarding session", "error", err)
		}

		sw := &sessionResponseWriter{ResponseWriter: w}
		sw.save = func() {
			if err := sessions.Save(w, sess); err != nil {
				log.ErrorContext(r.Context(), "save session failed", "error", err)
			}
		}

		next.ServeHTTP(sw, r.WithContext(session.WithSession(r.Context(), sess)))

		sw.flush()
	})
}
