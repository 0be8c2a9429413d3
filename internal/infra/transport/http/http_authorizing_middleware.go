package http

import (
	"errors"
	"net/http"

	"github.com/mkrupp/homecase-auth/internal/domain"
	context_ "github.com/mkrupp/homecase-auth/internal/infra/context"
	"github.com/mkrupp/homecase-auth/internal/infra/logging"
)

// Guard decides whether the current user may proceed.
// It returns domain.ErrLoginRequired to send the client to the login page.
type Guard func(user *domain.User) error

// AuthorizingMiddleware creates middleware that protects next with guard.
// The current user is read from the request context. Anonymous requests are
// redirected to loginURL with 303 See Other and never reach next.
func AuthorizingMiddleware(
	next http.Handler,
	guard Guard,
	loginURL string,
	log logging.Logger,
) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, _ := context_.UserFromContext(r.Context())

		err := guard(user)
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, domain.ErrLoginRequired):
			log.DebugContext(r.Context(), "login required", "uri", r.RequestURI)
			http.Redirect(w, r, loginURL, http.StatusSeeOther)
		default:
			log.WarnContext(r.Context(), "access denied", "error", err)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		}
	})
}
