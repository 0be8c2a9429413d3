package authsvc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mkrupp/homecase-auth/internal/domain"
	context_ "github.com/mkrupp/homecase-auth/internal/infra/context"
	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
	http_ "github.com/mkrupp/homecase-auth/internal/infra/transport/http"
	"github.com/mkrupp/homecase-auth/internal/repo/user"
	"github.com/mkrupp/homecase-auth/internal/session"
)

const (
	loginURL = "/auth/login"
	indexURL = "/"
)

var (
	// ErrNoConn is returned when a handler runs outside the store middleware.
	ErrNoConn = errors.New("no store connection in request context")
	// ErrNoSession is returned when a handler runs outside the session middleware.
	ErrNoSession = errors.New("no session in request context")
)

// HTTPTransport handles HTTP requests for the authentication service.
// It provides the register, login and logout flows and the protected index.
type HTTPTransport struct {
	authSvc     *AuthService
	repoFactory user.RepositoryFactory
	log         logging.Logger
	router      chi.Router
}

var _ http_.HTTPTransport = (*HTTPTransport)(nil)

// NewHTTPTransport creates a new HTTPTransport serving the routes:
//   - GET|POST /auth/register
//   - GET|POST /auth/login
//   - GET|POST /auth/logout
//   - GET / (login required)
//   - GET /hello
//   - GET /metrics
func NewHTTPTransport(
	authSvc *AuthService,
	st *store.Store,
	repoFactory user.RepositoryFactory,
	sessions *session.Manager,
	gatherer prometheus.Gatherer,
) *HTTPTransport {
	ht := &HTTPTransport{
		authSvc:     authSvc,
		repoFactory: repoFactory,
		log:         logging.GetLogger("svc.authsvc.http_transport"),
	}

	r := chi.NewRouter()

	//nolint:exhaustruct
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	r.Get("/hello", ht.HandleHello)

	r.Group(func(r chi.Router) {
		r.Use(
			func(next http.Handler) http.Handler { return http_.StoreMiddleware(next, st, ht.log) },
			func(next http.Handler) http.Handler { return http_.SessionMiddleware(next, sessions, ht.log) },
			ht.identityMiddleware,
		)

		r.Route("/auth", func(r chi.Router) {
			r.Get("/register", ht.HandlePage)
			r.Post("/register", ht.HandleRegister)
			r.Get("/login", ht.HandlePage)
			r.Post("/login", ht.HandleLogin)
			r.Get("/logout", ht.HandleLogout)
			r.Post("/logout", ht.HandleLogout)
		})

		r.With(func(next http.Handler) http.Handler {
			return http_.AuthorizingMiddleware(next, RequireAuthenticated, loginURL, ht.log)
		}).Get(indexURL, ht.HandlePage)
	})

	ht.router = r

	return ht
}

// ServeHTTP implements http.Handler.
func (ht *HTTPTransport) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ht.router.ServeHTTP(w, r)
}

// requestScope returns the repository and session bound to the request.
func (ht *HTTPTransport) requestScope(ctx context.Context) (user.Repository, *session.Session, error) {
	conn, ok := store.ConnFromContext(ctx)
	if !ok {
		return nil, nil, ErrNoConn
	}

	sess, ok := session.FromContext(ctx)
	if !ok {
		return nil, nil, ErrNoSession
	}

	return ht.repoFactory(conn), sess, nil
}

// identityMiddleware resolves the session's user once per request and
// stores it in the request context.
func (ht *HTTPTransport) identityMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		users, sess, err := ht.requestScope(r.Context())
		if err != nil {
			ht.internalError(w, r, err)

			return
		}

		u, err := ht.authSvc.LoadUser(r.Context(), users, sess)
		if err != nil {
			ht.internalError(w, r, fmt.Errorf("load user: %w", err))

			return
		}

		ctx := r.Context()
		if u != nil {
			ctx = context_.WithUser(ctx, u)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// HandleHello is a liveness probe.
func (ht *HTTPTransport) HandleHello(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Hello, World!"))
}

// HandlePage renders the page state: pending flashes and the current user.
func (ht *HTTPTransport) HandlePage(w http.ResponseWriter, r *http.Request) {
	sess, _ := session.FromContext(r.Context())
	u, _ := context_.UserFromContext(r.Context())

	ht.writeJSON(w, r, http.StatusOK, domain.SessionResponse{
		Flashes: sess.PopFlashes(),
		User:    domain.NewUserResponse(u),
	})
}

// HandleRegister processes registration requests.
// Expects form parameters: username, password.
func (ht *HTTPTransport) HandleRegister(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleRegister(w, r)
}

func (ht *HTTPTransport) handleRegister(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.DebugContext(ctx, "register request failed", "error", err)
		}
	}(r.Context())

	users, sess, err := ht.requestScope(r.Context())
	if err != nil {
		ht.internalError(w, r, err)

		return err
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	if _, err := ht.authSvc.Register(r.Context(), users, r.PostForm.Get("username"), r.PostForm.Get("password")); err != nil {
		ht.failure(w, r, sess, err)

		return fmt.Errorf("register: %w", err)
	}

	http.Redirect(w, r, loginURL, http.StatusSeeOther)

	return nil
}

// HandleLogin processes login requests.
// Expects form parameters: username, password.
func (ht *HTTPTransport) HandleLogin(w http.ResponseWriter, r *http.Request) {
	_ = ht.handleLogin(w, r)
}

func (ht *HTTPTransport) handleLogin(w http.ResponseWriter, r *http.Request) (err error) {
	log := ht.log.With(logging.Group("http", "method", r.Method, "url", r.URL.String()))

	defer func(ctx context.Context) {
		if err != nil {
			log.DebugContext(ctx, "login request failed", "error", err)
		}
	}(r.Context())

	users, sess, err := ht.requestScope(r.Context())
	if err != nil {
		ht.internalError(w, r, err)

		return err
	}

	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)

		return fmt.Errorf("parse form: %w", err)
	}

	if _, err := ht.authSvc.Login(r.Context(), users, sess, r.PostForm.Get("username"), r.PostForm.Get("password")); err != nil {
		ht.failure(w, r, sess, err)

		return fmt.Errorf("login: %w", err)
	}

	http.Redirect(w, r, indexURL, http.StatusSeeOther)

	return nil
}

// HandleLogout clears the session and redirects to the index.
func (ht *HTTPTransport) HandleLogout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := session.FromContext(r.Context()); ok {
		ht.authSvc.Logout(r.Context(), sess)
	}

	http.Redirect(w, r, indexURL, http.StatusSeeOther)
}

// failure reports a failed register or login. Expected failures are flashed
// and rendered; anything else is an internal error.
func (ht *HTTPTransport) failure(w http.ResponseWriter, r *http.Request, sess *session.Session, err error) {
	msg, ok := domain.UserMessage(err)
	if !ok {
		ht.internalError(w, r, err)

		return
	}

	status := http.StatusBadRequest

	switch {
	case errors.Is(err, domain.ErrUsernameTaken):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidCredentials):
		status = http.StatusUnauthorized
	}

	sess.Flash(msg)

	u, _ := context_.UserFromContext(r.Context())

	ht.writeJSON(w, r, status, domain.SessionResponse{
		Flashes: sess.PopFlashes(),
		User:    domain.NewUserResponse(u),
		Error:   msg,
	})
}

func (ht *HTTPTransport) internalError(w http.ResponseWriter, r *http.Request, err error) {
	ht.log.ErrorContext(r.Context(), "internal error", "error", err)

	//nolint:exhaustruct
	ht.writeJSON(w, r, http.StatusInternalServerError, domain.SessionResponse{
		Flashes: []string{},
		Error:   http.StatusText(http.StatusInternalServerError),
	})
}

func (ht *HTTPTransport) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		ht.log.ErrorContext(r.Context(), "encode response failed", "error", err)
	}
}
