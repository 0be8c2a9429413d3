package http_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-auth/internal/domain"
	context_ "github.com/mkrupp/homecase-auth/internal/infra/context"
	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
	http_ "github.com/mkrupp/homecase-auth/internal/infra/transport/http"
	"github.com/mkrupp/homecase-auth/internal/session"
)

func TestTracingMiddleware(t *testing.T) {
	t.Parallel()

	var got string

	handler := http_.TracingMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		got, _ = context_.TraceIDFromContext(r.Context())
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Len(t, got, 36)
	assert.Equal(t, got, rec.Header().Get(http_.TraceIDHeader))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(http_.TraceIDHeader, "upstream-id")

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, "upstream-id", got)
}

func TestAuthorizingMiddleware(t *testing.T) {
	t.Parallel()

	guard := func(u *domain.User) error {
		switch {
		case u == nil:
			return domain.ErrLoginRequired
		case u.Username == "mallory":
			return errors.New("banned")
		default:
			return nil
		}
	}

	var reached bool

	handler := http_.AuthorizingMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		reached = true
	}), guard, "/auth/login", logging.NewNopLogger())

	tests := []struct {
		name        string
		user        *domain.User
		wantStatus  int
		wantReached bool
	}{
		{name: "anonymous", wantStatus: http.StatusSeeOther},
		{name: "authenticated", user: &domain.User{ID: 1, Username: "alice"}, wantStatus: http.StatusOK, wantReached: true},
		{name: "denied", user: &domain.User{ID: 2, Username: "mallory"}, wantStatus: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reached = false

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.user != nil {
				req = req.WithContext(context_.WithUser(req.Context(), tt.user))
			}

			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.Equal(t, tt.wantReached, reached)

			if tt.wantStatus == http.StatusSeeOther {
				assert.Equal(t, "/auth/login", rec.Header().Get("Location"))
			}
		})
	}
}

func TestStoreMiddleware_ReleasesOnPanic(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	st, err := store.Open(ctx, store.StoreConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "auth.db"),
		MaxOpenConns: 1,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	log := logging.NewNopLogger()

	handler := http_.RescueingMiddleware(http_.StoreMiddleware(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		conn, ok := store.ConnFromContext(r.Context())
		require.True(t, ok)

		var one int

		_, err := conn.QueryOne(r.Context(), []any{&one}, "SELECT 1")
		require.NoError(t, err)
		require.True(t, conn.Opened())

		panic("boom")
	}), st, log), log)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)

	// the only pooled connection must be free again
	waitCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	conn := st.Acquire()
	defer conn.Close()

	var one int

	found, err := conn.QueryOne(waitCtx, []any{&one}, "SELECT 1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSessionMiddleware(t *testing.T) {
	t.Parallel()

	key, err := session.GeneratePrivateKey(1024)
	require.NoError(t, err)

	sessions := session.NewManagerWithKey(key, session.SessionConfig{CookieName: "session", MaxAge: time.Hour})

	handler := http_.SessionMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, ok := session.FromContext(r.Context())
		require.True(t, ok)

		sess.SetUserID(7)
		w.WriteHeader(http.StatusNoContent)
	}), sessions, logging.NewNopLogger())

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])

	sess, err := sessions.Load(req)
	require.NoError(t, err)

	id, ok := sess.UserID()
	assert.True(t, ok)
	assert.Equal(t, int64(7), id)
}
