package authsvc

import (
	"context"
	"errors"
	"fmt"

	"github.com/mkrupp/homecase-auth/internal/domain"
	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/repo/user"
	"github.com/mkrupp/homecase-auth/internal/session"
)

// dummyPassword is hashed once at startup. Logins for unknown usernames verify
// against its digest so that they cost as much as logins for known ones.
const dummyPassword = "authsvc-dummy-password"

// AuthService provides account registration, login and session identity.
// It holds no per-request state: the repository and session of the current
// request are passed to every call.
type AuthService struct {
	Hasher  PasswordHasher
	Metrics *Metrics
	Log     logging.Logger

	dummyDigest string
}

// NewAuthService creates a new AuthService. metrics may be nil.
func NewAuthService(hasher PasswordHasher, metrics *Metrics) (*AuthService, error) {
	dummyDigest, err := hasher.Hash(dummyPassword)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}

	return &AuthService{
		Hasher:      hasher,
		Metrics:     metrics,
		Log:         logging.GetLogger("svc.authsvc.auth_service"),
		dummyDigest: dummyDigest,
	}, nil
}

// Register creates a new account and returns its id.
//
// Validation failures are returned as *domain.ValidationError. The existence
// check and the insert run in one transaction, and a unique constraint
// violation on insert is reported the same way as an existing username.
// The session is not touched.
func (s *AuthService) Register(ctx context.Context, users user.Repository, username, password string) (id int64, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		s.Metrics.observeRegistration(err)

		var validationErr *domain.ValidationError

		switch {
		case err == nil:
			log.InfoContext(ctx, "user registered", "id", id)
		case errors.As(err, &validationErr):
			log.InfoContext(ctx, "registration rejected", "reason", validationErr.Reason)
		default:
			log.ErrorContext(ctx, "register user failed", "error", err)
		}
	}()

	switch {
	case username == "":
		return 0, &domain.ValidationError{Reason: domain.ErrEmptyUsername}
	case password == "":
		return 0, &domain.ValidationError{Reason: domain.ErrEmptyPassword, Username: username}
	}

	if err := users.Begin(ctx); err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}

	_, exists, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		return 0, fmt.Errorf("get user: %w", err)
	} else if exists {
		return 0, &domain.ValidationError{Reason: domain.ErrUsernameTaken, Username: username}
	}

	digest, err := s.Hasher.Hash(password)
	if err != nil {
		return 0, fmt.Errorf("hash password: %w", err)
	}

	id, err = users.CreateUser(ctx, username, digest)
	if errors.Is(err, domain.ErrUsernameTaken) {
		return 0, &domain.ValidationError{Reason: domain.ErrUsernameTaken, Username: username}
	} else if err != nil {
		return 0, fmt.Errorf("create user: %w", err)
	}

	if err := users.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return id, nil
}

// Login checks the credentials and, on success, replaces the session
// contents with the user's id.
//
// An unknown username and a wrong password both return *domain.AuthError.
// On any failure the session is left unchanged.
func (s *AuthService) Login(
	ctx context.Context,
	users user.Repository,
	sess *session.Session,
	username, password string,
) (u *domain.User, err error) {
	log := s.Log.With(logging.Group("user", "username", username))

	defer func() {
		s.Metrics.observeLogin(err)

		switch {
		case err == nil:
			log.InfoContext(ctx, "login successful", "id", u.ID)
		case errors.Is(err, domain.ErrInvalidCredentials):
			log.InfoContext(ctx, "login rejected")
		default:
			log.ErrorContext(ctx, "login failed", "error", err)
		}
	}()

	u, found, err := users.GetUserByUsername(ctx, username)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	digest := s.dummyDigest
	if found {
		digest = u.PasswordHash
	}

	if !s.Hasher.Verify(password, digest) || !found {
		return nil, &domain.AuthError{}
	}

	sess.Clear()
	sess.SetUserID(u.ID)

	return u, nil
}

// LoadUser resolves the session's user.
//
// It returns nil for an anonymous session without touching the store. If the
// session refers to a user that no longer exists, the stale id is removed and
// nil is returned.
func (s *AuthService) LoadUser(ctx context.Context, users user.Repository, sess *session.Session) (*domain.User, error) {
	id, ok := sess.UserID()
	if !ok {
		return nil, nil
	}

	u, found, err := users.GetUserByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}

	if !found {
		s.Log.InfoContext(ctx, "dropping stale session user", "id", id)
		sess.DeleteUserID()

		return nil, nil
	}

	return u, nil
}

// Logout forgets the session's user. Logging out an anonymous session is a no-op.
func (s *AuthService) Logout(ctx context.Context, sess *session.Session) {
	if id, ok := sess.UserID(); ok {
		s.Log.DebugContext(ctx, "logout", "id", id)
	}

	sess.Clear()
}

// RequireAuthenticated returns domain.ErrLoginRequired for an anonymous user.
func RequireAuthenticated(u *domain.User) error {
	if u == nil {
		return domain.ErrLoginRequired
	}

	return nil
}
