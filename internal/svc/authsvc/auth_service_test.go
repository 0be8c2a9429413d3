package authsvc_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-auth/internal/domain"
	"github.com/mkrupp/homecase-auth/internal/repo/user"
	"github.com/mkrupp/homecase-auth/internal/session"
	"github.com/mkrupp/homecase-auth/internal/svc/authsvc"
)

// mockUserRepository implements user.Repository for testing.
// Writes are staged until Commit.
type mockUserRepository struct {
	users   map[string]*domain.User
	pending map[string]*domain.User
	nextID  int64
	err     error
	// createErr is returned by CreateUser only, to simulate a concurrent insert
	createErr error
	lookups   int
	begun     bool
	m         sync.Mutex
}

var _ user.Repository = (*mockUserRepository)(nil)

func newMockUserRepo() *mockUserRepository {
	return &mockUserRepository{
		users:   make(map[string]*domain.User),
		pending: make(map[string]*domain.User),
	}
}

func (m *mockUserRepository) Begin(context.Context) error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	m.begun = true

	return nil
}

func (m *mockUserRepository) CreateUser(_ context.Context, username string, passwordHash string) (int64, error) {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return 0, m.err
	}

	if m.createErr != nil {
		return 0, m.createErr
	}

	if _, exists := m.users[username]; exists {
		return 0, domain.ErrUsernameTaken
	}

	m.nextID++
	m.pending[username] = &domain.User{
		ID:           m.nextID,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now(),
	}

	return m.nextID, nil
}

func (m *mockUserRepository) GetUserByUsername(_ context.Context, username string) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	m.lookups++

	if m.err != nil {
		return nil, false, m.err
	}

	u, exists := m.users[username]

	return u, exists, nil
}

func (m *mockUserRepository) GetUserByID(_ context.Context, id int64) (*domain.User, bool, error) {
	m.m.Lock()
	defer m.m.Unlock()

	m.lookups++

	if m.err != nil {
		return nil, false, m.err
	}

	for _, u := range m.users {
		if u.ID == id {
			return u, true, nil
		}
	}

	return nil, false, nil
}

func (m *mockUserRepository) Commit() error {
	m.m.Lock()
	defer m.m.Unlock()

	if m.err != nil {
		return m.err
	}

	for name, u := range m.pending {
		m.users[name] = u
	}

	m.pending = make(map[string]*domain.User)

	return nil
}

var ErrRepoError = errors.Join(domain.ErrStoreUnavailable, errors.New("repository error"))

func testHasherConfig() authsvc.HasherConfig {
	return authsvc.HasherConfig{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}
}

func newTestHasher(t *testing.T) *authsvc.Argon2idHasher {
	t.Helper()

	h, err := authsvc.NewArgon2idHasher(testHasherConfig())
	require.NoError(t, err)

	return h
}

func setupTestService(t *testing.T) (*authsvc.AuthService, *prometheus.Registry) {
	t.Helper()

	reg := prometheus.NewRegistry()

	svc, err := authsvc.NewAuthService(
		newTestHasher(t),
		authsvc.NewMetrics(reg),
	)
	require.NoError(t, err)

	return svc, reg
}

func TestAuthService_Register(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		username  string
		password  string
		existing  bool
		repoErr   error
		createErr error
		wantErr   error
		wantMsg   string
	}{
		{
			name:     "successful registration",
			username: "newuser",
			password: "password123",
		},
		{
			name:     "empty username",
			password: "password123",
			wantErr:  domain.ErrEmptyUsername,
			wantMsg:  "Username is required.",
		},
		{
			name:     "empty password",
			username: "newuser",
			wantErr:  domain.ErrEmptyPassword,
			wantMsg:  "Password is required.",
		},
		{
			name:     "duplicate username",
			username: "existinguser",
			password: "password123",
			existing: true,
			wantErr:  domain.ErrUsernameTaken,
			wantMsg:  "User existinguser is already registered.",
		},
		{
			name:      "concurrent insert",
			username:  "racer",
			password:  "password123",
			createErr: errors.Join(domain.ErrUsernameTaken, errors.New("UNIQUE constraint failed")),
			wantErr:   domain.ErrUsernameTaken,
			wantMsg:   "User racer is already registered.",
		},
		{
			name:     "repository error",
			username: "erroruser",
			password: "password123",
			repoErr:  ErrRepoError,
			wantErr:  domain.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := setupTestService(t)
			ctx := context.Background()
			repo := newMockUserRepo()

			if tt.existing {
				_, err := svc.Register(ctx, repo, tt.username, "oldpass")
				require.NoError(t, err)
			}

			repo.err = tt.repoErr
			repo.createErr = tt.createErr

			id, err := svc.Register(ctx, repo, tt.username, tt.password)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Positive(t, id)

				stored, ok := repo.users[tt.username]
				require.True(t, ok)
				assert.NotEqual(t, tt.password, stored.PasswordHash)
				assert.True(t, svc.Hasher.Verify(tt.password, stored.PasswordHash))

				return
			}

			require.ErrorIs(t, err, tt.wantErr)

			msg, ok := domain.UserMessage(err)
			assert.Equal(t, tt.wantMsg != "", ok)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestAuthService_RegisterValidatesBeforeStore(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	repo := newMockUserRepo()

	_, err := svc.Register(context.Background(), repo, "", "")
	require.ErrorIs(t, err, domain.ErrEmptyUsername)
	assert.Zero(t, repo.lookups)
	assert.False(t, repo.begun)
}

func TestAuthService_Login(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		username string
		password string
		repoErr  error
		wantErr  error
	}{
		{
			name:     "successful login",
			username: "testuser",
			password: "testpass123",
		},
		{
			name:     "wrong password",
			username: "testuser",
			password: "wrongpass",
			wantErr:  domain.ErrInvalidCredentials,
		},
		{
			name:     "user not found",
			username: "nonexistent",
			password: "anypass",
			wantErr:  domain.ErrInvalidCredentials,
		},
		{
			name:     "case mismatch",
			username: "TestUser",
			password: "testpass123",
			wantErr:  domain.ErrInvalidCredentials,
		},
		{
			name:     "repository error",
			username: "testuser",
			password: "testpass123",
			repoErr:  ErrRepoError,
			wantErr:  domain.ErrStoreUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			svc, _ := setupTestService(t)
			ctx := context.Background()
			repo := newMockUserRepo()

			id, err := svc.Register(ctx, repo, "testuser", "testpass123")
			require.NoError(t, err)

			repo.err = tt.repoErr

			sess := session.New()
			sess.SetUserID(99)
			sess.Flash("stale")

			u, err := svc.Login(ctx, repo, sess, tt.username, tt.password)

			if tt.wantErr == nil {
				require.NoError(t, err)
				assert.Equal(t, id, u.ID)

				got, ok := sess.UserID()
				assert.True(t, ok)
				assert.Equal(t, id, got)
				assert.Empty(t, sess.Flashes())

				return
			}

			require.ErrorIs(t, err, tt.wantErr)
			assert.Nil(t, u)

			// session untouched on failure
			got, ok := sess.UserID()
			assert.True(t, ok)
			assert.Equal(t, int64(99), got)
			assert.Equal(t, []string{"stale"}, sess.Flashes())
		})
	}
}

func TestAuthService_LoginFailuresAreIndistinguishable(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()
	repo := newMockUserRepo()

	_, err := svc.Register(ctx, repo, "alice", "s3cret")
	require.NoError(t, err)

	_, unknownErr := svc.Login(ctx, repo, session.New(), "bob", "s3cret")
	_, wrongErr := svc.Login(ctx, repo, session.New(), "alice", "wrong")

	require.Error(t, unknownErr)
	require.Error(t, wrongErr)
	assert.Equal(t, unknownErr.Error(), wrongErr.Error())
	assert.Equal(t, "Incorrect username or password.", wrongErr.Error())
}

func TestAuthService_LoadUser(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()
	repo := newMockUserRepo()

	id, err := svc.Register(ctx, repo, "alice", "s3cret")
	require.NoError(t, err)

	t.Run("anonymous", func(t *testing.T) {
		lookups := repo.lookups

		u, err := svc.LoadUser(ctx, repo, session.New())
		require.NoError(t, err)
		assert.Nil(t, u)
		assert.Equal(t, lookups, repo.lookups)
	})

	t.Run("authenticated", func(t *testing.T) {
		sess := session.New()
		sess.SetUserID(id)

		u, err := svc.LoadUser(ctx, repo, sess)
		require.NoError(t, err)
		require.NotNil(t, u)
		assert.Equal(t, "alice", u.Username)
	})

	t.Run("stale id", func(t *testing.T) {
		sess := session.New()
		sess.SetUserID(id + 100)
		sess.Flash("kept")

		u, err := svc.LoadUser(ctx, repo, sess)
		require.NoError(t, err)
		assert.Nil(t, u)

		_, ok := sess.UserID()
		assert.False(t, ok)
		assert.Equal(t, []string{"kept"}, sess.Flashes())
	})
}

func TestAuthService_LoadUserStoreFault(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	repo := newMockUserRepo()
	repo.err = ErrRepoError

	sess := session.New()
	sess.SetUserID(1)

	_, err := svc.LoadUser(context.Background(), repo, sess)
	require.ErrorIs(t, err, domain.ErrStoreUnavailable)

	_, ok := sess.UserID()
	assert.True(t, ok)
}

func TestAuthService_Logout(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)

	sess := session.New()
	sess.SetUserID(1)
	sess.Flash("bye")

	svc.Logout(context.Background(), sess)
	assert.True(t, sess.Empty())

	anon := session.New()
	svc.Logout(context.Background(), anon)
	assert.True(t, anon.Empty())
}

func TestRequireAuthenticated(t *testing.T) {
	t.Parallel()

	require.ErrorIs(t, authsvc.RequireAuthenticated(nil), domain.ErrLoginRequired)
	require.NoError(t, authsvc.RequireAuthenticated(&domain.User{ID: 1, Username: "alice"}))
}

func TestAuthService_Metrics(t *testing.T) {
	t.Parallel()

	svc, _ := setupTestService(t)
	ctx := context.Background()
	repo := newMockUserRepo()

	_, _ = svc.Register(ctx, repo, "alice", "s3cret")
	_, _ = svc.Register(ctx, repo, "alice", "s3cret")
	_, _ = svc.Register(ctx, repo, "", "s3cret")
	_, _ = svc.Login(ctx, repo, session.New(), "alice", "s3cret")
	_, _ = svc.Login(ctx, repo, session.New(), "alice", "nope")

	m := svc.Metrics
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(authsvc.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(authsvc.OutcomeTaken)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.RegistrationsTotal.WithLabelValues(authsvc.OutcomeInvalid)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(authsvc.OutcomeSuccess)), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(m.LoginsTotal.WithLabelValues(authsvc.OutcomeInvalidCredentials)), 0)
}
