package user_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkrupp/homecase-auth/internal/domain"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
	"github.com/mkrupp/homecase-auth/internal/repo/user"
)

func setupStore(t *testing.T) *store.Store {
	t.Helper()

	s, err := store.Open(context.Background(), store.StoreConfig{
		Driver:       "sqlite",
		DSN:          filepath.Join(t.TempDir(), "auth.db"),
		MaxOpenConns: 4,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })

	require.NoError(t, s.Migrate(context.Background()))

	return s
}

func withRepo(t *testing.T, s *store.Store, fn func(repo user.Repository)) {
	t.Helper()

	conn := s.Acquire()
	defer conn.Close()

	fn(user.SQLUserRepositoryFactory()(conn))
}

func TestSQLUserRepository_CreateAndGet(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	var id int64

	withRepo(t, s, func(repo user.Repository) {
		var err error

		require.NoError(t, repo.Begin(ctx))

		id, err = repo.CreateUser(ctx, "alice", "$argon2id$digest")
		require.NoError(t, err)
		assert.Positive(t, id)

		require.NoError(t, repo.Commit())
	})

	withRepo(t, s, func(repo user.Repository) {
		u, found, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, id, u.ID)
		assert.Equal(t, "alice", u.Username)
		assert.Equal(t, "$argon2id$digest", u.PasswordHash)
		assert.False(t, u.CreatedAt.IsZero())

		byID, found, err := repo.GetUserByID(ctx, id)
		require.NoError(t, err)
		require.True(t, found)
		assert.Equal(t, u, byID)
	})
}

func TestSQLUserRepository_UsernameIsCaseSensitive(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	withRepo(t, s, func(repo user.Repository) {
		_, err := repo.CreateUser(ctx, "alice", "digest")
		require.NoError(t, err)

		_, err = repo.CreateUser(ctx, "Alice", "digest")
		require.NoError(t, err)

		_, found, err := repo.GetUserByUsername(ctx, "ALICE")
		require.NoError(t, err)
		assert.False(t, found)

		require.NoError(t, repo.Commit())
	})
}

func TestSQLUserRepository_Duplicate(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	withRepo(t, s, func(repo user.Repository) {
		_, err := repo.CreateUser(ctx, "alice", "digest")
		require.NoError(t, err)
		require.NoError(t, repo.Commit())
	})

	withRepo(t, s, func(repo user.Repository) {
		_, err := repo.CreateUser(ctx, "alice", "other")
		require.ErrorIs(t, err, domain.ErrUsernameTaken)
	})
}

func TestSQLUserRepository_UncommittedIsDiscarded(t *testing.T) {
	s := setupStore(t)
	ctx := context.Background()

	withRepo(t, s, func(repo user.Repository) {
		_, err := repo.CreateUser(ctx, "alice", "digest")
		require.NoError(t, err)
	})

	withRepo(t, s, func(repo user.Repository) {
		_, found, err := repo.GetUserByUsername(ctx, "alice")
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestSQLUserRepository_NotFound(t *testing.T) {
	s := setupStore(t)

	withRepo(t, s, func(repo user.Repository) {
		u, found, err := repo.GetUserByID(context.Background(), 42)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, u)
	})
}

func TestSQLUserRepository_Postgres(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherEqual))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO "user" (username, password_hash, created_at) VALUES ($1, $2, $3)`).
		WithArgs("alice", "digest", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`SELECT id FROM "user" WHERE username = $1`).
		WithArgs("alice").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(9)))
	mock.ExpectCommit()

	conn := store.New(db, store.DialectPostgres).Acquire()
	defer conn.Close()

	repo := user.NewSQLUserRepository(conn)

	id, err := repo.CreateUser(context.Background(), "alice", "digest")
	require.NoError(t, err)
	assert.Equal(t, int64(9), id)
	require.NoError(t, repo.Commit())
	require.NoError(t, mock.ExpectationsWereMet())
}
