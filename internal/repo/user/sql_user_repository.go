package user

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mkrupp/homecase-auth/internal/domain"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
)

const (
	insertUserQuery = `INSERT INTO "user" (username, password_hash, created_at) VALUES (?, ?, ?)`
	selectUserQuery = `SELECT id, username, password_hash, created_at FROM "user"`
)

// SQLUserRepository implements Repository on top of the credential store.
// It works with every dialect the store supports.
type SQLUserRepository struct {
	conn *store.Conn
	now  func() time.Time
}

var _ Repository = (*SQLUserRepository)(nil)

// SQLUserRepositoryFactory returns a RepositoryFactory producing SQLUserRepository instances.
func SQLUserRepositoryFactory() RepositoryFactory {
	return func(conn *store.Conn) Repository {
		return NewSQLUserRepository(conn)
	}
}

// NewSQLUserRepository creates a repository bound to conn.
func NewSQLUserRepository(conn *store.Conn) *SQLUserRepository {
	return &SQLUserRepository{
		conn: conn,
		now:  time.Now,
	}
}

// Begin implements Repository.Begin.
func (r *SQLUserRepository) Begin(ctx context.Context) error {
	if err := r.conn.Begin(ctx); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	return nil
}

// Commit implements Repository.Commit.
func (r *SQLUserRepository) Commit() error {
	if err := r.conn.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	return nil
}

// CreateUser implements Repository.CreateUser.
func (r *SQLUserRepository) CreateUser(ctx context.Context, username string, passwordHash string) (int64, error) {
	_, err := r.conn.Execute(ctx, insertUserQuery, username, passwordHash, r.now().Unix())
	if err != nil {
		if errors.Is(err, store.ErrUniqueViolation) {
			err = errors.Join(domain.ErrUsernameTaken, err)
		}

		return 0, fmt.Errorf("insert user: %w", err)
	}

	// LastInsertId is not available on every driver; read the id back
	// inside the same transaction instead.
	var id int64

	found, err := r.conn.QueryOne(ctx, []any{&id}, `SELECT id FROM "user" WHERE username = ?`, username)
	if err != nil {
		return 0, fmt.Errorf("query user id: %w", err)
	}

	if !found {
		return 0, fmt.Errorf("query user id: %w", domain.ErrStoreUnavailable)
	}

	return id, nil
}

// GetUserByUsername implements Repository.GetUserByUsername.
func (r *SQLUserRepository) GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error) {
	return r.getUser(ctx, selectUserQuery+" WHERE username = ?", username)
}

// GetUserByID implements Repository.GetUserByID.
func (r *SQLUserRepository) GetUserByID(ctx context.Context, id int64) (*domain.User, bool, error) {
	return r.getUser(ctx, selectUserQuery+" WHERE id = ?", id)
}

func (r *SQLUserRepository) getUser(ctx context.Context, query string, arg any) (*domain.User, bool, error) {
	var (
		user      domain.User
		createdAt int64
	)

	found, err := r.conn.QueryOne(ctx, []any{&user.ID, &user.Username, &user.PasswordHash, &createdAt}, query, arg)
	if err != nil {
		return nil, false, fmt.Errorf("query user: %w", err)
	}

	if !found {
		return nil, false, nil
	}

	user.CreatedAt = time.Unix(createdAt, 0).UTC()

	return &user, true, nil
}
