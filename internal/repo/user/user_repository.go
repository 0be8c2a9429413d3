package user

import (
	"context"

	"github.com/mkrupp/homecase-auth/internal/domain"
	"github.com/mkrupp/homecase-auth/internal/infra/store"
)

// Repository defines the interface for user data persistence.
// A Repository is bound to one request-scoped connection.
type Repository interface {
	// Begin opens a transaction, so that subsequent reads and writes observe
	// and produce one consistent state.
	Begin(ctx context.Context) error

	// CreateUser adds a new user and returns its id. The write is not durable until Commit.
	// Returns domain.ErrUsernameTaken if the username is already registered.
	CreateUser(ctx context.Context, username string, passwordHash string) (int64, error)

	// GetUserByUsername retrieves a user by their exact username.
	// Returns the user object and true if found, or nil and false if not found.
	// Returns an error if the operation fails.
	GetUserByUsername(ctx context.Context, username string) (*domain.User, bool, error)

	// GetUserByID retrieves a user by id.
	GetUserByID(ctx context.Context, id int64) (*domain.User, bool, error)

	// Commit makes pending writes durable.
	Commit() error
}

// RepositoryFactory binds a Repository to a request-scoped connection.
type RepositoryFactory func(conn *store.Conn) Repository
