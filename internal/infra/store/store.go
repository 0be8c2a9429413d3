// Package store is the credential store adapter: a thin, request-scoped layer
// over database/sql that exposes parameterized queries, writes and commits.
// It owns no business logic.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/pressly/goose/v3"
	"github.com/samber/oops"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/mkrupp/homecase-auth/internal/infra/logging"
	"github.com/mkrupp/homecase-auth/internal/infra/store/migrations"
)

// StoreConfig holds configuration for the credential store.
type StoreConfig struct {
	// Driver selects the database: "sqlite" or "pgx" (PostgreSQL)
	Driver string `env:"DRIVER" default:"sqlite"`

	// DSN is the data source name; a file path for SQLite
	DSN string `env:"DSN" default:"var/storage/authsvc.db"`

	// MaxOpenConns bounds the pool, and with it the number of concurrent requests holding a connection
	MaxOpenConns int `env:"MAX_OPEN_CONNS" default:"16"`

	// ConnMaxLifetime recycles pooled connections
	ConnMaxLifetime time.Duration `env:"CONN_MAX_LIFETIME" default:"5m"`

	// BusyTimeout is how long SQLite waits on a locked database before failing
	BusyTimeout time.Duration `env:"BUSY_TIMEOUT" default:"5s"`
}

// Dialect captures the per-database differences the adapter has to know about.
type Dialect struct {
	name     string
	driver   string
	goose    string
	numbered bool // placeholders are $1, $2, ... instead of ?
}

//nolint:gochecknoglobals
var (
	// DialectSQLite is the dialect of modernc.org/sqlite.
	DialectSQLite = Dialect{name: "sqlite", driver: "sqlite", goose: "sqlite3"}

	// DialectPostgres is the dialect of PostgreSQL through the pgx stdlib driver.
	DialectPostgres = Dialect{name: "postgres", driver: "pgx", goose: "postgres", numbered: true}
)

// DialectFor returns the dialect for the configured driver name.
func DialectFor(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "pgx", "postgres", "postgresql":
		return DialectPostgres, nil
	default:
		return Dialect{}, oops.Code("STORE_UNKNOWN_DRIVER").With("driver", driver).Errorf("unknown store driver")
	}
}

// Name returns the dialect name.
func (d Dialect) Name() string {
	return d.name
}

// Rebind rewrites ? placeholders into the dialect's placeholder syntax.
// Queries must not contain literal question marks.
func (d Dialect) Rebind(query string) string {
	if !d.numbered {
		return query
	}

	var (
		sb strings.Builder
		n  int
	)

	sb.Grow(len(query) + 8)

	for _, r := range query {
		if r != '?' {
			sb.WriteRune(r)

			continue
		}

		n++
		sb.WriteString("$" + strconv.Itoa(n))
	}

	return sb.String()
}

func (d Dialect) dsn(cfg StoreConfig) string {
	if d != DialectSQLite {
		return cfg.DSN
	}

	params := make([]string, 0, 2)

	if !strings.Contains(cfg.DSN, "busy_timeout") {
		params = append(params, fmt.Sprintf("_pragma=busy_timeout(%d)", cfg.BusyTimeout.Milliseconds()))
	}

	// Write transactions take the lock on BEGIN, so a check-then-insert
	// sequence inside one transaction cannot interleave with another writer.
	if !strings.Contains(cfg.DSN, "_txlock") {
		params = append(params, "_txlock=immediate")
	}

	if len(params) == 0 {
		return cfg.DSN
	}

	sep := "?"
	if strings.Contains(cfg.DSN, "?") {
		sep = "&"
	}

	return cfg.DSN + sep + strings.Join(params, "&")
}

// ensureDir creates the parent directory of a SQLite database file.
func ensureDir(dsn string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create database dir: %w", err)
	}

	return nil
}

// Store is the process-wide connection pool. Requests never use it directly;
// they Acquire a Conn scoped to the request.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     logging.Logger
}

// Open opens and pings the configured database.
// Returns an error wrapping domain.ErrStoreUnavailable if it cannot be reached.
func Open(ctx context.Context, cfg StoreConfig) (*Store, error) {
	dialect, err := DialectFor(cfg.Driver)
	if err != nil {
		return nil, err
	}

	if dialect == DialectSQLite {
		if err := ensureDir(cfg.DSN); err != nil {
			return nil, unavailable("open", err)
		}
	}

	db, err := sql.Open(dialect.driver, dialect.dsn(cfg))
	if err != nil {
		return nil, unavailable("open", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, unavailable("ping", err)
	}

	return New(db, dialect), nil
}

// New wraps an already opened pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{
		db:      db,
		dialect: dialect,
		log:     logging.GetLogger("infra.store").With(logging.Group("db", "dialect", dialect.name)),
	}
}

// Acquire returns a connection scoped to the current request. The underlying
// database connection is opened lazily on first use. The caller must Close it.
func (s *Store) Acquire() *Conn {
	return &Conn{db: s.db, dialect: s.dialect}
}

// Dialect returns the store's dialect.
func (s *Store) Dialect() Dialect {
	return s.dialect
}

// Close closes the pool.
func (s *Store) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close db: %w", err)
	}

	return nil
}

// gooseUpContext is a seam for testing goose.UpContext.
//
//nolint:gochecknoglobals
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its dialect, filesystem and logger in package globals.
//
//nolint:gochecknoglobals
var migrateLock sync.Mutex

// Migrate applies the embedded schema migrations for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	migrateLock.Lock()
	defer migrateLock.Unlock()

	goose.SetBaseFS(migrations.FS)
	goose.SetLogger(logging.GetLogLogger(s.log, logging.LevelDebug))

	if err := goose.SetDialect(s.dialect.goose); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := gooseUpContext(ctx, s.db, s.dialect.name); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}

	s.log.InfoContext(ctx, "schema migrated")

	return nil
}
