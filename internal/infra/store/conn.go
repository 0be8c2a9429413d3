package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
)

// Conn is a request-scoped handle on the store. It is not safe for concurrent
// use and must not outlive the request that acquired it.
//
// Reads run on the connection, or inside the open transaction if there is one.
// The first Execute opens a transaction; Commit makes its writes durable. Close
// rolls back whatever was not committed and returns the connection to the pool.
type Conn struct {
	db      *sql.DB
	dialect Dialect

	conn   *sql.Conn
	tx     *sql.Tx
	closed bool
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

var (
	_ querier = (*sql.Conn)(nil)
	_ querier = (*sql.Tx)(nil)
)

// Opened reports whether the underlying database connection has been acquired.
func (c *Conn) Opened() bool {
	return c.conn != nil
}

// InTx reports whether a transaction is open.
func (c *Conn) InTx() bool {
	return c.tx != nil
}

func (c *Conn) open(ctx context.Context) (*sql.Conn, error) {
	if c.closed {
		return nil, unavailable("acquire", ErrConnClosed)
	}

	if c.conn != nil {
		return c.conn, nil
	}

	conn, err := c.db.Conn(ctx)
	if err != nil {
		return nil, unavailable("acquire", err)
	}

	c.conn = conn

	return conn, nil
}

func (c *Conn) querier(ctx context.Context) (querier, error) {
	if c.tx != nil {
		return c.tx, nil
	}

	return c.open(ctx)
}

// QueryOne runs a query expected to return at most one row and scans it into dest.
// Returns false without error if there is no row.
func (c *Conn) QueryOne(ctx context.Context, dest []any, query string, args ...any) (bool, error) {
	q, err := c.querier(ctx)
	if err != nil {
		return false, err
	}

	err = q.QueryRowContext(ctx, c.dialect.Rebind(query), args...).Scan(dest...)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, translate("query one", err)
	default:
		return true, nil
	}
}

// Begin opens a transaction. It is a no-op if one is already open.
func (c *Conn) Begin(ctx context.Context) error {
	if c.tx != nil {
		return nil
	}

	conn, err := c.open(ctx)
	if err != nil {
		return err
	}

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return unavailable("begin", err)
	}

	c.tx = tx

	return nil
}

// Execute runs a write statement inside the current transaction, opening one if needed.
// Nothing is persisted until Commit.
func (c *Conn) Execute(ctx context.Context, query string, args ...any) (sql.Result, error) {
	if err := c.Begin(ctx); err != nil {
		return nil, err
	}

	res, err := c.tx.ExecContext(ctx, c.dialect.Rebind(query), args...)
	if err != nil {
		return nil, translate("execute", err)
	}

	return res, nil
}

// Commit commits the open transaction. It is a no-op if there is none.
func (c *Conn) Commit() error {
	if c.tx == nil {
		return nil
	}

	tx := c.tx
	c.tx = nil

	if err := tx.Commit(); err != nil {
		return translate("commit", err)
	}

	return nil
}

// Close rolls back any uncommitted transaction and releases the connection.
// Closing an unopened or already closed Conn is a no-op.
func (c *Conn) Close() error {
	if c.closed {
		return nil
	}

	c.closed = true

	var errs []error

	if c.tx != nil {
		if err := c.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			errs = append(errs, fmt.Errorf("rollback: %w", err))
		}

		c.tx = nil
	}

	if c.conn != nil {
		if err := c.conn.Close(); err != nil && !errors.Is(err, sql.ErrConnDone) {
			errs = append(errs, fmt.Errorf("close conn: %w", err))
		}

		c.conn = nil
	}

	return errors.Join(errs...)
}
