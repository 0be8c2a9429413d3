package store

import (
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"github.com/mkrupp/homecase-auth/internal/domain"
)

var (
	// ErrUniqueViolation is returned when a write violates a unique constraint.
	ErrUniqueViolation = errors.New("unique constraint violation")

	// ErrConnClosed is returned when a Conn is used after Close.
	ErrConnClosed = errors.New("conn closed")
)

// unavailable marks err as an infrastructure fault.
func unavailable(op string, err error) error {
	return oops.
		Code("STORE_UNAVAILABLE").
		With("operation", op).
		Wrap(errors.Join(domain.ErrStoreUnavailable, err))
}

// translate classifies a driver error. Constraint violations are expected
// outcomes the caller can act on; everything else is a store fault.
func translate(op string, err error) error {
	if isUniqueViolation(err) {
		return oops.
			Code("STORE_UNIQUE_VIOLATION").
			With("operation", op).
			Wrap(errors.Join(ErrUniqueViolation, err))
	}

	return unavailable(op, err)
}

func isUniqueViolation(err error) bool {
	var liteErr *sqlite.Error
	if errors.As(err, &liteErr) {
		switch liteErr.Code() {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return true
		default:
			return false
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgerrcode.UniqueViolation
	}

	return false
}
