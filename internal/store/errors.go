package store

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	// ErrNotFound indicates a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrConflict indicates a unique constraint violation.
	ErrConflict = errors.New("record already exists")
)

const uniqueViolation = "23505"

func translateError(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}
