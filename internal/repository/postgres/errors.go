package postgres

import (
	"errors"

	domainErrors "github.com/cassiomorais/ordercore/internal/domain/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

const uniqueViolation = "23505"

// scanner is satisfied by both pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// notFoundOr maps a missing row to NotFound and leaves other errors alone.
func notFoundOr(err error, entity string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domainErrors.NotFound(entity)
	}
	return err
}
