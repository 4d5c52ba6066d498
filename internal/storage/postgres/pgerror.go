package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// postgres error code 23505 is unique_violation.
const pgUniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolation
	}
	return false
}
