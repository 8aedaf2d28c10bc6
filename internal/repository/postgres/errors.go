package postgres

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// pg error codes this layer translates into domain errors
const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

func pgErrCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code
	}
	return ""
}

// IsPgDuplicateError reports a unique-constraint violation. Sibling-title
// collisions surface this way and map to domain.ErrConflict.
func IsPgDuplicateError(err error) bool {
	return pgErrCode(err) == pgUniqueViolation
}

// IsPgForeignKeyError reports a foreign-key violation. Inserting under a
// parent deleted by a concurrent transaction surfaces this way and maps
// to domain.ErrNotFound.
func IsPgForeignKeyError(err error) bool {
	return pgErrCode(err) == pgForeignKeyViolation
}

// IsPgNoRowsError reports an empty single-row query result
func IsPgNoRowsError(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
