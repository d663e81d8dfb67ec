package settlement

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// mapConflict translates Postgres serialization failures and deadlocks into
// ErrConcurrencyConflict so callers can retry the whole operation.
func mapConflict(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01":
			return ErrConcurrencyConflict
		}
	}
	return err
}
