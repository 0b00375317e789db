package postgresengine

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

const (
	sqlStateSerializationFailure = "40001"
	sqlStateDeadlockDetected     = "40P01"
	sqlStateUniqueViolation      = "23505"
	sqlStateForeignKeyViolation  = "23503"
	sqlStateCheckViolation       = "23514"

	constraintOneOpenBorrowPerCopy = "borrow_records_one_open_per_copy"
)

// pgErrorDetails extracts SQLSTATE and constraint name from pgx and lib/pq errors.
func pgErrorDetails(err error) (code string, constraint string, ok bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code, pgErr.ConstraintName, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code), pqErr.Constraint, true
	}

	return "", "", false
}

// IsConcurrencyConflict reports whether err is a serialization failure or a deadlock.
func IsConcurrencyConflict(err error) bool {
	code, _, ok := pgErrorDetails(err)
	if !ok {
		return false
	}

	return code == sqlStateSerializationFailure || code == sqlStateDeadlockDetected
}

// wrapDBError joins the sentinel with the lending error the database error stands for, if any.
func wrapDBError(sentinel error, err error) error {
	code, constraint, ok := pgErrorDetails(err)
	if !ok {
		return errors.Join(sentinel, err)
	}

	switch code {
	case sqlStateSerializationFailure, sqlStateDeadlockDetected:
		return errors.Join(sentinel, lending.ErrConcurrencyConflict, err)
	case sqlStateCheckViolation:
		return errors.Join(sentinel, lending.ErrInventoryInconsistent, err)
	case sqlStateForeignKeyViolation:
		return errors.Join(sentinel, lending.ErrNotFound, err)
	case sqlStateUniqueViolation:
		if constraint == constraintOneOpenBorrowPerCopy {
			return errors.Join(sentinel, lending.ErrInventoryInconsistent, err)
		}

		return errors.Join(sentinel, lending.ErrDuplicateBorrowRecord, err)
	default:
		return errors.Join(sentinel, err)
	}
}
