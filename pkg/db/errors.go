package db

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

// IsUniqueViolation reports whether the provided error references a Postgres
// unique violation constraint. When constraintName is provided, the helper looks
// for the constraint text in the error message.
func IsUniqueViolation(err error, constraintName string) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	if constraintName != "" {
		return strings.Contains(msg, constraintName)
	}
	return strings.Contains(msg, "duplicate key value")
}

const (
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// IsConcurrencyConflict reports whether the error is a Postgres serialization
// failure or deadlock, the two cases where retrying the whole transaction is
// the right response.
func IsConcurrencyConflict(err error) bool {
	if err == nil {
		return false
	}

	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgxErr.Code == pgSerializationFailure || pgxErr.Code == pgDeadlockDetected
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		code := string(pqErr.Code)
		return code == pgSerializationFailure || code == pgDeadlockDetected
	}

	msg := err.Error()
	return strings.Contains(msg, "could not serialize access") || strings.Contains(msg, "deadlock detected")
}
