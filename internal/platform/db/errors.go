package db

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	// UniqueViolation is the SQLSTATE raised for unique constraint conflicts.
	UniqueViolation = "23505"
	// SerializationFailure is raised when a RepeatableRead transaction
	// touches a row another transaction committed after its snapshot.
	SerializationFailure = "40001"
)

// ConflictRetries is how often creators repeat an attempt that lost a race.
const ConflictRetries = 3

// IsUniqueViolation reports whether err is a unique constraint violation.
// When constraint names are given, only those constraints match.
func IsUniqueViolation(err error, constraints ...string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != UniqueViolation {
		return false
	}
	if len(constraints) == 0 {
		return true
	}
	for _, name := range constraints {
		if pgErr.ConstraintName == name {
			return true
		}
	}
	return false
}

// IsSerializationFailure reports whether err aborted its transaction because
// of a concurrent update.
func IsSerializationFailure(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == SerializationFailure
}

// RetryOnConflict runs fn and repeats it up to retries more times while it
// fails on one of the given unique constraints or on a serialization failure.
// onRetry, when set, is invoked before every repeat. Inside an outer
// transaction the failed statement has already aborted it, so fn runs once.
func RetryOnConflict(ctx context.Context, retries int, constraints []string, onRetry func(), fn func(context.Context) error) error {
	err := fn(ctx)
	if _, nested := TxFromContext(ctx); nested {
		return err
	}
	for attempt := 0; attempt < retries && retryable(err, constraints); attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if onRetry != nil {
			onRetry()
		}
		err = fn(ctx)
	}
	return err
}

func retryable(err error, constraints []string) bool {
	return IsSerializationFailure(err) || IsUniqueViolation(err, constraints...)
}
