package db

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniqueErr(constraint string) error {
	return fmt.Errorf("insert: %w", &pgconn.PgError{Code: UniqueViolation, ConstraintName: constraint})
}

func TestIsUniqueViolation(t *testing.T) {
	err := uniqueErr("invoices_code_key")
	assert.True(t, IsUniqueViolation(err))
	assert.True(t, IsUniqueViolation(err, "customers_email_key", "invoices_code_key"))
	assert.False(t, IsUniqueViolation(err, "customers_email_key"))
	assert.False(t, IsUniqueViolation(&pgconn.PgError{Code: "23503"}))
	assert.False(t, IsUniqueViolation(errors.New("boom")))
	assert.False(t, IsUniqueViolation(nil))
}

func serializationErr() error {
	return fmt.Errorf("sequence: allocate quotation: %w", &pgconn.PgError{Code: SerializationFailure, Message: "could not serialize access due to concurrent update"})
}

func TestIsSerializationFailure(t *testing.T) {
	assert.True(t, IsSerializationFailure(serializationErr()))
	assert.False(t, IsSerializationFailure(uniqueErr("quotations_code_key")))
	assert.False(t, IsSerializationFailure(errors.New("boom")))
	assert.False(t, IsSerializationFailure(nil))
}

func TestRetryOnConflictUniqueViolation(t *testing.T) {
	calls, retries := 0, 0
	err := RetryOnConflict(context.Background(), 1, []string{"quotations_code_key"}, func() { retries++ }, func(context.Context) error {
		calls++
		if calls == 1 {
			return uniqueErr("quotations_code_key")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, retries)

	calls = 0
	err = RetryOnConflict(context.Background(), 1, []string{"quotations_code_key"}, nil, func(context.Context) error {
		calls++
		return uniqueErr("quotations_code_key")
	})
	assert.True(t, IsUniqueViolation(err))
	assert.Equal(t, 2, calls)

	calls = 0
	err = RetryOnConflict(context.Background(), 3, []string{"quotations_code_key"}, nil, func(context.Context) error {
		calls++
		return uniqueErr("customers_email_key")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}

// Two creators of the same kind queue on the counter row; the losers are
// aborted with 40001 once the winner commits and must start over.
func TestRetryOnConflictSerializationFailure(t *testing.T) {
	calls, retries := 0, 0
	err := RetryOnConflict(context.Background(), ConflictRetries, []string{"quotations_code_key"}, func() { retries++ }, func(context.Context) error {
		calls++
		if calls <= 2 {
			return serializationErr()
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 2, retries)

	calls = 0
	err = RetryOnConflict(context.Background(), ConflictRetries, nil, nil, func(context.Context) error {
		calls++
		return serializationErr()
	})
	assert.True(t, IsSerializationFailure(err))
	assert.Equal(t, ConflictRetries+1, calls)
}

type stubTx struct{ pgx.Tx }

func TestRetryOnConflictInsideTransaction(t *testing.T) {
	ctx := context.WithValue(context.Background(), txContextKey{}, stubTx{})
	_, nested := TxFromContext(ctx)
	assert.True(t, nested)

	calls := 0
	err := RetryOnConflict(ctx, 2, nil, nil, func(context.Context) error {
		calls++
		return serializationErr()
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
