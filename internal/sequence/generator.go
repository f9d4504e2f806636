package sequence

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
)

// Observer receives allocation events, typically for metrics.
type Observer interface {
	SequenceAllocated(kind string)
	SequenceRetried(kind string)
}

// Generator allocates identifiers from the document_sequences counter table.
// Call Next inside the transaction that persists the document: the counter
// row stays locked until that transaction ends and a rolled back creation
// releases its number. Under RepeatableRead a concurrent creator of the same
// kind waits on the row and then fails with a serialization error, so
// creators wrap the whole attempt in db.RetryOnConflict.
type Generator struct {
	pool     *pgxpool.Pool
	observer Observer
}

// NewGenerator constructs a Generator. observer may be nil.
func NewGenerator(pool *pgxpool.Pool, observer Observer) *Generator {
	return &Generator{pool: pool, observer: observer}
}

const bumpCounterSQL = `UPDATE document_sequences
SET last_value = last_value + 1, updated_at = NOW()
WHERE kind = $1
RETURNING last_value`

const seedCounterSQL = `INSERT INTO document_sequences (kind, last_value, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (kind) DO UPDATE SET last_value = document_sequences.last_value + 1, updated_at = NOW()
RETURNING last_value`

// Next returns the next identifier of kind.
func (g *Generator) Next(ctx context.Context, kind Kind) (string, error) {
	spec, err := Lookup(kind)
	if err != nil {
		return "", err
	}
	conn := db.Conn(ctx, g.pool)

	var value int64
	err = conn.QueryRow(ctx, bumpCounterSQL, string(kind)).Scan(&value)
	if errors.Is(err, pgx.ErrNoRows) {
		latest, seedErr := g.latest(ctx, conn, kind, spec)
		if seedErr != nil {
			return "", seedErr
		}
		err = conn.QueryRow(ctx, seedCounterSQL, string(kind), latest+1).Scan(&value)
	}
	if err != nil {
		return "", fmt.Errorf("sequence: allocate %s: %w", kind, err)
	}

	if g.observer != nil {
		g.observer.SequenceAllocated(string(kind))
	}
	return Format(kind, value)
}

// latest finds the highest numeric suffix already stored for kind.
func (g *Generator) latest(ctx context.Context, conn db.DBTX, kind Kind, spec Spec) (int64, error) {
	if spec.Table == "" {
		return 0, nil
	}
	// Table and column come from the registry, never from input.
	query := fmt.Sprintf(`SELECT %[2]s FROM %[1]s WHERE %[2]s LIKE $1 ORDER BY length(%[2]s) DESC, %[2]s DESC LIMIT 1`, spec.Table, spec.Column)
	var code string
	err := conn.QueryRow(ctx, query, spec.Prefix+"%").Scan(&code)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("sequence: latest %s: %w", kind, err)
	}
	n, _ := Parse(kind, code)
	return n, nil
}

// ObserveRetry records that a freshly allocated code of kind collided.
func (g *Generator) ObserveRetry(kind Kind) {
	if g.observer != nil {
		g.observer.SequenceRetried(string(kind))
	}
}
