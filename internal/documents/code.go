package documents

import (
	"context"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
)

// WithCode runs create and retries it when the code it allocated for kind
// collides with a concurrent insert, or when its transaction lost the counter
// row to a concurrent creator. create must allocate the code and open its
// transaction itself so every retry starts from a clean attempt.
func WithCode(ctx context.Context, ids sequence.Allocator, kind sequence.Kind, create func(context.Context) error) error {
	return db.RetryOnConflict(ctx, db.ConflictRetries, []string{sequence.Constraint(kind)},
		func() { sequence.NoteRetry(ids, kind) }, create)
}
