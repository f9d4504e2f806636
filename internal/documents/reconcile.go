package documents

import (
	"fmt"
	"slices"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// ReconcilePlan is the outcome of diffing a resent child collection
// against the stored one.
type ReconcilePlan[T any] struct {
	Update []T
	Create []T
	Delete []int64
}

// Reconcile partitions incoming children by ID: entries carrying an ID that
// exists are updates, entries without an ID are inserts, and stored children
// whose ID was not resent are deleted. An unknown or repeated ID is a
// validation error under field.
func Reconcile[T any](field string, existing, incoming []T, id func(T) int64) (ReconcilePlan[T], error) {
	stored := make(map[int64]struct{}, len(existing))
	for _, child := range existing {
		stored[id(child)] = struct{}{}
	}

	var plan ReconcilePlan[T]
	seen := make(map[int64]struct{}, len(incoming))
	verr := &shared.ValidationError{}
	for i, child := range incoming {
		childID := id(child)
		if childID == 0 {
			plan.Create = append(plan.Create, child)
			continue
		}
		key := fmt.Sprintf("%s[%d].id", field, i)
		if _, ok := stored[childID]; !ok {
			verr.Add(key, "does not belong to this document")
			continue
		}
		if _, dup := seen[childID]; dup {
			verr.Add(key, "is repeated")
			continue
		}
		seen[childID] = struct{}{}
		plan.Update = append(plan.Update, child)
	}
	if err := verr.Err(); err != nil {
		return ReconcilePlan[T]{}, err
	}

	for storedID := range stored {
		if _, kept := seen[storedID]; !kept {
			plan.Delete = append(plan.Delete, storedID)
		}
	}
	slices.Sort(plan.Delete)
	return plan, nil
}
