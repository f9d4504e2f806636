package documents

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func lineID(l Line) int64 { return l.ID }

func TestReconcilePartitionsByID(t *testing.T) {
	existing := []Line{{ID: 1}, {ID: 2}, {ID: 3}}
	incoming := []Line{{ID: 3, Quantity: 9}, {Quantity: 4}, {ID: 1, Quantity: 2}, {Quantity: 1}}

	plan, err := Reconcile("items", existing, incoming, lineID)
	require.NoError(t, err)

	require.Len(t, plan.Update, 2)
	assert.Equal(t, int64(3), plan.Update[0].ID)
	assert.Equal(t, 9, plan.Update[0].Quantity)
	assert.Equal(t, int64(1), plan.Update[1].ID)
	assert.Len(t, plan.Create, 2)
	assert.Equal(t, []int64{2}, plan.Delete)
}

func TestReconcileEmptyIncomingDeletesAll(t *testing.T) {
	plan, err := Reconcile("items", []Line{{ID: 5}, {ID: 4}}, nil, lineID)
	require.NoError(t, err)
	assert.Empty(t, plan.Update)
	assert.Empty(t, plan.Create)
	assert.Equal(t, []int64{4, 5}, plan.Delete)
}

func TestReconcileRejectsForeignAndRepeatedIDs(t *testing.T) {
	_, err := Reconcile("items", []Line{{ID: 1}}, []Line{{ID: 1}, {ID: 1}, {ID: 42}}, lineID)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Equal(t, "is repeated", verr.Fields["items[1].id"])
	assert.Equal(t, "does not belong to this document", verr.Fields["items[2].id"])
}
