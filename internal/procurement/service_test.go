package procurement

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type memoryProcRepo struct {
	pos    map[int64]PurchaseOrder
	nextID int64
}

func newMemoryProcRepo() *memoryProcRepo {
	return &memoryProcRepo{pos: make(map[int64]PurchaseOrder)}
}

func (r *memoryProcRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, r)
}

func (r *memoryProcRepo) CreatePO(_ context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	r.nextID++
	po.ID = r.nextID
	r.pos[po.ID] = po
	return po, nil
}

func (r *memoryProcRepo) InsertPOLine(_ context.Context, line POLine) (POLine, error) {
	po := r.pos[line.POID]
	line.ID = int64(len(po.Lines) + 1)
	po.Lines = append(po.Lines, line)
	r.pos[line.POID] = po
	return line, nil
}

func (r *memoryProcRepo) GetPO(_ context.Context, id int64) (PurchaseOrder, error) {
	po, ok := r.pos[id]
	if !ok {
		return PurchaseOrder{}, shared.ErrNotFound
	}
	return po, nil
}

func (r *memoryProcRepo) ListPOs(_ context.Context, _ ListFilters, _ shared.PageRequest) ([]PurchaseOrder, int, error) {
	out := make([]PurchaseOrder, 0, len(r.pos))
	for _, po := range r.pos {
		out = append(out, po)
	}
	return out, len(out), nil
}

func TestCreateForDeficits(t *testing.T) {
	repo := newMemoryProcRepo()
	audit := &shared.MemoryAuditor{}
	svc := NewService(repo, sequence.NewMemory(nil), audit)
	ctx := shared.ContextWithActor(context.Background(), 4)

	po, err := svc.CreateForDeficits(ctx, DeficitInput{
		SalesOrderID: 12,
		Lines: []LineInput{
			{ProductID: 1, ProductCode: "CVB0001", ProductName: "Valve", Quantity: 5},
			{ProductID: 2, ProductCode: "CVB0002", ProductName: "Gasket", Quantity: 0},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, "PO-0001", po.Code)
	assert.Equal(t, POStatusDraft, po.Status)
	require.NotNil(t, po.SalesOrderID)
	assert.Equal(t, int64(12), *po.SalesOrderID)
	assert.Equal(t, int64(4), po.CreatedBy)
	require.Len(t, po.Lines, 1)
	assert.Equal(t, 5, po.Lines[0].Quantity)

	stored, err := svc.GetPO(ctx, po.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Lines, 1)

	require.Len(t, audit.Logs, 1)
	assert.Equal(t, "PO_CREATE", audit.Logs[0].Action)
}

func TestCreateForDeficitsNothingToOrder(t *testing.T) {
	svc := NewService(newMemoryProcRepo(), sequence.NewMemory(nil), nil)
	_, err := svc.CreateForDeficits(context.Background(), DeficitInput{SalesOrderID: 1, Lines: []LineInput{{ProductID: 1}}})
	assert.ErrorIs(t, err, shared.ErrValidation)
}
