package branches

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type stubRepo struct {
	stored map[int64]Branch
	nextID int64
}

func (r *stubRepo) List(context.Context, shared.ListFilters) ([]Branch, int, error) {
	return nil, len(r.stored), nil
}

func (r *stubRepo) Get(_ context.Context, id int64) (Branch, error) {
	b, ok := r.stored[id]
	if !ok {
		return Branch{}, internalShared.ErrNotFound
	}
	return b, nil
}

func (r *stubRepo) Create(_ context.Context, b Branch) (Branch, error) {
	r.nextID++
	b.ID = r.nextID
	r.stored[b.ID] = b
	return b, nil
}

func (r *stubRepo) Update(_ context.Context, id int64, b Branch) error {
	b.ID = id
	r.stored[id] = b
	return nil
}

func (r *stubRepo) Delete(_ context.Context, id int64) error {
	delete(r.stored, id)
	return nil
}

func TestBranchCodeNormalized(t *testing.T) {
	svc := NewService(&stubRepo{stored: map[int64]Branch{}})
	ctx := context.Background()

	b, err := svc.Create(ctx, BranchForm{Code: " blr-01 ", Name: "Bengaluru", Address: " 12 MG Road "})
	require.NoError(t, err)
	assert.Equal(t, "BLR-01", b.Code)
	assert.Equal(t, "12 MG Road", b.Address)

	b, err = svc.Update(ctx, b.ID, BranchForm{Code: "blr-02", Name: "Bengaluru North"})
	require.NoError(t, err)
	assert.Equal(t, "BLR-02", b.Code)
	assert.Equal(t, "Bengaluru North", b.Name)
}

func TestBranchValidation(t *testing.T) {
	svc := NewService(&stubRepo{stored: map[int64]Branch{}})
	_, err := svc.Create(context.Background(), BranchForm{Code: " ", Name: ""})
	var verr *internalShared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "code")
	assert.Contains(t, verr.Fields, "name")
}
