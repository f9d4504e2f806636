package departments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type stubRepo struct {
	stored map[int64]Department
	nextID int64
}

func newStubRepo() *stubRepo { return &stubRepo{stored: map[int64]Department{}} }

func (r *stubRepo) List(context.Context, shared.ListFilters) ([]Department, int, error) {
	out := make([]Department, 0, len(r.stored))
	for _, d := range r.stored {
		out = append(out, d)
	}
	return out, len(out), nil
}

func (r *stubRepo) Get(_ context.Context, id int64) (Department, error) {
	d, ok := r.stored[id]
	if !ok {
		return Department{}, internalShared.ErrNotFound
	}
	return d, nil
}

func (r *stubRepo) Create(_ context.Context, d Department) (Department, error) {
	r.nextID++
	d.ID = r.nextID
	r.stored[d.ID] = d
	return d, nil
}

func (r *stubRepo) Update(_ context.Context, d Department) error {
	if _, ok := r.stored[d.ID]; !ok {
		return internalShared.ErrNotFound
	}
	r.stored[d.ID] = d
	return nil
}

func (r *stubRepo) Delete(_ context.Context, id int64) error {
	delete(r.stored, id)
	return nil
}

func TestDepartmentCreateAndUpdate(t *testing.T) {
	svc := NewService(newStubRepo())
	ctx := context.Background()

	d, err := svc.Create(ctx, DepartmentForm{Name: "  Sales ", Description: " field team "})
	require.NoError(t, err)
	assert.Equal(t, "Sales", d.Name)
	assert.Equal(t, "field team", d.Description)

	d, err = svc.Update(ctx, d.ID, DepartmentForm{Name: "Inside Sales"})
	require.NoError(t, err)
	assert.Equal(t, "Inside Sales", d.Name)

	_, err = svc.Update(ctx, 99, DepartmentForm{Name: "Ghost"})
	assert.ErrorIs(t, err, internalShared.ErrNotFound)
}

func TestDepartmentNameRequired(t *testing.T) {
	svc := NewService(newStubRepo())
	_, err := svc.Create(context.Background(), DepartmentForm{Name: "   "})
	var verr *internalShared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "This field is required.", verr.Fields["name"])
}
