package taxes

import (
	"context"
	"fmt"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type mockRepository struct {
	taxes  map[int64]TaxCode
	nextID int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{taxes: map[int64]TaxCode{}, nextID: 1}
}

func (m *mockRepository) List(_ context.Context, _ shared.ListFilters) ([]TaxCode, int, error) {
	out := make([]TaxCode, 0, len(m.taxes))
	for _, t := range m.taxes {
		out = append(out, t)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (TaxCode, error) {
	t, ok := m.taxes[id]
	if !ok {
		return TaxCode{}, fmt.Errorf("tax code %d: %w", id, internalShared.ErrNotFound)
	}
	return t, nil
}

func (m *mockRepository) Create(_ context.Context, tax TaxCode) (TaxCode, error) {
	for _, t := range m.taxes {
		if t.Name == tax.Name {
			return TaxCode{}, internalShared.ErrDuplicate
		}
	}
	tax.ID = m.nextID
	m.nextID++
	m.taxes[tax.ID] = tax
	return tax, nil
}

func (m *mockRepository) Update(_ context.Context, tax TaxCode) error {
	if _, ok := m.taxes[tax.ID]; !ok {
		return internalShared.ErrNotFound
	}
	m.taxes[tax.ID] = tax
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	delete(m.taxes, id)
	return nil
}

func TestCreateTaxCode(t *testing.T) {
	svc := NewService(newMockRepository())
	ctx := context.Background()

	gst, err := svc.Create(ctx, TaxCodeForm{Name: " GST 18 ", Percentage: decimal.NewFromInt(18)})
	require.NoError(t, err)
	assert.Equal(t, "GST 18", gst.Name)

	rate, err := svc.Rate(ctx, gst.ID)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(18)))

	_, err = svc.Create(ctx, TaxCodeForm{Name: "GST 18", Percentage: decimal.NewFromInt(5)})
	assert.ErrorIs(t, err, internalShared.ErrDuplicate)
}

func TestCreateTaxCodeValidation(t *testing.T) {
	svc := NewService(newMockRepository())
	_, err := svc.Create(context.Background(), TaxCodeForm{Percentage: decimal.NewFromInt(101)})

	var verr *internalShared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "name")
	assert.Contains(t, verr.Fields, "percentage")
}

func TestRateUnknownTaxCode(t *testing.T) {
	svc := NewService(newMockRepository())
	_, err := svc.Rate(context.Background(), 99)
	assert.ErrorIs(t, err, internalShared.ErrNotFound)
}
