package suppliers

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type mockRepository struct {
	suppliers map[int64]Supplier
	nextID    int64
}

func newMockRepository() *mockRepository {
	return &mockRepository{suppliers: map[int64]Supplier{}, nextID: 1}
}

func (m *mockRepository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *mockRepository) List(_ context.Context, _ shared.ListFilters) ([]Supplier, int, error) {
	out := make([]Supplier, 0, len(m.suppliers))
	for _, s := range m.suppliers {
		out = append(out, s)
	}
	return out, len(out), nil
}

func (m *mockRepository) Get(_ context.Context, id int64) (Supplier, error) {
	s, ok := m.suppliers[id]
	if !ok {
		return Supplier{}, fmt.Errorf("supplier %d: %w", id, internalShared.ErrNotFound)
	}
	return s, nil
}

func (m *mockRepository) Create(_ context.Context, s Supplier) (Supplier, error) {
	for _, existing := range m.suppliers {
		if existing.TaxID == s.TaxID {
			return Supplier{}, fmt.Errorf("supplier tax id already exists: %w", internalShared.ErrDuplicate)
		}
	}
	s.ID = m.nextID
	m.nextID++
	m.suppliers[s.ID] = s
	return s, nil
}

func (m *mockRepository) Update(_ context.Context, s Supplier) error {
	if _, ok := m.suppliers[s.ID]; !ok {
		return internalShared.ErrNotFound
	}
	m.suppliers[s.ID] = s
	return nil
}

func (m *mockRepository) Delete(_ context.Context, id int64) error {
	delete(m.suppliers, id)
	return nil
}

func form(taxID string) SupplierForm {
	return SupplierForm{
		TaxID:             taxID,
		Name:              "Acme Components",
		LegalEntityName:   "Acme Components Pvt Ltd",
		ContactFirstName:  "Asha",
		ContactEmail:      "Asha@Acme.example",
		ContactPhone:      "+91 81234 56789",
		RegisteredAddress: "12 Industrial Estate",
	}
}

func TestSuppliersReceiveSequentialCodes(t *testing.T) {
	svc := NewService(newMockRepository(), sequence.NewMemory(nil), "IN")
	ctx := context.Background()

	var codes []string
	for _, taxID := range []string{"29ABCDE1234F1Z5", "29ABCDE1234F1Z6", "29ABCDE1234F1Z7"} {
		s, err := svc.Create(ctx, form(taxID))
		require.NoError(t, err)
		codes = append(codes, s.Code)
	}
	assert.Equal(t, []string{"SUP-0001", "SUP-0002", "SUP-0003"}, codes)
}

func TestCreateSupplierNormalizes(t *testing.T) {
	svc := NewService(newMockRepository(), sequence.NewMemory(nil), "IN")
	s, err := svc.Create(context.Background(), form("29abcde1234f1z5"))
	require.NoError(t, err)

	assert.Equal(t, "29ABCDE1234F1Z5", s.TaxID)
	assert.Equal(t, "asha@acme.example", s.ContactEmail)
	assert.Equal(t, "+918123456789", s.ContactPhone)
	assert.Equal(t, StatusActive, s.Status)
	assert.Equal(t, "Net 30", s.PaymentTerms)
	assert.Equal(t, "INR", s.Currency)
}

func TestCreateSupplierRejectsBadPhone(t *testing.T) {
	svc := NewService(newMockRepository(), sequence.NewMemory(nil), "IN")
	f := form("29ABCDE1234F1Z5")
	f.ContactPhone = "123"

	_, err := svc.Create(context.Background(), f)
	var verr *internalShared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "primary_contact_phone")
}

func TestCreateSupplierDuplicateTaxID(t *testing.T) {
	svc := NewService(newMockRepository(), sequence.NewMemory(nil), "IN")
	ctx := context.Background()
	_, err := svc.Create(ctx, form("29ABCDE1234F1Z5"))
	require.NoError(t, err)

	_, err = svc.Create(ctx, form("29ABCDE1234F1Z5"))
	assert.ErrorIs(t, err, internalShared.ErrDuplicate)
}

func TestUpdateSupplierKeepsCode(t *testing.T) {
	svc := NewService(newMockRepository(), sequence.NewMemory(nil), "IN")
	ctx := context.Background()
	s, err := svc.Create(ctx, form("29ABCDE1234F1Z5"))
	require.NoError(t, err)

	f := form("29ABCDE1234F1Z5")
	f.Name = "Acme Components Intl"
	updated, err := svc.Update(ctx, s.ID, f)
	require.NoError(t, err)
	assert.Equal(t, "SUP-0001", updated.Code)
	assert.Equal(t, "Acme Components Intl", updated.Name)
}
