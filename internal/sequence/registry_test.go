package sequence

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	cases := []struct {
		kind Kind
		n    int64
		want string
	}{
		{KindQuotation, 1, "QUO0001"},
		{KindSalesOrder, 12, "SO-0012"},
		{KindDeliveryNote, 7, "DN-0007"},
		{KindInvoice, 100, "INV-0100"},
		{KindInvoiceReturn, 3, "INVR-0003"},
		{KindDeliveryNoteReturn, 9999, "DNR-9999"},
		{KindSupplier, 1, "SUP-0001"},
		{KindCustomer, 2, "CUS0002"},
		{KindCandidate, 15, "STA0015"},
		{KindEnquiry, 4, "ENQ0004"},
		{KindProduct, 8, "CVB0008"},
		{KindPurchaseOrder, 10000, "PO-10000"},
	}
	for _, tc := range cases {
		got, err := Format(tc.kind, tc.n)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	_, err := Format(KindQuotation, 0)
	assert.Error(t, err)
	_, err = Format("widget", 1)
	assert.Error(t, err)
}

func TestParse(t *testing.T) {
	n, ok := Parse(KindSupplier, "SUP-0042")
	assert.True(t, ok)
	assert.Equal(t, int64(42), n)

	n, ok = Parse(KindPurchaseOrder, "PO-10000")
	assert.True(t, ok)
	assert.Equal(t, int64(10000), n)

	for _, code := range []string{"SUP-", "SUP-00x1", "CUS0001", "SUP-0000"} {
		_, ok := Parse(KindSupplier, code)
		assert.False(t, ok, code)
	}
}

func TestConstraint(t *testing.T) {
	assert.Equal(t, "quotations_code_key", Constraint(KindQuotation))
	assert.Equal(t, "", Constraint(KindEnquiry))
	assert.Equal(t, "", Constraint("widget"))
}

func TestMemorySequentialSuppliers(t *testing.T) {
	ids := NewMemory(nil)
	var got []string
	for i := 0; i < 3; i++ {
		code, err := ids.Next(context.Background(), KindSupplier)
		require.NoError(t, err)
		got = append(got, code)
	}
	assert.Equal(t, []string{"SUP-0001", "SUP-0002", "SUP-0003"}, got)
}

func TestMemoryKindsAreIndependentAndSeeded(t *testing.T) {
	ids := NewMemory(map[Kind]int64{KindInvoice: 41})
	inv, err := ids.Next(context.Background(), KindInvoice)
	require.NoError(t, err)
	so, err := ids.Next(context.Background(), KindSalesOrder)
	require.NoError(t, err)
	assert.Equal(t, "INV-0042", inv)
	assert.Equal(t, "SO-0001", so)
}

func TestMemoryConcurrentAllocationsAreUnique(t *testing.T) {
	ids := NewMemory(nil)
	const workers = 50
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers)
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			code, err := ids.Next(context.Background(), KindQuotation)
			assert.NoError(t, err)
			mu.Lock()
			seen[code] = struct{}{}
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Len(t, seen, workers)
}

func TestNoteRetry(t *testing.T) {
	ids := NewMemory(nil)
	NoteRetry(ids, KindQuotation)
	NoteRetry(ids, KindQuotation)
	assert.Equal(t, 2, ids.Retries(KindQuotation))
}
