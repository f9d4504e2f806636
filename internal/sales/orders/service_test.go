package orders

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/documents/documentstest"
	"github.com/odyssey-erp/odyssey-crm/internal/procurement"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	orders     map[int64]SalesOrder
	lines      map[int64][]OrderLine
	nextID     int64
	nextLineID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{orders: map[int64]SalesOrder{}, lines: map[int64][]OrderLine{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]SalesOrder, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []SalesOrder
	for _, so := range m.orders {
		if filters.Status == "" || string(so.Status) == filters.Status {
			out = append(out, so)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	so, ok := m.orders[id]
	if !ok {
		return SalesOrder{}, shared.ErrNotFound
	}
	return so, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (SalesOrder, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) Lines(_ context.Context, id int64) ([]OrderLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lines[id]), nil
}

func (m *memoryRepo) Create(_ context.Context, so SalesOrder) (SalesOrder, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	so.ID = m.nextID
	so.CreatedAt = time.Now()
	lines := make([]OrderLine, len(so.Lines))
	for i, l := range so.Lines {
		m.nextLineID++
		l.ID = m.nextLineID
		lines[i] = l
	}
	m.lines[so.ID] = lines
	so.Lines = nil
	m.orders[so.ID] = so
	so.Lines = slices.Clone(lines)
	return so, nil
}

func (m *memoryRepo) Update(_ context.Context, so SalesOrder, plan documents.ReconcilePlan[documents.Line]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []OrderLine
	for _, l := range m.lines[so.ID] {
		if slices.Contains(plan.Delete, l.ID) {
			continue
		}
		for _, upd := range plan.Update {
			if upd.ID == l.ID {
				l.Line = upd
			}
		}
		lines = append(lines, l)
	}
	for _, l := range plan.Create {
		m.nextLineID++
		l.ID = m.nextLineID
		lines = append(lines, OrderLine{Line: l})
	}
	m.lines[so.ID] = lines
	so.Lines = nil
	m.orders[so.ID] = so
	return nil
}

func (m *memoryRepo) SetStatus(_ context.Context, so SalesOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.orders[so.ID]
	stored.Status = so.Status
	stored.UpdatedBy = so.UpdatedBy
	m.orders[so.ID] = stored
	return nil
}

func (m *memoryRepo) AddProgress(_ context.Context, orderID int64, progress []Progress) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lines := m.lines[orderID]
	for _, p := range progress {
		for i := range lines {
			if lines[i].ID == p.LineID {
				lines[i].DeliveredQty += p.Delivered
				lines[i].InvoicedQty += p.Invoiced
			}
		}
	}
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.orders, id)
	delete(m.lines, id)
	return nil
}

type converterStub struct {
	prefix   string
	received []documents.Conversion
}

func (c *converterStub) CreateFromSalesOrder(_ context.Context, conv documents.Conversion) (documents.Ref, error) {
	c.received = append(c.received, conv)
	n := len(c.received)
	return documents.Ref{ID: int64(100 + n), Code: c.prefix + string(rune('0'+n))}, nil
}

type purchasingStub struct {
	received []procurement.DeficitInput
}

func (p *purchasingStub) CreateForDeficits(_ context.Context, input procurement.DeficitInput) (procurement.PurchaseOrder, error) {
	p.received = append(p.received, input)
	return procurement.PurchaseOrder{ID: 7, Code: "PO-0001"}, nil
}

type fixture struct {
	svc        *Service
	repo       *memoryRepo
	journal    *documents.MemoryJournal
	inventory  *documentstest.Inventory
	deliveries *converterStub
	invoices   *converterStub
	purchasing *purchasingStub
	recorder   *documentstest.Recorder
}

func newFixture(t *testing.T, stock map[int64]int) *fixture {
	t.Helper()
	f := &fixture{
		repo:       newMemoryRepo(),
		journal:    documents.NewMemoryJournal(),
		inventory:  documentstest.NewInventory(stock),
		deliveries: &converterStub{prefix: "DN-000"},
		invoices:   &converterStub{prefix: "INV-000"},
		purchasing: &purchasingStub{},
		recorder:   &documentstest.Recorder{},
	}
	f.svc = NewService(f.repo, Dependencies{
		IDs:        sequence.NewMemory(nil),
		Catalog:    documentstest.NewCatalog(),
		Customers:  documentstest.NewCustomers(),
		Inventory:  f.inventory,
		Deliveries: f.deliveries,
		Invoices:   f.invoices,
		Purchasing: f.purchasing,
		Journal:    f.journal,
		Publisher:  documentstest.Publisher(f.journal, &documentstest.Mailer{}),
		Recorder:   f.recorder,
	})
	return f
}

func (f *fixture) order(t *testing.T, lines ...documents.LineRequest) SalesOrder {
	t.Helper()
	so, err := f.svc.Create(context.Background(), SalesOrderRequest{CustomerID: 1, Lines: lines}, "")
	require.NoError(t, err)
	return so
}

func (f *fixture) act(t *testing.T, id int64, action Action) ActionResponse {
	t.Helper()
	res, err := f.svc.Act(context.Background(), id, ActionRequest{Action: action})
	require.NoError(t, err, action)
	return res
}

func TestSalesOrderSubmitRequiresStock(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 5})
	so := f.order(t, documentstest.Line(7, 10, "100", "0"))
	assert.Equal(t, "SO-0001", so.Code)

	_, err := f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionSubmit})
	var stock *shared.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, []shared.StockShortfall{{ProductID: 7, Required: 10, Available: 5}}, stock.Lines)

	got, err := f.svc.Get(context.Background(), so.ID)
	require.NoError(t, err)
	assert.Equal(t, SalesOrderStatusDraft, got.Status)
	assert.Empty(t, got.History)
	assert.Equal(t, 5, f.inventory.Stock(7))
}

func TestSalesOrderSubmitChecksEachLine(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 5, 8: 50})
	so := f.order(t, documentstest.Line(7, 3, "100", "0"), documentstest.Line(7, 3, "90", "0"), documentstest.Line(8, 1, "50", "0"))

	res := f.act(t, so.ID, ActionSubmit)
	assert.Equal(t, SalesOrderStatusSubmitted, res.Status)
	assert.Equal(t, 5, f.inventory.Stock(7), "submit reserves nothing")
}

func TestSalesOrderSubmitReportsEveryShortLine(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 4, 8: 50})
	so := f.order(t, documentstest.Line(7, 5, "100", "0"), documentstest.Line(8, 1, "50", "0"), documentstest.Line(7, 6, "90", "0"))

	_, err := f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionSubmit})
	var stock *shared.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, []shared.StockShortfall{
		{ProductID: 7, Required: 5, Available: 4},
		{ProductID: 7, Required: 6, Available: 4},
	}, stock.Lines)

	stored, err := f.svc.Get(context.Background(), so.ID)
	require.NoError(t, err)
	assert.Equal(t, SalesOrderStatusDraft, stored.Status)
	assert.Equal(t, []documentstest.Transition{{Document: "sales_order", Action: "submit", Failed: true}}, f.recorder.Calls)
}

func TestSalesOrderPartialDeliveries(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 6, 8: 3})
	so := f.order(t, documentstest.Line(7, 10, "100", "0"), documentstest.Line(8, 2, "50", "0"))
	f.act(t, so.ID, ActionSubmitPD)

	res := f.act(t, so.ID, ActionConvertToDelivery)
	assert.Equal(t, SalesOrderStatusPartiallyDelivered, res.Status)
	require.NotNil(t, res.Created)
	assert.Equal(t, "DN-0001", res.Created.Code)
	assert.Equal(t, 6, res.Lines[0].DeliveredQty)
	assert.Equal(t, 2, res.Lines[1].DeliveredQty)
	assert.Equal(t, 0, f.inventory.Stock(7))
	assert.Equal(t, 1, f.inventory.Stock(8))

	first := f.deliveries.received[0]
	assert.Equal(t, so.ID, first.SourceID)
	require.Len(t, first.Lines, 2)
	assert.Equal(t, 6, first.Lines[0].Line.Quantity)
	assert.Equal(t, res.Lines[0].ID, first.Lines[0].SourceLineID)
	assertDecimal(t, "708", first.Lines[0].Line.Total)

	_, err := f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionConvertToDelivery})
	var stock *shared.InsufficientStockError
	require.ErrorAs(t, err, &stock)
	assert.Equal(t, []shared.StockShortfall{{ProductID: 7, Required: 4, Available: 0}}, stock.Lines)

	require.NoError(t, f.inventory.Restock(context.Background(), 7, 10))
	res = f.act(t, so.ID, ActionConvertToDelivery)
	assert.Equal(t, SalesOrderStatusDelivered, res.Status)
	require.Len(t, f.deliveries.received, 2)
	assert.Equal(t, 4, f.deliveries.received[1].Lines[0].Line.Quantity)
	assert.Equal(t, 6, f.inventory.Stock(7))

	_, err = f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionConvertToDelivery})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)

	history, err := f.journal.History(context.Background(), documents.TypeSalesOrder, so.ID)
	require.NoError(t, err)
	var statuses []string
	for _, h := range history {
		statuses = append(statuses, h.ToStatus)
	}
	assert.Equal(t, []string{"Submitted(PD)", "Partially Delivered", "Delivered"}, statuses)
}

func TestSalesOrderShippingChargedOnFirstDocumentOnly(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 1})
	so, err := f.svc.Create(context.Background(), SalesOrderRequest{
		CustomerID:      1,
		ShippingCharges: documentstest.Dec("40"),
		Lines:           []documents.LineRequest{documentstest.Line(7, 2, "100", "0")},
	}, "")
	require.NoError(t, err)
	f.act(t, so.ID, ActionSubmitPD)
	f.act(t, so.ID, ActionConvertToDelivery)
	require.NoError(t, f.inventory.Restock(context.Background(), 7, 1))
	f.act(t, so.ID, ActionConvertToDelivery)

	assertDecimal(t, "40", f.deliveries.received[0].ShippingCharges)
	assert.True(t, f.deliveries.received[1].ShippingCharges.IsZero())
}

func TestSalesOrderGeneratePO(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 4, 8: 20})
	so := f.order(t, documentstest.Line(7, 10, "100", "0"), documentstest.Line(8, 5, "50", "0"))

	res := f.act(t, so.ID, ActionGeneratePO)
	assert.Equal(t, SalesOrderStatusReadyToSubmit, res.Status)
	require.NotNil(t, res.Created)
	assert.Equal(t, "PO-0001", res.Created.Code)
	require.Len(t, f.purchasing.received, 1)
	assert.Equal(t, []procurement.LineInput{{ProductID: 7, ProductCode: "CVB0007", ProductName: "Steel bracket", Quantity: 6}},
		f.purchasing.received[0].Lines)
	assert.Equal(t, so.ID, f.purchasing.received[0].SalesOrderID)

	assert.Equal(t, []documents.EventType{documents.EventPOGenerated, documents.EventStatusChange},
		f.journal.Events(documents.TypeSalesOrder, so.ID))
	history, err := f.journal.History(context.Background(), documents.TypeSalesOrder, so.ID)
	require.NoError(t, err)
	assert.Equal(t, "PO-0001", history[0].ExtraInfo)

	_, err = f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionGeneratePO})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestSalesOrderGeneratePOPartialOrdersEverything(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 40})
	so := f.order(t, documentstest.Line(7, 10, "100", "0"))

	_, err := f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionGeneratePO})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")

	res, err := f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionGeneratePO, Partial: true})
	require.NoError(t, err)
	assert.Equal(t, SalesOrderStatusReadyToSubmit, res.Status)
	assert.Equal(t, 10, f.purchasing.received[0].Lines[0].Quantity)
}

func TestSalesOrderConvertToInvoice(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 100})
	so := f.order(t, documentstest.Line(7, 2, "100", "10"))
	f.act(t, so.ID, ActionSubmit)

	res := f.act(t, so.ID, ActionConvertToInvoice)
	assert.Equal(t, SalesOrderStatusSubmitted, res.Status)
	assert.Equal(t, "INV-0001", res.Created.Code)
	assert.Equal(t, 2, res.Lines[0].InvoicedQty)
	conv := f.invoices.received[0]
	assertDecimal(t, "212.40", conv.Lines[0].Line.Total)

	_, err := f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionConvertToInvoice})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")
	assert.Equal(t, []documents.EventType{documents.EventStatusChange}, f.journal.Events(documents.TypeSalesOrder, so.ID))
}

func TestSalesOrderCreateFromQuotation(t *testing.T) {
	f := newFixture(t, nil)
	line, err := documents.WithQuantity(documents.Line{ID: 31, ProductID: 7, ProductCode: "CVB0007", ProductName: "Steel bracket",
		UnitPrice: documentstest.Dec("100"), Discount: documentstest.Dec("10"), TaxRate: documentstest.Dec("18")}, 2)
	require.NoError(t, err)

	ctx := shared.ContextWithActor(context.Background(), 9)
	ref, err := f.svc.CreateFromQuotation(ctx, documents.Conversion{
		SourceID: 4, SourceCode: "QUO0004", CustomerID: 1, Lines: []documents.SourceLine{{SourceLineID: 31, Line: line}},
	})
	require.NoError(t, err)
	assert.Equal(t, "SO-0001", ref.Code)

	so, err := f.svc.Get(ctx, ref.ID)
	require.NoError(t, err)
	require.NotNil(t, so.QuotationID)
	assert.Equal(t, int64(4), *so.QuotationID)
	assert.Equal(t, SalesOrderStatusDraft, so.Status)
	assert.Equal(t, int64(9), so.CreatedBy)
	assert.Equal(t, "INR", so.Currency)
	assertDecimal(t, "251", so.GrandTotal)
	require.Len(t, so.Lines, 1)
	assert.NotEqual(t, int64(31), so.Lines[0].ID)
}

func TestSalesOrderEditingLocksAfterSubmit(t *testing.T) {
	f := newFixture(t, map[int64]int{7: 100})
	so := f.order(t, documentstest.Line(7, 1, "100", "0"))
	req := SalesOrderRequest{CustomerID: 1, Lines: []documents.LineRequest{documentstest.Line(7, 3, "100", "0")}}

	updated, err := f.svc.Update(context.Background(), so.ID, req)
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Lines[0].Quantity)

	f.act(t, so.ID, ActionSubmit)
	_, err = f.svc.Update(context.Background(), so.ID, req)
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
	assert.ErrorIs(t, f.svc.Delete(context.Background(), so.ID), shared.ErrInvalidStatus)

	f.act(t, so.ID, ActionCancel)
	_, err = f.svc.Act(context.Background(), so.ID, ActionRequest{Action: ActionSubmit})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestSalesOrderTransitionClosure(t *testing.T) {
	actions := []Action{ActionSaveDraft, ActionSubmit, ActionSubmitPD, ActionCancel, ActionGeneratePO, ActionConvertToDelivery, ActionConvertToInvoice}
	allowed := map[SalesOrderStatus][]Action{
		SalesOrderStatusDraft:              {ActionSaveDraft, ActionSubmit, ActionSubmitPD, ActionCancel, ActionGeneratePO},
		SalesOrderStatusReadyToSubmit:      {ActionSubmit, ActionSubmitPD, ActionCancel},
		SalesOrderStatusSubmitted:          {ActionCancel, ActionConvertToDelivery, ActionConvertToInvoice},
		SalesOrderStatusSubmittedPD:        {ActionCancel, ActionConvertToDelivery, ActionConvertToInvoice},
		SalesOrderStatusPartiallyDelivered: {ActionConvertToDelivery, ActionConvertToInvoice},
	}
	for _, status := range Machine.States() {
		for _, action := range actions {
			want := slices.Contains(allowed[status], action)
			assert.Equal(t, want, Machine.Can(status, action), "%s/%s", status, action)
			if !want {
				_, err := Machine.Transition(status, action)
				assert.True(t, errors.Is(err, shared.ErrInvalidStatus))
			}
		}
	}
	next, err := Machine.Transition(SalesOrderStatusSubmitted, ActionConvertToDelivery, SalesOrderStatusPartiallyDelivered)
	require.NoError(t, err)
	assert.Equal(t, SalesOrderStatusPartiallyDelivered, next)
	assert.True(t, Machine.Terminal(SalesOrderStatusDelivered))
	assert.True(t, Machine.Terminal(SalesOrderStatusCancelled))
}

func assertDecimal(t *testing.T, want string, got interface{ String() string }) {
	t.Helper()
	assert.Equal(t, documentstest.Dec(want).String(), got.String())
}
