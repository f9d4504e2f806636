package notes

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
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	notes      map[int64]DeliveryNote
	lines      map[int64][]NoteLine
	nextID     int64
	nextLineID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{notes: map[int64]DeliveryNote{}, lines: map[int64][]NoteLine{}}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]DeliveryNote, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DeliveryNote
	for _, n := range m.notes {
		if filters.Status == "" || string(n.Status) == filters.Status {
			out = append(out, n)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (DeliveryNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.notes[id]
	if !ok {
		return DeliveryNote{}, shared.ErrNotFound
	}
	return n, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (DeliveryNote, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) Lines(_ context.Context, id int64) ([]NoteLine, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lines[id]), nil
}

func (m *memoryRepo) Create(_ context.Context, note DeliveryNote) (DeliveryNote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	note.ID = m.nextID
	note.CreatedAt = time.Now()
	lines := make([]NoteLine, len(note.Lines))
	for i, l := range note.Lines {
		m.nextLineID++
		l.ID = m.nextLineID
		lines[i] = l
	}
	m.lines[note.ID] = lines
	note.Lines = nil
	m.notes[note.ID] = note
	note.Lines = slices.Clone(lines)
	return note, nil
}

func (m *memoryRepo) Update(_ context.Context, note DeliveryNote, plan documents.ReconcilePlan[documents.Line]) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []NoteLine
	for _, l := range m.lines[note.ID] {
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
		lines = append(lines, NoteLine{Line: l})
	}
	m.lines[note.ID] = lines
	note.Lines = nil
	m.notes[note.ID] = note
	return nil
}

func (m *memoryRepo) SetStatus(_ context.Context, note DeliveryNote) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.notes[note.ID]
	stored.Status = note.Status
	stored.UpdatedBy = note.UpdatedBy
	m.notes[note.ID] = stored
	return nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.notes, id)
	delete(m.lines, id)
	return nil
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	journal  *documents.MemoryJournal
	mailer   *documentstest.Mailer
	recorder *documentstest.Recorder
	today    shared.Date
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	customers := documentstest.NewCustomers()
	cust := customers[1]
	cust.ShippingAddress = "Plot 4, MIDC, Pune"
	customers[1] = cust
	f := &fixture{
		repo:     newMemoryRepo(),
		journal:  documents.NewMemoryJournal(),
		mailer:   &documentstest.Mailer{},
		recorder: &documentstest.Recorder{},
		today:    shared.NewDate(time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC)),
	}
	f.svc = NewService(f.repo, Dependencies{
		IDs:       sequence.NewMemory(nil),
		Catalog:   documentstest.NewCatalog(),
		Customers: customers,
		Journal:   f.journal,
		Publisher: documentstest.Publisher(f.journal, f.mailer),
		Recorder:  f.recorder,
	})
	f.svc.today = func() shared.Date { return f.today }
	return f
}

func request() NoteRequest {
	return NoteRequest{CustomerID: 1, Lines: []documents.LineRequest{documentstest.Line(7, 2, "100", "10")}}
}

func (f *fixture) fromOrder(t *testing.T) documents.Ref {
	t.Helper()
	line, err := documents.WithQuantity(documents.Line{
		ProductID: 7, ProductCode: "CVB0007", ProductName: "Steel bracket", Quantity: 5,
		UnitPrice: documentstest.Dec("100"), Discount: documentstest.Dec("10"), TaxRate: documentstest.Dec("18"),
	}, 2)
	require.NoError(t, err)
	ref, err := f.svc.CreateFromSalesOrder(shared.ContextWithActor(context.Background(), 6), documents.Conversion{
		SourceID: 3, SourceCode: "SO-0003", CustomerID: 1,
		Lines: []documents.SourceLine{{SourceLineID: 21, Line: line}},
	})
	require.NoError(t, err)
	return ref
}

func TestDeliveryNoteFromSalesOrder(t *testing.T) {
	f := newFixture(t)
	ref := f.fromOrder(t)
	assert.Equal(t, "DN-0001", ref.Code)

	note, err := f.svc.Get(context.Background(), ref.ID)
	require.NoError(t, err)
	assert.Equal(t, NoteStatusDraft, note.Status)
	assert.Equal(t, DeliveryTypeRegular, note.DeliveryType)
	assert.Equal(t, f.today, note.DeliveryDate)
	assert.Equal(t, "SO-0003", note.SalesOrderCode)
	assert.Equal(t, "Plot 4, MIDC, Pune", note.DestinationAddress)
	require.NotNil(t, note.SalesOrderID)
	assert.Equal(t, int64(3), *note.SalesOrderID)
	require.Len(t, note.Lines, 1)
	require.NotNil(t, note.Lines[0].SalesOrderLineID)
	assert.Equal(t, int64(21), *note.Lines[0].SalesOrderLineID)
	assert.Equal(t, 2, note.Lines[0].Quantity)
	assert.Equal(t, "251", note.GrandTotal.String())
	require.Len(t, note.Comments, 1)
	assert.Equal(t, "Created from sales order SO-0003", note.Comments[0].Body)
	assert.Equal(t, int64(6), note.CreatedBy)

	_, err = f.svc.CreateFromSalesOrder(context.Background(), documents.Conversion{SourceID: 3, CustomerID: 2})
	assert.True(t, errors.Is(err, shared.ErrValidation))
}

func TestDeliveryNoteOrderLinesAreFixed(t *testing.T) {
	f := newFixture(t)
	ref := f.fromOrder(t)

	_, err := f.svc.Update(context.Background(), ref.ID, request())
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items")

	note, err := f.svc.Update(context.Background(), ref.ID, NoteRequest{
		CustomerID: 1, DeliveryType: DeliveryTypeUrgent, ReceivedBy: " Suresh ", ContactNumber: "9822000000",
	})
	require.NoError(t, err)
	assert.Equal(t, DeliveryTypeUrgent, note.DeliveryType)
	assert.Equal(t, "Suresh", note.ReceivedBy)
	require.Len(t, note.Lines, 1)
	assert.Equal(t, "251", note.GrandTotal.String())

	err = f.svc.Delete(context.Background(), ref.ID)
	assert.True(t, errors.Is(err, shared.ErrValidation), "order notes are cancelled, not deleted")
}

func TestDeliveryNoteManualLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := shared.ContextWithActor(context.Background(), 2)

	note, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)
	assert.Equal(t, "DN-0001", note.Code)
	assert.Nil(t, note.SalesOrderID)

	req := request()
	req.Lines = append(req.Lines, documentstest.Line(9, 1, "250", "0"))
	note, err = f.svc.Update(ctx, note.ID, req)
	require.NoError(t, err)
	require.Len(t, note.Lines, 2)
	assert.Equal(t, "501", note.GrandTotal.String())

	note, err = f.svc.Act(ctx, note.ID, ActionRequest{Action: ActionSubmit, Comment: "loaded on truck"})
	require.NoError(t, err)
	assert.Equal(t, NoteStatusSubmitted, note.Status)
	require.Len(t, note.History, 1)
	assert.Equal(t, "Draft", note.History[0].FromStatus)

	_, err = f.svc.Update(ctx, note.ID, req)
	assert.True(t, errors.Is(err, shared.ErrInvalidStatus))
	assert.True(t, errors.Is(f.svc.Delete(ctx, note.ID), shared.ErrInvalidStatus))

	note, err = f.svc.Act(ctx, note.ID, ActionRequest{Action: ActionCancel})
	require.NoError(t, err)
	assert.Equal(t, NoteStatusCancelled, note.Status)

	_, err = f.svc.Act(ctx, note.ID, ActionRequest{Action: ActionSubmit})
	var trans *shared.IllegalTransitionError
	require.ErrorAs(t, err, &trans)
	assert.Equal(t, "Action submit not allowed in Cancelled state", trans.Error())
	require.Len(t, f.recorder.Calls, 3)
	assert.True(t, f.recorder.Calls[2].Failed)
}

func TestDeliveryNoteDeleteDraft(t *testing.T) {
	f := newFixture(t)
	note, err := f.svc.Create(context.Background(), request(), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(context.Background(), note.ID))
	_, err = f.svc.Get(context.Background(), note.ID)
	assert.True(t, errors.Is(err, shared.ErrNotFound))
}

func TestDeliveryNoteTransitionClosure(t *testing.T) {
	actions := []Action{ActionSaveDraft, ActionSubmit, ActionCancel}
	allowed := map[NoteStatus][]Action{
		NoteStatusDraft:     {ActionSaveDraft, ActionSubmit, ActionCancel},
		NoteStatusSubmitted: {ActionCancel},
	}
	for _, status := range Machine.States() {
		for _, action := range actions {
			want := slices.Contains(allowed[status], action)
			assert.Equal(t, want, Machine.Can(status, action), "%s/%s", status, action)
		}
	}
	assert.True(t, Machine.Terminal(NoteStatusCancelled))
}

func TestDeliveryNotePublishing(t *testing.T) {
	f := newFixture(t)
	ref := f.fromOrder(t)

	pdf, filename, err := f.svc.PDF(context.Background(), ref.ID)
	require.NoError(t, err)
	assert.Equal(t, "%PDF DN-0001", string(pdf))
	assert.Equal(t, "DN-0001.pdf", filename)

	require.NoError(t, f.svc.Email(context.Background(), ref.ID, ""))
	require.Len(t, f.mailer.Sent, 1)
	assert.Equal(t, "accounts@kumar.example", f.mailer.Sent[0].To)
	assert.Equal(t, "Delivery Note DN-0001", f.mailer.Sent[0].Subject)
	assert.Equal(t, []documents.EventType{documents.EventPDFGenerated, documents.EventEmailSent},
		f.journal.Events(documents.TypeDeliveryNote, ref.ID))
}
