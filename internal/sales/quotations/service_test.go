package quotations

import (
	"context"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/documents/documentstest"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/cache"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type memoryRepo struct {
	mu         sync.Mutex
	quotations map[int64]Quotation
	lines      map[int64][]documents.Line
	revisions  map[int64][]Revision
	nextID     int64
	nextLineID int64
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		quotations: map[int64]Quotation{},
		lines:      map[int64][]documents.Line{},
		revisions:  map[int64][]Revision{},
	}
}

func (m *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return fn(ctx, m)
}

func (m *memoryRepo) List(_ context.Context, filters ListFilters) ([]Quotation, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Quotation
	for _, q := range m.quotations {
		if filters.Status != "" && string(q.Status) != filters.Status {
			continue
		}
		if filters.CustomerID != nil && q.CustomerID != *filters.CustomerID {
			continue
		}
		out = append(out, q)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (m *memoryRepo) Get(_ context.Context, id int64) (Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quotations[id]
	if !ok {
		return Quotation{}, shared.ErrNotFound
	}
	return q, nil
}

func (m *memoryRepo) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	return m.Get(ctx, id)
}

func (m *memoryRepo) Lines(_ context.Context, id int64) ([]documents.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.lines[id]), nil
}

func (m *memoryRepo) Revisions(_ context.Context, id int64) ([]Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.revisions[id]), nil
}

func (m *memoryRepo) Create(_ context.Context, q Quotation) (Quotation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	q.ID = m.nextID
	q.CreatedAt = time.Now()
	q.UpdatedAt = q.CreatedAt
	lines := make([]documents.Line, len(q.Lines))
	for i, line := range q.Lines {
		m.nextLineID++
		line.ID = m.nextLineID
		lines[i] = line
	}
	m.lines[q.ID] = lines
	q.Lines = nil
	m.quotations[q.ID] = q
	q.Lines = slices.Clone(lines)
	return q, nil
}

func (m *memoryRepo) Update(_ context.Context, q Quotation, plan documents.ReconcilePlan[documents.Line]) ([]documents.Line, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var lines []documents.Line
	for _, line := range m.lines[q.ID] {
		if slices.Contains(plan.Delete, line.ID) {
			continue
		}
		for _, upd := range plan.Update {
			if upd.ID == line.ID {
				line = upd
			}
		}
		lines = append(lines, line)
	}
	for _, line := range plan.Create {
		m.nextLineID++
		line.ID = m.nextLineID
		lines = append(lines, line)
	}
	m.lines[q.ID] = lines
	q.Lines = nil
	m.quotations[q.ID] = q
	return slices.Clone(lines), nil
}

func (m *memoryRepo) SetStatus(_ context.Context, q Quotation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.quotations[q.ID]
	stored.Status = q.Status
	stored.ReviseCount = q.ReviseCount
	stored.SalesOrderID = q.SalesOrderID
	stored.UpdatedBy = q.UpdatedBy
	m.quotations[q.ID] = stored
	return nil
}

func (m *memoryRepo) AddRevision(_ context.Context, id int64, rev Revision) (Revision, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rev.ID = int64(len(m.revisions[id]) + 1)
	m.revisions[id] = append(m.revisions[id], rev)
	return rev, nil
}

func (m *memoryRepo) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.quotations[id]; !ok {
		return shared.ErrNotFound
	}
	delete(m.quotations, id)
	delete(m.lines, id)
	return nil
}

func (m *memoryRepo) ExpireOverdue(_ context.Context, today shared.Date) ([]Expiry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Expiry
	for id, q := range m.quotations {
		if slices.Contains(expirable, q.Status) && q.Expired(today) {
			out = append(out, Expiry{ID: id, From: q.Status})
			q.Status = QuotationStatusExpired
			m.quotations[id] = q
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

type orderCreatorStub struct {
	received []documents.Conversion
}

func (o *orderCreatorStub) CreateFromQuotation(_ context.Context, conv documents.Conversion) (documents.Ref, error) {
	o.received = append(o.received, conv)
	return documents.Ref{ID: 90 + int64(len(o.received)), Code: "SO-0001"}, nil
}

type fixture struct {
	svc      *Service
	repo     *memoryRepo
	journal  *documents.MemoryJournal
	orders   *orderCreatorStub
	recorder *documentstest.Recorder
	mailer   *documentstest.Mailer
	today    shared.Date
}

func newFixture(t *testing.T, mutate ...func(*Dependencies)) *fixture {
	t.Helper()
	f := &fixture{
		repo:     newMemoryRepo(),
		journal:  documents.NewMemoryJournal(),
		orders:   &orderCreatorStub{},
		recorder: &documentstest.Recorder{},
		mailer:   &documentstest.Mailer{},
		today:    shared.NewDate(time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)),
	}
	deps := Dependencies{
		IDs:         sequence.NewMemory(nil),
		Catalog:     documentstest.NewCatalog(),
		Customers:   documentstest.NewCustomers(),
		Orders:      f.orders,
		Journal:     f.journal,
		Publisher:   documentstest.Publisher(f.journal, f.mailer),
		Recorder:    f.recorder,
		Idempotency: shared.NewMemoryIdempotency(),
	}
	for _, fn := range mutate {
		fn(&deps)
	}
	f.svc = NewService(f.repo, deps)
	f.svc.today = func() shared.Date { return f.today }
	return f
}

func (f *fixture) days(n int) shared.Date {
	return shared.NewDate(f.today.AddDate(0, 0, n))
}

func request(lines ...documents.LineRequest) QuotationRequest {
	if len(lines) == 0 {
		lines = []documents.LineRequest{documentstest.Line(7, 2, "100", "10")}
	}
	return QuotationRequest{CustomerID: 1, Lines: lines}
}

func assertDecimal(t *testing.T, want string, got interface{ String() string }) {
	t.Helper()
	assert.Equal(t, documentstest.Dec(want).String(), got.String())
}

func TestQuotationLifecycle(t *testing.T) {
	f := newFixture(t)
	ctx := shared.ContextWithActor(context.Background(), 5)

	q, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)
	assert.Equal(t, "QUO0001", q.Code)
	assert.Equal(t, QuotationStatusDraft, q.Status)
	require.Len(t, q.Lines, 1)
	assertDecimal(t, "212.40", q.Lines[0].Total)
	assertDecimal(t, "212.40", q.Subtotal)
	assertDecimal(t, "38.23", q.TaxSummary)
	assertDecimal(t, "251", q.GrandTotal)
	assert.Equal(t, f.today, q.Date)

	for _, action := range []Action{ActionSubmit, ActionApprove, ActionConvertToSO} {
		q, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: action})
		require.NoError(t, err, action)
	}
	assert.Equal(t, QuotationStatusConverted, q.Status)
	require.NotNil(t, q.SalesOrderID)
	assert.Equal(t, int64(91), *q.SalesOrderID)

	require.Len(t, f.orders.received, 1)
	conv := f.orders.received[0]
	assert.Equal(t, q.ID, conv.SourceID)
	assert.Equal(t, "QUO0001", conv.SourceCode)
	require.Len(t, conv.Lines, 1)
	assert.Equal(t, q.Lines[0].ID, conv.Lines[0].SourceLineID)

	_, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: ActionSubmit})
	var illegal *shared.IllegalTransitionError
	require.ErrorAs(t, err, &illegal)
	assert.Equal(t, "Action submit not allowed in Converted to SO state", illegal.Error())

	history, err := f.journal.History(ctx, documents.TypeQuotation, q.ID)
	require.NoError(t, err)
	var moves []string
	for _, h := range history {
		moves = append(moves, h.FromStatus+">"+h.ToStatus)
		assert.Equal(t, int64(5), h.ActorID)
	}
	assert.Equal(t, []string{"Draft>Submitted", "Submitted>Approved", "Approved>Converted to SO"}, moves)

	require.Len(t, f.recorder.Calls, 4)
	assert.True(t, f.recorder.Calls[3].Failed)
	assert.Equal(t, "quotation", f.recorder.Calls[3].Document)
}

func TestQuotationTransitionClosure(t *testing.T) {
	actions := []Action{ActionSaveDraft, ActionSubmit, ActionApprove, ActionReject, ActionRevise, ActionConvertToSO}
	for _, status := range Machine.States() {
		for _, action := range actions {
			next, err := Machine.Transition(status, action)
			if !Machine.Can(status, action) {
				require.Error(t, err, "%s/%s", status, action)
				assert.True(t, errors.Is(err, shared.ErrInvalidStatus))
				assert.Equal(t, status, next)
				continue
			}
			require.NoError(t, err)
			assert.True(t, Machine.Valid(next))
		}
	}
	for _, terminal := range []QuotationStatus{QuotationStatusRejected, QuotationStatusConverted, QuotationStatusExpired} {
		assert.True(t, Machine.Terminal(terminal), terminal)
	}
	assert.True(t, Machine.Can(QuotationStatusDraft, ActionSaveDraft))
	assert.False(t, Machine.Can(QuotationStatusDraft, ActionApprove))
}

func TestQuotationReviseRecordsRevision(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)
	_, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: ActionSubmit})
	require.NoError(t, err)

	q, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: ActionRevise, Comment: " price corrected "})
	require.NoError(t, err)
	q, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: ActionRevise})
	require.NoError(t, err)

	assert.Equal(t, QuotationStatusSubmitted, q.Status)
	assert.Equal(t, 2, q.ReviseCount)
	require.Len(t, q.Revisions, 2)
	assert.Equal(t, "price corrected", q.Revisions[0].Comment)
	assert.Equal(t, 2, q.Revisions[1].RevisionNo)
	assert.Empty(t, q.Comments)
}

func TestQuotationUpdateReconcilesLines(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.svc.Create(ctx, request(documentstest.Line(7, 2, "100", "10"), documentstest.Line(8, 1, "50", "0")), "")
	require.NoError(t, err)
	require.Len(t, q.Lines, 2)

	keep := documentstest.Line(7, 3, "100", "10")
	keep.ID = q.Lines[0].ID
	req := request(keep, documentstest.Line(9, 1, "250", "0"))
	req.Comment = "customer asked for installation"
	q, err = f.svc.Update(ctx, q.ID, req)
	require.NoError(t, err)

	require.Len(t, q.Lines, 2)
	assert.Equal(t, keep.ID, q.Lines[0].ID)
	assert.Equal(t, 3, q.Lines[0].Quantity)
	assert.Equal(t, int64(9), q.Lines[1].ProductID)
	assertDecimal(t, "568.60", q.Subtotal)
	require.Len(t, q.Comments, 1)

	foreign := documentstest.Line(7, 1, "100", "0")
	foreign.ID = 999
	_, err = f.svc.Update(ctx, q.ID, request(foreign))
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].id")
}

func TestQuotationEditableOnlyWhileOpen(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)
	_, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: ActionSubmit})
	require.NoError(t, err)

	_, err = f.svc.Update(ctx, q.ID, request())
	require.NoError(t, err)
	assert.ErrorIs(t, f.svc.Delete(ctx, q.ID), shared.ErrInvalidStatus)

	_, err = f.svc.Act(ctx, q.ID, ActionRequest{Action: ActionReject})
	require.NoError(t, err)
	_, err = f.svc.Update(ctx, q.ID, request())
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)

	draft, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)
	require.NoError(t, f.svc.Delete(ctx, draft.ID))
	_, err = f.svc.Get(ctx, draft.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestQuotationValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := request(documentstest.Line(7, 1, "100", "120"), documentstest.Line(404, 1, "1", "0"))
	req.CustomerID = 77
	_, err := f.svc.Create(ctx, req, "")
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "customer_id")

	req.CustomerID = 1
	_, err = f.svc.Create(ctx, req, "")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "items[0].discount")
	assert.Contains(t, verr.Fields, "items[1].product_id")

	req = request()
	req.Date = f.today
	req.ExpiryDate = f.days(-1)
	_, err = f.svc.Create(ctx, req, "")
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "expiry_date")
}

func TestQuotationCreatedPastExpiryIsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request()
	req.Date = f.days(-30)
	req.ExpiryDate = f.days(-1)

	q, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	assert.Equal(t, QuotationStatusExpired, q.Status)
	assert.Equal(t, []documents.EventType{documents.EventStatusChange}, f.journal.Events(documents.TypeQuotation, q.ID))
}

func TestQuotationListSweepsExpired(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	req := request()
	req.ExpiryDate = f.days(5)
	soon, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	later, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)

	f.today = f.days(6)
	list, total, err := f.svc.List(ctx, ListFilters{})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Equal(t, QuotationStatusExpired, list[0].Status)
	assert.Equal(t, QuotationStatusDraft, list[1].Status)

	history, err := f.journal.History(ctx, documents.TypeQuotation, soon.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "Draft", history[0].FromStatus)
	assert.Equal(t, int64(0), history[0].ActorID)
	assert.Empty(t, f.journal.Events(documents.TypeQuotation, later.ID))

	_, err = f.svc.Act(ctx, soon.ID, ActionRequest{Action: ActionSubmit})
	assert.ErrorIs(t, err, shared.ErrInvalidStatus)
}

func TestQuotationSweepSkipsWhenLockHeld(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	locker := cache.NewLocker(client)

	f := newFixture(t, func(d *Dependencies) { d.Locker = locker })
	ctx := context.Background()
	req := request()
	req.ExpiryDate = f.days(1)
	q, err := f.svc.Create(ctx, req, "")
	require.NoError(t, err)
	f.today = f.days(2)

	release, err := locker.Obtain(ctx, sweepLockKey, time.Minute)
	require.NoError(t, err)
	n, err := f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	got, err := f.svc.Get(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, QuotationStatusDraft, got.Status)

	require.NoError(t, release(ctx))
	n, err = f.svc.ExpireOverdue(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.False(t, mr.Exists("lock:"+sweepLockKey))
}

func TestQuotationIdempotencyKey(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, request(), "req-1")
	require.NoError(t, err)
	_, err = f.svc.Create(ctx, request(), "req-1")
	assert.ErrorIs(t, err, shared.ErrIdempotencyConflict)
	_, err = f.svc.Create(ctx, request(), "")
	require.NoError(t, err)
}

func TestQuotationPublishing(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q, err := f.svc.Create(ctx, request(), "")
	require.NoError(t, err)

	pdf, filename, err := f.svc.PDF(ctx, q.ID)
	require.NoError(t, err)
	assert.Equal(t, "QUO0001.pdf", filename)
	assert.Equal(t, "%PDF QUO0001", string(pdf))

	require.NoError(t, f.svc.Email(ctx, q.ID, ""))
	require.Len(t, f.mailer.Sent, 1)
	assert.Equal(t, "accounts@kumar.example", f.mailer.Sent[0].To)
	assert.Equal(t, "Quotation QUO0001", f.mailer.Sent[0].Subject)

	assert.Equal(t, []documents.EventType{documents.EventPDFGenerated, documents.EventEmailSent},
		f.journal.Events(documents.TypeQuotation, q.ID))
}
