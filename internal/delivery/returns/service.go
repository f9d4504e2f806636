package returns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	masterShared "github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	salesReturns "github.com/odyssey-erp/odyssey-crm/internal/sales/returns"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// InvoiceReturns looks up the invoice return a delivery return refers to.
type InvoiceReturns interface {
	Get(ctx context.Context, id int64) (salesReturns.InvoiceReturn, error)
}

// Dependencies are the collaborators of the delivery note return service.
// Recorder and Idempotency are optional.
type Dependencies struct {
	IDs            sequence.Allocator
	Catalog        documents.Catalog
	Inventory      documents.Inventory
	InvoiceReturns InvoiceReturns
	Customers      salesShared.CustomerDirectory
	Journal        documents.Journal
	Publisher      documents.Publisher
	Recorder       documents.Recorder
	Idempotency    shared.IdempotencyGuard
	PhoneRegion    string
	Logger         *slog.Logger
}

type Service struct {
	repo  Repository
	deps  Dependencies
	today func() shared.Date
}

func NewService(repo Repository, deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{repo: repo, deps: deps, today: shared.Today}
}

func (s *Service) List(ctx context.Context, filters ListFilters) ([]DeliveryNoteReturn, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns the return with its lines, history and remarks.
func (s *Service) Get(ctx context.Context, id int64) (DeliveryNoteReturn, error) {
	ret, err := s.repo.Get(ctx, id)
	if err != nil {
		return DeliveryNoteReturn{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ret.Lines, err = s.repo.Lines(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		ret.History, err = s.deps.Journal.History(gctx, documents.TypeDeliveryNoteReturn, id)
		return err
	})
	g.Go(func() (err error) {
		ret.Comments, err = s.deps.Journal.Comments(gctx, documents.TypeDeliveryNoteReturn, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return DeliveryNoteReturn{}, fmt.Errorf("load delivery note return %d: %w", id, err)
	}
	return ret, nil
}

// Create stores a draft return under the next DNR- code.
func (s *Service) Create(ctx context.Context, req ReturnRequest, idempotencyKey string) (DeliveryNoteReturn, error) {
	ret, err := s.build(ctx, DeliveryNoteReturn{Status: ReturnStatusDraft}, req)
	if err != nil {
		return DeliveryNoteReturn{}, err
	}
	actor := shared.ActorFromContext(ctx)
	ret.CreatedBy, ret.UpdatedBy = actor, actor
	var created DeliveryNoteReturn
	err = documents.WithCode(ctx, s.deps.IDs, sequence.KindDeliveryNoteReturn, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			if err := salesShared.ClaimIdempotencyKey(ctx, s.deps.Idempotency, idempotencyKey, "delivery_note_returns"); err != nil {
				return err
			}
			code, err := s.deps.IDs.Next(ctx, sequence.KindDeliveryNoteReturn)
			if err != nil {
				return err
			}
			ret.Code = code
			created, err = repo.Create(ctx, ret)
			if err != nil {
				return err
			}
			return s.journal(ctx, created.ID, nil, req.Comment, actor)
		})
	})
	if err != nil {
		return DeliveryNoteReturn{}, fmt.Errorf("create delivery note return: %w", err)
	}
	return s.Get(ctx, created.ID)
}

// Update replaces the body of a Draft return.
func (s *Service) Update(ctx context.Context, id int64, req ReturnRequest) (DeliveryNoteReturn, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != ReturnStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "update", Status: string(current.Status)}
		}
		ret, err := s.build(ctx, current, req)
		if err != nil {
			return err
		}
		ret.UpdatedBy = actor
		if err := repo.Update(ctx, ret); err != nil {
			return err
		}
		return s.journal(ctx, id, nil, req.Comment, actor)
	})
	if err != nil {
		return DeliveryNoteReturn{}, fmt.Errorf("update delivery note return %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a Draft return.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ret, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if ret.Status != ReturnStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "delete", Status: string(ret.Status)}
		}
		return repo.Delete(ctx, id)
	})
}

// Act applies a workflow action. Submitting puts the returned goods back in
// stock; cancelling a submitted return takes them out again.
func (s *Service) Act(ctx context.Context, id int64, req ActionRequest) (DeliveryNoteReturn, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		ret, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Machine.Transition(ret.Status, req.Action)
		if err != nil {
			return err
		}
		if ret.Lines, err = repo.Lines(ctx, id); err != nil {
			return err
		}

		switch {
		case req.Action == ActionSubmit:
			err = s.moveStock(ctx, ret, s.deps.Inventory.Restock)
		case req.Action == ActionCancel && ret.Status == ReturnStatusSubmitted:
			err = s.moveStock(ctx, ret, s.deps.Inventory.Deduct)
		}
		if err != nil {
			return err
		}

		var history []documents.HistoryEntry
		if entry, ok := documents.StatusChange(ret.Status, next, actor); ok {
			history = append(history, entry)
		}
		ret.Status = next
		ret.UpdatedBy = actor
		if err := repo.SetStatus(ctx, ret); err != nil {
			return err
		}
		return s.journal(ctx, id, history, req.Comment, actor)
	})
	Machine.Record(s.deps.Recorder, req.Action, err)
	if err != nil {
		return DeliveryNoteReturn{}, fmt.Errorf("delivery note return %d %s: %w", id, req.Action, err)
	}
	return s.Get(ctx, id)
}

// moveStock applies move to every returned product in product order.
func (s *Service) moveStock(ctx context.Context, ret DeliveryNoteReturn, move func(context.Context, int64, int) error) error {
	stock := ret.Stock()
	products := make([]int64, 0, len(stock))
	for id := range stock {
		products = append(products, id)
	}
	sort.Slice(products, func(i, j int) bool { return products[i] < products[j] })
	for _, id := range products {
		if err := move(ctx, id, stock[id]); err != nil {
			return err
		}
	}
	return nil
}

// AddComment attaches a remark.
func (s *Service) AddComment(ctx context.Context, id int64, body string) (DeliveryNoteReturn, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return DeliveryNoteReturn{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return DeliveryNoteReturn{}, shared.NewValidationError("comment", "This field is required.")
	}
	if err := s.journal(ctx, id, nil, body, shared.ActorFromContext(ctx)); err != nil {
		return DeliveryNoteReturn{}, err
	}
	return s.Get(ctx, id)
}

// PDF renders the return and records the download in its history.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	ret, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return s.deps.Publisher.PDF(ctx, id, s.renderData(ctx, ret), shared.ActorFromContext(ctx))
}

// Email queues the return to to, then to the contact email on the return,
// then to the customer email.
func (s *Service) Email(ctx context.Context, id int64, to string) error {
	ret, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if strings.TrimSpace(to) == "" {
		to = ret.Email
	}
	to, err = salesShared.Recipient(ctx, s.deps.Customers, ret.CustomerID, to)
	if err != nil {
		return err
	}
	return s.deps.Publisher.Email(ctx, id, s.renderData(ctx, ret), to, shared.ActorFromContext(ctx))
}

// build resolves the invoice return reference, prices the lines and checks
// that no line returns more than was invoiced.
func (s *Service) build(ctx context.Context, ret DeliveryNoteReturn, req ReturnRequest) (DeliveryNoteReturn, error) {
	verr := &shared.ValidationError{}
	invoiced := map[int64]int{}
	ret.InvoiceReturnID, ret.InvoiceReturnCode = nil, ""
	ret.CustomerID = req.CustomerID

	if req.InvoiceReturnID != nil {
		ir, err := s.deps.InvoiceReturns.Get(ctx, *req.InvoiceReturnID)
		switch {
		case errors.Is(err, shared.ErrNotFound):
			return DeliveryNoteReturn{}, shared.NewValidationError("invoice_return_id", "invoice return not found")
		case err != nil:
			return DeliveryNoteReturn{}, err
		case ir.Status != salesReturns.ReturnStatusSubmitted:
			return DeliveryNoteReturn{}, shared.NewValidationError("invoice_return_id", "invoice return "+ir.Code+" is not submitted")
		}
		if req.CustomerID != 0 && req.CustomerID != ir.CustomerID {
			verr.Add("customer_id", "must match invoice return "+ir.Code)
		}
		id := ir.ID
		ret.InvoiceReturnID, ret.InvoiceReturnCode = &id, ir.Code
		ret.CustomerID = ir.CustomerID
		for _, l := range ir.Lines {
			invoiced[l.ProductID] += l.InvoicedQty
		}
		if req.CustomerRefNo == "" {
			req.CustomerRefNo = ir.CustomerRefNo
		}
	}
	if ret.CustomerID == 0 {
		verr.Add("customer_id", "This field is required.")
		return DeliveryNoteReturn{}, verr
	}
	if _, err := salesShared.RequireCustomer(ctx, s.deps.Customers, ret.CustomerID); err != nil {
		return DeliveryNoteReturn{}, err
	}

	reqs := make([]documents.LineRequest, len(req.Lines))
	for i, lr := range req.Lines {
		reqs[i] = lr.LineRequest
	}
	priced, err := documents.BuildLines(ctx, s.deps.Catalog, "items", reqs)
	if err != nil {
		return DeliveryNoteReturn{}, err
	}
	lines := make([]ReturnLine, len(priced))
	for i, line := range priced {
		lr := req.Lines[i]
		qty := lr.InvoicedQty
		if qty == 0 {
			qty = invoiced[line.ProductID]
		}
		if qty == 0 {
			qty = line.Quantity
		}
		if line.Quantity > qty {
			verr.Add(fmt.Sprintf("items[%d].quantity", i), fmt.Sprintf("cannot return more than the %d invoiced", qty))
		}
		lines[i] = ReturnLine{Line: line, InvoicedQty: qty, Reason: strings.TrimSpace(lr.Reason)}
	}

	phone, ok := masterShared.NormalizePhone(req.PhoneNumber, s.deps.PhoneRegion)
	if !ok {
		verr.Add("phone_number", "invalid phone number")
	}
	if err := verr.Err(); err != nil {
		return DeliveryNoteReturn{}, err
	}

	if !req.ReturnDate.IsZero() {
		ret.ReturnDate = req.ReturnDate
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = s.today()
	}
	ret.CustomerRefNo = strings.TrimSpace(req.CustomerRefNo)
	ret.Email = strings.TrimSpace(req.Email)
	ret.PhoneNumber = phone
	ret.ContactPerson = strings.TrimSpace(req.ContactPerson)
	if err := ret.Recompute(priced, decimal.Zero, decimal.Zero); err != nil {
		return DeliveryNoteReturn{}, err
	}
	ret.Lines = lines
	return ret, nil
}

func (s *Service) journal(ctx context.Context, id int64, history []documents.HistoryEntry, comment string, actor int64) error {
	if len(history) > 0 {
		if err := s.deps.Journal.AppendHistory(ctx, documents.TypeDeliveryNoteReturn, id, history...); err != nil {
			return err
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		return s.deps.Journal.AddComments(ctx, documents.TypeDeliveryNoteReturn, id, documents.Comment{Body: comment, AuthorID: actor})
	}
	return nil
}

func (s *Service) renderData(ctx context.Context, ret DeliveryNoteReturn) documents.RenderData {
	fields := []documents.Field{{Label: "Return Date", Value: ret.ReturnDate.String()}}
	if ret.InvoiceReturnCode != "" {
		fields = append(fields, documents.Field{Label: "Invoice Return", Value: ret.InvoiceReturnCode})
	}
	if ret.ContactPerson != "" {
		fields = append(fields, documents.Field{Label: "Contact", Value: ret.ContactPerson})
	}
	return documents.RenderData{
		Type:   documents.TypeDeliveryNoteReturn,
		Title:  "Delivery Note Return",
		Code:   ret.Code,
		Status: string(ret.Status),
		Party:  salesShared.PartyName(ctx, s.deps.Customers, ret.CustomerID),
		Date:   ret.ReturnDate.Time,
		Fields: fields,
		Lines:  PricedLines(ret.Lines),
		Totals: ret.Totals,
	}
}
