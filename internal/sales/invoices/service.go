package invoices

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const (
	defaultCurrency = "INR"
	defaultTerms    = PaymentTermsNet30
)

// Dependencies are the collaborators of the invoice service.
// Recorder and Idempotency are optional.
type Dependencies struct {
	IDs         sequence.Allocator
	Catalog     documents.Catalog
	Customers   salesShared.CustomerDirectory
	Journal     documents.Journal
	Publisher   documents.Publisher
	Recorder    documents.Recorder
	Idempotency shared.IdempotencyGuard
	Logger      *slog.Logger
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

func (s *Service) List(ctx context.Context, filters ListFilters) ([]Invoice, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns the invoice with its lines, history and remarks.
func (s *Service) Get(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		inv.Lines, err = s.repo.Lines(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		inv.History, err = s.deps.Journal.History(gctx, documents.TypeInvoice, id)
		return err
	})
	g.Go(func() (err error) {
		inv.Comments, err = s.deps.Journal.Comments(gctx, documents.TypeInvoice, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Invoice{}, fmt.Errorf("load invoice %d: %w", id, err)
	}
	return inv, nil
}

// Create stores a draft invoice under the next INV- code.
func (s *Service) Create(ctx context.Context, req InvoiceRequest, idempotencyKey string) (Invoice, error) {
	inv, err := s.build(ctx, Invoice{Status: InvoiceStatusDraft}, req)
	if err != nil {
		return Invoice{}, err
	}
	created, err := s.insert(ctx, inv, idempotencyKey, req.Comment)
	if err != nil {
		return Invoice{}, fmt.Errorf("create invoice: %w", err)
	}
	return s.Get(ctx, created.ID)
}

// CreateFromSalesOrder stores a draft invoice for the given sales order
// lines. It joins the transaction carried by ctx.
func (s *Service) CreateFromSalesOrder(ctx context.Context, conv documents.Conversion) (documents.Ref, error) {
	if _, err := salesShared.RequireCustomer(ctx, s.deps.Customers, conv.CustomerID); err != nil {
		return documents.Ref{}, err
	}
	orderID := conv.SourceID
	today := s.today()
	inv := Invoice{
		CustomerID:   conv.CustomerID,
		SalesOrderID: &orderID,
		InvoiceDate:  today,
		DueDate:      defaultTerms.DueDate(today),
		PaymentTerms: defaultTerms,
		Currency:     defaultCurrency,
		Status:       InvoiceStatusDraft,
	}
	lines := conv.ConvertedLines()
	if err := inv.Recompute(lines, conv.GlobalDiscount, conv.ShippingCharges); err != nil {
		return documents.Ref{}, err
	}
	inv.Lines = make([]InvoiceLine, len(lines))
	for i, l := range lines {
		source := conv.Lines[i].SourceLineID
		inv.Lines[i] = InvoiceLine{Line: l, SalesOrderLineID: &source}
	}
	inv.Settle()
	created, err := s.insert(ctx, inv, "", "Created from sales order "+conv.SourceCode)
	if err != nil {
		return documents.Ref{}, fmt.Errorf("invoice sales order %s: %w", conv.SourceCode, err)
	}
	return documents.Ref{ID: created.ID, Code: created.Code}, nil
}

func (s *Service) insert(ctx context.Context, inv Invoice, idempotencyKey, comment string) (Invoice, error) {
	actor := shared.ActorFromContext(ctx)
	inv.CreatedBy, inv.UpdatedBy = actor, actor
	var created Invoice
	err := documents.WithCode(ctx, s.deps.IDs, sequence.KindInvoice, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			if err := salesShared.ClaimIdempotencyKey(ctx, s.deps.Idempotency, idempotencyKey, "invoices"); err != nil {
				return err
			}
			code, err := s.deps.IDs.Next(ctx, sequence.KindInvoice)
			if err != nil {
				return err
			}
			inv.Code = code
			created, err = repo.Create(ctx, inv)
			if err != nil {
				return err
			}
			return s.journal(ctx, created.ID, nil, comment, actor)
		})
	})
	return created, err
}

// Update replaces the body of a Draft invoice.
func (s *Service) Update(ctx context.Context, id int64, req InvoiceRequest) (Invoice, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Editable(current.Status) {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "update", Status: string(current.Status)}
		}
		inv, err := s.build(ctx, current, req)
		if err != nil {
			return err
		}
		existing, err := repo.Lines(ctx, id)
		if err != nil {
			return err
		}
		plan, err := documents.Reconcile("items", PricedLines(existing), PricedLines(inv.Lines),
			func(l documents.Line) int64 { return l.ID })
		if err != nil {
			return err
		}
		inv.UpdatedBy = actor
		if err := repo.Update(ctx, inv, plan); err != nil {
			return err
		}
		return s.journal(ctx, id, nil, req.Comment, actor)
	})
	if err != nil {
		return Invoice{}, fmt.Errorf("update invoice %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a Draft invoice.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if inv.Status != InvoiceStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "delete", Status: string(inv.Status)}
		}
		return repo.Delete(ctx, id)
	})
}

// Act applies a workflow action. Payments move the invoice to Paid once the
// balance due reaches zero.
func (s *Service) Act(ctx context.Context, id int64, req ActionRequest) (Invoice, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Machine.Transition(inv.Status, req.Action)
		if err != nil {
			return err
		}

		switch req.Action {
		case ActionMarkOverdue:
			if !inv.DueDate.IsZero() && !inv.DueDate.Before(s.today()) {
				return shared.NewValidationError("due_date", "invoice is not past its due date")
			}
		case ActionMarkAsPaid:
			inv.AmountPaid = decimal.Max(inv.AmountPaid, inv.Payable())
			s.notePayment(&inv, req)
		case ActionRecordPayment:
			if err := s.recordPayment(&inv, req); err != nil {
				return err
			}
			outcome := inv.Status
			if inv.BalanceDue.IsZero() {
				outcome = InvoiceStatusPaid
			}
			if next, err = Machine.Transition(inv.Status, req.Action, outcome); err != nil {
				return err
			}
		}

		var history []documents.HistoryEntry
		if entry, ok := documents.StatusChange(inv.Status, next, actor); ok {
			history = append(history, entry)
		}
		inv.Status = next
		inv.UpdatedBy = actor
		inv.Settle()
		if err := repo.SaveState(ctx, inv); err != nil {
			return err
		}
		return s.journal(ctx, id, history, req.Comment, actor)
	})
	Machine.Record(s.deps.Recorder, req.Action, err)
	if err != nil {
		return Invoice{}, fmt.Errorf("invoice %d %s: %w", id, req.Action, err)
	}
	return s.Get(ctx, id)
}

func (s *Service) recordPayment(inv *Invoice, req ActionRequest) error {
	if !req.Amount.IsPositive() {
		return shared.NewValidationError("amount", "must be greater than zero")
	}
	inv.Settle()
	if req.Amount.Round(2).GreaterThan(inv.BalanceDue) {
		return shared.NewValidationError("amount", "exceeds the balance due of "+inv.BalanceDue.StringFixed(2))
	}
	inv.AmountPaid = inv.AmountPaid.Add(req.Amount.Round(2))
	s.notePayment(inv, req)
	inv.Settle()
	return nil
}

func (s *Service) notePayment(inv *Invoice, req ActionRequest) {
	if ref := strings.TrimSpace(req.PaymentRef); ref != "" {
		inv.PaymentRef = ref
	}
	inv.TransactionDate = req.TransactionDate
	if inv.TransactionDate.IsZero() {
		inv.TransactionDate = s.today()
	}
}

// ForReturn loads an invoice and its lines for an invoice return. Draft and
// Cancelled invoices cannot be returned against.
func (s *Service) ForReturn(ctx context.Context, id int64) (Invoice, error) {
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		return Invoice{}, err
	}
	if !Returnable(inv.Status) {
		return Invoice{}, shared.NewValidationError("invoice_id", fmt.Sprintf("invoice %s is %s", inv.Code, inv.Status))
	}
	if inv.Lines, err = s.repo.Lines(ctx, id); err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

// ApplyReturn adds returned quantities per invoice line and credits the
// refund against the invoice. Negative values reverse an earlier return.
// It joins the transaction carried by ctx.
func (s *Service) ApplyReturn(ctx context.Context, id int64, returned map[int64]int, credit decimal.Decimal) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		inv, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		lines, err := repo.Lines(ctx, id)
		if err != nil {
			return err
		}
		byID := make(map[int64]InvoiceLine, len(lines))
		for _, l := range lines {
			byID[l.ID] = l
		}
		for lineID, qty := range returned {
			line, ok := byID[lineID]
			if !ok {
				return shared.NewValidationError("items", fmt.Sprintf("line %d is not on invoice %s", lineID, inv.Code))
			}
			if total := line.ReturnedQty + qty; total < 0 || total > line.Quantity {
				return shared.NewValidationError("items", fmt.Sprintf("%s: return exceeds invoiced quantity", line.ProductCode))
			}
		}
		if err := repo.AddReturned(ctx, id, returned); err != nil {
			return err
		}
		inv.CreditNoteApplied = decimal.Max(inv.CreditNoteApplied.Add(credit), decimal.Zero)
		inv.UpdatedBy = shared.ActorFromContext(ctx)
		inv.Settle()
		return repo.SaveState(ctx, inv)
	})
}

// AddComment attaches a remark.
func (s *Service) AddComment(ctx context.Context, id int64, body string) (Invoice, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Invoice{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Invoice{}, shared.NewValidationError("comment", "This field is required.")
	}
	if err := s.journal(ctx, id, nil, body, shared.ActorFromContext(ctx)); err != nil {
		return Invoice{}, err
	}
	return s.Get(ctx, id)
}

// PDF renders the invoice and records the download in its history.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return s.deps.Publisher.PDF(ctx, id, s.renderData(ctx, inv), shared.ActorFromContext(ctx))
}

// Email queues the invoice to to, or to the customer email when to is empty.
func (s *Service) Email(ctx context.Context, id int64, to string) error {
	inv, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	to, err = salesShared.Recipient(ctx, s.deps.Customers, inv.CustomerID, to)
	if err != nil {
		return err
	}
	return s.deps.Publisher.Email(ctx, id, s.renderData(ctx, inv), to, shared.ActorFromContext(ctx))
}

func (s *Service) build(ctx context.Context, inv Invoice, req InvoiceRequest) (Invoice, error) {
	customer, err := salesShared.RequireCustomer(ctx, s.deps.Customers, req.CustomerID)
	if err != nil {
		return Invoice{}, err
	}
	lines, err := documents.BuildLines(ctx, s.deps.Catalog, "items", req.Lines)
	if err != nil {
		return Invoice{}, err
	}
	inv.CustomerID = req.CustomerID
	if !req.InvoiceDate.IsZero() {
		inv.InvoiceDate = req.InvoiceDate
	}
	if inv.InvoiceDate.IsZero() {
		inv.InvoiceDate = s.today()
	}
	inv.PaymentTerms = req.PaymentTerms
	if inv.PaymentTerms == "" {
		inv.PaymentTerms = defaultTerms
		if _, known := termDays[PaymentTerms(customer.PaymentTerms)]; known {
			inv.PaymentTerms = PaymentTerms(customer.PaymentTerms)
		}
	}
	inv.DueDate = req.DueDate
	if inv.DueDate.IsZero() {
		inv.DueDate = inv.PaymentTerms.DueDate(inv.InvoiceDate)
	}
	if inv.DueDate.Before(inv.InvoiceDate) {
		return Invoice{}, shared.NewValidationError("due_date", "must not be before the invoice date")
	}
	inv.Currency = req.Currency
	if inv.Currency == "" {
		inv.Currency = defaultCurrency
	}
	inv.PaymentMethod = req.PaymentMethod
	inv.CustomerRefNo = strings.TrimSpace(req.CustomerRefNo)
	inv.TermsConditions = strings.TrimSpace(req.TermsConditions)
	inv.BillingAddress = strings.TrimSpace(req.BillingAddress)
	if inv.BillingAddress == "" {
		inv.BillingAddress = customer.BillingAddress
	}
	inv.ShippingAddress = strings.TrimSpace(req.ShippingAddress)
	if inv.ShippingAddress == "" {
		inv.ShippingAddress = customer.ShippingAddress
	}
	if err := inv.Recompute(lines, req.GlobalDiscount, req.ShippingCharges); err != nil {
		return Invoice{}, err
	}
	inv.Lines = make([]InvoiceLine, len(lines))
	for i, l := range lines {
		inv.Lines[i] = InvoiceLine{Line: l}
	}
	inv.Settle()
	return inv, nil
}

func (s *Service) journal(ctx context.Context, id int64, history []documents.HistoryEntry, comment string, actor int64) error {
	if len(history) > 0 {
		if err := s.deps.Journal.AppendHistory(ctx, documents.TypeInvoice, id, history...); err != nil {
			return err
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		return s.deps.Journal.AddComments(ctx, documents.TypeInvoice, id, documents.Comment{Body: comment, AuthorID: actor})
	}
	return nil
}

func (s *Service) renderData(ctx context.Context, inv Invoice) documents.RenderData {
	fields := []documents.Field{
		{Label: "Invoice Date", Value: inv.InvoiceDate.String()},
		{Label: "Due Date", Value: inv.DueDate.String()},
		{Label: "Payment Terms", Value: string(inv.PaymentTerms)},
		{Label: "Payment Status", Value: string(inv.PaymentStatus)},
	}
	if inv.CustomerRefNo != "" {
		fields = append(fields, documents.Field{Label: "Customer Ref", Value: inv.CustomerRefNo})
	}
	return documents.RenderData{
		Type:     documents.TypeInvoice,
		Title:    "Tax Invoice",
		Code:     inv.Code,
		Status:   string(inv.Status),
		Party:    salesShared.PartyName(ctx, s.deps.Customers, inv.CustomerID),
		Date:     inv.InvoiceDate.Time,
		Currency: inv.Currency,
		Fields:   fields,
		Lines:    PricedLines(inv.Lines),
		Totals:   inv.Totals,
		Amounts: []documents.AmountRow{
			{Label: "Credit Note Applied", Amount: inv.CreditNoteApplied},
			{Label: "Amount Paid", Amount: inv.AmountPaid},
			{Label: "Balance Due", Amount: inv.BalanceDue},
		},
	}
}
