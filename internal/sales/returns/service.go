package returns

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/sales/invoices"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// InvoiceLedger exposes the invoice side of a return.
type InvoiceLedger interface {
	ForReturn(ctx context.Context, invoiceID int64) (invoices.Invoice, error)
	ApplyReturn(ctx context.Context, invoiceID int64, returned map[int64]int, credit decimal.Decimal) error
}

// Dependencies are the collaborators of the invoice return service.
// Recorder and Idempotency are optional.
type Dependencies struct {
	IDs         sequence.Allocator
	Invoices    InvoiceLedger
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

func (s *Service) List(ctx context.Context, filters ListFilters) ([]InvoiceReturn, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns the return with its lines, history and comments.
func (s *Service) Get(ctx context.Context, id int64) (InvoiceReturn, error) {
	ret, err := s.repo.Get(ctx, id)
	if err != nil {
		return InvoiceReturn{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		ret.Lines, err = s.repo.Lines(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		ret.History, err = s.deps.Journal.History(gctx, documents.TypeInvoiceReturn, id)
		return err
	})
	g.Go(func() (err error) {
		ret.Comments, err = s.deps.Journal.Comments(gctx, documents.TypeInvoiceReturn, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return InvoiceReturn{}, fmt.Errorf("load invoice return %d: %w", id, err)
	}
	return ret, nil
}

// Create stores a draft return under the next INVR- code.
func (s *Service) Create(ctx context.Context, req ReturnRequest, idempotencyKey string) (InvoiceReturn, error) {
	ret, err := s.build(ctx, InvoiceReturn{Status: ReturnStatusDraft}, req)
	if err != nil {
		return InvoiceReturn{}, err
	}
	actor := shared.ActorFromContext(ctx)
	ret.CreatedBy, ret.UpdatedBy = actor, actor
	var created InvoiceReturn
	err = documents.WithCode(ctx, s.deps.IDs, sequence.KindInvoiceReturn, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			if err := salesShared.ClaimIdempotencyKey(ctx, s.deps.Idempotency, idempotencyKey, "invoice_returns"); err != nil {
				return err
			}
			code, err := s.deps.IDs.Next(ctx, sequence.KindInvoiceReturn)
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
		return InvoiceReturn{}, fmt.Errorf("create invoice return: %w", err)
	}
	return s.Get(ctx, created.ID)
}

// Update replaces the body of a Draft return. The invoice cannot change.
func (s *Service) Update(ctx context.Context, id int64, req ReturnRequest) (InvoiceReturn, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != ReturnStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "update", Status: string(current.Status)}
		}
		if req.InvoiceID != current.InvoiceID {
			return shared.NewValidationError("invoice_id", "cannot change the invoice of a return")
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
		return InvoiceReturn{}, fmt.Errorf("update invoice return %d: %w", id, err)
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

// Act applies a workflow action. Submitting credits the invoice and counts
// the returned quantities against its lines; cancelling a submitted return
// reverses both.
func (s *Service) Act(ctx context.Context, id int64, req ActionRequest) (InvoiceReturn, error) {
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
			err = s.deps.Invoices.ApplyReturn(ctx, ret.InvoiceID, ret.Quantities(1), ret.AmountToRefund)
		case req.Action == ActionCancel && ret.Status == ReturnStatusSubmitted:
			err = s.deps.Invoices.ApplyReturn(ctx, ret.InvoiceID, ret.Quantities(-1), ret.AmountToRefund.Neg())
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
		return InvoiceReturn{}, fmt.Errorf("invoice return %d %s: %w", id, req.Action, err)
	}
	return s.Get(ctx, id)
}

// AddComment attaches a free-text comment.
func (s *Service) AddComment(ctx context.Context, id int64, body string) (InvoiceReturn, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return InvoiceReturn{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return InvoiceReturn{}, shared.NewValidationError("comment", "This field is required.")
	}
	if err := s.journal(ctx, id, nil, body, shared.ActorFromContext(ctx)); err != nil {
		return InvoiceReturn{}, err
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

// Email queues the return to to, or to the customer email when to is empty.
func (s *Service) Email(ctx context.Context, id int64, to string) error {
	ret, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	to, err = salesShared.Recipient(ctx, s.deps.Customers, ret.CustomerID, to)
	if err != nil {
		return err
	}
	return s.deps.Publisher.Email(ctx, id, s.renderData(ctx, ret), to, shared.ActorFromContext(ctx))
}

// build prices the requested lines from the invoice. Each returned quantity
// must fit in what is left to return on its invoice line.
func (s *Service) build(ctx context.Context, ret InvoiceReturn, req ReturnRequest) (InvoiceReturn, error) {
	inv, err := s.deps.Invoices.ForReturn(ctx, req.InvoiceID)
	if errors.Is(err, shared.ErrNotFound) {
		return InvoiceReturn{}, shared.NewValidationError("invoice_id", "invoice not found")
	}
	if err != nil {
		return InvoiceReturn{}, err
	}
	byID := make(map[int64]invoices.InvoiceLine, len(inv.Lines))
	for _, l := range inv.Lines {
		byID[l.ID] = l
	}

	verr := &shared.ValidationError{}
	requested := map[int64]int{}
	lines := make([]ReturnLine, 0, len(req.Lines))
	for i, lr := range req.Lines {
		field := fmt.Sprintf("items[%d]", i)
		src, ok := byID[lr.InvoiceLineID]
		if !ok {
			verr.Add(field+".invoice_line_id", "line is not on invoice "+inv.Code)
			continue
		}
		requested[src.ID] += lr.Quantity
		if left := src.Returnable(); requested[src.ID] > left {
			verr.Add(field+".returned_qty", fmt.Sprintf("only %d left to return", left))
			continue
		}
		priced, err := documents.WithQuantity(src.Line, lr.Quantity)
		if err != nil {
			return InvoiceReturn{}, err
		}
		lines = append(lines, ReturnLine{
			Line:          priced,
			InvoiceLineID: src.ID,
			InvoicedQty:   src.Quantity,
			Reason:        strings.TrimSpace(lr.Reason),
		})
	}
	if err := verr.Err(); err != nil {
		return InvoiceReturn{}, err
	}

	ret.InvoiceID = inv.ID
	ret.InvoiceCode = inv.Code
	ret.SalesOrderID = inv.SalesOrderID
	ret.CustomerID = inv.CustomerID
	ret.OriginalGrandTotal = inv.GrandTotal
	if !req.ReturnDate.IsZero() {
		ret.ReturnDate = req.ReturnDate
	}
	if ret.ReturnDate.IsZero() {
		ret.ReturnDate = s.today()
	}
	ret.CustomerRefNo = strings.TrimSpace(req.CustomerRefNo)
	ret.ContactPerson = strings.TrimSpace(req.ContactPerson)
	if err := ret.Recompute(PricedLines(lines), inv.GlobalDiscount, decimal.Zero); err != nil {
		return InvoiceReturn{}, err
	}
	ret.AmountToRefund = ret.Refund()
	ret.Lines = lines
	return ret, nil
}

func (s *Service) journal(ctx context.Context, id int64, history []documents.HistoryEntry, comment string, actor int64) error {
	if len(history) > 0 {
		if err := s.deps.Journal.AppendHistory(ctx, documents.TypeInvoiceReturn, id, history...); err != nil {
			return err
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		return s.deps.Journal.AddComments(ctx, documents.TypeInvoiceReturn, id, documents.Comment{Body: comment, AuthorID: actor})
	}
	return nil
}

func (s *Service) renderData(ctx context.Context, ret InvoiceReturn) documents.RenderData {
	fields := []documents.Field{
		{Label: "Return Date", Value: ret.ReturnDate.String()},
		{Label: "Invoice", Value: ret.InvoiceCode},
	}
	if ret.CustomerRefNo != "" {
		fields = append(fields, documents.Field{Label: "Customer Ref", Value: ret.CustomerRefNo})
	}
	return documents.RenderData{
		Type:   documents.TypeInvoiceReturn,
		Title:  "Credit Note",
		Code:   ret.Code,
		Status: string(ret.Status),
		Party:  salesShared.PartyName(ctx, s.deps.Customers, ret.CustomerID),
		Date:   ret.ReturnDate.Time,
		Fields: fields,
		Lines:  PricedLines(ret.Lines),
		Totals: ret.Totals,
		Amounts: []documents.AmountRow{
			{Label: "Original Invoice Total", Amount: ret.OriginalGrandTotal},
			{Label: "Amount to Refund", Amount: ret.AmountToRefund},
		},
	}
}
