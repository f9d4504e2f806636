package notes

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Dependencies are the collaborators of the delivery note service.
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

func (s *Service) List(ctx context.Context, filters ListFilters) ([]DeliveryNote, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns the note with its lines, history and remarks.
func (s *Service) Get(ctx context.Context, id int64) (DeliveryNote, error) {
	note, err := s.repo.Get(ctx, id)
	if err != nil {
		return DeliveryNote{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		note.Lines, err = s.repo.Lines(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		note.History, err = s.deps.Journal.History(gctx, documents.TypeDeliveryNote, id)
		return err
	})
	g.Go(func() (err error) {
		note.Comments, err = s.deps.Journal.Comments(gctx, documents.TypeDeliveryNote, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return DeliveryNote{}, fmt.Errorf("load delivery note %d: %w", id, err)
	}
	return note, nil
}

// Create stores a manual draft note. Manual notes do not move stock.
func (s *Service) Create(ctx context.Context, req NoteRequest, idempotencyKey string) (DeliveryNote, error) {
	note, err := s.build(ctx, DeliveryNote{Status: NoteStatusDraft}, req)
	if err != nil {
		return DeliveryNote{}, err
	}
	lines, err := documents.BuildLines(ctx, s.deps.Catalog, "items", req.Lines)
	if err != nil {
		return DeliveryNote{}, err
	}
	if err := note.Recompute(lines, req.GlobalDiscount, req.ShippingCharges); err != nil {
		return DeliveryNote{}, err
	}
	note.Lines = wrap(lines)
	created, err := s.insert(ctx, note, idempotencyKey, req.Comment)
	if err != nil {
		return DeliveryNote{}, fmt.Errorf("create delivery note: %w", err)
	}
	return s.Get(ctx, created.ID)
}

// CreateFromSalesOrder stores a draft note for the shipped sales order
// lines. Stock has already been deducted by the order. It joins the
// transaction carried by ctx.
func (s *Service) CreateFromSalesOrder(ctx context.Context, conv documents.Conversion) (documents.Ref, error) {
	customer, err := salesShared.RequireCustomer(ctx, s.deps.Customers, conv.CustomerID)
	if err != nil {
		return documents.Ref{}, err
	}
	orderID := conv.SourceID
	note := DeliveryNote{
		SalesOrderID:       &orderID,
		SalesOrderCode:     conv.SourceCode,
		CustomerID:         conv.CustomerID,
		DeliveryDate:       s.today(),
		DeliveryType:       DeliveryTypeRegular,
		DestinationAddress: customer.ShippingAddress,
		Status:             NoteStatusDraft,
	}
	lines := conv.ConvertedLines()
	if err := note.Recompute(lines, conv.GlobalDiscount, conv.ShippingCharges); err != nil {
		return documents.Ref{}, err
	}
	note.Lines = make([]NoteLine, len(lines))
	for i, l := range lines {
		source := conv.Lines[i].SourceLineID
		note.Lines[i] = NoteLine{Line: l, SalesOrderLineID: &source}
	}
	created, err := s.insert(ctx, note, "", "Created from sales order "+conv.SourceCode)
	if err != nil {
		return documents.Ref{}, fmt.Errorf("deliver sales order %s: %w", conv.SourceCode, err)
	}
	return documents.Ref{ID: created.ID, Code: created.Code}, nil
}

func (s *Service) insert(ctx context.Context, note DeliveryNote, idempotencyKey, comment string) (DeliveryNote, error) {
	actor := shared.ActorFromContext(ctx)
	note.CreatedBy, note.UpdatedBy = actor, actor
	var created DeliveryNote
	err := documents.WithCode(ctx, s.deps.IDs, sequence.KindDeliveryNote, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			if err := salesShared.ClaimIdempotencyKey(ctx, s.deps.Idempotency, idempotencyKey, "delivery_notes"); err != nil {
				return err
			}
			code, err := s.deps.IDs.Next(ctx, sequence.KindDeliveryNote)
			if err != nil {
				return err
			}
			note.Code = code
			created, err = repo.Create(ctx, note)
			if err != nil {
				return err
			}
			return s.journal(ctx, created.ID, nil, comment, actor)
		})
	})
	return created, err
}

// Update edits a Draft note. Lines of a note generated from a sales order
// are fixed because the order tracks them as delivered.
func (s *Service) Update(ctx context.Context, id int64, req NoteRequest) (DeliveryNote, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if current.Status != NoteStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "update", Status: string(current.Status)}
		}
		existing, err := repo.Lines(ctx, id)
		if err != nil {
			return err
		}
		note, err := s.build(ctx, current, req)
		if err != nil {
			return err
		}

		var plan documents.ReconcilePlan[documents.Line]
		lines := PricedLines(existing)
		if current.SalesOrderID != nil {
			if len(req.Lines) > 0 {
				return shared.NewValidationError("items", "lines of a delivery note generated from "+current.SalesOrderCode+" cannot change")
			}
			if req.CustomerID != current.CustomerID {
				return shared.NewValidationError("customer_id", "must match sales order "+current.SalesOrderCode)
			}
		} else {
			if lines, err = documents.BuildLines(ctx, s.deps.Catalog, "items", req.Lines); err != nil {
				return err
			}
			plan, err = documents.Reconcile("items", PricedLines(existing), lines, func(l documents.Line) int64 { return l.ID })
			if err != nil {
				return err
			}
		}
		if err := note.Recompute(lines, req.GlobalDiscount, req.ShippingCharges); err != nil {
			return err
		}
		note.UpdatedBy = actor
		if err := repo.Update(ctx, note, plan); err != nil {
			return err
		}
		return s.journal(ctx, id, nil, req.Comment, actor)
	})
	if err != nil {
		return DeliveryNote{}, fmt.Errorf("update delivery note %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a Draft note that was not generated from a sales order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		note, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if note.Status != NoteStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "delete", Status: string(note.Status)}
		}
		if note.SalesOrderID != nil {
			return shared.NewValidationError("sales_order_id", "delivery notes of "+note.SalesOrderCode+" can only be cancelled")
		}
		return repo.Delete(ctx, id)
	})
}

// Act applies a workflow action.
func (s *Service) Act(ctx context.Context, id int64, req ActionRequest) (DeliveryNote, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		note, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Machine.Transition(note.Status, req.Action)
		if err != nil {
			return err
		}
		var history []documents.HistoryEntry
		if entry, ok := documents.StatusChange(note.Status, next, actor); ok {
			history = append(history, entry)
		}
		note.Status = next
		note.UpdatedBy = actor
		if err := repo.SetStatus(ctx, note); err != nil {
			return err
		}
		return s.journal(ctx, id, history, req.Comment, actor)
	})
	Machine.Record(s.deps.Recorder, req.Action, err)
	if err != nil {
		return DeliveryNote{}, fmt.Errorf("delivery note %d %s: %w", id, req.Action, err)
	}
	return s.Get(ctx, id)
}

// AddComment attaches a remark.
func (s *Service) AddComment(ctx context.Context, id int64, body string) (DeliveryNote, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return DeliveryNote{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return DeliveryNote{}, shared.NewValidationError("comment", "This field is required.")
	}
	if err := s.journal(ctx, id, nil, body, shared.ActorFromContext(ctx)); err != nil {
		return DeliveryNote{}, err
	}
	return s.Get(ctx, id)
}

// PDF renders the note and records the download in its history.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	note, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return s.deps.Publisher.PDF(ctx, id, s.renderData(ctx, note), shared.ActorFromContext(ctx))
}

// Email queues the note to to, or to the customer email when to is empty.
func (s *Service) Email(ctx context.Context, id int64, to string) error {
	note, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	to, err = salesShared.Recipient(ctx, s.deps.Customers, note.CustomerID, to)
	if err != nil {
		return err
	}
	return s.deps.Publisher.Email(ctx, id, s.renderData(ctx, note), to, shared.ActorFromContext(ctx))
}

// build applies the header fields of req.
func (s *Service) build(ctx context.Context, note DeliveryNote, req NoteRequest) (DeliveryNote, error) {
	customer, err := salesShared.RequireCustomer(ctx, s.deps.Customers, req.CustomerID)
	if err != nil {
		return DeliveryNote{}, err
	}
	note.CustomerID = req.CustomerID
	if !req.DeliveryDate.IsZero() {
		note.DeliveryDate = req.DeliveryDate
	}
	if note.DeliveryDate.IsZero() {
		note.DeliveryDate = s.today()
	}
	note.DeliveryType = req.DeliveryType
	if note.DeliveryType == "" {
		note.DeliveryType = DeliveryTypeRegular
	}
	note.DestinationAddress = strings.TrimSpace(req.DestinationAddress)
	if note.DestinationAddress == "" {
		note.DestinationAddress = customer.ShippingAddress
	}
	note.ReceivedBy = strings.TrimSpace(req.ReceivedBy)
	note.ContactNumber = strings.TrimSpace(req.ContactNumber)
	return note, nil
}

func wrap(lines []documents.Line) []NoteLine {
	out := make([]NoteLine, len(lines))
	for i, l := range lines {
		out[i] = NoteLine{Line: l}
	}
	return out
}

func (s *Service) journal(ctx context.Context, id int64, history []documents.HistoryEntry, comment string, actor int64) error {
	if len(history) > 0 {
		if err := s.deps.Journal.AppendHistory(ctx, documents.TypeDeliveryNote, id, history...); err != nil {
			return err
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		return s.deps.Journal.AddComments(ctx, documents.TypeDeliveryNote, id, documents.Comment{Body: comment, AuthorID: actor})
	}
	return nil
}

func (s *Service) renderData(ctx context.Context, note DeliveryNote) documents.RenderData {
	fields := []documents.Field{
		{Label: "Delivery Date", Value: note.DeliveryDate.String()},
		{Label: "Delivery Type", Value: string(note.DeliveryType)},
	}
	if note.SalesOrderCode != "" {
		fields = append(fields, documents.Field{Label: "Sales Order", Value: note.SalesOrderCode})
	}
	if note.DestinationAddress != "" {
		fields = append(fields, documents.Field{Label: "Ship To", Value: note.DestinationAddress})
	}
	return documents.RenderData{
		Type:   documents.TypeDeliveryNote,
		Title:  "Delivery Note",
		Code:   note.Code,
		Status: string(note.Status),
		Party:  salesShared.PartyName(ctx, s.deps.Customers, note.CustomerID),
		Date:   note.DeliveryDate.Time,
		Fields: fields,
		Lines:  PricedLines(note.Lines),
		Totals: note.Totals,
	}
}
