package orders

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/procurement"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const defaultCurrency = "INR"

// Converter creates a downstream draft document from sales order lines.
type Converter interface {
	CreateFromSalesOrder(ctx context.Context, conv documents.Conversion) (documents.Ref, error)
}

// PurchaseOrderCreator raises purchase orders for stock deficits.
type PurchaseOrderCreator interface {
	CreateForDeficits(ctx context.Context, input procurement.DeficitInput) (procurement.PurchaseOrder, error)
}

// Dependencies are the collaborators of the sales order service.
// Recorder and Idempotency are optional.
type Dependencies struct {
	IDs         sequence.Allocator
	Catalog     documents.Catalog
	Customers   salesShared.CustomerDirectory
	Inventory   documents.Inventory
	Deliveries  Converter
	Invoices    Converter
	Purchasing  PurchaseOrderCreator
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

func (s *Service) List(ctx context.Context, filters ListFilters) ([]SalesOrder, int, error) {
	return s.repo.List(ctx, filters)
}

// Get returns the order with its lines, history and comments.
func (s *Service) Get(ctx context.Context, id int64) (SalesOrder, error) {
	so, err := s.repo.Get(ctx, id)
	if err != nil {
		return SalesOrder{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		so.Lines, err = s.repo.Lines(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		so.History, err = s.deps.Journal.History(gctx, documents.TypeSalesOrder, id)
		return err
	})
	g.Go(func() (err error) {
		so.Comments, err = s.deps.Journal.Comments(gctx, documents.TypeSalesOrder, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return SalesOrder{}, fmt.Errorf("load sales order %d: %w", id, err)
	}
	return so, nil
}

// Create stores a draft sales order under the next SO- code.
func (s *Service) Create(ctx context.Context, req SalesOrderRequest, idempotencyKey string) (SalesOrder, error) {
	so, err := s.build(ctx, SalesOrder{Status: SalesOrderStatusDraft}, req)
	if err != nil {
		return SalesOrder{}, err
	}
	created, err := s.insert(ctx, so, idempotencyKey, req.Comment)
	if err != nil {
		return SalesOrder{}, fmt.Errorf("create sales order: %w", err)
	}
	return s.Get(ctx, created.ID)
}

// CreateFromQuotation stores a draft order copying the quotation lines and
// charges. It joins the transaction carried by ctx.
func (s *Service) CreateFromQuotation(ctx context.Context, conv documents.Conversion) (documents.Ref, error) {
	if _, err := salesShared.RequireCustomer(ctx, s.deps.Customers, conv.CustomerID); err != nil {
		return documents.Ref{}, err
	}
	quotationID := conv.SourceID
	so := SalesOrder{
		CustomerID:    conv.CustomerID,
		QuotationID:   &quotationID,
		OrderDate:     s.today(),
		OrderType:     OrderTypeStandard,
		Currency:      defaultCurrency,
		InternalNotes: "Created from quotation " + conv.SourceCode,
		Status:        SalesOrderStatusDraft,
	}
	lines := conv.ConvertedLines()
	if err := so.Recompute(lines, conv.GlobalDiscount, conv.ShippingCharges); err != nil {
		return documents.Ref{}, err
	}
	so.Lines = wrap(lines)
	created, err := s.insert(ctx, so, "", "")
	if err != nil {
		return documents.Ref{}, fmt.Errorf("convert quotation %s: %w", conv.SourceCode, err)
	}
	return documents.Ref{ID: created.ID, Code: created.Code}, nil
}

func (s *Service) insert(ctx context.Context, so SalesOrder, idempotencyKey, comment string) (SalesOrder, error) {
	actor := shared.ActorFromContext(ctx)
	so.CreatedBy, so.UpdatedBy = actor, actor
	var created SalesOrder
	err := documents.WithCode(ctx, s.deps.IDs, sequence.KindSalesOrder, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			if err := salesShared.ClaimIdempotencyKey(ctx, s.deps.Idempotency, idempotencyKey, "sales_orders"); err != nil {
				return err
			}
			code, err := s.deps.IDs.Next(ctx, sequence.KindSalesOrder)
			if err != nil {
				return err
			}
			so.Code = code
			created, err = repo.Create(ctx, so)
			if err != nil {
				return err
			}
			return s.journal(ctx, created.ID, nil, comment, actor)
		})
	})
	return created, err
}

// Update replaces the body of a Draft or Ready to Submit order.
func (s *Service) Update(ctx context.Context, id int64, req SalesOrderRequest) (SalesOrder, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Editable(current.Status) {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "update", Status: string(current.Status)}
		}
		so, err := s.build(ctx, current, req)
		if err != nil {
			return err
		}
		existing, err := repo.Lines(ctx, id)
		if err != nil {
			return err
		}
		plan, err := documents.Reconcile("items", PricedLines(existing), PricedLines(so.Lines),
			func(l documents.Line) int64 { return l.ID })
		if err != nil {
			return err
		}
		so.UpdatedBy = actor
		if err := repo.Update(ctx, so, plan); err != nil {
			return err
		}
		return s.journal(ctx, id, nil, req.Comment, actor)
	})
	if err != nil {
		return SalesOrder{}, fmt.Errorf("update sales order %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a Draft order.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		so, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if so.Status != SalesOrderStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "delete", Status: string(so.Status)}
		}
		return repo.Delete(ctx, id)
	})
}

// Act applies a workflow action. Documents produced by generate_po,
// convert_to_delivery and convert_to_invoice are created in the same
// transaction and returned as Created.
func (s *Service) Act(ctx context.Context, id int64, req ActionRequest) (ActionResponse, error) {
	actor := shared.ActorFromContext(ctx)
	var created *documents.Ref
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		so, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Machine.Transition(so.Status, req.Action)
		if err != nil {
			return err
		}
		if so.Lines, err = repo.Lines(ctx, id); err != nil {
			return err
		}

		var history []documents.HistoryEntry
		switch req.Action {
		case ActionSubmit:
			short, err := s.shortfalls(ctx, so.Lines)
			if err != nil {
				return err
			}
			if len(short) > 0 {
				return &shared.InsufficientStockError{Lines: short}
			}
		case ActionGeneratePO:
			po, err := s.generatePO(ctx, so, req.Partial)
			if err != nil {
				return err
			}
			created = &documents.Ref{ID: po.ID, Code: po.Code}
			history = append(history, documents.Event(documents.EventPOGenerated, po.Code, actor))
		case ActionConvertToDelivery:
			ref, outcome, err := s.deliver(ctx, repo, so)
			if err != nil {
				return err
			}
			created = &ref
			if next, err = Machine.Transition(so.Status, req.Action, outcome); err != nil {
				return err
			}
		case ActionConvertToInvoice:
			ref, err := s.invoice(ctx, repo, so)
			if err != nil {
				return err
			}
			created = &ref
		}

		if entry, ok := documents.StatusChange(so.Status, next, actor); ok {
			history = append(history, entry)
		}
		so.Status = next
		so.UpdatedBy = actor
		if err := repo.SetStatus(ctx, so); err != nil {
			return err
		}
		return s.journal(ctx, id, history, req.Comment, actor)
	})
	Machine.Record(s.deps.Recorder, req.Action, err)
	if err != nil {
		return ActionResponse{}, fmt.Errorf("sales order %d %s: %w", id, req.Action, err)
	}
	so, err := s.Get(ctx, id)
	if err != nil {
		return ActionResponse{}, err
	}
	return ActionResponse{SalesOrder: so, Created: created}, nil
}

// demand is the undelivered quantity of one product across lines.
type demand struct {
	productID int64
	code      string
	name      string
	quantity  int
}

func undelivered(lines []OrderLine) []demand {
	index := map[int64]int{}
	var out []demand
	for _, l := range lines {
		qty := l.Undelivered()
		if qty == 0 {
			continue
		}
		if i, ok := index[l.ProductID]; ok {
			out[i].quantity += qty
			continue
		}
		index[l.ProductID] = len(out)
		out = append(out, demand{productID: l.ProductID, code: l.ProductCode, name: l.ProductName, quantity: qty})
	}
	return out
}

// shortfalls checks every line's ordered quantity against the stock of its
// product on its own and reports each line that exceeds it.
func (s *Service) shortfalls(ctx context.Context, lines []OrderLine) ([]shared.StockShortfall, error) {
	stock := map[int64]int{}
	var out []shared.StockShortfall
	for _, l := range lines {
		available, ok := stock[l.ProductID]
		if !ok {
			var err error
			if available, err = s.deps.Inventory.Available(ctx, l.ProductID); err != nil {
				return nil, err
			}
			stock[l.ProductID] = available
		}
		if available < l.Quantity {
			out = append(out, shared.StockShortfall{ProductID: l.ProductID, Required: l.Quantity, Available: available})
		}
	}
	return out, nil
}

// generatePO orders the stock deficit of every product, or the whole
// undelivered quantity when partial is set.
func (s *Service) generatePO(ctx context.Context, so SalesOrder, partial bool) (procurement.PurchaseOrder, error) {
	if s.deps.Purchasing == nil {
		return procurement.PurchaseOrder{}, errors.New("orders: purchasing not configured")
	}
	input := procurement.DeficitInput{SalesOrderID: so.ID, Note: "Generated from sales order " + so.Code}
	for _, d := range undelivered(so.Lines) {
		qty := d.quantity
		if !partial {
			available, err := s.deps.Inventory.Available(ctx, d.productID)
			if err != nil {
				return procurement.PurchaseOrder{}, err
			}
			qty -= max(available, 0)
		}
		if qty > 0 {
			input.Lines = append(input.Lines, procurement.LineInput{
				ProductID: d.productID, ProductCode: d.code, ProductName: d.name, Quantity: qty,
			})
		}
	}
	if len(input.Lines) == 0 {
		return procurement.PurchaseOrder{}, shared.NewValidationError("items", "stock covers every line")
	}
	return s.deps.Purchasing.CreateForDeficits(ctx, input)
}

func (s *Service) conversion(so SalesOrder, firstShipment bool) documents.Conversion {
	conv := documents.Conversion{
		SourceID:       so.ID,
		SourceCode:     so.Code,
		CustomerID:     so.CustomerID,
		GlobalDiscount: so.GlobalDiscount,
	}
	if firstShipment {
		conv.ShippingCharges = so.ShippingCharges
	}
	return conv
}

// deliver ships min(undelivered, available) of every line, deducts the
// stock and reports the status the order reaches.
func (s *Service) deliver(ctx context.Context, repo Repository, so SalesOrder) (documents.Ref, SalesOrderStatus, error) {
	if s.deps.Deliveries == nil {
		return documents.Ref{}, "", errors.New("orders: delivery notes not configured")
	}
	conv := s.conversion(so, nothingDone(so.Lines, func(l OrderLine) int { return l.DeliveredQty }))
	stock := map[int64]int{}
	var (
		progress []Progress
		short    []shared.StockShortfall
	)
	for _, l := range so.Lines {
		want := l.Undelivered()
		if want == 0 {
			continue
		}
		available, seen := stock[l.ProductID]
		if !seen {
			var err error
			if available, err = s.deps.Inventory.Available(ctx, l.ProductID); err != nil {
				return documents.Ref{}, "", err
			}
			available = max(available, 0)
		}
		qty := min(want, available)
		stock[l.ProductID] = available - qty
		if qty == 0 {
			short = append(short, shared.StockShortfall{ProductID: l.ProductID, Required: want, Available: available})
			continue
		}
		line, err := documents.WithQuantity(l.Line, qty)
		if err != nil {
			return documents.Ref{}, "", err
		}
		conv.Lines = append(conv.Lines, documents.SourceLine{SourceLineID: l.ID, Line: line})
		progress = append(progress, Progress{LineID: l.ID, Delivered: qty})
	}
	if len(conv.Lines) == 0 {
		if len(short) == 0 {
			return documents.Ref{}, "", shared.NewValidationError("items", "every line is already delivered")
		}
		return documents.Ref{}, "", &shared.InsufficientStockError{Lines: short}
	}

	for _, src := range conv.Lines {
		if err := s.deps.Inventory.Deduct(ctx, src.Line.ProductID, src.Line.Quantity); err != nil {
			return documents.Ref{}, "", err
		}
	}
	ref, err := s.deps.Deliveries.CreateFromSalesOrder(ctx, conv)
	if err != nil {
		return documents.Ref{}, "", err
	}
	if err := repo.AddProgress(ctx, so.ID, progress); err != nil {
		return documents.Ref{}, "", err
	}

	shipped := make(map[int64]int, len(progress))
	for _, p := range progress {
		shipped[p.LineID] = p.Delivered
	}
	outcome := SalesOrderStatusDelivered
	for _, l := range so.Lines {
		if l.DeliveredQty+shipped[l.ID] < l.Quantity {
			outcome = SalesOrderStatusPartiallyDelivered
			break
		}
	}
	return ref, outcome, nil
}

// invoice bills every quantity not invoiced yet.
func (s *Service) invoice(ctx context.Context, repo Repository, so SalesOrder) (documents.Ref, error) {
	if s.deps.Invoices == nil {
		return documents.Ref{}, errors.New("orders: invoicing not configured")
	}
	conv := s.conversion(so, nothingDone(so.Lines, func(l OrderLine) int { return l.InvoicedQty }))
	var progress []Progress
	for _, l := range so.Lines {
		qty := l.Uninvoiced()
		if qty == 0 {
			continue
		}
		line, err := documents.WithQuantity(l.Line, qty)
		if err != nil {
			return documents.Ref{}, err
		}
		conv.Lines = append(conv.Lines, documents.SourceLine{SourceLineID: l.ID, Line: line})
		progress = append(progress, Progress{LineID: l.ID, Invoiced: qty})
	}
	if len(conv.Lines) == 0 {
		return documents.Ref{}, shared.NewValidationError("items", "every line is already invoiced")
	}
	ref, err := s.deps.Invoices.CreateFromSalesOrder(ctx, conv)
	if err != nil {
		return documents.Ref{}, err
	}
	return ref, repo.AddProgress(ctx, so.ID, progress)
}

func nothingDone(lines []OrderLine, done func(OrderLine) int) bool {
	for _, l := range lines {
		if done(l) > 0 {
			return false
		}
	}
	return true
}

// AddComment attaches a free-text comment.
func (s *Service) AddComment(ctx context.Context, id int64, body string) (SalesOrder, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return SalesOrder{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return SalesOrder{}, shared.NewValidationError("comment", "This field is required.")
	}
	if err := s.journal(ctx, id, nil, body, shared.ActorFromContext(ctx)); err != nil {
		return SalesOrder{}, err
	}
	return s.Get(ctx, id)
}

// PDF renders the order and records the download in its history.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	so, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return s.deps.Publisher.PDF(ctx, id, s.renderData(ctx, so), shared.ActorFromContext(ctx))
}

// Email queues the order to to, or to the customer email when to is empty.
func (s *Service) Email(ctx context.Context, id int64, to string) error {
	so, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	to, err = salesShared.Recipient(ctx, s.deps.Customers, so.CustomerID, to)
	if err != nil {
		return err
	}
	return s.deps.Publisher.Email(ctx, id, s.renderData(ctx, so), to, shared.ActorFromContext(ctx))
}

func (s *Service) build(ctx context.Context, so SalesOrder, req SalesOrderRequest) (SalesOrder, error) {
	if _, err := salesShared.RequireCustomer(ctx, s.deps.Customers, req.CustomerID); err != nil {
		return SalesOrder{}, err
	}
	lines, err := documents.BuildLines(ctx, s.deps.Catalog, "items", req.Lines)
	if err != nil {
		return SalesOrder{}, err
	}
	so.CustomerID = req.CustomerID
	if !req.OrderDate.IsZero() {
		so.OrderDate = req.OrderDate
	}
	if so.OrderDate.IsZero() {
		so.OrderDate = s.today()
	}
	so.DueDate = req.DueDate
	so.ExpectedDelivery = req.ExpectedDelivery
	if !so.DueDate.IsZero() && so.DueDate.Before(so.OrderDate) {
		return SalesOrder{}, shared.NewValidationError("due_date", "must not be before the order date")
	}
	so.OrderType = req.OrderType
	if so.OrderType == "" {
		so.OrderType = OrderTypeStandard
	}
	so.Currency = req.Currency
	if so.Currency == "" {
		so.Currency = defaultCurrency
	}
	so.PaymentMethod = strings.TrimSpace(req.PaymentMethod)
	so.ShippingMethod = strings.TrimSpace(req.ShippingMethod)
	so.InternalNotes = strings.TrimSpace(req.InternalNotes)
	so.CustomerNotes = strings.TrimSpace(req.CustomerNotes)
	if err := so.Recompute(lines, req.GlobalDiscount, req.ShippingCharges); err != nil {
		return SalesOrder{}, err
	}
	so.Lines = wrap(lines)
	return so, nil
}

func wrap(lines []documents.Line) []OrderLine {
	out := make([]OrderLine, len(lines))
	for i, l := range lines {
		out[i] = OrderLine{Line: l}
	}
	return out
}

func (s *Service) journal(ctx context.Context, id int64, history []documents.HistoryEntry, comment string, actor int64) error {
	if len(history) > 0 {
		if err := s.deps.Journal.AppendHistory(ctx, documents.TypeSalesOrder, id, history...); err != nil {
			return err
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		return s.deps.Journal.AddComments(ctx, documents.TypeSalesOrder, id, documents.Comment{Body: comment, AuthorID: actor})
	}
	return nil
}

func (s *Service) renderData(ctx context.Context, so SalesOrder) documents.RenderData {
	fields := []documents.Field{
		{Label: "Order Date", Value: so.OrderDate.String()},
		{Label: "Order Type", Value: string(so.OrderType)},
	}
	if !so.DueDate.IsZero() {
		fields = append(fields, documents.Field{Label: "Due Date", Value: so.DueDate.String()})
	}
	if !so.ExpectedDelivery.IsZero() {
		fields = append(fields, documents.Field{Label: "Expected Delivery", Value: so.ExpectedDelivery.String()})
	}
	if so.PaymentMethod != "" {
		fields = append(fields, documents.Field{Label: "Payment Method", Value: so.PaymentMethod})
	}
	return documents.RenderData{
		Type:     documents.TypeSalesOrder,
		Title:    "Sales Order",
		Code:     so.Code,
		Status:   string(so.Status),
		Party:    salesShared.PartyName(ctx, s.deps.Customers, so.CustomerID),
		Date:     so.OrderDate.Time,
		Currency: so.Currency,
		Fields:   fields,
		Lines:    PricedLines(so.Lines),
		Totals:   so.Totals,
	}
}
