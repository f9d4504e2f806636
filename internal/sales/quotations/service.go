package quotations

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/cache"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const sweepLockKey = "quotations:expiry-sweep"

// SalesOrderCreator turns an approved quotation into a draft sales order.
type SalesOrderCreator interface {
	CreateFromQuotation(ctx context.Context, conv documents.Conversion) (documents.Ref, error)
}

// SweepLocker serialises the expiry sweep across replicas.
type SweepLocker interface {
	Obtain(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// Dependencies are the collaborators of the quotation service. Orders,
// Locker, Recorder and Idempotency are optional.
type Dependencies struct {
	IDs         sequence.Allocator
	Catalog     documents.Catalog
	Customers   salesShared.CustomerDirectory
	Orders      SalesOrderCreator
	Journal     documents.Journal
	Publisher   documents.Publisher
	Locker      SweepLocker
	SweepTTL    time.Duration
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
	if deps.SweepTTL <= 0 {
		deps.SweepTTL = 30 * time.Second
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &Service{repo: repo, deps: deps, today: shared.Today}
}

// List sweeps overdue quotations to Expired before reading the page.
func (s *Service) List(ctx context.Context, filters ListFilters) ([]Quotation, int, error) {
	if _, err := s.ExpireOverdue(ctx); err != nil {
		return nil, 0, err
	}
	return s.repo.List(ctx, filters)
}

// ExpireOverdue moves every open quotation past its expiry date to Expired
// and returns how many moved. When another replica holds the sweep lock the
// sweep is skipped.
func (s *Service) ExpireOverdue(ctx context.Context) (int, error) {
	if s.deps.Locker != nil {
		release, err := s.deps.Locker.Obtain(ctx, sweepLockKey, s.deps.SweepTTL)
		switch {
		case errors.Is(err, cache.ErrLockHeld):
			return 0, nil
		case err != nil:
			s.deps.Logger.Warn("expiry sweep running unlocked", slog.Any("error", err))
		default:
			defer func() {
				if err := release(context.WithoutCancel(ctx)); err != nil {
					s.deps.Logger.Warn("release expiry sweep lock", slog.Any("error", err))
				}
			}()
		}
	}

	var expired []Expiry
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		var err error
		expired, err = repo.ExpireOverdue(ctx, s.today())
		if err != nil {
			return err
		}
		for _, e := range expired {
			entry, _ := documents.StatusChange(e.From, QuotationStatusExpired, 0)
			if err := s.deps.Journal.AppendHistory(ctx, documents.TypeQuotation, e.ID, entry); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("expire quotations: %w", err)
	}
	if len(expired) > 0 {
		s.deps.Logger.Info("quotations expired", slog.Int("count", len(expired)))
	}
	return len(expired), nil
}

// Get returns the quotation with its lines, revisions, history and comments.
func (s *Service) Get(ctx context.Context, id int64) (Quotation, error) {
	q, err := s.repo.Get(ctx, id)
	if err != nil {
		return Quotation{}, err
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		q.Lines, err = s.repo.Lines(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		q.Revisions, err = s.repo.Revisions(gctx, id)
		return err
	})
	g.Go(func() (err error) {
		q.History, err = s.deps.Journal.History(gctx, documents.TypeQuotation, id)
		return err
	})
	g.Go(func() (err error) {
		q.Comments, err = s.deps.Journal.Comments(gctx, documents.TypeQuotation, id)
		return err
	})
	if err := g.Wait(); err != nil {
		return Quotation{}, fmt.Errorf("load quotation %d: %w", id, err)
	}
	return q, nil
}

// Create stores a draft quotation under the next QUO code. A quotation whose
// expiry date has already passed is stored as Expired.
func (s *Service) Create(ctx context.Context, req QuotationRequest, idempotencyKey string) (Quotation, error) {
	actor := shared.ActorFromContext(ctx)
	q, err := s.build(ctx, Quotation{Status: QuotationStatusDraft}, req)
	if err != nil {
		return Quotation{}, err
	}
	q.CreatedBy, q.UpdatedBy = actor, actor
	var history []documents.HistoryEntry
	if q.Expired(s.today()) {
		q.Status = QuotationStatusExpired
		entry, _ := documents.StatusChange(QuotationStatusDraft, QuotationStatusExpired, actor)
		history = append(history, entry)
	}

	var created Quotation
	err = documents.WithCode(ctx, s.deps.IDs, sequence.KindQuotation, func(ctx context.Context) error {
		return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
			if err := salesShared.ClaimIdempotencyKey(ctx, s.deps.Idempotency, idempotencyKey, "quotations"); err != nil {
				return err
			}
			code, err := s.deps.IDs.Next(ctx, sequence.KindQuotation)
			if err != nil {
				return err
			}
			q.Code = code
			created, err = repo.Create(ctx, q)
			if err != nil {
				return err
			}
			return s.journal(ctx, created.ID, history, req.Comment, actor)
		})
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("create quotation: %w", err)
	}
	return s.Get(ctx, created.ID)
}

// Update replaces the body of a Draft or Submitted quotation. Lines are
// reconciled by id.
func (s *Service) Update(ctx context.Context, id int64, req QuotationRequest) (Quotation, error) {
	actor := shared.ActorFromContext(ctx)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		current, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !Editable(current.Status) {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "update", Status: string(current.Status)}
		}
		q, err := s.build(ctx, current, req)
		if err != nil {
			return err
		}
		existing, err := repo.Lines(ctx, id)
		if err != nil {
			return err
		}
		plan, err := documents.Reconcile("items", existing, q.Lines, func(l documents.Line) int64 { return l.ID })
		if err != nil {
			return err
		}
		q.UpdatedBy = actor
		var history []documents.HistoryEntry
		if q.Expired(s.today()) {
			q.Status = QuotationStatusExpired
			if entry, ok := documents.StatusChange(current.Status, q.Status, actor); ok {
				history = append(history, entry)
			}
		}
		if _, err := repo.Update(ctx, q, plan); err != nil {
			return err
		}
		return s.journal(ctx, id, history, req.Comment, actor)
	})
	if err != nil {
		return Quotation{}, fmt.Errorf("update quotation %d: %w", id, err)
	}
	return s.Get(ctx, id)
}

// Delete removes a Draft quotation.
func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if q.Status != QuotationStatusDraft {
			return &shared.IllegalTransitionError{Document: Machine.Document(), Action: "delete", Status: string(q.Status)}
		}
		return repo.Delete(ctx, id)
	})
}

// Act applies a workflow action. convert_to_so creates the sales order in
// the same transaction.
func (s *Service) Act(ctx context.Context, id int64, req ActionRequest) (Quotation, error) {
	actor := shared.ActorFromContext(ctx)
	comment := strings.TrimSpace(req.Comment)
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
		q, err := repo.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		next, err := Machine.Transition(q.Status, req.Action)
		if err != nil {
			return err
		}

		switch req.Action {
		case ActionRevise:
			q.ReviseCount++
			rev := Revision{RevisionNo: q.ReviseCount, Comment: comment, Status: next, CreatedBy: actor}
			if _, err := repo.AddRevision(ctx, id, rev); err != nil {
				return err
			}
			comment = ""
		case ActionConvertToSO:
			ref, err := s.convert(ctx, repo, q)
			if err != nil {
				return err
			}
			q.SalesOrderID = &ref.ID
		}

		var history []documents.HistoryEntry
		if entry, ok := documents.StatusChange(q.Status, next, actor); ok {
			history = append(history, entry)
		}
		q.Status = next
		q.UpdatedBy = actor
		if err := repo.SetStatus(ctx, q); err != nil {
			return err
		}
		return s.journal(ctx, id, history, comment, actor)
	})
	Machine.Record(s.deps.Recorder, req.Action, err)
	if err != nil {
		return Quotation{}, fmt.Errorf("quotation %d %s: %w", id, req.Action, err)
	}
	return s.Get(ctx, id)
}

// AddComment attaches a free-text comment.
func (s *Service) AddComment(ctx context.Context, id int64, body string) (Quotation, error) {
	if _, err := s.repo.Get(ctx, id); err != nil {
		return Quotation{}, err
	}
	body = strings.TrimSpace(body)
	if body == "" {
		return Quotation{}, shared.NewValidationError("comment", "This field is required.")
	}
	if err := s.journal(ctx, id, nil, body, shared.ActorFromContext(ctx)); err != nil {
		return Quotation{}, err
	}
	return s.Get(ctx, id)
}

// PDF renders the quotation and records the download in its history.
func (s *Service) PDF(ctx context.Context, id int64) ([]byte, string, error) {
	q, err := s.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	return s.deps.Publisher.PDF(ctx, id, s.renderData(ctx, q), shared.ActorFromContext(ctx))
}

// Email queues the quotation to to, or to the customer email when to is
// empty.
func (s *Service) Email(ctx context.Context, id int64, to string) error {
	q, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	to, err = salesShared.Recipient(ctx, s.deps.Customers, q.CustomerID, to)
	if err != nil {
		return err
	}
	return s.deps.Publisher.Email(ctx, id, s.renderData(ctx, q), to, shared.ActorFromContext(ctx))
}

// build applies req to q and recomputes lines and totals.
func (s *Service) build(ctx context.Context, q Quotation, req QuotationRequest) (Quotation, error) {
	if _, err := salesShared.RequireCustomer(ctx, s.deps.Customers, req.CustomerID); err != nil {
		return Quotation{}, err
	}
	lines, err := documents.BuildLines(ctx, s.deps.Catalog, "items", req.Lines)
	if err != nil {
		return Quotation{}, err
	}
	q.CustomerID = req.CustomerID
	q.Notes = strings.TrimSpace(req.Notes)
	if !req.Date.IsZero() {
		q.Date = req.Date
	}
	if q.Date.IsZero() {
		q.Date = s.today()
	}
	q.ExpiryDate = req.ExpiryDate
	if !q.ExpiryDate.IsZero() && q.ExpiryDate.Before(q.Date) {
		return Quotation{}, shared.NewValidationError("expiry_date", "must not be before the quotation date")
	}
	if err := q.Recompute(lines, req.GlobalDiscount, req.ShippingCharges); err != nil {
		return Quotation{}, err
	}
	q.Lines = lines
	return q, nil
}

func (s *Service) convert(ctx context.Context, repo Repository, q Quotation) (documents.Ref, error) {
	if s.deps.Orders == nil {
		return documents.Ref{}, errors.New("quotations: sales order conversion not configured")
	}
	lines, err := repo.Lines(ctx, q.ID)
	if err != nil {
		return documents.Ref{}, err
	}
	conv := documents.Conversion{
		SourceID:        q.ID,
		SourceCode:      q.Code,
		CustomerID:      q.CustomerID,
		GlobalDiscount:  q.GlobalDiscount,
		ShippingCharges: q.ShippingCharges,
	}
	for _, line := range lines {
		conv.Lines = append(conv.Lines, documents.SourceLine{SourceLineID: line.ID, Line: line})
	}
	return s.deps.Orders.CreateFromQuotation(ctx, conv)
}

func (s *Service) journal(ctx context.Context, id int64, history []documents.HistoryEntry, comment string, actor int64) error {
	if len(history) > 0 {
		if err := s.deps.Journal.AppendHistory(ctx, documents.TypeQuotation, id, history...); err != nil {
			return err
		}
	}
	if comment = strings.TrimSpace(comment); comment != "" {
		return s.deps.Journal.AddComments(ctx, documents.TypeQuotation, id, documents.Comment{Body: comment, AuthorID: actor})
	}
	return nil
}

func (s *Service) renderData(ctx context.Context, q Quotation) documents.RenderData {
	fields := []documents.Field{{Label: "Quotation Date", Value: q.Date.String()}}
	if !q.ExpiryDate.IsZero() {
		fields = append(fields, documents.Field{Label: "Valid Until", Value: q.ExpiryDate.String()})
	}
	if q.ReviseCount > 0 {
		fields = append(fields, documents.Field{Label: "Revision", Value: strconv.Itoa(q.ReviseCount)})
	}
	return documents.RenderData{
		Type:   documents.TypeQuotation,
		Title:  "Quotation",
		Code:   q.Code,
		Status: string(q.Status),
		Party:  salesShared.PartyName(ctx, s.deps.Customers, q.CustomerID),
		Date:   q.Date.Time,
		Fields: fields,
		Lines:  q.Lines,
		Totals: q.Totals,
	}
}
