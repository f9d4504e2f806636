package procurement

import (
	"context"
	"fmt"
	"strconv"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Service orchestrates procurement flows.
type Service struct {
	repo  RepositoryPort
	ids   sequence.Allocator
	audit shared.Auditor
}

// NewService constructs procurement service. audit may be nil.
func NewService(repo RepositoryPort, ids sequence.Allocator, audit shared.Auditor) *Service {
	return &Service{repo: repo, ids: ids, audit: audit}
}

// CreateForDeficits raises a draft purchase order for the given lines.
// Lines with a non-positive quantity are skipped; when nothing remains a
// ValidationError is returned.
func (s *Service) CreateForDeficits(ctx context.Context, input DeficitInput) (PurchaseOrder, error) {
	lines := make([]LineInput, 0, len(input.Lines))
	for _, l := range input.Lines {
		if l.Quantity > 0 {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return PurchaseOrder{}, shared.NewValidationError("lines", "no quantity to order")
	}
	soID := input.SalesOrderID
	po := PurchaseOrder{
		SalesOrderID: &soID,
		Status:       POStatusDraft,
		Note:         input.Note,
		CreatedBy:    shared.ActorFromContext(ctx),
	}
	var created PurchaseOrder
	err := db.RetryOnConflict(ctx, db.ConflictRetries, []string{sequence.Constraint(sequence.KindPurchaseOrder)},
		func() { sequence.NoteRetry(s.ids, sequence.KindPurchaseOrder) },
		func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, tx RepositoryPort) error {
				code, err := s.ids.Next(ctx, sequence.KindPurchaseOrder)
				if err != nil {
					return err
				}
				po.Code = code
				header, err := tx.CreatePO(ctx, po)
				if err != nil {
					return err
				}
				header.Lines = header.Lines[:0]
				for _, l := range lines {
					line, err := tx.InsertPOLine(ctx, POLine{
						POID:        header.ID,
						ProductID:   l.ProductID,
						ProductCode: l.ProductCode,
						ProductName: l.ProductName,
						Quantity:    l.Quantity,
					})
					if err != nil {
						return err
					}
					header.Lines = append(header.Lines, line)
				}
				created = header
				return s.recordAudit(ctx, "PO_CREATE", created)
			})
		})
	if err != nil {
		return PurchaseOrder{}, fmt.Errorf("create purchase order: %w", err)
	}
	return created, nil
}

// GetPO returns a purchase order with its lines.
func (s *Service) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	return s.repo.GetPO(ctx, id)
}

// ListPOs returns a page of purchase orders, newest first.
func (s *Service) ListPOs(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]PurchaseOrder, int, error) {
	return s.repo.ListPOs(ctx, filters, page)
}

func (s *Service) recordAudit(ctx context.Context, action string, po PurchaseOrder) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  po.CreatedBy,
		Action:   action,
		Entity:   "purchase_order",
		EntityID: strconv.FormatInt(po.ID, 10),
		Meta:     map[string]any{"code": po.Code, "sales_order_id": po.SalesOrderID},
	})
}
