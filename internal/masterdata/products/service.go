package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// TaxRates resolves tax code percentages.
type TaxRates interface {
	Rate(ctx context.Context, taxCodeID int64) (decimal.Decimal, error)
}

// Service manages products. It is also the catalog and inventory
// collaborator of the document services.
type Service struct {
	repo  Repository
	ids   sequence.Allocator
	taxes TaxRates
}

var (
	_ documents.Catalog   = (*Service)(nil)
	_ documents.Inventory = (*Service)(nil)
)

func NewService(repo Repository, ids sequence.Allocator, taxes TaxRates) *Service {
	return &Service{repo: repo, ids: ids, taxes: taxes}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a product under the next CVB code.
func (s *Service) Create(ctx context.Context, form ProductForm) (Product, error) {
	if err := s.validate(ctx, form); err != nil {
		return Product{}, err
	}
	product := fromForm(form, true)

	var created Product
	err := db.RetryOnConflict(ctx, db.ConflictRetries, []string{sequence.Constraint(sequence.KindProduct)},
		func() { sequence.NoteRetry(s.ids, sequence.KindProduct) },
		func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
				code, err := s.ids.Next(ctx, sequence.KindProduct)
				if err != nil {
					return err
				}
				product.Code = code
				created, err = repo.Create(ctx, product)
				return err
			})
		})
	if err != nil {
		return Product{}, fmt.Errorf("create product: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, form ProductForm) (Product, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Product{}, err
	}
	if err := s.validate(ctx, form); err != nil {
		return Product{}, err
	}
	product := fromForm(form, existing.IsActive)
	product.ID = id
	product.Code = existing.Code
	if err := s.repo.Update(ctx, product); err != nil {
		return Product{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

// Snapshot implements documents.Catalog.
func (s *Service) Snapshot(ctx context.Context, productID int64) (documents.ProductSnapshot, error) {
	return s.repo.Snapshot(ctx, productID)
}

// TaxRate implements documents.Catalog.
func (s *Service) TaxRate(ctx context.Context, taxCodeID int64) (decimal.Decimal, error) {
	return s.taxes.Rate(ctx, taxCodeID)
}

// Available implements documents.Inventory.
func (s *Service) Available(ctx context.Context, productID int64) (int, error) {
	return s.repo.Available(ctx, productID)
}

// Deduct implements documents.Inventory.
func (s *Service) Deduct(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	ok, err := s.repo.Deduct(ctx, productID, qty)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	available, err := s.repo.Available(ctx, productID)
	if err != nil {
		return err
	}
	return &internalShared.InsufficientStockError{Lines: []internalShared.StockShortfall{
		{ProductID: productID, Required: qty, Available: available},
	}}
}

// Restock implements documents.Inventory.
func (s *Service) Restock(ctx context.Context, productID int64, qty int) error {
	if qty <= 0 {
		return nil
	}
	return s.repo.Restock(ctx, productID, qty)
}

func fromForm(form ProductForm, active bool) Product {
	if form.IsActive != nil {
		active = *form.IsActive
	}
	return Product{
		Name:        strings.TrimSpace(form.Name),
		Description: strings.TrimSpace(form.Description),
		UOM:         strings.TrimSpace(form.UOM),
		UnitPrice:   form.UnitPrice,
		Quantity:    form.Quantity,
		TaxCodeID:   form.TaxCodeID,
		IsActive:    active,
	}
}
