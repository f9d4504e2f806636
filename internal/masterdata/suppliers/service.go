package suppliers

import (
	"context"
	"fmt"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
)

type Service struct {
	repo        Repository
	ids         sequence.Allocator
	phoneRegion string
}

func NewService(repo Repository, ids sequence.Allocator, phoneRegion string) *Service {
	return &Service{repo: repo, ids: ids, phoneRegion: phoneRegion}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Supplier, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a supplier under the next SUP- code.
func (s *Service) Create(ctx context.Context, form SupplierForm) (Supplier, error) {
	supplier, err := s.normalize(form)
	if err != nil {
		return Supplier{}, err
	}
	var created Supplier
	err = db.RetryOnConflict(ctx, db.ConflictRetries, []string{sequence.Constraint(sequence.KindSupplier)},
		func() { sequence.NoteRetry(s.ids, sequence.KindSupplier) },
		func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
				code, err := s.ids.Next(ctx, sequence.KindSupplier)
				if err != nil {
					return err
				}
				supplier.Code = code
				created, err = repo.Create(ctx, supplier)
				return err
			})
		})
	if err != nil {
		return Supplier{}, fmt.Errorf("create supplier: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, form SupplierForm) (Supplier, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Supplier{}, err
	}
	supplier, err := s.normalize(form)
	if err != nil {
		return Supplier{}, err
	}
	supplier.ID = id
	supplier.Code = existing.Code
	if err := s.repo.Update(ctx, supplier); err != nil {
		return Supplier{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
