package customers

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

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Customer, error) {
	return s.repo.Get(ctx, id)
}

// Create stores a customer under the next CUS code.
func (s *Service) Create(ctx context.Context, form CustomerForm) (Customer, error) {
	customer, err := s.normalize(form)
	if err != nil {
		return Customer{}, err
	}
	var created Customer
	err = db.RetryOnConflict(ctx, db.ConflictRetries, []string{sequence.Constraint(sequence.KindCustomer)},
		func() { sequence.NoteRetry(s.ids, sequence.KindCustomer) },
		func(ctx context.Context) error {
			return s.repo.WithTx(ctx, func(ctx context.Context, repo Repository) error {
				code, err := s.ids.Next(ctx, sequence.KindCustomer)
				if err != nil {
					return err
				}
				customer.Code = code
				created, err = repo.Create(ctx, customer)
				return err
			})
		})
	if err != nil {
		return Customer{}, fmt.Errorf("create customer: %w", err)
	}
	return created, nil
}

func (s *Service) Update(ctx context.Context, id int64, form CustomerForm) (Customer, error) {
	existing, err := s.repo.Get(ctx, id)
	if err != nil {
		return Customer{}, err
	}
	customer, err := s.normalize(form)
	if err != nil {
		return Customer{}, err
	}
	customer.ID = id
	customer.Code = existing.Code
	if err := s.repo.Update(ctx, customer); err != nil {
		return Customer{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}
