package taxes

import (
	"context"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]TaxCode, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (TaxCode, error) {
	return s.repo.Get(ctx, id)
}

// Rate returns the percentage of a tax code.
func (s *Service) Rate(ctx context.Context, id int64) (decimal.Decimal, error) {
	t, err := s.repo.Get(ctx, id)
	if err != nil {
		return decimal.Zero, err
	}
	return t.Percentage, nil
}

func (s *Service) Create(ctx context.Context, form TaxCodeForm) (TaxCode, error) {
	if err := s.validate(form); err != nil {
		return TaxCode{}, err
	}
	return s.repo.Create(ctx, fromForm(form))
}

func (s *Service) Update(ctx context.Context, id int64, form TaxCodeForm) (TaxCode, error) {
	if err := s.validate(form); err != nil {
		return TaxCode{}, err
	}
	t := fromForm(form)
	t.ID = id
	if err := s.repo.Update(ctx, t); err != nil {
		return TaxCode{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func fromForm(form TaxCodeForm) TaxCode {
	return TaxCode{
		Name:        strings.TrimSpace(form.Name),
		Percentage:  form.Percentage,
		Description: strings.TrimSpace(form.Description),
	}
}
