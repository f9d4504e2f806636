package departments

import (
	"context"
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) List(ctx context.Context, filters shared.ListFilters) ([]Department, int, error) {
	return s.repo.List(ctx, filters)
}

func (s *Service) Get(ctx context.Context, id int64) (Department, error) {
	return s.repo.Get(ctx, id)
}

func (s *Service) Create(ctx context.Context, form DepartmentForm) (Department, error) {
	d, err := normalize(form)
	if err != nil {
		return Department{}, err
	}
	return s.repo.Create(ctx, d)
}

func (s *Service) Update(ctx context.Context, id int64, form DepartmentForm) (Department, error) {
	d, err := normalize(form)
	if err != nil {
		return Department{}, err
	}
	d.ID = id
	if err := s.repo.Update(ctx, d); err != nil {
		return Department{}, err
	}
	return s.repo.Get(ctx, id)
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	return s.repo.Delete(ctx, id)
}

func normalize(form DepartmentForm) (Department, error) {
	d := Department{Name: strings.TrimSpace(form.Name), Description: strings.TrimSpace(form.Description)}
	if d.Name == "" {
		return Department{}, internalShared.NewValidationError("name", "This field is required.")
	}
	return d, nil
}
