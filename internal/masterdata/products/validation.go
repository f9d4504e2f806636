package products

import (
	"context"
	"errors"
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func (s *Service) validate(ctx context.Context, form ProductForm) error {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(form.Name) == "" {
		verr.Add("name", "This field is required.")
	}
	if form.UnitPrice.IsNegative() {
		verr.Add("unit_price", "must not be negative")
	}
	if form.Quantity < 0 {
		verr.Add("quantity", "must not be negative")
	}
	if form.TaxCodeID != nil {
		if _, err := s.taxes.Rate(ctx, *form.TaxCodeID); err != nil {
			if !errors.Is(err, shared.ErrNotFound) {
				return err
			}
			verr.Add("tax_code_id", "tax code not found")
		}
	}
	return verr.Err()
}
