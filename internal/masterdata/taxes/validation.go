package taxes

import (
	"strings"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

var hundred = decimal.NewFromInt(100)

func (s *Service) validate(form TaxCodeForm) error {
	verr := &shared.ValidationError{}
	if strings.TrimSpace(form.Name) == "" {
		verr.Add("name", "This field is required.")
	}
	if form.Percentage.IsNegative() || form.Percentage.GreaterThan(hundred) {
		verr.Add("percentage", "must be between 0 and 100")
	}
	return verr.Err()
}
