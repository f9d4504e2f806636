package taxes

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxCode is a named tax percentage referenced by products and document lines.
type TaxCode struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Percentage  decimal.Decimal `json:"percentage"`
	Description string          `json:"description"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// TaxCodeForm is the create/update payload.
type TaxCodeForm struct {
	Name        string          `json:"name" validate:"required,max=100"`
	Percentage  decimal.Decimal `json:"percentage"`
	Description string          `json:"description" validate:"max=500"`
}
