package products

import (
	"time"

	"github.com/shopspring/decimal"
)

// Product is a sellable item with its on-hand stock.
type Product struct {
	ID          int64           `json:"id"`
	Code        string          `json:"product_id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	UOM         string          `json:"uom"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity"`
	TaxCodeID   *int64          `json:"tax_code_id,omitempty"`
	IsActive    bool            `json:"is_active"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ProductForm is the create/update payload. The code is always generated.
type ProductForm struct {
	Name        string          `json:"name" validate:"required,max=200"`
	Description string          `json:"description" validate:"max=2000"`
	UOM         string          `json:"uom" validate:"max=50"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Quantity    int             `json:"quantity" validate:"gte=0"`
	TaxCodeID   *int64          `json:"tax_code_id,omitempty" validate:"omitempty,gt=0"`
	IsActive    *bool           `json:"is_active,omitempty"`
}
