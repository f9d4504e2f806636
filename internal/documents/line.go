package documents

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Line is a priced document line. Product display fields and the tax rate
// are snapshots taken when the line was last written.
type Line struct {
	ID          int64           `json:"id"`
	ProductID   int64           `json:"product_id"`
	ProductCode string          `json:"product_id_display"`
	ProductName string          `json:"product_name"`
	UOM         string          `json:"uom,omitempty"`
	Quantity    int             `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
	Discount    decimal.Decimal `json:"discount"`
	TaxCodeID   *int64          `json:"tax_code_id,omitempty"`
	TaxRate     decimal.Decimal `json:"tax_rate"`
	Total       decimal.Decimal `json:"total"`
}

// Input returns the pricing part of the line.
func (l Line) Input() LineInput {
	return LineInput{Quantity: l.Quantity, UnitPrice: l.UnitPrice, Discount: l.Discount, TaxRate: l.TaxRate}
}

// Taxed returns what the aggregator needs from the line.
func (l Line) Taxed() TaxedLine {
	return TaxedLine{Total: l.Total, TaxRate: l.TaxRate}
}

// Recalculate recomputes Total from the line pricing.
func (l *Line) Recalculate() error {
	amounts, err := CalculateLine(l.Input())
	if err != nil {
		return err
	}
	l.Total = amounts.Total
	return nil
}

// LineRequest is the client payload of a line; totals are never accepted.
type LineRequest struct {
	ID        int64           `json:"id,omitempty"`
	ProductID int64           `json:"product_id" validate:"required,gt=0"`
	Quantity  int             `json:"quantity" validate:"required,min=1"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Discount  decimal.Decimal `json:"discount"`
	TaxCodeID *int64          `json:"tax_code_id,omitempty" validate:"omitempty,gt=0"`
	UOM       string          `json:"uom,omitempty" validate:"max=50"`
}

// ProductSnapshot is the product data copied onto a line.
type ProductSnapshot struct {
	ID        int64
	Code      string
	Name      string
	UOM       string
	UnitPrice decimal.Decimal
	TaxCodeID *int64
	TaxRate   decimal.Decimal
}

// Catalog resolves the products and tax codes referenced by lines.
type Catalog interface {
	Snapshot(ctx context.Context, productID int64) (ProductSnapshot, error)
	TaxRate(ctx context.Context, taxCodeID int64) (decimal.Decimal, error)
}

// BuildLines resolves every request against the catalog, snapshots display
// fields and tax rate, and computes totals. Field errors are keyed as
// field[i].name.
func BuildLines(ctx context.Context, catalog Catalog, field string, reqs []LineRequest) ([]Line, error) {
	verr := &shared.ValidationError{}
	if len(reqs) == 0 {
		verr.Add(field, "at least one line is required")
		return nil, verr
	}
	lines := make([]Line, 0, len(reqs))
	for i, req := range reqs {
		prefix := fmt.Sprintf("%s[%d]", field, i)
		product, err := catalog.Snapshot(ctx, req.ProductID)
		if err != nil {
			if errors.Is(err, shared.ErrNotFound) {
				verr.Add(prefix+".product_id", "product not found")
				continue
			}
			return nil, fmt.Errorf("load product %d: %w", req.ProductID, err)
		}
		line := Line{
			ID:          req.ID,
			ProductID:   product.ID,
			ProductCode: product.Code,
			ProductName: product.Name,
			UOM:         product.UOM,
			Quantity:    req.Quantity,
			UnitPrice:   req.UnitPrice,
			Discount:    req.Discount,
			TaxCodeID:   product.TaxCodeID,
			TaxRate:     product.TaxRate,
		}
		if req.UOM != "" {
			line.UOM = req.UOM
		}
		if req.TaxCodeID != nil {
			rate, err := catalog.TaxRate(ctx, *req.TaxCodeID)
			if err != nil {
				if errors.Is(err, shared.ErrNotFound) {
					verr.Add(prefix+".tax_code_id", "tax code not found")
					continue
				}
				return nil, fmt.Errorf("load tax code %d: %w", *req.TaxCodeID, err)
			}
			id := *req.TaxCodeID
			line.TaxCodeID = &id
			line.TaxRate = rate
		}
		if err := line.Recalculate(); err != nil {
			var lineErr *shared.ValidationError
			if errors.As(err, &lineErr) {
				verr.Merge(prefix, lineErr)
				continue
			}
			return nil, err
		}
		lines = append(lines, line)
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return lines, nil
}

// TotalsFor aggregates the given lines.
func TotalsFor(lines []Line, globalDiscount, shipping decimal.Decimal) (Totals, error) {
	taxed := make([]TaxedLine, len(lines))
	for i, line := range lines {
		taxed[i] = line.Taxed()
	}
	return Aggregate(taxed, globalDiscount, shipping)
}
