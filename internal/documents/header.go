package documents

import (
	"time"

	"github.com/shopspring/decimal"
)

// Header holds the columns every document table shares.
type Header struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
	Totals
	CreatedBy int64     `json:"created_by"`
	UpdatedBy int64     `json:"updated_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HeaderColumns lists the shared columns in the order of Header.ScanTargets.
const HeaderColumns = `id, code, global_discount, shipping_charges, subtotal, tax_summary, discount_amount,
rounding_adjustment, grand_total, COALESCE(created_by, 0), COALESCE(updated_by, 0), created_at, updated_at`

// ScanTargets returns pointers matching HeaderColumns.
func (h *Header) ScanTargets() []any {
	return []any{
		&h.ID, &h.Code, &h.GlobalDiscount, &h.ShippingCharges, &h.Subtotal, &h.TaxSummary, &h.DiscountAmount,
		&h.RoundingAdjustment, &h.GrandTotal, &h.CreatedBy, &h.UpdatedBy, &h.CreatedAt, &h.UpdatedAt,
	}
}

// TotalsArgs returns the stored totals in the order global_discount,
// shipping_charges, subtotal, tax_summary, discount_amount,
// rounding_adjustment, grand_total.
func (h Header) TotalsArgs() []any {
	return []any{
		h.GlobalDiscount, h.ShippingCharges, h.Subtotal, h.TaxSummary, h.DiscountAmount,
		h.RoundingAdjustment, h.GrandTotal,
	}
}

// Recompute replaces the stored totals with those derived from lines.
func (h *Header) Recompute(lines []Line, globalDiscount, shipping decimal.Decimal) error {
	totals, err := TotalsFor(lines, globalDiscount, shipping)
	if err != nil {
		return err
	}
	h.Totals = totals
	return nil
}
