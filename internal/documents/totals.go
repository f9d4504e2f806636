package documents

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// TaxedLine is the part of a line the aggregator needs.
type TaxedLine struct {
	Total   decimal.Decimal
	TaxRate decimal.Decimal
}

// Totals is the derived, non-editable summary of a document.
type Totals struct {
	Subtotal           decimal.Decimal `json:"subtotal"`
	TaxSummary         decimal.Decimal `json:"tax_summary"`
	GlobalDiscount     decimal.Decimal `json:"global_discount"`
	DiscountAmount     decimal.Decimal `json:"discount_amount"`
	ShippingCharges    decimal.Decimal `json:"shipping_charges"`
	RoundingAdjustment decimal.Decimal `json:"rounding_adjustment"`
	GrandTotal         decimal.Decimal `json:"grand_total"`
}

// PreRoundTotal is the amount before whole-unit rounding.
func (t Totals) PreRoundTotal() decimal.Decimal {
	return t.Subtotal.Sub(t.DiscountAmount).Add(t.TaxSummary).Add(t.ShippingCharges)
}

// ValidateCharges checks the document-level discount and shipping inputs.
func ValidateCharges(globalDiscount, shipping decimal.Decimal) *shared.ValidationError {
	verr := &shared.ValidationError{}
	if globalDiscount.IsNegative() || globalDiscount.GreaterThan(hundred) {
		verr.Add("global_discount", "must be between 0 and 100")
	}
	if shipping.IsNegative() {
		verr.Add("shipping_charges", "must not be negative")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// Aggregate rolls line totals up into document totals.
//
// tax_summary is Σ line.total × tax_rate / 100 for every document type. Line
// totals already include their tax, so the summary re-applies the rate on a
// taxed amount; the figure is kept as-is and pinned by tests until the
// business decides otherwise.
func Aggregate(lines []TaxedLine, globalDiscount, shipping decimal.Decimal) (Totals, error) {
	if verr := ValidateCharges(globalDiscount, shipping); verr != nil {
		return Totals{}, verr
	}
	subtotal := decimal.Zero
	tax := decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Total)
		tax = tax.Add(RoundHalfUp(percentOf(line.Total, line.TaxRate), MoneyPlaces))
	}
	totals := Totals{
		Subtotal:        subtotal,
		TaxSummary:      tax,
		GlobalDiscount:  globalDiscount,
		DiscountAmount:  RoundHalfUp(percentOf(subtotal, globalDiscount), MoneyPlaces),
		ShippingCharges: shipping,
	}
	rounded, adjustment := RoundToWholeUnit(totals.PreRoundTotal())
	totals.RoundingAdjustment = adjustment
	totals.GrandTotal = rounded
	return totals, nil
}

// RoundToWholeUnit rounds pre half-up to a whole currency unit and returns
// the rounded value together with the signed adjustment that closes the gap.
func RoundToWholeUnit(pre decimal.Decimal) (rounded, adjustment decimal.Decimal) {
	whole := RoundHalfUp(pre, 0)
	adjustment = whole.Sub(pre)
	rounded = RoundHalfUp(pre.Add(adjustment), MoneyPlaces)
	return rounded, adjustment
}
