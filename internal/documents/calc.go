package documents

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

var hundred = decimal.NewFromInt(100)

// MoneyPlaces is the currency minor unit used for stored amounts.
const MoneyPlaces = 2

// RoundHalfUp rounds d to places decimals, ties away from zero.
func RoundHalfUp(d decimal.Decimal, places int32) decimal.Decimal {
	return d.Round(places)
}

func percentOf(amount, pct decimal.Decimal) decimal.Decimal {
	return amount.Mul(pct).Shift(-2)
}

// LineInput is the raw pricing of one document line.
type LineInput struct {
	Quantity  int
	UnitPrice decimal.Decimal
	Discount  decimal.Decimal
	TaxRate   decimal.Decimal
}

// LineAmounts is the breakdown produced by CalculateLine.
type LineAmounts struct {
	Subtotal       decimal.Decimal
	DiscountAmount decimal.Decimal
	AfterDiscount  decimal.Decimal
	TaxAmount      decimal.Decimal
	Total          decimal.Decimal
}

// ValidateLine checks the pricing bounds of a line.
func ValidateLine(in LineInput) *shared.ValidationError {
	verr := &shared.ValidationError{}
	if in.Quantity < 1 {
		verr.Add("quantity", "must be at least 1")
	}
	if in.UnitPrice.IsNegative() {
		verr.Add("unit_price", "must not be negative")
	}
	if in.Discount.IsNegative() || in.Discount.GreaterThan(hundred) {
		verr.Add("discount", "must be between 0 and 100")
	}
	if in.TaxRate.IsNegative() || in.TaxRate.GreaterThan(hundred) {
		verr.Add("tax_rate", "must be between 0 and 100")
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// CalculateLine computes subtotal, discount, tax and the 2dp total of a line:
// total = quantity × unit_price × (1 − discount/100) × (1 + tax_rate/100).
func CalculateLine(in LineInput) (LineAmounts, error) {
	if verr := ValidateLine(in); verr != nil {
		return LineAmounts{}, verr
	}
	subtotal := in.UnitPrice.Mul(decimal.NewFromInt(int64(in.Quantity)))
	discount := percentOf(subtotal, in.Discount)
	after := subtotal.Sub(discount)
	tax := percentOf(after, in.TaxRate)
	return LineAmounts{
		Subtotal:       subtotal,
		DiscountAmount: discount,
		AfterDiscount:  after,
		TaxAmount:      tax,
		Total:          RoundHalfUp(after.Add(tax), MoneyPlaces),
	}, nil
}
