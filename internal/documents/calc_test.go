package documents

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func TestCalculateLine(t *testing.T) {
	tests := []struct {
		name  string
		input LineInput
		total string
		tax   string
	}{
		{"discount then tax", LineInput{Quantity: 2, UnitPrice: dec("100.00"), Discount: dec("10"), TaxRate: dec("18")}, "212.40", "32.4"},
		{"rounds half up", LineInput{Quantity: 3, UnitPrice: dec("19.99"), TaxRate: dec("5")}, "62.97", "2.9985"},
		{"sub cent rounds up", LineInput{Quantity: 1, UnitPrice: dec("0.005")}, "0.01", "0"},
		{"full discount", LineInput{Quantity: 4, UnitPrice: dec("10"), Discount: dec("100"), TaxRate: dec("18")}, "0", "0"},
		{"zero price", LineInput{Quantity: 5, UnitPrice: decimal.Zero, TaxRate: dec("18")}, "0", "0"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CalculateLine(tt.input)
			require.NoError(t, err)
			assert.True(t, dec(tt.total).Equal(got.Total), "total %s", got.Total)
			assert.True(t, dec(tt.tax).Equal(got.TaxAmount), "tax %s", got.TaxAmount)
		})
	}
}

func TestCalculateLineMatchesClosedFormAndNeverNegative(t *testing.T) {
	quantities := []int{1, 2, 7, 250}
	prices := []string{"0", "0.01", "19.99", "1234.565"}
	rates := []string{"0", "5", "12.5", "18", "100"}
	for _, q := range quantities {
		for _, p := range prices {
			for _, d := range rates {
				for _, tax := range rates {
					in := LineInput{Quantity: q, UnitPrice: dec(p), Discount: dec(d), TaxRate: dec(tax)}
					got, err := CalculateLine(in)
					require.NoError(t, err)

					one := decimal.NewFromInt(1)
					want := decimal.NewFromInt(int64(q)).Mul(dec(p)).
						Mul(one.Sub(dec(d).Div(hundred))).
						Mul(one.Add(dec(tax).Div(hundred))).
						Round(2)
					assert.True(t, want.Equal(got.Total), "q=%d p=%s d=%s t=%s got %s want %s", q, p, d, tax, got.Total, want)
					assert.False(t, got.Total.IsNegative())
				}
			}
		}
	}
}

func TestCalculateLineRejectsInvalidInput(t *testing.T) {
	_, err := CalculateLine(LineInput{Quantity: 0, UnitPrice: dec("-1"), Discount: dec("101"), TaxRate: dec("-0.5")})
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrValidation))

	var verr *shared.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Fields, 4)
	assert.Contains(t, verr.Fields, "quantity")
	assert.Contains(t, verr.Fields, "unit_price")
	assert.Contains(t, verr.Fields, "discount")
	assert.Contains(t, verr.Fields, "tax_rate")
}
