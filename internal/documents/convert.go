package documents

import (
	"github.com/shopspring/decimal"
)

// Ref identifies a stored document.
type Ref struct {
	ID   int64  `json:"id"`
	Code string `json:"code"`
}

// SourceLine is a line copied from another document. SourceLineID points at
// the originating line so progress can be tracked on it.
type SourceLine struct {
	SourceLineID int64
	Line         Line
}

// Conversion carries a document into a new draft of the next type in the
// chain, for example a quotation into a sales order.
type Conversion struct {
	SourceID        int64
	SourceCode      string
	CustomerID      int64
	GlobalDiscount  decimal.Decimal
	ShippingCharges decimal.Decimal
	Lines           []SourceLine
}

// WithQuantity returns a copy of line priced for qty.
func WithQuantity(line Line, qty int) (Line, error) {
	line.ID = 0
	line.Quantity = qty
	if err := line.Recalculate(); err != nil {
		return Line{}, err
	}
	return line, nil
}

// ConvertedLines returns the lines of c ready to be inserted.
func (c Conversion) ConvertedLines() []Line {
	lines := make([]Line, len(c.Lines))
	for i, src := range c.Lines {
		line := src.Line
		line.ID = 0
		lines[i] = line
	}
	return lines
}
