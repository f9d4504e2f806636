// Package sequence allocates human-readable, monotonically increasing
// document identifiers such as QUO0001, SO-0001 or SUP-0001.
package sequence

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Kind names an entity type that receives sequential identifiers.
type Kind string

const (
	KindQuotation          Kind = "quotation"
	KindSalesOrder         Kind = "sales_order"
	KindDeliveryNote       Kind = "delivery_note"
	KindInvoice            Kind = "invoice"
	KindInvoiceReturn      Kind = "invoice_return"
	KindDeliveryNoteReturn Kind = "delivery_note_return"
	KindSupplier           Kind = "supplier"
	KindCustomer           Kind = "customer"
	KindCandidate          Kind = "candidate"
	KindEnquiry            Kind = "enquiry"
	KindProduct            Kind = "product"
	KindPurchaseOrder      Kind = "purchase_order"
)

// Width is the zero padding applied to every numeric suffix.
const Width = 4

// Spec describes how a kind is rendered and where its codes live.
type Spec struct {
	Prefix string
	// Table and Column locate existing codes used to seed a missing counter.
	// Kinds owned by other services leave them empty.
	Table  string
	Column string
}

// Constraint is the unique constraint guarding the code column.
func (s Spec) Constraint() string {
	if s.Table == "" {
		return ""
	}
	return s.Table + "_" + s.Column + "_key"
}

var registry = map[Kind]Spec{
	KindQuotation:          {Prefix: "QUO", Table: "quotations", Column: "code"},
	KindSalesOrder:         {Prefix: "SO-", Table: "sales_orders", Column: "code"},
	KindDeliveryNote:       {Prefix: "DN-", Table: "delivery_notes", Column: "code"},
	KindInvoice:            {Prefix: "INV-", Table: "invoices", Column: "code"},
	KindInvoiceReturn:      {Prefix: "INVR-", Table: "invoice_returns", Column: "code"},
	KindDeliveryNoteReturn: {Prefix: "DNR-", Table: "delivery_note_returns", Column: "code"},
	KindSupplier:           {Prefix: "SUP-", Table: "suppliers", Column: "code"},
	KindCustomer:           {Prefix: "CUS", Table: "customers", Column: "code"},
	KindCandidate:          {Prefix: "STA"},
	KindEnquiry:            {Prefix: "ENQ"},
	KindProduct:            {Prefix: "CVB", Table: "products", Column: "code"},
	KindPurchaseOrder:      {Prefix: "PO-", Table: "purchase_orders", Column: "code"},
}

// Lookup returns the prefix and backing column registered for kind.
func Lookup(kind Kind) (Spec, error) {
	spec, ok := registry[kind]
	if !ok {
		return Spec{}, fmt.Errorf("sequence: unknown kind %q", kind)
	}
	return spec, nil
}

// Constraint returns the unique constraint name for kind, or "" when unknown.
func Constraint(kind Kind) string {
	spec, _ := Lookup(kind)
	return spec.Constraint()
}

// Format renders the n-th identifier of kind.
func Format(kind Kind, n int64) (string, error) {
	spec, err := Lookup(kind)
	if err != nil {
		return "", err
	}
	if n < 1 {
		return "", fmt.Errorf("sequence: %s value %d out of range", kind, n)
	}
	return fmt.Sprintf("%s%0*d", spec.Prefix, Width, n), nil
}

// Parse extracts the numeric suffix of a code of kind.
func Parse(kind Kind, code string) (int64, bool) {
	spec, err := Lookup(kind)
	if err != nil {
		return 0, false
	}
	suffix, ok := strings.CutPrefix(code, spec.Prefix)
	if !ok || suffix == "" {
		return 0, false
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// Allocator hands out the next identifier of a kind.
type Allocator interface {
	Next(ctx context.Context, kind Kind) (string, error)
}

type retryObserver interface {
	ObserveRetry(kind Kind)
}

// NoteRetry tells allocators that track collisions that a code of kind was
// rejected by the unique constraint and the write is being repeated.
func NoteRetry(a Allocator, kind Kind) {
	if r, ok := a.(retryObserver); ok {
		r.ObserveRetry(kind)
	}
}
