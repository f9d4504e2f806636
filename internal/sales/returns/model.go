package returns

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type ReturnStatus string

const (
	ReturnStatusDraft     ReturnStatus = "Draft"
	ReturnStatusSubmitted ReturnStatus = "Submitted"
	ReturnStatusCancelled ReturnStatus = "Cancelled"
)

type Action string

const (
	ActionSaveDraft Action = "save_draft"
	ActionSubmit    Action = "submit"
	ActionCancel    Action = "cancel"
)

type rule = documents.Rule[ReturnStatus, Action]

// Machine is the invoice return transition table. A submitted return can
// only be cancelled.
var Machine = documents.NewMachine[ReturnStatus, Action]("invoice_return",
	[]ReturnStatus{ReturnStatusDraft, ReturnStatusSubmitted, ReturnStatusCancelled},
	rule{From: []ReturnStatus{ReturnStatusDraft}, Action: ActionSaveDraft},
	rule{From: []ReturnStatus{ReturnStatusDraft}, Action: ActionSubmit, To: []ReturnStatus{ReturnStatusSubmitted}},
	rule{From: []ReturnStatus{ReturnStatusDraft, ReturnStatusSubmitted}, Action: ActionCancel, To: []ReturnStatus{ReturnStatusCancelled}},
)

// ReturnLine is an invoice line being returned. Quantity is the returned
// quantity; InvoicedQty is the quantity on the invoice line.
type ReturnLine struct {
	documents.Line
	InvoiceLineID int64  `json:"invoice_line_id"`
	InvoicedQty   int    `json:"invoiced_qty"`
	Reason        string `json:"return_reason"`
}

type InvoiceReturn struct {
	documents.Header
	InvoiceID          int64                    `json:"invoice_id"`
	InvoiceCode        string                   `json:"invoice_code"`
	SalesOrderID       *int64                   `json:"sales_order_id"`
	CustomerID         int64                    `json:"customer_id"`
	ReturnDate         shared.Date              `json:"invoice_return_date"`
	CustomerRefNo      string                   `json:"customer_reference_no"`
	ContactPerson      string                   `json:"contact_person"`
	OriginalGrandTotal decimal.Decimal          `json:"original_grand_total"`
	AmountToRefund     decimal.Decimal          `json:"amount_to_refund"`
	Status             ReturnStatus             `json:"status"`
	Lines              []ReturnLine             `json:"items"`
	Comments           []documents.Comment      `json:"comments,omitempty"`
	History            []documents.HistoryEntry `json:"history,omitempty"`
}

// Refund is the amount credited back: the returned line totals less the
// global discount. Line totals already carry their tax.
func (r InvoiceReturn) Refund() decimal.Decimal {
	return documents.RoundHalfUp(r.Subtotal.Sub(r.DiscountAmount), documents.MoneyPlaces)
}

// Quantities maps invoice line ids to returned quantities, negated when
// sign is negative.
func (r InvoiceReturn) Quantities(sign int) map[int64]int {
	out := make(map[int64]int, len(r.Lines))
	for _, l := range r.Lines {
		out[l.InvoiceLineID] += sign * l.Quantity
	}
	return out
}

// PricedLines returns the priced part of every line.
func PricedLines(lines []ReturnLine) []documents.Line {
	out := make([]documents.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}
