package invoices

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type InvoiceStatus string

const (
	InvoiceStatusDraft     InvoiceStatus = "Draft"
	InvoiceStatusSubmitted InvoiceStatus = "Submitted"
	InvoiceStatusSent      InvoiceStatus = "Sent"
	InvoiceStatusOverdue   InvoiceStatus = "Overdue"
	InvoiceStatusPaid      InvoiceStatus = "Paid"
	InvoiceStatusCancelled InvoiceStatus = "Cancelled"
)

type Action string

const (
	ActionSaveDraft     Action = "save_draft"
	ActionSubmit        Action = "submit"
	ActionSendInvoice   Action = "send_invoice"
	ActionMarkOverdue   Action = "mark_overdue"
	ActionMarkAsPaid    Action = "mark_as_paid"
	ActionRecordPayment Action = "record_payment"
	ActionCancel        Action = "cancel"
)

type rule = documents.Rule[InvoiceStatus, Action]

var (
	live = []InvoiceStatus{InvoiceStatusDraft, InvoiceStatusSubmitted, InvoiceStatusSent, InvoiceStatusOverdue}
	due  = []InvoiceStatus{InvoiceStatusSent, InvoiceStatusOverdue}
)

// Machine is the invoice_status transition table. record_payment keeps the
// current status unless the balance is settled.
var Machine = documents.NewMachine[InvoiceStatus, Action]("invoice",
	[]InvoiceStatus{
		InvoiceStatusDraft, InvoiceStatusSubmitted, InvoiceStatusSent, InvoiceStatusOverdue,
		InvoiceStatusPaid, InvoiceStatusCancelled,
	},
	rule{From: []InvoiceStatus{InvoiceStatusDraft}, Action: ActionSaveDraft},
	rule{From: []InvoiceStatus{InvoiceStatusDraft}, Action: ActionSubmit, To: []InvoiceStatus{InvoiceStatusSubmitted}},
	rule{From: []InvoiceStatus{InvoiceStatusSubmitted}, Action: ActionSendInvoice, To: []InvoiceStatus{InvoiceStatusSent}},
	rule{From: []InvoiceStatus{InvoiceStatusSent}, Action: ActionMarkOverdue, To: []InvoiceStatus{InvoiceStatusOverdue}},
	rule{From: due, Action: ActionMarkAsPaid, To: []InvoiceStatus{InvoiceStatusPaid}},
	rule{From: []InvoiceStatus{InvoiceStatusSent}, Action: ActionRecordPayment, To: []InvoiceStatus{InvoiceStatusSent, InvoiceStatusPaid}},
	rule{From: []InvoiceStatus{InvoiceStatusOverdue}, Action: ActionRecordPayment, To: []InvoiceStatus{InvoiceStatusOverdue, InvoiceStatusPaid}},
	rule{From: live, Action: ActionCancel, To: []InvoiceStatus{InvoiceStatusCancelled}},
)

// Editable reports whether lines and header may still change.
func Editable(s InvoiceStatus) bool { return s == InvoiceStatusDraft }

// Returnable reports whether invoice returns may reference an invoice in s.
func Returnable(s InvoiceStatus) bool {
	return s != InvoiceStatusDraft && s != InvoiceStatusCancelled
}

type PaymentStatus string

const (
	PaymentStatusUnpaid  PaymentStatus = "Unpaid"
	PaymentStatusPartial PaymentStatus = "Partial"
	PaymentStatusPaid    PaymentStatus = "Paid"
)

type PaymentTerms string

const (
	PaymentTermsNet15        PaymentTerms = "Net 15"
	PaymentTermsNet20        PaymentTerms = "Net 20"
	PaymentTermsNet30        PaymentTerms = "Net 30"
	PaymentTermsNet45        PaymentTerms = "Net 45"
	PaymentTermsDueOnReceipt PaymentTerms = "Due on Receipt"
)

var termDays = map[PaymentTerms]int{
	PaymentTermsNet15:        15,
	PaymentTermsNet20:        20,
	PaymentTermsNet30:        30,
	PaymentTermsNet45:        45,
	PaymentTermsDueOnReceipt: 0,
}

// DueDate returns the due date implied by terms for an invoice dated on.
func (t PaymentTerms) DueDate(on shared.Date) shared.Date {
	return shared.NewDate(on.AddDate(0, 0, termDays[t]))
}

// InvoiceLine is a priced line with the quantity already returned.
type InvoiceLine struct {
	documents.Line
	SalesOrderLineID *int64 `json:"sales_order_line_id,omitempty"`
	ReturnedQty      int    `json:"returned_qty"`
}

// Returnable is the quantity that may still be returned.
func (l InvoiceLine) Returnable() int { return max(l.Quantity-l.ReturnedQty, 0) }

type Invoice struct {
	documents.Header
	CustomerID        int64                    `json:"customer_id"`
	SalesOrderID      *int64                   `json:"sales_order_id"`
	InvoiceDate       shared.Date              `json:"invoice_date"`
	DueDate           shared.Date              `json:"due_date"`
	PaymentTerms      PaymentTerms             `json:"payment_terms"`
	PaymentMethod     string                   `json:"payment_method"`
	Currency          string                   `json:"currency"`
	CustomerRefNo     string                   `json:"customer_ref_no"`
	TermsConditions   string                   `json:"terms_conditions"`
	BillingAddress    string                   `json:"billing_address"`
	ShippingAddress   string                   `json:"shipping_address"`
	Status            InvoiceStatus            `json:"invoice_status"`
	PaymentStatus     PaymentStatus            `json:"payment_status"`
	PaymentRef        string                   `json:"payment_ref_number"`
	TransactionDate   shared.Date              `json:"transaction_date"`
	CreditNoteApplied decimal.Decimal          `json:"credit_note_applied"`
	AmountPaid        decimal.Decimal          `json:"amount_paid"`
	BalanceDue        decimal.Decimal          `json:"balance_due"`
	Lines             []InvoiceLine            `json:"items"`
	Comments          []documents.Comment      `json:"remarks,omitempty"`
	History           []documents.HistoryEntry `json:"history,omitempty"`
}

// Payable is the grand total less credit notes, never negative.
func (inv Invoice) Payable() decimal.Decimal {
	return decimal.Max(inv.GrandTotal.Sub(inv.CreditNoteApplied), decimal.Zero)
}

// Settle derives balance_due and payment_status from the amounts.
func (inv *Invoice) Settle() {
	inv.BalanceDue = decimal.Max(inv.Payable().Sub(inv.AmountPaid), decimal.Zero)
	switch {
	case inv.BalanceDue.IsZero():
		inv.PaymentStatus = PaymentStatusPaid
	case inv.AmountPaid.IsPositive():
		inv.PaymentStatus = PaymentStatusPartial
	default:
		inv.PaymentStatus = PaymentStatusUnpaid
	}
}

// PricedLines returns the priced part of every line.
func PricedLines(lines []InvoiceLine) []documents.Line {
	out := make([]documents.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}
