package returns

import (
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

// Machine is the delivery note return transition table.
var Machine = documents.NewMachine[ReturnStatus, Action]("delivery_note_return",
	[]ReturnStatus{ReturnStatusDraft, ReturnStatusSubmitted, ReturnStatusCancelled},
	rule{From: []ReturnStatus{ReturnStatusDraft}, Action: ActionSaveDraft},
	rule{From: []ReturnStatus{ReturnStatusDraft}, Action: ActionSubmit, To: []ReturnStatus{ReturnStatusSubmitted}},
	rule{From: []ReturnStatus{ReturnStatusDraft, ReturnStatusSubmitted}, Action: ActionCancel, To: []ReturnStatus{ReturnStatusCancelled}},
)

// ReturnLine is goods coming back. Quantity is the returned quantity and
// never exceeds InvoicedQty.
type ReturnLine struct {
	documents.Line
	InvoicedQty int    `json:"invoiced_qty"`
	Reason      string `json:"return_reason"`
}

type DeliveryNoteReturn struct {
	documents.Header
	InvoiceReturnID   *int64                   `json:"invoice_return_id"`
	InvoiceReturnCode string                   `json:"invoice_return_code,omitempty"`
	CustomerID        int64                    `json:"customer_id"`
	ReturnDate        shared.Date              `json:"dnr_date"`
	CustomerRefNo     string                   `json:"customer_reference_no"`
	Email             string                   `json:"email_id"`
	PhoneNumber       string                   `json:"phone_number"`
	ContactPerson     string                   `json:"contact_person"`
	Status            ReturnStatus             `json:"status"`
	Lines             []ReturnLine             `json:"items"`
	Comments          []documents.Comment      `json:"remarks,omitempty"`
	History           []documents.HistoryEntry `json:"history,omitempty"`
}

// Stock sums the returned quantity per product.
func (r DeliveryNoteReturn) Stock() map[int64]int {
	out := make(map[int64]int, len(r.Lines))
	for _, l := range r.Lines {
		out[l.ProductID] += l.Quantity
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
