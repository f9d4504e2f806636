package notes

import (
	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type NoteStatus string

const (
	NoteStatusDraft     NoteStatus = "Draft"
	NoteStatusSubmitted NoteStatus = "Submitted"
	NoteStatusCancelled NoteStatus = "Cancelled"
)

type Action string

const (
	ActionSaveDraft Action = "save_draft"
	ActionSubmit    Action = "submit"
	ActionCancel    Action = "cancel"
)

type rule = documents.Rule[NoteStatus, Action]

// Machine is the delivery note transition table.
var Machine = documents.NewMachine[NoteStatus, Action]("delivery_note",
	[]NoteStatus{NoteStatusDraft, NoteStatusSubmitted, NoteStatusCancelled},
	rule{From: []NoteStatus{NoteStatusDraft}, Action: ActionSaveDraft},
	rule{From: []NoteStatus{NoteStatusDraft}, Action: ActionSubmit, To: []NoteStatus{NoteStatusSubmitted}},
	rule{From: []NoteStatus{NoteStatusDraft, NoteStatusSubmitted}, Action: ActionCancel, To: []NoteStatus{NoteStatusCancelled}},
)

type DeliveryType string

const (
	DeliveryTypeRegular DeliveryType = "Regular"
	DeliveryTypeUrgent  DeliveryType = "Urgent"
	DeliveryTypeReturn  DeliveryType = "Return"
)

// NoteLine is a shipped line, linked to its sales order line when the note
// was generated from an order.
type NoteLine struct {
	documents.Line
	SalesOrderLineID *int64 `json:"sales_order_line_id,omitempty"`
}

type DeliveryNote struct {
	documents.Header
	SalesOrderID       *int64                   `json:"sales_order_id"`
	SalesOrderCode     string                   `json:"sales_order_code,omitempty"`
	CustomerID         int64                    `json:"customer_id"`
	DeliveryDate       shared.Date              `json:"delivery_date"`
	DeliveryType       DeliveryType             `json:"delivery_type"`
	DestinationAddress string                   `json:"destination_address"`
	ReceivedBy         string                   `json:"received_by"`
	ContactNumber      string                   `json:"contact_number"`
	Status             NoteStatus               `json:"delivery_status"`
	Lines              []NoteLine               `json:"items"`
	Comments           []documents.Comment      `json:"remarks,omitempty"`
	History            []documents.HistoryEntry `json:"history,omitempty"`
}

// PricedLines returns the priced part of every line.
func PricedLines(lines []NoteLine) []documents.Line {
	out := make([]documents.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}
