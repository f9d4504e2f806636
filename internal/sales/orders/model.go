package orders

import (
	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type SalesOrderStatus string

const (
	SalesOrderStatusDraft              SalesOrderStatus = "Draft"
	SalesOrderStatusReadyToSubmit      SalesOrderStatus = "Ready to Submit"
	SalesOrderStatusSubmitted          SalesOrderStatus = "Submitted"
	SalesOrderStatusSubmittedPD        SalesOrderStatus = "Submitted(PD)"
	SalesOrderStatusPartiallyDelivered SalesOrderStatus = "Partially Delivered"
	SalesOrderStatusDelivered          SalesOrderStatus = "Delivered"
	SalesOrderStatusCancelled          SalesOrderStatus = "Cancelled"
)

type Action string

const (
	ActionSaveDraft         Action = "save_draft"
	ActionSubmit            Action = "submit"
	ActionSubmitPD          Action = "submit_pd"
	ActionCancel            Action = "cancel"
	ActionGeneratePO        Action = "generate_po"
	ActionConvertToDelivery Action = "convert_to_delivery"
	ActionConvertToInvoice  Action = "convert_to_invoice"
)

type rule = documents.Rule[SalesOrderStatus, Action]

var (
	open      = []SalesOrderStatus{SalesOrderStatusDraft, SalesOrderStatusReadyToSubmit}
	submitted = []SalesOrderStatus{SalesOrderStatusSubmitted, SalesOrderStatusSubmittedPD}
	shipping  = []SalesOrderStatus{SalesOrderStatusSubmitted, SalesOrderStatusSubmittedPD, SalesOrderStatusPartiallyDelivered}
)

// Machine is the sales order transition table.
var Machine = documents.NewMachine[SalesOrderStatus, Action]("sales_order",
	[]SalesOrderStatus{
		SalesOrderStatusDraft, SalesOrderStatusReadyToSubmit, SalesOrderStatusSubmitted, SalesOrderStatusSubmittedPD,
		SalesOrderStatusPartiallyDelivered, SalesOrderStatusDelivered, SalesOrderStatusCancelled,
	},
	rule{From: []SalesOrderStatus{SalesOrderStatusDraft}, Action: ActionSaveDraft},
	rule{From: []SalesOrderStatus{SalesOrderStatusDraft}, Action: ActionGeneratePO, To: []SalesOrderStatus{SalesOrderStatusReadyToSubmit}},
	rule{From: open, Action: ActionSubmit, To: []SalesOrderStatus{SalesOrderStatusSubmitted}},
	rule{From: open, Action: ActionSubmitPD, To: []SalesOrderStatus{SalesOrderStatusSubmittedPD}},
	rule{From: append(append([]SalesOrderStatus{}, open...), submitted...), Action: ActionCancel, To: []SalesOrderStatus{SalesOrderStatusCancelled}},
	rule{From: shipping, Action: ActionConvertToDelivery, To: []SalesOrderStatus{SalesOrderStatusDelivered, SalesOrderStatusPartiallyDelivered}},
	rule{From: shipping, Action: ActionConvertToInvoice},
)

// Editable reports whether lines and header may still change.
func Editable(s SalesOrderStatus) bool {
	return s == SalesOrderStatusDraft || s == SalesOrderStatusReadyToSubmit
}

type OrderType string

const (
	OrderTypeStandard  OrderType = "Standard"
	OrderTypeRush      OrderType = "Rush"
	OrderTypeBackorder OrderType = "Backorder"
)

// OrderLine is a priced line with its fulfilment progress.
type OrderLine struct {
	documents.Line
	DeliveredQty int `json:"delivered_qty"`
	InvoicedQty  int `json:"invoiced_qty"`
}

// Undelivered is the quantity still to ship.
func (l OrderLine) Undelivered() int { return max(l.Quantity-l.DeliveredQty, 0) }

// Uninvoiced is the quantity still to bill.
func (l OrderLine) Uninvoiced() int { return max(l.Quantity-l.InvoicedQty, 0) }

type SalesOrder struct {
	documents.Header
	CustomerID       int64                    `json:"customer_id"`
	QuotationID      *int64                   `json:"quotation_id"`
	OrderDate        shared.Date              `json:"order_date"`
	DueDate          shared.Date              `json:"due_date"`
	ExpectedDelivery shared.Date              `json:"expected_delivery"`
	OrderType        OrderType                `json:"order_type"`
	Currency         string                   `json:"currency"`
	PaymentMethod    string                   `json:"payment_method"`
	ShippingMethod   string                   `json:"shipping_method"`
	InternalNotes    string                   `json:"internal_notes"`
	CustomerNotes    string                   `json:"customer_notes"`
	Status           SalesOrderStatus         `json:"status"`
	Lines            []OrderLine              `json:"items"`
	Comments         []documents.Comment      `json:"comments,omitempty"`
	History          []documents.HistoryEntry `json:"history,omitempty"`
}

// PricedLines returns the priced part of every line.
func PricedLines(lines []OrderLine) []documents.Line {
	out := make([]documents.Line, len(lines))
	for i, l := range lines {
		out[i] = l.Line
	}
	return out
}

// Progress is the delivered and invoiced quantity added to one line.
type Progress struct {
	LineID    int64
	Delivered int
	Invoiced  int
}
