package quotations

import (
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type QuotationStatus string

const (
	QuotationStatusDraft     QuotationStatus = "Draft"
	QuotationStatusSubmitted QuotationStatus = "Submitted"
	QuotationStatusApproved  QuotationStatus = "Approved"
	QuotationStatusRejected  QuotationStatus = "Rejected"
	QuotationStatusConverted QuotationStatus = "Converted to SO"
	QuotationStatusExpired   QuotationStatus = "Expired"
)

type Action string

const (
	ActionSaveDraft   Action = "save_draft"
	ActionSubmit      Action = "submit"
	ActionApprove     Action = "approve"
	ActionReject      Action = "reject"
	ActionRevise      Action = "revise"
	ActionConvertToSO Action = "convert_to_so"
)

// Machine is the quotation transition table.
var Machine = documents.NewMachine[QuotationStatus, Action]("quotation",
	[]QuotationStatus{
		QuotationStatusDraft, QuotationStatusSubmitted, QuotationStatusApproved,
		QuotationStatusRejected, QuotationStatusConverted, QuotationStatusExpired,
	},
	documents.Rule[QuotationStatus, Action]{From: []QuotationStatus{QuotationStatusDraft}, Action: ActionSaveDraft},
	documents.Rule[QuotationStatus, Action]{From: []QuotationStatus{QuotationStatusDraft}, Action: ActionSubmit, To: []QuotationStatus{QuotationStatusSubmitted}},
	documents.Rule[QuotationStatus, Action]{From: []QuotationStatus{QuotationStatusSubmitted}, Action: ActionApprove, To: []QuotationStatus{QuotationStatusApproved}},
	documents.Rule[QuotationStatus, Action]{From: []QuotationStatus{QuotationStatusSubmitted}, Action: ActionReject, To: []QuotationStatus{QuotationStatusRejected}},
	documents.Rule[QuotationStatus, Action]{From: []QuotationStatus{QuotationStatusSubmitted}, Action: ActionRevise, To: []QuotationStatus{QuotationStatusSubmitted}},
	documents.Rule[QuotationStatus, Action]{From: []QuotationStatus{QuotationStatusApproved}, Action: ActionConvertToSO, To: []QuotationStatus{QuotationStatusConverted}},
)

// Editable reports whether the quotation body may still change.
func Editable(s QuotationStatus) bool {
	return s == QuotationStatusDraft || s == QuotationStatusSubmitted
}

// expirable lists the statuses the expiry sweep moves to Expired.
var expirable = []QuotationStatus{QuotationStatusDraft, QuotationStatusSubmitted, QuotationStatusApproved}

type Quotation struct {
	documents.Header
	CustomerID   int64                    `json:"customer_id"`
	Date         shared.Date              `json:"quotation_date"`
	ExpiryDate   shared.Date              `json:"expiry_date"`
	Status       QuotationStatus          `json:"status"`
	ReviseCount  int                      `json:"revise_count"`
	SalesOrderID *int64                   `json:"sales_order_id"`
	Notes        string                   `json:"notes"`
	Lines        []documents.Line         `json:"items"`
	Revisions    []Revision               `json:"revisions,omitempty"`
	Comments     []documents.Comment      `json:"comments,omitempty"`
	History      []documents.HistoryEntry `json:"history,omitempty"`
}

// Expired reports whether the quotation is past its expiry date on today.
func (q Quotation) Expired(today shared.Date) bool {
	return !q.ExpiryDate.IsZero() && q.ExpiryDate.Before(today)
}

// Revision is appended every time a submitted quotation is revised.
type Revision struct {
	ID         int64           `json:"id"`
	RevisionNo int             `json:"revision_no"`
	Comment    string          `json:"comment"`
	Status     QuotationStatus `json:"status"`
	CreatedBy  int64           `json:"created_by"`
	CreatedAt  time.Time       `json:"created_at"`
}

// Expiry is a quotation moved to Expired by the sweep.
type Expiry struct {
	ID   int64
	From QuotationStatus
}
