package returns

import (
	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// ReturnRequest creates or edits a delivery note return. The customer is
// taken from the invoice return when one is referenced.
type ReturnRequest struct {
	InvoiceReturnID *int64              `json:"invoice_return_id" validate:"omitempty,gt=0"`
	CustomerID      int64               `json:"customer_id" validate:"omitempty,gt=0"`
	ReturnDate      shared.Date         `json:"dnr_date"`
	CustomerRefNo   string              `json:"customer_reference_no" validate:"max=50"`
	Email           string              `json:"email_id" validate:"omitempty,email"`
	PhoneNumber     string              `json:"phone_number" validate:"max=20"`
	ContactPerson   string              `json:"contact_person" validate:"max=100"`
	Comment         string              `json:"comment"`
	Lines           []ReturnLineRequest `json:"items" validate:"required,min=1,dive"`
}

// ReturnLineRequest is a returned product. A zero InvoicedQty defaults to
// the invoiced quantity on the referenced invoice return, or to Quantity.
type ReturnLineRequest struct {
	documents.LineRequest
	InvoicedQty int    `json:"invoiced_qty" validate:"min=0"`
	Reason      string `json:"return_reason"`
}

type ActionRequest struct {
	Action  Action `json:"action" validate:"required"`
	Comment string `json:"comment"`
}

type CommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type EmailRequest struct {
	To string `json:"to" validate:"omitempty,email"`
}

// ListFilters narrows delivery note return listings.
type ListFilters = salesShared.ListFilters
