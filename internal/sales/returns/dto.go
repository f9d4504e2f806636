package returns

import (
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type ReturnRequest struct {
	InvoiceID     int64               `json:"invoice_id" validate:"required,gt=0"`
	ReturnDate    shared.Date         `json:"invoice_return_date"`
	CustomerRefNo string              `json:"customer_reference_no" validate:"max=50"`
	ContactPerson string              `json:"contact_person" validate:"max=100"`
	Comment       string              `json:"comment"`
	Lines         []ReturnLineRequest `json:"items" validate:"required,min=1,dive"`
}

type ReturnLineRequest struct {
	InvoiceLineID int64  `json:"invoice_line_id" validate:"required,gt=0"`
	Quantity      int    `json:"returned_qty" validate:"required,min=1"`
	Reason        string `json:"return_reason"`
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

// ListFilters narrows invoice return listings.
type ListFilters = salesShared.ListFilters
