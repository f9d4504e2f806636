package notes

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// NoteRequest creates or edits a delivery note. Notes generated from a sales
// order keep their lines; Lines must then be empty on update.
type NoteRequest struct {
	CustomerID         int64                   `json:"customer_id" validate:"required,gt=0"`
	DeliveryDate       shared.Date             `json:"delivery_date"`
	DeliveryType       DeliveryType            `json:"delivery_type" validate:"omitempty,oneof=Regular Urgent Return"`
	DestinationAddress string                  `json:"destination_address"`
	ReceivedBy         string                  `json:"received_by" validate:"max=100"`
	ContactNumber      string                  `json:"contact_number" validate:"max=20"`
	GlobalDiscount     decimal.Decimal         `json:"global_discount"`
	ShippingCharges    decimal.Decimal         `json:"shipping_charges"`
	Comment            string                  `json:"comment"`
	Lines              []documents.LineRequest `json:"items" validate:"omitempty,dive"`
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

// ListFilters narrows delivery note listings.
type ListFilters = salesShared.ListFilters
