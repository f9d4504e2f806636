package orders

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type SalesOrderRequest struct {
	CustomerID       int64                   `json:"customer_id" validate:"required,gt=0"`
	OrderDate        shared.Date             `json:"order_date"`
	DueDate          shared.Date             `json:"due_date"`
	ExpectedDelivery shared.Date             `json:"expected_delivery"`
	OrderType        OrderType               `json:"order_type" validate:"omitempty,oneof=Standard Rush Backorder"`
	Currency         string                  `json:"currency" validate:"omitempty,oneof=INR USD EUR GBP SGD"`
	PaymentMethod    string                  `json:"payment_method" validate:"max=50"`
	ShippingMethod   string                  `json:"shipping_method" validate:"max=50"`
	InternalNotes    string                  `json:"internal_notes"`
	CustomerNotes    string                  `json:"customer_notes"`
	GlobalDiscount   decimal.Decimal         `json:"global_discount"`
	ShippingCharges  decimal.Decimal         `json:"shipping_charges"`
	Comment          string                  `json:"comment"`
	Lines            []documents.LineRequest `json:"items" validate:"required,min=1,dive"`
}

type ActionRequest struct {
	Action  Action `json:"action" validate:"required"`
	Partial bool   `json:"partial"`
	Comment string `json:"comment"`
}

// ActionResponse is the order after an action together with the document
// the action produced, if any.
type ActionResponse struct {
	SalesOrder
	Created *documents.Ref `json:"created,omitempty"`
}

type CommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type EmailRequest struct {
	To string `json:"to" validate:"omitempty,email"`
}

// ListFilters narrows sales order listings.
type ListFilters = salesShared.ListFilters
