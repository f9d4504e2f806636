package quotations

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type QuotationRequest struct {
	CustomerID      int64                   `json:"customer_id" validate:"required,gt=0"`
	Date            shared.Date             `json:"quotation_date"`
	ExpiryDate      shared.Date             `json:"expiry_date"`
	GlobalDiscount  decimal.Decimal         `json:"global_discount"`
	ShippingCharges decimal.Decimal         `json:"shipping_charges"`
	Notes           string                  `json:"notes"`
	Comment         string                  `json:"comment"`
	Lines           []documents.LineRequest `json:"items" validate:"required,min=1,dive"`
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

// ListFilters narrows quotation listings.
type ListFilters = salesShared.ListFilters
