package invoices

import (
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	salesShared "github.com/odyssey-erp/odyssey-crm/internal/sales/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type InvoiceRequest struct {
	CustomerID      int64                   `json:"customer_id" validate:"required,gt=0"`
	InvoiceDate     shared.Date             `json:"invoice_date"`
	DueDate         shared.Date             `json:"due_date"`
	PaymentTerms    PaymentTerms            `json:"payment_terms" validate:"omitempty,oneof='Net 15' 'Net 20' 'Net 30' 'Net 45' 'Due on Receipt'"`
	PaymentMethod   string                  `json:"payment_method" validate:"omitempty,oneof='Credit Card' 'Bank Transfer' COD PayPal"`
	Currency        string                  `json:"currency" validate:"omitempty,oneof=INR USD EUR GBP SGD"`
	CustomerRefNo   string                  `json:"customer_ref_no" validate:"max=50"`
	TermsConditions string                  `json:"terms_conditions"`
	BillingAddress  string                  `json:"billing_address"`
	ShippingAddress string                  `json:"shipping_address"`
	GlobalDiscount  decimal.Decimal         `json:"global_discount"`
	ShippingCharges decimal.Decimal         `json:"shipping_charges"`
	Comment         string                  `json:"comment"`
	Lines           []documents.LineRequest `json:"items" validate:"required,min=1,dive"`
}

// ActionRequest drives the invoice workflow. Amount is read by
// record_payment only.
type ActionRequest struct {
	Action          Action          `json:"action" validate:"required"`
	Amount          decimal.Decimal `json:"amount"`
	PaymentRef      string          `json:"payment_ref_number" validate:"max=50"`
	TransactionDate shared.Date     `json:"transaction_date"`
	Comment         string          `json:"comment"`
}

type CommentRequest struct {
	Comment string `json:"comment" validate:"required"`
}

type EmailRequest struct {
	To string `json:"to" validate:"omitempty,email"`
}

// ListFilters narrows invoice listings.
type ListFilters = salesShared.ListFilters
