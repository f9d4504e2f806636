package customers

import (
	"time"

	"github.com/shopspring/decimal"
)

type CustomerType string

const (
	CustomerTypeIndividual   CustomerType = "Individual"
	CustomerTypeBusiness     CustomerType = "Business"
	CustomerTypeOrganization CustomerType = "Organization"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Customer is a party quotations, orders and invoices are issued to.
type Customer struct {
	ID              int64           `json:"id"`
	Code            string          `json:"customer_id"`
	FirstName       string          `json:"first_name"`
	LastName        string          `json:"last_name"`
	CustomerType    CustomerType    `json:"customer_type"`
	Status          Status          `json:"status"`
	Email           string          `json:"email"`
	Phone           string          `json:"phone_number"`
	CompanyName     string          `json:"company_name"`
	GSTTaxID        string          `json:"gst_tax_id"`
	BillingAddress  string          `json:"billing_address"`
	ShippingAddress string          `json:"shipping_address"`
	City            string          `json:"city"`
	State           string          `json:"state"`
	ZipCode         string          `json:"zip_code"`
	Country         string          `json:"country"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	PaymentTerms    string          `json:"payment_terms"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// DisplayName is the name printed on documents.
func (c Customer) DisplayName() string {
	if c.CompanyName != "" && c.CustomerType != CustomerTypeIndividual {
		return c.CompanyName
	}
	if c.LastName == "" {
		return c.FirstName
	}
	return c.FirstName + " " + c.LastName
}

// CustomerForm is the create/update payload. The code is always generated.
type CustomerForm struct {
	FirstName       string          `json:"first_name" validate:"required,max=100"`
	LastName        string          `json:"last_name" validate:"max=100"`
	CustomerType    CustomerType    `json:"customer_type" validate:"required,oneof=Individual Business Organization"`
	Status          Status          `json:"status" validate:"omitempty,oneof=Active Inactive"`
	Email           string          `json:"email" validate:"required,email"`
	Phone           string          `json:"phone_number" validate:"required,max=20"`
	CompanyName     string          `json:"company_name" validate:"max=100"`
	GSTTaxID        string          `json:"gst_tax_id" validate:"max=20"`
	BillingAddress  string          `json:"billing_address"`
	ShippingAddress string          `json:"shipping_address"`
	City            string          `json:"city" validate:"max=100"`
	State           string          `json:"state" validate:"max=100"`
	ZipCode         string          `json:"zip_code" validate:"max=10"`
	Country         string          `json:"country" validate:"max=100"`
	CreditLimit     decimal.Decimal `json:"credit_limit"`
	PaymentTerms    string          `json:"payment_terms" validate:"max=50"`
}
