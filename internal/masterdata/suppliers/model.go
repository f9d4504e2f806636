package suppliers

import (
	"time"
)

type Status string

const (
	StatusActive   Status = "Active"
	StatusInactive Status = "Inactive"
)

// Supplier represents a supplier entity
type Supplier struct {
	ID                int64     `json:"id"`
	Code              string    `json:"supplier_id"`
	TaxID             string    `json:"tax_id"`
	Name              string    `json:"supplier_name"`
	LegalEntityName   string    `json:"legal_entity_name"`
	SupplierType      string    `json:"supplier_type"`
	Status            Status    `json:"status"`
	ContactFirstName  string    `json:"primary_contact_first_name"`
	ContactLastName   string    `json:"primary_contact_last_name"`
	ContactEmail      string    `json:"primary_contact_email"`
	ContactPhone      string    `json:"primary_contact_phone"`
	RegisteredAddress string    `json:"registered_address"`
	PaymentTerms      string    `json:"payment_terms"`
	Currency          string    `json:"currency"`
	CreatedAt         time.Time `json:"created_at"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// SupplierForm is the create/update payload. The code is always generated.
type SupplierForm struct {
	TaxID             string `json:"tax_id" validate:"required,max=30"`
	Name              string `json:"supplier_name" validate:"required,max=200"`
	LegalEntityName   string `json:"legal_entity_name" validate:"required,max=200"`
	SupplierType      string `json:"supplier_type" validate:"omitempty,oneof=Manufacturer Distributor Wholesaler 'Service Provider'"`
	Status            Status `json:"status" validate:"omitempty,oneof=Active Inactive"`
	ContactFirstName  string `json:"primary_contact_first_name" validate:"required,max=100"`
	ContactLastName   string `json:"primary_contact_last_name" validate:"max=100"`
	ContactEmail      string `json:"primary_contact_email" validate:"required,email"`
	ContactPhone      string `json:"primary_contact_phone" validate:"required,max=20"`
	RegisteredAddress string `json:"registered_address" validate:"required"`
	PaymentTerms      string `json:"payment_terms" validate:"omitempty,oneof='Net 15' 'Net 30' 'Net 45' 'Net 60' Advance"`
	Currency          string `json:"currency" validate:"omitempty,oneof=USD EUR INR GBP SGD"`
}
