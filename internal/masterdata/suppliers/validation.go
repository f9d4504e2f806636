package suppliers

import (
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func (s *Service) normalize(form SupplierForm) (Supplier, error) {
	verr := &internalShared.ValidationError{}
	if strings.TrimSpace(form.Name) == "" {
		verr.Add("supplier_name", "This field is required.")
	}
	if strings.TrimSpace(form.TaxID) == "" {
		verr.Add("tax_id", "This field is required.")
	}
	phone, ok := shared.NormalizePhone(form.ContactPhone, s.phoneRegion)
	if !ok {
		verr.Add("primary_contact_phone", "Enter a valid phone number.")
	}
	if err := verr.Err(); err != nil {
		return Supplier{}, err
	}
	sup := Supplier{
		TaxID:             strings.ToUpper(strings.TrimSpace(form.TaxID)),
		Name:              strings.TrimSpace(form.Name),
		LegalEntityName:   strings.TrimSpace(form.LegalEntityName),
		SupplierType:      form.SupplierType,
		Status:            form.Status,
		ContactFirstName:  strings.TrimSpace(form.ContactFirstName),
		ContactLastName:   strings.TrimSpace(form.ContactLastName),
		ContactEmail:      strings.ToLower(strings.TrimSpace(form.ContactEmail)),
		ContactPhone:      phone,
		RegisteredAddress: strings.TrimSpace(form.RegisteredAddress),
		PaymentTerms:      form.PaymentTerms,
		Currency:          form.Currency,
	}
	if sup.SupplierType == "" {
		sup.SupplierType = "Manufacturer"
	}
	if sup.Status == "" {
		sup.Status = StatusActive
	}
	if sup.PaymentTerms == "" {
		sup.PaymentTerms = "Net 30"
	}
	if sup.Currency == "" {
		sup.Currency = "INR"
	}
	return sup, nil
}
