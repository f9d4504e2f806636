package customers

import (
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// normalize validates form and returns the customer it describes.
func (s *Service) normalize(form CustomerForm) (Customer, error) {
	verr := &internalShared.ValidationError{}
	if strings.TrimSpace(form.FirstName) == "" {
		verr.Add("first_name", "This field is required.")
	}
	if strings.TrimSpace(form.Email) == "" {
		verr.Add("email", "This field is required.")
	}
	phone, ok := shared.NormalizePhone(form.Phone, s.phoneRegion)
	if !ok {
		verr.Add("phone_number", "Enter a valid phone number.")
	}
	if form.CreditLimit.IsNegative() {
		verr.Add("credit_limit", "must not be negative")
	}
	if err := verr.Err(); err != nil {
		return Customer{}, err
	}
	status := form.Status
	if status == "" {
		status = StatusActive
	}
	return Customer{
		FirstName:       strings.TrimSpace(form.FirstName),
		LastName:        strings.TrimSpace(form.LastName),
		CustomerType:    form.CustomerType,
		Status:          status,
		Email:           strings.ToLower(strings.TrimSpace(form.Email)),
		Phone:           phone,
		CompanyName:     strings.TrimSpace(form.CompanyName),
		GSTTaxID:        strings.TrimSpace(form.GSTTaxID),
		BillingAddress:  strings.TrimSpace(form.BillingAddress),
		ShippingAddress: strings.TrimSpace(form.ShippingAddress),
		City:            strings.TrimSpace(form.City),
		State:           strings.TrimSpace(form.State),
		ZipCode:         strings.TrimSpace(form.ZipCode),
		Country:         strings.TrimSpace(form.Country),
		CreditLimit:     form.CreditLimit,
		PaymentTerms:    strings.TrimSpace(form.PaymentTerms),
	}, nil
}
