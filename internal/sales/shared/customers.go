package shared

import (
	"context"
	"errors"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/customers"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// CustomerDirectory resolves the customers sales documents are issued to.
type CustomerDirectory interface {
	Get(ctx context.Context, id int64) (customers.Customer, error)
}

// RequireCustomer loads the customer of a document. An unknown id is a
// validation error on customer_id.
func RequireCustomer(ctx context.Context, dir CustomerDirectory, id int64) (customers.Customer, error) {
	if id <= 0 {
		return customers.Customer{}, internalShared.NewValidationError("customer_id", "This field is required.")
	}
	if dir == nil {
		return customers.Customer{ID: id}, nil
	}
	c, err := dir.Get(ctx, id)
	if errors.Is(err, internalShared.ErrNotFound) {
		return customers.Customer{}, internalShared.NewValidationError("customer_id", "customer not found")
	}
	return c, err
}

// Recipient picks the explicit address or falls back to the customer email.
func Recipient(ctx context.Context, dir CustomerDirectory, customerID int64, to string) (string, error) {
	if to != "" || dir == nil {
		return to, nil
	}
	c, err := dir.Get(ctx, customerID)
	if err != nil && !errors.Is(err, internalShared.ErrNotFound) {
		return "", err
	}
	return c.Email, nil
}

// PartyName returns the display name of the customer, or "" when unknown.
func PartyName(ctx context.Context, dir CustomerDirectory, customerID int64) string {
	if dir == nil {
		return ""
	}
	c, err := dir.Get(ctx, customerID)
	if err != nil {
		return ""
	}
	return c.DisplayName()
}
