package rbac

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// Category is a closed set of permission groups a role grants capabilities on.
type Category string

const (
	CategoryMasters            Category = "masters"
	CategoryUsers              Category = "users"
	CategoryInventory          Category = "inventory"
	CategorySupplier           Category = "supplier"
	CategoryCustomer           Category = "customer"
	CategoryHR                 Category = "hr"
	CategoryTask               Category = "task"
	CategoryProject            Category = "project"
	CategoryAttendance         Category = "attendance"
	CategoryDashboard          Category = "dashboard"
	CategoryProfile            Category = "profile"
	CategoryReports            Category = "reports"
	CategoryQuotation          Category = "quotation"
	CategorySalesOrder         Category = "sales_order"
	CategoryDeliveryNote       Category = "delivery_note"
	CategoryInvoice            Category = "invoice"
	CategoryInvoiceReturn      Category = "invoice_return"
	CategoryDeliveryNoteReturn Category = "delivery_note_return"
	CategoryPurchase           Category = "purchase"
)

var categories = []Category{
	CategoryMasters, CategoryUsers, CategoryInventory, CategorySupplier, CategoryCustomer,
	CategoryHR, CategoryTask, CategoryProject, CategoryAttendance, CategoryDashboard,
	CategoryProfile, CategoryReports, CategoryQuotation, CategorySalesOrder,
	CategoryDeliveryNote, CategoryInvoice, CategoryInvoiceReturn,
	CategoryDeliveryNoteReturn, CategoryPurchase,
}

var knownCategories = func() map[Category]struct{} {
	set := make(map[Category]struct{}, len(categories))
	for _, c := range categories {
		set[c] = struct{}{}
	}
	return set
}()

// Categories lists every category in declaration order.
func Categories() []Category {
	return append([]Category(nil), categories...)
}

// Valid reports whether c belongs to the closed category set.
func (c Category) Valid() bool {
	_, ok := knownCategories[c]
	return ok
}

// Capability is the fixed permission record held per category.
type Capability struct {
	View       bool `json:"view"`
	Create     bool `json:"create"`
	Edit       bool `json:"edit"`
	Delete     bool `json:"delete"`
	FullAccess bool `json:"full_access"`
}

// Permissions maps categories to capabilities. A missing category grants nothing.
type Permissions map[Category]Capability

// Validate rejects categories outside the closed set.
func (p Permissions) Validate() error {
	verr := &shared.ValidationError{}
	keys := make([]string, 0, len(p))
	for c := range p {
		keys = append(keys, string(c))
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !Category(k).Valid() {
			verr.Add("permissions."+k, "unknown permission category")
		}
	}
	return verr.Err()
}

// ParsePermissions decodes and validates a permissions document. Unknown
// capability keys are rejected as well as unknown categories.
func ParsePermissions(raw []byte) (Permissions, error) {
	if len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null")) {
		return Permissions{}, nil
	}
	var loose map[string]json.RawMessage
	if err := json.Unmarshal(raw, &loose); err != nil {
		return nil, shared.NewValidationError("permissions", "must be an object keyed by category")
	}
	perms := make(Permissions, len(loose))
	verr := &shared.ValidationError{}
	for key, body := range loose {
		category := Category(key)
		if !category.Valid() {
			verr.Add("permissions."+key, "unknown permission category")
			continue
		}
		dec := json.NewDecoder(bytes.NewReader(body))
		dec.DisallowUnknownFields()
		var capability Capability
		if err := dec.Decode(&capability); err != nil {
			verr.Add("permissions."+key, fmt.Sprintf("invalid capability record: %v", err))
			continue
		}
		perms[category] = capability
	}
	if err := verr.Err(); err != nil {
		return nil, err
	}
	return perms, nil
}

// For returns the capability for c, zero when absent.
func (p Permissions) For(c Category) Capability {
	if p == nil {
		return Capability{}
	}
	return p[c]
}
