package rbac

import (
	"net/http"
	"strings"
)

// RoleGrant is the role attached to a principal.
type RoleGrant struct {
	ID          int64       `json:"id"`
	Name        string      `json:"name"`
	Permissions Permissions `json:"permissions"`
}

// IsAdmin reports whether the role is the built-in administrator role.
func (r *RoleGrant) IsAdmin() bool {
	return r != nil && strings.ToLower(strings.TrimSpace(r.Name)) == "admin"
}

// Principal describes the actor of a request.
type Principal struct {
	UserID        int64      `json:"user_id"`
	Authenticated bool       `json:"authenticated"`
	IsSuperuser   bool       `json:"is_superuser"`
	Role          *RoleGrant `json:"role,omitempty"`
}

// Anonymous is the principal of unauthenticated callers.
var Anonymous = Principal{}

// Request is one authorization question.
type Request struct {
	// Resource is the route-level resource name, for example "quotations".
	Resource string
	Method   string
	// Action marks a POST to an action sub-resource; it requires edit.
	Action bool
}

var publicResources = map[string]struct{}{
	"register":        {},
	"login":           {},
	"forgot-password": {},
	"reset-password":  {},
}

var resourceCategories = map[string]Category{
	"branches":    CategoryMasters,
	"departments": CategoryMasters,

	"users": CategoryUsers,

	"categories":        CategoryInventory,
	"tax-codes":         CategoryInventory,
	"uoms":              CategoryInventory,
	"warehouses":        CategoryInventory,
	"sizes":             CategoryInventory,
	"colors":            CategoryInventory,
	"product-suppliers": CategoryInventory,
	"products":          CategoryInventory,

	"suppliers": CategorySupplier,
	"customers": CategoryCustomer,

	"onboarding": CategoryHR,
	"tasks":      CategoryTask,
	"projects":   CategoryProject,

	"attendance":   CategoryAttendance,
	"check-in-out": CategoryAttendance,

	"dashboard": CategoryDashboard,
	"profile":   CategoryProfile,
	"reports":   CategoryReports,

	"quotations":            CategoryQuotation,
	"sales-orders":          CategorySalesOrder,
	"delivery-notes":        CategoryDeliveryNote,
	"invoices":              CategoryInvoice,
	"invoice-returns":       CategoryInvoiceReturn,
	"delivery-note-returns": CategoryDeliveryNoteReturn,
	"purchase-orders":       CategoryPurchase,
}

// CategoryOf resolves the category guarding resource.
func CategoryOf(resource string) (Category, bool) {
	c, ok := resourceCategories[resource]
	return c, ok
}

// IsPublic reports whether resource is open to anonymous callers.
func IsPublic(resource string) bool {
	_, ok := publicResources[resource]
	return ok
}

// Authorize decides whether p may perform req. It performs no I/O.
func Authorize(p Principal, req Request) bool {
	if p.IsSuperuser {
		return true
	}
	if IsPublic(req.Resource) {
		return true
	}
	if !p.Authenticated {
		return false
	}
	if p.Role == nil {
		return false
	}
	if p.Role.IsAdmin() {
		return true
	}
	category, ok := CategoryOf(req.Resource)
	if !ok {
		return false
	}
	capability := p.Role.Permissions.For(category)
	if capability.FullAccess {
		return true
	}
	switch strings.ToUpper(req.Method) {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return capability.View
	case http.MethodPost:
		if req.Action {
			return capability.Edit
		}
		return capability.Create
	case http.MethodPut, http.MethodPatch:
		return capability.Edit
	case http.MethodDelete:
		return capability.Delete
	default:
		return false
	}
}
