package roles

import (
	"encoding/json"
	"time"

	"github.com/odyssey-erp/odyssey-crm/internal/rbac"
)

// Role represents a role for management.
type Role struct {
	ID           int64            `json:"id"`
	DepartmentID int64            `json:"department_id"`
	Name         string           `json:"name"`
	Description  string           `json:"description"`
	Permissions  rbac.Permissions `json:"permissions"`
	CreatedAt    time.Time        `json:"created_at"`
	UpdatedAt    time.Time        `json:"updated_at"`
}

// RoleForm is the create/update payload. Permissions are decoded strictly by
// the service so unknown categories and capability keys are reported.
type RoleForm struct {
	DepartmentID int64           `json:"department_id" validate:"required,gt=0"`
	Name         string          `json:"name" validate:"required,max=100"`
	Description  string          `json:"description"`
	Permissions  json.RawMessage `json:"permissions"`
}

// ListFilters narrows role listings.
type ListFilters struct {
	DepartmentID *int64
}
