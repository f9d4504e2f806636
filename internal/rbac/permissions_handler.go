package rbac

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
)

// PermissionsHandler exposes the permission vocabulary used by role editors.
type PermissionsHandler struct {
	rbac Middleware
}

// NewPermissionsHandler builds PermissionsHandler instance.
func NewPermissionsHandler(rbac Middleware) *PermissionsHandler {
	return &PermissionsHandler{rbac: rbac}
}

// MountRoutes registers permission routes.
func (h *PermissionsHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require("roles")).Get("/permissions/categories", h.listCategories)
}

type categoryView struct {
	Category     Category `json:"category"`
	Capabilities []string `json:"capabilities"`
}

func (h *PermissionsHandler) listCategories(w http.ResponseWriter, r *http.Request) {
	out := make([]categoryView, 0, len(categories))
	for _, c := range categories {
		out = append(out, categoryView{
			Category:     c,
			Capabilities: []string{"view", "create", "edit", "delete", "full_access"},
		})
	}
	httpx.JSON(w, http.StatusOK, out)
}
