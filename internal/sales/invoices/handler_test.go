package invoices

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/rbac"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func routerAs(svc *Service, principal rbac.Principal) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			ctx := rbac.ContextWithPrincipal(req.Context(), principal)
			next.ServeHTTP(w, req.WithContext(shared.ContextWithActor(ctx, principal.UserID)))
		})
	})
	NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)
	return r
}

func send(h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, target, strings.NewReader(body)))
	return rec
}

func TestHandlerInvoicePayments(t *testing.T) {
	f := newFixture(t)
	h := routerAs(f.svc, rbac.Principal{UserID: 2, Authenticated: true, IsSuperuser: true})

	rec := send(h, http.MethodPost, "/invoices", `{"customer_id":1,"payment_terms":"Net 45","items":[{"product_id":7,"quantity":2,"unit_price":"100","discount":"10"}]}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"invoice_status":"Draft"`)
	assert.Contains(t, rec.Body.String(), `"balance_due":"251"`)
	assert.Contains(t, rec.Body.String(), `"due_date":"2026-06-18"`)

	rec = send(h, http.MethodPost, "/invoices", `{"customer_id":1,"payment_terms":"Net 60","items":[{"product_id":7,"quantity":1}]}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), `"payment_terms"`)

	for _, action := range []string{"submit", "send_invoice"} {
		rec = send(h, http.MethodPost, "/invoices/1/actions", `{"action":"`+action+`"}`)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	rec = send(h, http.MethodPost, "/invoices/1/actions", `{"action":"record_payment","amount":"251"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Body.String(), `"invoice_status":"Paid"`)
	assert.Contains(t, rec.Body.String(), `"payment_status":"Paid"`)

	rec = send(h, http.MethodPost, "/invoices/1/actions", `{"action":"mark_overdue"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Action mark_overdue not allowed in Paid state")

	viewer := rbac.Principal{UserID: 3, Authenticated: true, Role: &rbac.RoleGrant{
		Name:        "Billing viewer",
		Permissions: rbac.Permissions{rbac.CategoryInvoice: {View: true}},
	}}
	h = routerAs(f.svc, viewer)
	assert.Equal(t, http.StatusOK, send(h, http.MethodGet, "/invoices/1", "").Code)
	assert.Equal(t, http.StatusForbidden, send(h, http.MethodPost, "/invoices/1/actions", `{"action":"cancel"}`).Code)
}
