package roles

import (
	"context"
	"encoding/json"
	"fmt"
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

type mockRepo struct {
	roles  map[int64]Role
	nextID int64
}

func newMockRepo() *mockRepo {
	return &mockRepo{roles: map[int64]Role{}, nextID: 1}
}

func (m *mockRepo) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return fn(ctx, m)
}

func (m *mockRepo) ListRoles(_ context.Context, filters ListFilters) ([]Role, error) {
	var out []Role
	for _, r := range m.roles {
		if filters.DepartmentID == nil || *filters.DepartmentID == r.DepartmentID {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *mockRepo) GetRole(_ context.Context, id int64) (Role, error) {
	r, ok := m.roles[id]
	if !ok {
		return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return r, nil
}

func (m *mockRepo) CreateRole(_ context.Context, role Role) (Role, error) {
	for _, r := range m.roles {
		if r.DepartmentID == role.DepartmentID && r.Name == role.Name {
			return Role{}, fmt.Errorf("role name already exists in department: %w", shared.ErrDuplicate)
		}
	}
	role.ID = m.nextID
	m.nextID++
	m.roles[role.ID] = role
	return role, nil
}

func (m *mockRepo) UpdateRole(_ context.Context, role Role) error {
	if _, ok := m.roles[role.ID]; !ok {
		return shared.ErrNotFound
	}
	m.roles[role.ID] = role
	return nil
}

func (m *mockRepo) DeleteRole(_ context.Context, id int64) error {
	delete(m.roles, id)
	return nil
}

type countingInvalidator struct{ calls int }

func (c *countingInvalidator) InvalidateAll(context.Context) error {
	c.calls++
	return nil
}

func TestCreateRoleUniquePerDepartment(t *testing.T) {
	audit := &shared.MemoryAuditor{}
	svc := NewService(newMockRepo(), audit, nil)
	ctx := shared.ContextWithActor(context.Background(), 7)

	perms := json.RawMessage(`{"quotation":{"view":true,"create":true,"edit":true}}`)
	role, err := svc.CreateRole(ctx, RoleForm{DepartmentID: 1, Name: "Sales Executive", Permissions: perms})
	require.NoError(t, err)
	assert.True(t, role.Permissions.For(rbac.CategoryQuotation).Edit)
	require.Len(t, audit.Logs, 1)
	assert.Equal(t, "role.create", audit.Logs[0].Action)
	assert.Equal(t, int64(7), audit.Logs[0].ActorID)

	_, err = svc.CreateRole(ctx, RoleForm{DepartmentID: 1, Name: "Sales Executive"})
	assert.ErrorIs(t, err, shared.ErrDuplicate)

	_, err = svc.CreateRole(ctx, RoleForm{DepartmentID: 2, Name: "Sales Executive"})
	assert.NoError(t, err)
}

func TestCreateRoleRejectsUnknownCategory(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)
	_, err := svc.CreateRole(context.Background(), RoleForm{
		DepartmentID: 1,
		Name:         "Odd",
		Permissions:  json.RawMessage(`{"payroll":{"view":true}}`),
	})
	var verr *shared.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Contains(t, verr.Fields, "permissions.payroll")
}

func TestUpdateAndDeleteInvalidatePrincipals(t *testing.T) {
	cache := &countingInvalidator{}
	svc := NewService(newMockRepo(), &shared.MemoryAuditor{}, cache)
	ctx := context.Background()

	role, err := svc.CreateRole(ctx, RoleForm{DepartmentID: 1, Name: "Clerk"})
	require.NoError(t, err)
	assert.Zero(t, cache.calls)

	updated, err := svc.UpdateRole(ctx, role.ID, RoleForm{DepartmentID: 1, Name: "Senior Clerk", Permissions: json.RawMessage(`{"invoice":{"full_access":true}}`)})
	require.NoError(t, err)
	assert.Equal(t, "Senior Clerk", updated.Name)
	assert.Equal(t, 1, cache.calls)

	require.NoError(t, svc.DeleteRole(ctx, role.ID))
	assert.Equal(t, 2, cache.calls)

	_, err = svc.GetRole(ctx, role.ID)
	assert.ErrorIs(t, err, shared.ErrNotFound)
}

func TestRolesRequireAdmin(t *testing.T) {
	svc := NewService(newMockRepo(), nil, nil)
	serve := func(p rbac.Principal, method, body string) int {
		r := chi.NewRouter()
		r.Use(func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
				next.ServeHTTP(w, req.WithContext(rbac.ContextWithPrincipal(req.Context(), p)))
			})
		})
		NewHandler(nil, svc, rbac.Middleware{}).MountRoutes(r)
		rec := httptest.NewRecorder()
		r.ServeHTTP(rec, httptest.NewRequest(method, "/roles", strings.NewReader(body)))
		return rec.Code
	}

	fullAccess := rbac.Permissions{}
	for _, c := range rbac.Categories() {
		fullAccess[c] = rbac.Capability{FullAccess: true}
	}
	manager := rbac.Principal{UserID: 2, Authenticated: true, Role: &rbac.RoleGrant{ID: 3, Name: "Manager", Permissions: fullAccess}}
	admin := rbac.Principal{UserID: 1, Authenticated: true, Role: &rbac.RoleGrant{ID: 1, Name: " Admin "}}

	assert.Equal(t, http.StatusForbidden, serve(manager, http.MethodGet, ""))
	assert.Equal(t, http.StatusOK, serve(admin, http.MethodGet, ""))
	assert.Equal(t, http.StatusCreated, serve(admin, http.MethodPost, `{"department_id":1,"name":"Auditor","permissions":{"reports":{"view":true}}}`))
	assert.Equal(t, http.StatusBadRequest, serve(admin, http.MethodPost, `{"department_id":1,"name":"Broken","permissions":{"reports":{"approve":true}}}`))
}
