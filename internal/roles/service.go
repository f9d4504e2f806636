package roles

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/odyssey-erp/odyssey-crm/internal/rbac"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// PrincipalInvalidator drops cached principals after role changes.
type PrincipalInvalidator interface {
	InvalidateAll(ctx context.Context) error
}

// Service handles role business logic.
type Service struct {
	repo  RepositoryPort
	audit shared.Auditor
	cache PrincipalInvalidator
}

// NewService builds Service instance. cache may be nil.
func NewService(repo RepositoryPort, audit shared.Auditor, cache PrincipalInvalidator) *Service {
	return &Service{repo: repo, audit: audit, cache: cache}
}

// ListRoles returns all roles.
func (s *Service) ListRoles(ctx context.Context, filters ListFilters) ([]Role, error) {
	return s.repo.ListRoles(ctx, filters)
}

func (s *Service) GetRole(ctx context.Context, id int64) (Role, error) {
	return s.repo.GetRole(ctx, id)
}

// CreateRole validates the permission document and stores the role.
func (s *Service) CreateRole(ctx context.Context, form RoleForm) (Role, error) {
	role, err := normalize(form)
	if err != nil {
		return Role{}, err
	}
	var created Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		created, err = repo.CreateRole(ctx, role)
		if err != nil {
			return err
		}
		return s.record(ctx, "role.create", created)
	})
	if err != nil {
		return Role{}, err
	}
	return created, nil
}

func (s *Service) UpdateRole(ctx context.Context, id int64, form RoleForm) (Role, error) {
	role, err := normalize(form)
	if err != nil {
		return Role{}, err
	}
	role.ID = id
	var updated Role
	err = s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		if err := repo.UpdateRole(ctx, role); err != nil {
			return err
		}
		if updated, err = repo.GetRole(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, "role.update", updated)
	})
	if err != nil {
		return Role{}, err
	}
	s.invalidate(ctx)
	return updated, nil
}

func (s *Service) DeleteRole(ctx context.Context, id int64) error {
	err := s.repo.WithTx(ctx, func(ctx context.Context, repo RepositoryPort) error {
		role, err := repo.GetRole(ctx, id)
		if err != nil {
			return err
		}
		if err := repo.DeleteRole(ctx, id); err != nil {
			return err
		}
		return s.record(ctx, "role.delete", role)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx)
	return nil
}

func (s *Service) record(ctx context.Context, action string, role Role) error {
	if s.audit == nil {
		return nil
	}
	return s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "role",
		EntityID: strconv.FormatInt(role.ID, 10),
		Meta:     map[string]any{"name": role.Name, "department_id": role.DepartmentID},
	})
}

// invalidate is best effort; cached principals expire on their own TTL.
func (s *Service) invalidate(ctx context.Context) {
	if s.cache != nil {
		_ = s.cache.InvalidateAll(ctx)
	}
}

func normalize(form RoleForm) (Role, error) {
	verr := &shared.ValidationError{}
	role := Role{
		DepartmentID: form.DepartmentID,
		Name:         strings.TrimSpace(form.Name),
		Description:  strings.TrimSpace(form.Description),
	}
	if role.DepartmentID <= 0 {
		verr.Add("department_id", "This field is required.")
	}
	if role.Name == "" {
		verr.Add("name", "This field is required.")
	}
	perms, err := rbac.ParsePermissions(form.Permissions)
	var permErr *shared.ValidationError
	if errors.As(err, &permErr) {
		verr.Merge("", permErr)
	}
	if err := verr.Err(); err != nil {
		return Role{}, err
	}
	role.Permissions = perms
	return role, nil
}
