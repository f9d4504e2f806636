package users

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// RepositoryPort defines data access methods for users.
type RepositoryPort interface {
	ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, int, error)
	GetUser(ctx context.Context, id int64) (User, error)
	CreateUser(ctx context.Context, u User) (User, error)
	UpdateUser(ctx context.Context, u User) error
	DeleteUser(ctx context.Context, id int64) error
}

// PrincipalInvalidator drops the cached principal of changed users.
type PrincipalInvalidator interface {
	Invalidate(ctx context.Context, userIDs ...int64) error
}

// Service handles user business logic.
type Service struct {
	repo  RepositoryPort
	audit internalShared.Auditor
	cache PrincipalInvalidator
	cost  int
}

// NewService builds Service instance. audit and cache may be nil.
func NewService(repo RepositoryPort, audit internalShared.Auditor, cache PrincipalInvalidator) *Service {
	return &Service{repo: repo, audit: audit, cache: cache, cost: bcrypt.DefaultCost}
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, int, error) {
	return s.repo.ListUsers(ctx, filters)
}

func (s *Service) GetUser(ctx context.Context, id int64) (User, error) {
	return s.repo.GetUser(ctx, id)
}

// CreateUser hashes the password and stores the account. A password is required.
func (s *Service) CreateUser(ctx context.Context, form UserForm) (User, error) {
	u, err := s.normalize(form, true)
	if err != nil {
		return User{}, err
	}
	u.IsActive = form.IsActive == nil || *form.IsActive
	created, err := s.repo.CreateUser(ctx, u)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.create", created)
	return created, nil
}

// UpdateUser keeps the stored password hash when no new password is given.
func (s *Service) UpdateUser(ctx context.Context, id int64, form UserForm) (User, error) {
	existing, err := s.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	u, err := s.normalize(form, false)
	if err != nil {
		return User{}, err
	}
	u.ID = id
	u.IsActive = existing.IsActive
	if form.IsActive != nil {
		u.IsActive = *form.IsActive
	}
	if u.PasswordHash == "" {
		u.PasswordHash = existing.PasswordHash
	}
	if err := s.repo.UpdateUser(ctx, u); err != nil {
		return User{}, err
	}
	s.invalidate(ctx, id)
	s.record(ctx, "user.update", u)
	return s.repo.GetUser(ctx, id)
}

func (s *Service) DeleteUser(ctx context.Context, id int64) error {
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, id)
	s.record(ctx, "user.delete", User{ID: id})
	return nil
}

func (s *Service) normalize(form UserForm, requirePassword bool) (User, error) {
	verr := &internalShared.ValidationError{}
	u := User{
		Email:             strings.ToLower(strings.TrimSpace(form.Email)),
		FirstName:         strings.TrimSpace(form.FirstName),
		LastName:          strings.TrimSpace(form.LastName),
		IsSuperuser:       form.IsSuperuser,
		RoleID:            form.RoleID,
		BranchID:          form.BranchID,
		DepartmentID:      form.DepartmentID,
		AvailableBranches: dedupe(form.AvailableBranches),
	}
	if u.Email == "" {
		verr.Add("email", "This field is required.")
	}
	if u.FirstName == "" {
		verr.Add("first_name", "This field is required.")
	}
	if requirePassword && form.Password == "" {
		verr.Add("password", "This field is required.")
	}
	if form.Password != form.ConfirmPassword {
		verr.Add("confirm_password", "Passwords do not match.")
	}
	if u.BranchID != nil && len(u.AvailableBranches) > 0 && !contains(u.AvailableBranches, *u.BranchID) {
		verr.Add("branch_id", "must be one of the available branches")
	}
	if err := verr.Err(); err != nil {
		return User{}, err
	}
	if form.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(form.Password), s.cost)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = string(hash)
	}
	return u, nil
}

// invalidate is best effort; cached principals expire on their own TTL.
func (s *Service) invalidate(ctx context.Context, id int64) {
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
}

func (s *Service) record(ctx context.Context, action string, u User) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, internalShared.AuditLog{
		ActorID:  internalShared.ActorFromContext(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(u.ID, 10),
		Meta:     map[string]any{"email": u.Email, "is_superuser": u.IsSuperuser},
	})
}

func dedupe(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func contains(ids []int64, id int64) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}
