package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PrincipalSource resolves the principal of a user id.
type PrincipalSource interface {
	LoadPrincipal(ctx context.Context, userID int64) (Principal, error)
}

// Service loads principals from the users and roles tables.
type Service struct {
	pool *pgxpool.Pool
}

// NewService constructs a Service backed by the provided pool.
func NewService(pool *pgxpool.Pool) *Service {
	return &Service{pool: pool}
}

// LoadPrincipal returns the principal of userID. Unknown or inactive users
// resolve to Anonymous.
func (s *Service) LoadPrincipal(ctx context.Context, userID int64) (Principal, error) {
	var (
		p        Principal
		isActive bool
		roleID   *int64
		roleName *string
		rawPerms []byte
	)
	err := s.pool.QueryRow(ctx, `SELECT u.id, u.is_superuser, u.is_active, r.id, r.name, r.permissions
FROM users u LEFT JOIN roles r ON r.id = u.role_id
WHERE u.id = $1`, userID).Scan(&p.UserID, &p.IsSuperuser, &isActive, &roleID, &roleName, &rawPerms)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Anonymous, nil
		}
		return Principal{}, fmt.Errorf("rbac: load principal: %w", err)
	}
	if !isActive {
		return Anonymous, nil
	}
	p.Authenticated = true
	if roleID != nil {
		perms, err := ParsePermissions(rawPerms)
		if err != nil {
			return Principal{}, fmt.Errorf("rbac: role %d permissions: %w", *roleID, err)
		}
		p.Role = &RoleGrant{ID: *roleID, Permissions: perms}
		if roleName != nil {
			p.Role.Name = *roleName
		}
	}
	return p, nil
}
