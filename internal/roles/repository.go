package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/rbac"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const nameConstraint = "roles_department_id_name_key"

// RepositoryPort defines data access methods for roles.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	ListRoles(ctx context.Context, filters ListFilters) ([]Role, error)
	GetRole(ctx context.Context, id int64) (Role, error)
	CreateRole(ctx context.Context, role Role) (Role, error)
	UpdateRole(ctx context.Context, role Role) error
	DeleteRole(ctx context.Context, id int64) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx, r)
	})
}

const selectRole = `SELECT id, department_id, name, description, permissions, created_at, updated_at FROM roles`

// ListRoles returns roles ordered by department and name.
func (r *Repository) ListRoles(ctx context.Context, filters ListFilters) ([]Role, error) {
	query := selectRole
	var args []any
	if filters.DepartmentID != nil {
		query += ` WHERE department_id = $1`
		args = append(args, *filters.DepartmentID)
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, query+` ORDER BY department_id, name`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var roles []Role
	for rows.Next() {
		role, err := scanRole(rows)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, rows.Err()
}

func (r *Repository) GetRole(ctx context.Context, id int64) (Role, error) {
	role, err := scanRole(db.Conn(ctx, r.pool).QueryRow(ctx, selectRole+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Role{}, fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return role, err
}

// CreateRole inserts a new role.
func (r *Repository) CreateRole(ctx context.Context, role Role) (Role, error) {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return Role{}, err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO roles (department_id, name, description, permissions)
VALUES ($1, $2, $3, $4) RETURNING id, created_at, updated_at`,
		role.DepartmentID, role.Name, role.Description, perms).Scan(&role.ID, &role.CreatedAt, &role.UpdatedAt)
	if err != nil {
		return Role{}, mapWriteError(err)
	}
	return role, nil
}

func (r *Repository) UpdateRole(ctx context.Context, role Role) error {
	perms, err := json.Marshal(role.Permissions)
	if err != nil {
		return err
	}
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE roles SET department_id = $1, name = $2, description = $3, permissions = $4, updated_at = NOW()
WHERE id = $5`, role.DepartmentID, role.Name, role.Description, perms, role.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", role.ID, shared.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteRole(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM roles WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("role %d: %w", id, shared.ErrNotFound)
	}
	return nil
}

func scanRole(row pgx.Row) (Role, error) {
	var (
		role Role
		raw  []byte
	)
	if err := row.Scan(&role.ID, &role.DepartmentID, &role.Name, &role.Description, &raw, &role.CreatedAt, &role.UpdatedAt); err != nil {
		return Role{}, err
	}
	perms, err := rbac.ParsePermissions(raw)
	if err != nil {
		return Role{}, fmt.Errorf("role %d permissions: %w", role.ID, err)
	}
	role.Permissions = perms
	return role, nil
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, nameConstraint) {
		return fmt.Errorf("role name already exists in department: %w", shared.ErrDuplicate)
	}
	return err
}
