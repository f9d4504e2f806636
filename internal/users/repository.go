package users

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const emailConstraint = "users_email_key"

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const selectUser = `SELECT id, email, first_name, last_name, is_superuser, is_active, role_id, branch_id, department_id,
available_branches, password_hash, created_at, updated_at FROM users`

var sortColumns = map[string]string{"email": "email", "first_name": "first_name", "created_at": "created_at"}

// ListUsers returns a page of users.
func (r *Repository) ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("(email ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ?)", "%"+filters.Search+"%")
	}
	if filters.DepartmentID != nil {
		where.Add("department_id = ?", *filters.DepartmentID)
	}
	if filters.IsActive != nil {
		where.Add("is_active = ?", *filters.IsActive)
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM users`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectUser+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "email")+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var users []User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, err
		}
		users = append(users, u)
	}
	return users, total, rows.Err()
}

func (r *Repository) GetUser(ctx context.Context, id int64) (User, error) {
	u, err := scanUser(db.Conn(ctx, r.pool).QueryRow(ctx, selectUser+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return User{}, fmt.Errorf("user %d: %w", id, internalShared.ErrNotFound)
	}
	return u, err
}

func (r *Repository) CreateUser(ctx context.Context, u User) (User, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO users
(email, first_name, last_name, is_superuser, is_active, role_id, branch_id, department_id, available_branches, password_hash)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id, created_at, updated_at`,
		u.Email, u.FirstName, u.LastName, u.IsSuperuser, u.IsActive, u.RoleID, u.BranchID, u.DepartmentID,
		branches(u.AvailableBranches), u.PasswordHash).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return User{}, mapWriteError(err)
	}
	return u, nil
}

func (r *Repository) UpdateUser(ctx context.Context, u User) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE users SET email = $1, first_name = $2, last_name = $3, is_superuser = $4,
is_active = $5, role_id = $6, branch_id = $7, department_id = $8, available_branches = $9, password_hash = $10, updated_at = NOW()
WHERE id = $11`,
		u.Email, u.FirstName, u.LastName, u.IsSuperuser, u.IsActive, u.RoleID, u.BranchID, u.DepartmentID,
		branches(u.AvailableBranches), u.PasswordHash, u.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", u.ID, internalShared.ErrNotFound)
	}
	return nil
}

func (r *Repository) DeleteUser(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("user %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanUser(row pgx.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Email, &u.FirstName, &u.LastName, &u.IsSuperuser, &u.IsActive, &u.RoleID, &u.BranchID,
		&u.DepartmentID, &u.AvailableBranches, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt)
	return u, err
}

// branches keeps the column NOT NULL.
func branches(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, emailConstraint) {
		return fmt.Errorf("user email already exists: %w", internalShared.ErrDuplicate)
	}
	return err
}
