package departments

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

const nameConstraint = "departments_name_key"

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Department, int, error)
	Get(ctx context.Context, id int64) (Department, error)
	Create(ctx context.Context, d Department) (Department, error)
	Update(ctx context.Context, d Department) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectDepartment = `SELECT id, name, description, created_at, updated_at FROM departments`

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Department, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("name ILIKE ?", "%"+filters.Search+"%")
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM departments`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectDepartment+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, map[string]string{"name": "name"}, "name")+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Department
	for rows.Next() {
		d, err := scanDepartment(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, d)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Department, error) {
	d, err := scanDepartment(db.Conn(ctx, r.pool).QueryRow(ctx, selectDepartment+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Department{}, fmt.Errorf("department %d: %w", id, internalShared.ErrNotFound)
	}
	return d, err
}

func (r *repository) Create(ctx context.Context, d Department) (Department, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO departments (name, description) VALUES ($1, $2)
RETURNING id, created_at, updated_at`, d.Name, d.Description).Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err != nil {
		return Department{}, mapWriteError(err)
	}
	return d, nil
}

func (r *repository) Update(ctx context.Context, d Department) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE departments SET name = $1, description = $2, updated_at = NOW() WHERE id = $3`,
		d.Name, d.Description, d.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("department %d: %w", d.ID, internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM departments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("department %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanDepartment(row pgx.Row) (Department, error) {
	var d Department
	err := row.Scan(&d.ID, &d.Name, &d.Description, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, nameConstraint) {
		return fmt.Errorf("department name already exists: %w", internalShared.ErrDuplicate)
	}
	return err
}
