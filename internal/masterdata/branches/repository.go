package branches

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

const codeConstraint = "branches_code_key"

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]Branch, int, error)
	Get(ctx context.Context, id int64) (Branch, error)
	Create(ctx context.Context, branch Branch) (Branch, error)
	Update(ctx context.Context, id int64, branch Branch) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

var sortColumns = map[string]string{"code": "code", "name": "name"}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Branch, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("(name ILIKE ? OR code ILIKE ?)", "%"+filters.Search+"%")
	}
	conn := db.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM branches`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, args := where.Page(filters.PageRequest)
	query := `SELECT id, code, name, address, created_at, updated_at FROM branches` + where.SQL() +
		shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "name") + page
	rows, err := conn.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var branches []Branch
	for rows.Next() {
		var b Branch
		if err := rows.Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt); err != nil {
			return nil, 0, err
		}
		branches = append(branches, b)
	}
	return branches, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Branch, error) {
	var b Branch
	err := db.Conn(ctx, r.db).QueryRow(ctx, `SELECT id, code, name, address, created_at, updated_at FROM branches WHERE id = $1`, id).
		Scan(&b.ID, &b.Code, &b.Name, &b.Address, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Branch{}, fmt.Errorf("branch %d: %w", id, internalShared.ErrNotFound)
	}
	return b, err
}

func (r *repository) Create(ctx context.Context, branch Branch) (Branch, error) {
	err := db.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO branches (code, name, address) VALUES ($1, $2, $3)
RETURNING id, created_at, updated_at`, branch.Code, branch.Name, branch.Address).Scan(&branch.ID, &branch.CreatedAt, &branch.UpdatedAt)
	if err != nil {
		return Branch{}, mapWriteError(err)
	}
	return branch, nil
}

func (r *repository) Update(ctx context.Context, id int64, branch Branch) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE branches SET code = $1, name = $2, address = $3, updated_at = NOW() WHERE id = $4`,
		branch.Code, branch.Name, branch.Address, id)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("branch %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM branches WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("branch %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, codeConstraint) {
		return fmt.Errorf("branch code already exists: %w", internalShared.ErrDuplicate)
	}
	return err
}
