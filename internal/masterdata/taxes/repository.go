package taxes

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

const nameConstraint = "tax_codes_name_key"

type Repository interface {
	List(ctx context.Context, filters shared.ListFilters) ([]TaxCode, int, error)
	Get(ctx context.Context, id int64) (TaxCode, error)
	Create(ctx context.Context, tax TaxCode) (TaxCode, error)
	Update(ctx context.Context, tax TaxCode) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

const selectTax = `SELECT id, name, percentage, description, created_at, updated_at FROM tax_codes`

var sortColumns = map[string]string{"name": "name", "percentage": "percentage", "created_at": "created_at"}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]TaxCode, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("name ILIKE ?", "%"+filters.Search+"%")
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM tax_codes`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectTax+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "name")+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []TaxCode
	for rows.Next() {
		t, err := scanTax(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, t)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (TaxCode, error) {
	t, err := scanTax(db.Conn(ctx, r.pool).QueryRow(ctx, selectTax+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return TaxCode{}, fmt.Errorf("tax code %d: %w", id, internalShared.ErrNotFound)
	}
	return t, err
}

func (r *repository) Create(ctx context.Context, tax TaxCode) (TaxCode, error) {
	now := time.Now()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO tax_codes (name, percentage, description, created_at, updated_at)
VALUES ($1, $2, $3, $4, $4) RETURNING id`, tax.Name, tax.Percentage, tax.Description, now).Scan(&tax.ID)
	if err != nil {
		return TaxCode{}, mapWriteError(err)
	}
	tax.CreatedAt, tax.UpdatedAt = now, now
	return tax, nil
}

func (r *repository) Update(ctx context.Context, tax TaxCode) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE tax_codes SET name = $1, percentage = $2, description = $3, updated_at = NOW() WHERE id = $4`,
		tax.Name, tax.Percentage, tax.Description, tax.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tax code %d: %w", tax.ID, internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM tax_codes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("tax code %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanTax(row pgx.Row) (TaxCode, error) {
	var t TaxCode
	err := row.Scan(&t.ID, &t.Name, &t.Percentage, &t.Description, &t.CreatedAt, &t.UpdatedAt)
	return t, err
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, nameConstraint) {
		return fmt.Errorf("tax code name already exists: %w", internalShared.ErrDuplicate)
	}
	return err
}
