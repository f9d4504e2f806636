package products

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error)
	Get(ctx context.Context, id int64) (Product, error)
	Create(ctx context.Context, product Product) (Product, error)
	Update(ctx context.Context, product Product) error
	Delete(ctx context.Context, id int64) error
	Snapshot(ctx context.Context, id int64) (documents.ProductSnapshot, error)
	Available(ctx context.Context, id int64) (int, error)
	// Deduct lowers stock by qty and reports false, leaving stock unchanged,
	// when fewer than qty units are on hand.
	Deduct(ctx context.Context, id int64, qty int) (bool, error)
	Restock(ctx context.Context, id int64, qty int) error
}

type repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) Repository {
	return &repository{pool: pool}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx, r)
	})
}

const selectProduct = `SELECT id, code, name, description, uom, unit_price, quantity, tax_code_id, is_active, created_at, updated_at FROM products`

var sortColumns = map[string]string{
	"code":       "code",
	"name":       "name",
	"unit_price": "unit_price",
	"quantity":   "quantity",
	"created_at": "created_at",
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Product, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("(name ILIKE ? OR code ILIKE ?)", "%"+filters.Search+"%")
	}
	if filters.IsActive != nil {
		where.Add("is_active = ?", *filters.IsActive)
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM products`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}

	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectProduct+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "name")+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, 0, err
		}
		products = append(products, p)
	}
	return products, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Product, error) {
	p, err := scanProduct(db.Conn(ctx, r.pool).QueryRow(ctx, selectProduct+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Product{}, notFound(id)
	}
	return p, err
}

func (r *repository) Create(ctx context.Context, product Product) (Product, error) {
	now := time.Now()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO products (code, name, description, uom, unit_price, quantity, tax_code_id, is_active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9) RETURNING id`,
		product.Code, product.Name, product.Description, product.UOM, product.UnitPrice, product.Quantity, product.TaxCodeID, product.IsActive, now).Scan(&product.ID)
	if err != nil {
		return Product{}, err
	}
	product.CreatedAt, product.UpdatedAt = now, now
	return product, nil
}

func (r *repository) Update(ctx context.Context, product Product) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE products SET name = $1, description = $2, uom = $3, unit_price = $4, quantity = $5,
tax_code_id = $6, is_active = $7, updated_at = NOW() WHERE id = $8`,
		product.Name, product.Description, product.UOM, product.UnitPrice, product.Quantity, product.TaxCodeID, product.IsActive, product.ID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(product.ID)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func (r *repository) Snapshot(ctx context.Context, id int64) (documents.ProductSnapshot, error) {
	var s documents.ProductSnapshot
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT p.id, p.code, p.name, p.uom, p.unit_price, p.tax_code_id, COALESCE(t.percentage, 0)
FROM products p LEFT JOIN tax_codes t ON t.id = p.tax_code_id WHERE p.id = $1`, id).
		Scan(&s.ID, &s.Code, &s.Name, &s.UOM, &s.UnitPrice, &s.TaxCodeID, &s.TaxRate)
	if errors.Is(err, pgx.ErrNoRows) {
		return documents.ProductSnapshot{}, notFound(id)
	}
	return s, err
}

func (r *repository) Available(ctx context.Context, id int64) (int, error) {
	var qty int
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT quantity FROM products WHERE id = $1`, id).Scan(&qty)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, notFound(id)
	}
	return qty, err
}

func (r *repository) Deduct(ctx context.Context, id int64, qty int) (bool, error) {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE products SET quantity = quantity - $2, updated_at = NOW() WHERE id = $1 AND quantity >= $2`, id, qty)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}

func (r *repository) Restock(ctx context.Context, id int64, qty int) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE products SET quantity = quantity + $2, updated_at = NOW() WHERE id = $1`, id, qty)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return notFound(id)
	}
	return nil
}

func scanProduct(row pgx.Row) (Product, error) {
	var p Product
	err := row.Scan(&p.ID, &p.Code, &p.Name, &p.Description, &p.UOM, &p.UnitPrice, &p.Quantity, &p.TaxCodeID, &p.IsActive, &p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func notFound(id int64) error {
	return fmt.Errorf("product %d: %w", id, internalShared.ErrNotFound)
}
