package procurement

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

// RepositoryPort describes repository operations used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error
	CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error)
	InsertPOLine(ctx context.Context, line POLine) (POLine, error)
	GetPO(ctx context.Context, id int64) (PurchaseOrder, error)
	ListPOs(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]PurchaseOrder, int, error)
}

// Repository persists purchase orders in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a transaction, joining the caller's when present.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, RepositoryPort) error) error {
	return db.WithTx(ctx, r.pool, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx, r)
	})
}

func (r *Repository) CreatePO(ctx context.Context, po PurchaseOrder) (PurchaseOrder, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO purchase_orders (code, sales_order_id, supplier_id, status, note, created_by)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, 0)) RETURNING id, created_at`,
		po.Code, po.SalesOrderID, po.SupplierID, po.Status, po.Note, po.CreatedBy).Scan(&po.ID, &po.CreatedAt)
	return po, err
}

func (r *Repository) InsertPOLine(ctx context.Context, line POLine) (POLine, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO purchase_order_lines (purchase_order_id, product_id, product_code, product_name, quantity)
VALUES ($1, $2, $3, $4, $5) RETURNING id`, line.POID, line.ProductID, line.ProductCode, line.ProductName, line.Quantity).Scan(&line.ID)
	return line, err
}

const selectPO = `SELECT id, code, sales_order_id, supplier_id, status, note, COALESCE(created_by, 0), created_at FROM purchase_orders`

func (r *Repository) GetPO(ctx context.Context, id int64) (PurchaseOrder, error) {
	conn := db.Conn(ctx, r.pool)
	po, err := scanPO(conn.QueryRow(ctx, selectPO+` WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return PurchaseOrder{}, fmt.Errorf("purchase order %d: %w", id, shared.ErrNotFound)
	}
	if err != nil {
		return PurchaseOrder{}, err
	}
	rows, err := conn.Query(ctx, `SELECT id, purchase_order_id, product_id, product_code, product_name, quantity
FROM purchase_order_lines WHERE purchase_order_id = $1 ORDER BY id`, id)
	if err != nil {
		return PurchaseOrder{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var l POLine
		if err := rows.Scan(&l.ID, &l.POID, &l.ProductID, &l.ProductCode, &l.ProductName, &l.Quantity); err != nil {
			return PurchaseOrder{}, err
		}
		po.Lines = append(po.Lines, l)
	}
	return po, rows.Err()
}

func (r *Repository) ListPOs(ctx context.Context, filters ListFilters, page shared.PageRequest) ([]PurchaseOrder, int, error) {
	conn := db.Conn(ctx, r.pool)
	where, args := "", []any{}
	if filters.SalesOrderID != nil {
		where = ` WHERE sales_order_id = $1`
		args = append(args, *filters.SalesOrderID)
	}
	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM purchase_orders`+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	n := len(args)
	args = append(args, page.Limit(), page.Offset())
	rows, err := conn.Query(ctx, selectPO+where+fmt.Sprintf(` ORDER BY created_at DESC, id DESC LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var out []PurchaseOrder
	for rows.Next() {
		po, err := scanPO(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, po)
	}
	return out, total, rows.Err()
}

func scanPO(row pgx.Row) (PurchaseOrder, error) {
	var po PurchaseOrder
	err := row.Scan(&po.ID, &po.Code, &po.SalesOrderID, &po.SupplierID, &po.Status, &po.Note, &po.CreatedBy, &po.CreatedAt)
	return po, err
}
