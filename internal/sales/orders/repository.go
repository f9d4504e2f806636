package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/shared"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
	internalShared "github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters ListFilters) ([]SalesOrder, int, error)
	Get(ctx context.Context, id int64) (SalesOrder, error)
	GetForUpdate(ctx context.Context, id int64) (SalesOrder, error)
	Lines(ctx context.Context, id int64) ([]OrderLine, error)
	Create(ctx context.Context, so SalesOrder) (SalesOrder, error)
	Update(ctx context.Context, so SalesOrder, plan documents.ReconcilePlan[documents.Line]) error
	SetStatus(ctx context.Context, so SalesOrder) error
	AddProgress(ctx context.Context, orderID int64, progress []Progress) error
	Delete(ctx context.Context, id int64) error
}

var lineTable = documents.LineTable{Table: "sales_order_lines", Parent: "sales_order_id"}

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

const selectOrder = `SELECT ` + documents.HeaderColumns + `, customer_id, quotation_id, order_date, due_date,
expected_delivery, order_type, currency, payment_method, shipping_method, internal_notes, customer_notes, status
FROM sales_orders`

var sortColumns = map[string]string{"code": "code", "order_date": "order_date", "grand_total": "grand_total", "created_at": "created_at"}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]SalesOrder, int, error) {
	where := filters.Where()
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM sales_orders`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectOrder+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "created_at")+", id"+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []SalesOrder
	for rows.Next() {
		so, err := scanOrder(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, so)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (SalesOrder, error) {
	return r.get(ctx, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (SalesOrder, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, id int64, lock string) (SalesOrder, error) {
	so, err := scanOrder(db.Conn(ctx, r.pool).QueryRow(ctx, selectOrder+` WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return SalesOrder{}, fmt.Errorf("sales order %d: %w", id, internalShared.ErrNotFound)
	}
	return so, err
}

// Lines joins the priced columns with the fulfilment counters.
func (r *repository) Lines(ctx context.Context, id int64) ([]OrderLine, error) {
	conn := db.Conn(ctx, r.pool)
	priced, err := lineTable.Load(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT id, delivered_qty, invoiced_qty FROM sales_order_lines WHERE sales_order_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	progress := make(map[int64][2]int, len(priced))
	for rows.Next() {
		var (
			lineID              int64
			delivered, invoiced int
		)
		if err := rows.Scan(&lineID, &delivered, &invoiced); err != nil {
			return nil, err
		}
		progress[lineID] = [2]int{delivered, invoiced}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines := make([]OrderLine, len(priced))
	for i, line := range priced {
		p := progress[line.ID]
		lines[i] = OrderLine{Line: line, DeliveredQty: p[0], InvoicedQty: p[1]}
	}
	return lines, nil
}

func (r *repository) Create(ctx context.Context, so SalesOrder) (SalesOrder, error) {
	conn := db.Conn(ctx, r.pool)
	args := append([]any{so.Code}, so.TotalsArgs()...)
	args = append(args, so.CreatedBy, so.CustomerID, so.QuotationID, so.OrderDate, so.DueDate, so.ExpectedDelivery,
		so.OrderType, so.Currency, so.PaymentMethod, so.ShippingMethod, so.InternalNotes, so.CustomerNotes, so.Status)
	err := conn.QueryRow(ctx, `INSERT INTO sales_orders (code, global_discount, shipping_charges, subtotal, tax_summary,
discount_amount, rounding_adjustment, grand_total, created_by, updated_by, customer_id, quotation_id, order_date, due_date,
expected_delivery, order_type, currency, payment_method, shipping_method, internal_notes, customer_notes, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), NULLIF($9, 0), $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20, $21)
RETURNING id, created_at, updated_at`, args...).Scan(&so.ID, &so.CreatedAt, &so.UpdatedAt)
	if err != nil {
		return SalesOrder{}, err
	}
	so.UpdatedBy = so.CreatedBy
	for i := range so.Lines {
		id, err := lineTable.Insert(ctx, conn, so.ID, so.Lines[i].Line)
		if err != nil {
			return SalesOrder{}, err
		}
		so.Lines[i].ID = id
	}
	return so, nil
}

func (r *repository) Update(ctx context.Context, so SalesOrder, plan documents.ReconcilePlan[documents.Line]) error {
	conn := db.Conn(ctx, r.pool)
	args := append(so.TotalsArgs(), so.UpdatedBy, so.CustomerID, so.OrderDate, so.DueDate, so.ExpectedDelivery, so.OrderType,
		so.Currency, so.PaymentMethod, so.ShippingMethod, so.InternalNotes, so.CustomerNotes, so.ID)
	_, err := conn.Exec(ctx, `UPDATE sales_orders SET global_discount = $1, shipping_charges = $2, subtotal = $3, tax_summary = $4,
discount_amount = $5, rounding_adjustment = $6, grand_total = $7, updated_by = NULLIF($8, 0), customer_id = $9,
order_date = $10, due_date = $11, expected_delivery = $12, order_type = $13, currency = $14, payment_method = $15,
shipping_method = $16, internal_notes = $17, customer_notes = $18, updated_at = NOW() WHERE id = $19`, args...)
	if err != nil {
		return err
	}
	_, err = lineTable.Apply(ctx, conn, so.ID, plan)
	return err
}

func (r *repository) SetStatus(ctx context.Context, so SalesOrder) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE sales_orders SET status = $1, updated_by = NULLIF($2, 0), updated_at = NOW()
WHERE id = $3`, so.Status, so.UpdatedBy, so.ID)
	return err
}

func (r *repository) AddProgress(ctx context.Context, orderID int64, progress []Progress) error {
	batch := &pgx.Batch{}
	for _, p := range progress {
		batch.Queue(`UPDATE sales_order_lines SET delivered_qty = delivered_qty + $1, invoiced_qty = invoiced_qty + $2
WHERE id = $3 AND sales_order_id = $4`, p.Delivered, p.Invoiced, p.LineID, orderID)
	}
	results := db.Conn(ctx, r.pool).SendBatch(ctx, batch)
	for range progress {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("update sales order progress: %w", err)
		}
	}
	return results.Close()
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM sales_orders WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("sales order %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanOrder(row pgx.Row) (SalesOrder, error) {
	var so SalesOrder
	targets := append(so.ScanTargets(), &so.CustomerID, &so.QuotationID, &so.OrderDate, &so.DueDate, &so.ExpectedDelivery,
		&so.OrderType, &so.Currency, &so.PaymentMethod, &so.ShippingMethod, &so.InternalNotes, &so.CustomerNotes, &so.Status)
	err := row.Scan(targets...)
	return so, err
}
