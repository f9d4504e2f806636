package invoices

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
	List(ctx context.Context, filters ListFilters) ([]Invoice, int, error)
	Get(ctx context.Context, id int64) (Invoice, error)
	GetForUpdate(ctx context.Context, id int64) (Invoice, error)
	Lines(ctx context.Context, id int64) ([]InvoiceLine, error)
	Create(ctx context.Context, inv Invoice) (Invoice, error)
	Update(ctx context.Context, inv Invoice, plan documents.ReconcilePlan[documents.Line]) error
	// SaveState writes the status and payment columns.
	SaveState(ctx context.Context, inv Invoice) error
	AddReturned(ctx context.Context, invoiceID int64, returned map[int64]int) error
	Delete(ctx context.Context, id int64) error
}

var lineTable = documents.LineTable{Table: "invoice_lines", Parent: "invoice_id"}

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

const selectInvoice = `SELECT ` + documents.HeaderColumns + `, customer_id, sales_order_id, invoice_date, due_date,
payment_terms, payment_method, currency, customer_ref_no, terms_conditions, billing_address, shipping_address, status,
payment_status, payment_ref_number, transaction_date, credit_note_applied, amount_paid, balance_due
FROM invoices`

var sortColumns = map[string]string{
	"code": "code", "invoice_date": "invoice_date", "due_date": "due_date",
	"grand_total": "grand_total", "balance_due": "balance_due", "created_at": "created_at",
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Invoice, int, error) {
	where := filters.Where()
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM invoices`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectInvoice+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "created_at")+", id"+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, inv)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Invoice, error) {
	return r.get(ctx, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (Invoice, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, id int64, lock string) (Invoice, error) {
	inv, err := scanInvoice(db.Conn(ctx, r.pool).QueryRow(ctx, selectInvoice+` WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Invoice{}, fmt.Errorf("invoice %d: %w", id, internalShared.ErrNotFound)
	}
	return inv, err
}

func (r *repository) Lines(ctx context.Context, id int64) ([]InvoiceLine, error) {
	conn := db.Conn(ctx, r.pool)
	priced, err := lineTable.Load(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT id, sales_order_line_id, returned_qty FROM invoice_lines WHERE invoice_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	type extra struct {
		source   *int64
		returned int
	}
	extras := make(map[int64]extra, len(priced))
	for rows.Next() {
		var (
			lineID int64
			e      extra
		)
		if err := rows.Scan(&lineID, &e.source, &e.returned); err != nil {
			return nil, err
		}
		extras[lineID] = e
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines := make([]InvoiceLine, len(priced))
	for i, line := range priced {
		e := extras[line.ID]
		lines[i] = InvoiceLine{Line: line, SalesOrderLineID: e.source, ReturnedQty: e.returned}
	}
	return lines, nil
}

func (r *repository) Create(ctx context.Context, inv Invoice) (Invoice, error) {
	conn := db.Conn(ctx, r.pool)
	args := append([]any{inv.Code}, inv.TotalsArgs()...)
	args = append(args, inv.CreatedBy, inv.CustomerID, inv.SalesOrderID, inv.InvoiceDate, inv.DueDate, inv.PaymentTerms,
		inv.PaymentMethod, inv.Currency, inv.CustomerRefNo, inv.TermsConditions, inv.BillingAddress, inv.ShippingAddress,
		inv.Status, inv.PaymentStatus, inv.CreditNoteApplied, inv.AmountPaid, inv.BalanceDue)
	err := conn.QueryRow(ctx, `INSERT INTO invoices (code, global_discount, shipping_charges, subtotal, tax_summary,
discount_amount, rounding_adjustment, grand_total, created_by, updated_by, customer_id, sales_order_id, invoice_date, due_date,
payment_terms, payment_method, currency, customer_ref_no, terms_conditions, billing_address, shipping_address, status,
payment_status, credit_note_applied, amount_paid, balance_due)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), NULLIF($9, 0), $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20,
$21, $22, $23, $24, $25)
RETURNING id, created_at, updated_at`, args...).Scan(&inv.ID, &inv.CreatedAt, &inv.UpdatedAt)
	if err != nil {
		return Invoice{}, err
	}
	inv.UpdatedBy = inv.CreatedBy
	for i := range inv.Lines {
		id, err := lineTable.Insert(ctx, conn, inv.ID, inv.Lines[i].Line)
		if err != nil {
			return Invoice{}, err
		}
		inv.Lines[i].ID = id
		if src := inv.Lines[i].SalesOrderLineID; src != nil {
			if _, err := conn.Exec(ctx, `UPDATE invoice_lines SET sales_order_line_id = $1 WHERE id = $2`, *src, id); err != nil {
				return Invoice{}, fmt.Errorf("link invoice line: %w", err)
			}
		}
	}
	return inv, nil
}

func (r *repository) Update(ctx context.Context, inv Invoice, plan documents.ReconcilePlan[documents.Line]) error {
	conn := db.Conn(ctx, r.pool)
	args := append(inv.TotalsArgs(), inv.UpdatedBy, inv.CustomerID, inv.InvoiceDate, inv.DueDate, inv.PaymentTerms,
		inv.PaymentMethod, inv.Currency, inv.CustomerRefNo, inv.TermsConditions, inv.BillingAddress, inv.ShippingAddress,
		inv.PaymentStatus, inv.BalanceDue, inv.ID)
	_, err := conn.Exec(ctx, `UPDATE invoices SET global_discount = $1, shipping_charges = $2, subtotal = $3, tax_summary = $4,
discount_amount = $5, rounding_adjustment = $6, grand_total = $7, updated_by = NULLIF($8, 0), customer_id = $9,
invoice_date = $10, due_date = $11, payment_terms = $12, payment_method = $13, currency = $14, customer_ref_no = $15,
terms_conditions = $16, billing_address = $17, shipping_address = $18, payment_status = $19, balance_due = $20,
updated_at = NOW() WHERE id = $21`, args...)
	if err != nil {
		return err
	}
	_, err = lineTable.Apply(ctx, conn, inv.ID, plan)
	return err
}

func (r *repository) SaveState(ctx context.Context, inv Invoice) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE invoices SET status = $1, payment_status = $2, payment_ref_number = $3,
transaction_date = $4, credit_note_applied = $5, amount_paid = $6, balance_due = $7, updated_by = NULLIF($8, 0),
updated_at = NOW() WHERE id = $9`,
		inv.Status, inv.PaymentStatus, inv.PaymentRef, inv.TransactionDate, inv.CreditNoteApplied, inv.AmountPaid,
		inv.BalanceDue, inv.UpdatedBy, inv.ID)
	return err
}

func (r *repository) AddReturned(ctx context.Context, invoiceID int64, returned map[int64]int) error {
	batch := &pgx.Batch{}
	for lineID, qty := range returned {
		batch.Queue(`UPDATE invoice_lines SET returned_qty = returned_qty + $1 WHERE id = $2 AND invoice_id = $3`,
			qty, lineID, invoiceID)
	}
	results := db.Conn(ctx, r.pool).SendBatch(ctx, batch)
	for range returned {
		if _, err := results.Exec(); err != nil {
			_ = results.Close()
			return fmt.Errorf("update returned quantity: %w", err)
		}
	}
	return results.Close()
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM invoices WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("invoice %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanInvoice(row pgx.Row) (Invoice, error) {
	var inv Invoice
	targets := append(inv.ScanTargets(), &inv.CustomerID, &inv.SalesOrderID, &inv.InvoiceDate, &inv.DueDate,
		&inv.PaymentTerms, &inv.PaymentMethod, &inv.Currency, &inv.CustomerRefNo, &inv.TermsConditions,
		&inv.BillingAddress, &inv.ShippingAddress, &inv.Status, &inv.PaymentStatus, &inv.PaymentRef,
		&inv.TransactionDate, &inv.CreditNoteApplied, &inv.AmountPaid, &inv.BalanceDue)
	err := row.Scan(targets...)
	return inv, err
}
