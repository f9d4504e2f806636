package returns

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
	List(ctx context.Context, filters ListFilters) ([]DeliveryNoteReturn, int, error)
	Get(ctx context.Context, id int64) (DeliveryNoteReturn, error)
	GetForUpdate(ctx context.Context, id int64) (DeliveryNoteReturn, error)
	Lines(ctx context.Context, id int64) ([]ReturnLine, error)
	Create(ctx context.Context, ret DeliveryNoteReturn) (DeliveryNoteReturn, error)
	// Update rewrites the header and replaces every line.
	Update(ctx context.Context, ret DeliveryNoteReturn) error
	SetStatus(ctx context.Context, ret DeliveryNoteReturn) error
	Delete(ctx context.Context, id int64) error
}

var lineTable = documents.LineTable{Table: "delivery_note_return_lines", Parent: "delivery_note_return_id"}

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

const selectReturn = `SELECT ` + documents.HeaderColumns + `, invoice_return_id, invoice_return_code, customer_id,
return_date, customer_ref_no, email, phone_number, contact_person, status
FROM delivery_note_returns`

var sortColumns = map[string]string{"code": "code", "dnr_date": "return_date", "created_at": "created_at"}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]DeliveryNoteReturn, int, error) {
	where := filters.Where()
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_note_returns`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectReturn+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "created_at")+", id"+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []DeliveryNoteReturn
	for rows.Next() {
		ret, err := scanReturn(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, ret)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (DeliveryNoteReturn, error) {
	return r.get(ctx, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (DeliveryNoteReturn, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, id int64, lock string) (DeliveryNoteReturn, error) {
	ret, err := scanReturn(db.Conn(ctx, r.pool).QueryRow(ctx, selectReturn+` WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DeliveryNoteReturn{}, fmt.Errorf("delivery note return %d: %w", id, internalShared.ErrNotFound)
	}
	return ret, err
}

func (r *repository) Lines(ctx context.Context, id int64) ([]ReturnLine, error) {
	conn := db.Conn(ctx, r.pool)
	priced, err := lineTable.Load(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT id, invoiced_qty, return_reason FROM delivery_note_return_lines
WHERE delivery_note_return_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	extras := make(map[int64]ReturnLine, len(priced))
	for rows.Next() {
		var (
			lineID int64
			l      ReturnLine
		)
		if err := rows.Scan(&lineID, &l.InvoicedQty, &l.Reason); err != nil {
			return nil, err
		}
		extras[lineID] = l
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines := make([]ReturnLine, len(priced))
	for i, line := range priced {
		l := extras[line.ID]
		l.Line = line
		lines[i] = l
	}
	return lines, nil
}

func (r *repository) Create(ctx context.Context, ret DeliveryNoteReturn) (DeliveryNoteReturn, error) {
	conn := db.Conn(ctx, r.pool)
	args := append([]any{ret.Code}, ret.TotalsArgs()...)
	args = append(args, ret.CreatedBy, ret.InvoiceReturnID, ret.InvoiceReturnCode, ret.CustomerID, ret.ReturnDate,
		ret.CustomerRefNo, ret.Email, ret.PhoneNumber, ret.ContactPerson, ret.Status)
	err := conn.QueryRow(ctx, `INSERT INTO delivery_note_returns (code, global_discount, shipping_charges, subtotal,
tax_summary, discount_amount, rounding_adjustment, grand_total, created_by, updated_by, invoice_return_id,
invoice_return_code, customer_id, return_date, customer_ref_no, email, phone_number, contact_person, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), NULLIF($9, 0), $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id, created_at, updated_at`, args...).Scan(&ret.ID, &ret.CreatedAt, &ret.UpdatedAt)
	if err != nil {
		return DeliveryNoteReturn{}, err
	}
	ret.UpdatedBy = ret.CreatedBy
	if err := insertLines(ctx, conn, ret.ID, ret.Lines); err != nil {
		return DeliveryNoteReturn{}, err
	}
	return ret, nil
}

func insertLines(ctx context.Context, conn db.DBTX, returnID int64, lines []ReturnLine) error {
	for i := range lines {
		id, err := lineTable.Insert(ctx, conn, returnID, lines[i].Line)
		if err != nil {
			return err
		}
		lines[i].ID = id
		_, err = conn.Exec(ctx, `UPDATE delivery_note_return_lines SET invoiced_qty = $1, return_reason = $2 WHERE id = $3`,
			lines[i].InvoicedQty, lines[i].Reason, id)
		if err != nil {
			return fmt.Errorf("store delivery note return line: %w", err)
		}
	}
	return nil
}

func (r *repository) Update(ctx context.Context, ret DeliveryNoteReturn) error {
	conn := db.Conn(ctx, r.pool)
	args := append(ret.TotalsArgs(), ret.UpdatedBy, ret.InvoiceReturnID, ret.InvoiceReturnCode, ret.CustomerID,
		ret.ReturnDate, ret.CustomerRefNo, ret.Email, ret.PhoneNumber, ret.ContactPerson, ret.ID)
	_, err := conn.Exec(ctx, `UPDATE delivery_note_returns SET global_discount = $1, shipping_charges = $2, subtotal = $3,
tax_summary = $4, discount_amount = $5, rounding_adjustment = $6, grand_total = $7, updated_by = NULLIF($8, 0),
invoice_return_id = $9, invoice_return_code = $10, customer_id = $11, return_date = $12, customer_ref_no = $13,
email = $14, phone_number = $15, contact_person = $16, updated_at = NOW() WHERE id = $17`, args...)
	if err != nil {
		return err
	}
	if _, err := conn.Exec(ctx, `DELETE FROM delivery_note_return_lines WHERE delivery_note_return_id = $1`, ret.ID); err != nil {
		return err
	}
	return insertLines(ctx, conn, ret.ID, ret.Lines)
}

func (r *repository) SetStatus(ctx context.Context, ret DeliveryNoteReturn) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE delivery_note_returns SET status = $1, updated_by = NULLIF($2, 0),
updated_at = NOW() WHERE id = $3`, ret.Status, ret.UpdatedBy, ret.ID)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM delivery_note_returns WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery note return %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanReturn(row pgx.Row) (DeliveryNoteReturn, error) {
	var ret DeliveryNoteReturn
	targets := append(ret.ScanTargets(), &ret.InvoiceReturnID, &ret.InvoiceReturnCode, &ret.CustomerID, &ret.ReturnDate,
		&ret.CustomerRefNo, &ret.Email, &ret.PhoneNumber, &ret.ContactPerson, &ret.Status)
	err := row.Scan(targets...)
	return ret, err
}
