package quotations

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
	List(ctx context.Context, filters ListFilters) ([]Quotation, int, error)
	Get(ctx context.Context, id int64) (Quotation, error)
	GetForUpdate(ctx context.Context, id int64) (Quotation, error)
	Lines(ctx context.Context, id int64) ([]documents.Line, error)
	Revisions(ctx context.Context, id int64) ([]Revision, error)
	Create(ctx context.Context, q Quotation) (Quotation, error)
	Update(ctx context.Context, q Quotation, plan documents.ReconcilePlan[documents.Line]) ([]documents.Line, error)
	SetStatus(ctx context.Context, q Quotation) error
	AddRevision(ctx context.Context, quotationID int64, rev Revision) (Revision, error)
	Delete(ctx context.Context, id int64) error
	ExpireOverdue(ctx context.Context, today internalShared.Date) ([]Expiry, error)
}

var lineTable = documents.LineTable{Table: "quotation_lines", Parent: "quotation_id"}

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

const selectQuotation = `SELECT ` + documents.HeaderColumns + `, customer_id, quotation_date, expiry_date, status, revise_count,
sales_order_id, notes FROM quotations`

var sortColumns = map[string]string{"code": "code", "quotation_date": "quotation_date", "grand_total": "grand_total", "created_at": "created_at"}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]Quotation, int, error) {
	where := filters.Where()
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM quotations`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectQuotation+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "created_at")+", id"+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Quotation
	for rows.Next() {
		q, err := scanQuotation(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, q)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Quotation, error) {
	return r.get(ctx, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (Quotation, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, id int64, lock string) (Quotation, error) {
	q, err := scanQuotation(db.Conn(ctx, r.pool).QueryRow(ctx, selectQuotation+` WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Quotation{}, fmt.Errorf("quotation %d: %w", id, internalShared.ErrNotFound)
	}
	return q, err
}

func (r *repository) Lines(ctx context.Context, id int64) ([]documents.Line, error) {
	return lineTable.Load(ctx, db.Conn(ctx, r.pool), id)
}

func (r *repository) Revisions(ctx context.Context, id int64) ([]Revision, error) {
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `SELECT id, revision_no, comment, status, COALESCE(created_by, 0), created_at
FROM quotation_revisions WHERE quotation_id = $1 ORDER BY revision_no`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Revision
	for rows.Next() {
		var rev Revision
		if err := rows.Scan(&rev.ID, &rev.RevisionNo, &rev.Comment, &rev.Status, &rev.CreatedBy, &rev.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, rev)
	}
	return out, rows.Err()
}

func (r *repository) Create(ctx context.Context, q Quotation) (Quotation, error) {
	conn := db.Conn(ctx, r.pool)
	args := append([]any{q.Code}, q.TotalsArgs()...)
	args = append(args, q.CreatedBy, q.CustomerID, q.Date, q.ExpiryDate, q.Status, q.Notes)
	err := conn.QueryRow(ctx, `INSERT INTO quotations (code, global_discount, shipping_charges, subtotal, tax_summary,
discount_amount, rounding_adjustment, grand_total, created_by, updated_by, customer_id, quotation_date, expiry_date, status, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), NULLIF($9, 0), $10, $11, $12, $13, $14)
RETURNING id, created_at, updated_at`, args...).Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt)
	if err != nil {
		return Quotation{}, err
	}
	q.UpdatedBy = q.CreatedBy
	for i := range q.Lines {
		id, err := lineTable.Insert(ctx, conn, q.ID, q.Lines[i])
		if err != nil {
			return Quotation{}, err
		}
		q.Lines[i].ID = id
	}
	return q, nil
}

func (r *repository) Update(ctx context.Context, q Quotation, plan documents.ReconcilePlan[documents.Line]) ([]documents.Line, error) {
	conn := db.Conn(ctx, r.pool)
	args := append(q.TotalsArgs(), q.UpdatedBy, q.CustomerID, q.Date, q.ExpiryDate, q.Status, q.Notes, q.ID)
	_, err := conn.Exec(ctx, `UPDATE quotations SET global_discount = $1, shipping_charges = $2, subtotal = $3, tax_summary = $4,
discount_amount = $5, rounding_adjustment = $6, grand_total = $7, updated_by = NULLIF($8, 0), customer_id = $9,
quotation_date = $10, expiry_date = $11, status = $12, notes = $13, updated_at = NOW() WHERE id = $14`, args...)
	if err != nil {
		return nil, err
	}
	return lineTable.Apply(ctx, conn, q.ID, plan)
}

func (r *repository) SetStatus(ctx context.Context, q Quotation) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE quotations SET status = $1, revise_count = $2, sales_order_id = $3,
updated_by = NULLIF($4, 0), updated_at = NOW() WHERE id = $5`, q.Status, q.ReviseCount, q.SalesOrderID, q.UpdatedBy, q.ID)
	return err
}

func (r *repository) AddRevision(ctx context.Context, quotationID int64, rev Revision) (Revision, error) {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO quotation_revisions (quotation_id, revision_no, comment, status, created_by)
VALUES ($1, $2, $3, $4, NULLIF($5, 0)) RETURNING id, created_at`,
		quotationID, rev.RevisionNo, rev.Comment, rev.Status, rev.CreatedBy).Scan(&rev.ID, &rev.CreatedAt)
	return rev, err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM quotations WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("quotation %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

// ExpireOverdue moves every overdue open quotation to Expired and reports
// the previous status of each. Rows locked by other writers are left for
// the next sweep.
func (r *repository) ExpireOverdue(ctx context.Context, today internalShared.Date) ([]Expiry, error) {
	statuses := make([]string, len(expirable))
	for i, s := range expirable {
		statuses[i] = string(s)
	}
	rows, err := db.Conn(ctx, r.pool).Query(ctx, `WITH due AS (
	SELECT id, status FROM quotations
	WHERE expiry_date < $1 AND status = ANY($2)
	FOR UPDATE SKIP LOCKED
)
UPDATE quotations q SET status = $3, updated_at = NOW()
FROM due WHERE q.id = due.id
RETURNING q.id, due.status`, today, statuses, QuotationStatusExpired)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expiry
	for rows.Next() {
		var e Expiry
		if err := rows.Scan(&e.ID, &e.From); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanQuotation(row pgx.Row) (Quotation, error) {
	var q Quotation
	targets := append(q.ScanTargets(), &q.CustomerID, &q.Date, &q.ExpiryDate, &q.Status, &q.ReviseCount, &q.SalesOrderID, &q.Notes)
	err := row.Scan(targets...)
	return q, err
}
