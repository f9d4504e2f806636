package notes

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
	List(ctx context.Context, filters ListFilters) ([]DeliveryNote, int, error)
	Get(ctx context.Context, id int64) (DeliveryNote, error)
	GetForUpdate(ctx context.Context, id int64) (DeliveryNote, error)
	Lines(ctx context.Context, id int64) ([]NoteLine, error)
	Create(ctx context.Context, note DeliveryNote) (DeliveryNote, error)
	Update(ctx context.Context, note DeliveryNote, plan documents.ReconcilePlan[documents.Line]) error
	SetStatus(ctx context.Context, note DeliveryNote) error
	Delete(ctx context.Context, id int64) error
}

var lineTable = documents.LineTable{Table: "delivery_note_lines", Parent: "delivery_note_id"}

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

const selectNote = `SELECT ` + documents.HeaderColumns + `, sales_order_id, sales_order_code, customer_id, delivery_date,
delivery_type, destination_address, received_by, contact_number, status
FROM delivery_notes`

var sortColumns = map[string]string{"code": "code", "delivery_date": "delivery_date", "created_at": "created_at"}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]DeliveryNote, int, error) {
	where := filters.Where()
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM delivery_notes`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, selectNote+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "created_at")+", id"+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []DeliveryNote
	for rows.Next() {
		note, err := scanNote(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, note)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (DeliveryNote, error) {
	return r.get(ctx, id, "")
}

func (r *repository) GetForUpdate(ctx context.Context, id int64) (DeliveryNote, error) {
	return r.get(ctx, id, " FOR UPDATE")
}

func (r *repository) get(ctx context.Context, id int64, lock string) (DeliveryNote, error) {
	note, err := scanNote(db.Conn(ctx, r.pool).QueryRow(ctx, selectNote+` WHERE id = $1`+lock, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return DeliveryNote{}, fmt.Errorf("delivery note %d: %w", id, internalShared.ErrNotFound)
	}
	return note, err
}

func (r *repository) Lines(ctx context.Context, id int64) ([]NoteLine, error) {
	conn := db.Conn(ctx, r.pool)
	priced, err := lineTable.Load(ctx, conn, id)
	if err != nil {
		return nil, err
	}
	rows, err := conn.Query(ctx, `SELECT id, sales_order_line_id FROM delivery_note_lines WHERE delivery_note_id = $1`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	sources := make(map[int64]*int64, len(priced))
	for rows.Next() {
		var (
			lineID int64
			source *int64
		)
		if err := rows.Scan(&lineID, &source); err != nil {
			return nil, err
		}
		sources[lineID] = source
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	lines := make([]NoteLine, len(priced))
	for i, line := range priced {
		lines[i] = NoteLine{Line: line, SalesOrderLineID: sources[line.ID]}
	}
	return lines, nil
}

func (r *repository) Create(ctx context.Context, note DeliveryNote) (DeliveryNote, error) {
	conn := db.Conn(ctx, r.pool)
	args := append([]any{note.Code}, note.TotalsArgs()...)
	args = append(args, note.CreatedBy, note.SalesOrderID, note.SalesOrderCode, note.CustomerID, note.DeliveryDate,
		note.DeliveryType, note.DestinationAddress, note.ReceivedBy, note.ContactNumber, note.Status)
	err := conn.QueryRow(ctx, `INSERT INTO delivery_notes (code, global_discount, shipping_charges, subtotal, tax_summary,
discount_amount, rounding_adjustment, grand_total, created_by, updated_by, sales_order_id, sales_order_code, customer_id,
delivery_date, delivery_type, destination_address, received_by, contact_number, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, 0), NULLIF($9, 0), $10, $11, $12, $13, $14, $15, $16, $17, $18)
RETURNING id, created_at, updated_at`, args...).Scan(&note.ID, &note.CreatedAt, &note.UpdatedAt)
	if err != nil {
		return DeliveryNote{}, err
	}
	note.UpdatedBy = note.CreatedBy
	for i := range note.Lines {
		id, err := lineTable.Insert(ctx, conn, note.ID, note.Lines[i].Line)
		if err != nil {
			return DeliveryNote{}, err
		}
		note.Lines[i].ID = id
		if src := note.Lines[i].SalesOrderLineID; src != nil {
			if _, err := conn.Exec(ctx, `UPDATE delivery_note_lines SET sales_order_line_id = $1 WHERE id = $2`, *src, id); err != nil {
				return DeliveryNote{}, fmt.Errorf("link delivery note line: %w", err)
			}
		}
	}
	return note, nil
}

func (r *repository) Update(ctx context.Context, note DeliveryNote, plan documents.ReconcilePlan[documents.Line]) error {
	conn := db.Conn(ctx, r.pool)
	args := append(note.TotalsArgs(), note.UpdatedBy, note.CustomerID, note.DeliveryDate, note.DeliveryType,
		note.DestinationAddress, note.ReceivedBy, note.ContactNumber, note.ID)
	_, err := conn.Exec(ctx, `UPDATE delivery_notes SET global_discount = $1, shipping_charges = $2, subtotal = $3,
tax_summary = $4, discount_amount = $5, rounding_adjustment = $6, grand_total = $7, updated_by = NULLIF($8, 0),
customer_id = $9, delivery_date = $10, delivery_type = $11, destination_address = $12, received_by = $13,
contact_number = $14, updated_at = NOW() WHERE id = $15`, args...)
	if err != nil {
		return err
	}
	_, err = lineTable.Apply(ctx, conn, note.ID, plan)
	return err
}

func (r *repository) SetStatus(ctx context.Context, note DeliveryNote) error {
	_, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE delivery_notes SET status = $1, updated_by = NULLIF($2, 0), updated_at = NOW()
WHERE id = $3`, note.Status, note.UpdatedBy, note.ID)
	return err
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM delivery_notes WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("delivery note %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanNote(row pgx.Row) (DeliveryNote, error) {
	var note DeliveryNote
	targets := append(note.ScanTargets(), &note.SalesOrderID, &note.SalesOrderCode, &note.CustomerID, &note.DeliveryDate,
		&note.DeliveryType, &note.DestinationAddress, &note.ReceivedBy, &note.ContactNumber, &note.Status)
	err := row.Scan(targets...)
	return note, err
}
