package suppliers

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

const taxIDConstraint = "suppliers_tax_id_key"

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error)
	Get(ctx context.Context, id int64) (Supplier, error)
	Create(ctx context.Context, supplier Supplier) (Supplier, error)
	Update(ctx context.Context, supplier Supplier) error
	Delete(ctx context.Context, id int64) error
}

type repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(ctx context.Context, fn func(context.Context, Repository) error) error {
	return db.WithTx(ctx, r.db, func(ctx context.Context, _ pgx.Tx) error {
		return fn(ctx, r)
	})
}

const supplierColumns = `id, code, tax_id, name, legal_entity_name, supplier_type, status, contact_first_name, contact_last_name,
contact_email, contact_phone, registered_address, payment_terms, currency, created_at, updated_at`

var sortColumns = map[string]string{"code": "code", "name": "name", "created_at": "created_at"}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Supplier, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("(name ILIKE ? OR code ILIKE ? OR tax_id ILIKE ?)", "%"+filters.Search+"%")
	}
	conn := db.Conn(ctx, r.db)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM suppliers`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, `SELECT `+supplierColumns+` FROM suppliers`+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "code")+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var suppliers []Supplier
	for rows.Next() {
		s, err := scanSupplier(rows)
		if err != nil {
			return nil, 0, err
		}
		suppliers = append(suppliers, s)
	}
	return suppliers, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Supplier, error) {
	s, err := scanSupplier(db.Conn(ctx, r.db).QueryRow(ctx, `SELECT `+supplierColumns+` FROM suppliers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Supplier{}, fmt.Errorf("supplier %d: %w", id, internalShared.ErrNotFound)
	}
	return s, err
}

func (r *repository) Create(ctx context.Context, s Supplier) (Supplier, error) {
	now := time.Now()
	err := db.Conn(ctx, r.db).QueryRow(ctx, `INSERT INTO suppliers (code, tax_id, name, legal_entity_name, supplier_type, status, contact_first_name,
contact_last_name, contact_email, contact_phone, registered_address, payment_terms, currency, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $14) RETURNING id`,
		s.Code, s.TaxID, s.Name, s.LegalEntityName, s.SupplierType, s.Status, s.ContactFirstName, s.ContactLastName,
		s.ContactEmail, s.ContactPhone, s.RegisteredAddress, s.PaymentTerms, s.Currency, now).Scan(&s.ID)
	if err != nil {
		return Supplier{}, mapWriteError(err)
	}
	s.CreatedAt, s.UpdatedAt = now, now
	return s, nil
}

func (r *repository) Update(ctx context.Context, s Supplier) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `UPDATE suppliers SET tax_id = $1, name = $2, legal_entity_name = $3, supplier_type = $4, status = $5,
contact_first_name = $6, contact_last_name = $7, contact_email = $8, contact_phone = $9, registered_address = $10,
payment_terms = $11, currency = $12, updated_at = NOW() WHERE id = $13`,
		s.TaxID, s.Name, s.LegalEntityName, s.SupplierType, s.Status, s.ContactFirstName, s.ContactLastName, s.ContactEmail,
		s.ContactPhone, s.RegisteredAddress, s.PaymentTerms, s.Currency, s.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d: %w", s.ID, internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.db).Exec(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("supplier %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanSupplier(row pgx.Row) (Supplier, error) {
	var s Supplier
	err := row.Scan(&s.ID, &s.Code, &s.TaxID, &s.Name, &s.LegalEntityName, &s.SupplierType, &s.Status, &s.ContactFirstName,
		&s.ContactLastName, &s.ContactEmail, &s.ContactPhone, &s.RegisteredAddress, &s.PaymentTerms, &s.Currency,
		&s.CreatedAt, &s.UpdatedAt)
	return s, err
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, taxIDConstraint) {
		return fmt.Errorf("supplier tax id already exists: %w", internalShared.ErrDuplicate)
	}
	return err
}
