package customers

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

const emailConstraint = "customers_email_key"

type Repository interface {
	WithTx(ctx context.Context, fn func(context.Context, Repository) error) error
	List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error)
	Get(ctx context.Context, id int64) (Customer, error)
	Create(ctx context.Context, customer Customer) (Customer, error)
	Update(ctx context.Context, customer Customer) error
	Delete(ctx context.Context, id int64) error
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

const customerColumns = `id, code, first_name, last_name, customer_type, status, email, phone, company_name, gst_tax_id,
billing_address, shipping_address, city, state, zip_code, country, credit_limit, payment_terms, created_at, updated_at`

var sortColumns = map[string]string{
	"code":       "code",
	"first_name": "first_name",
	"email":      "email",
	"created_at": "created_at",
}

func (r *repository) List(ctx context.Context, filters shared.ListFilters) ([]Customer, int, error) {
	var where shared.Where
	if filters.Search != "" {
		where.Add("(first_name ILIKE ? OR last_name ILIKE ? OR company_name ILIKE ? OR code ILIKE ? OR email ILIKE ?)", "%"+filters.Search+"%")
	}
	conn := db.Conn(ctx, r.pool)

	var total int
	if err := conn.QueryRow(ctx, `SELECT COUNT(*) FROM customers`+where.SQL(), where.Args()...).Scan(&total); err != nil {
		return nil, 0, err
	}
	page, args := where.Page(filters.PageRequest)
	rows, err := conn.Query(ctx, `SELECT `+customerColumns+` FROM customers`+where.SQL()+shared.OrderBy(filters.SortBy, filters.SortDir, sortColumns, "code")+page, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var out []Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, c)
	}
	return out, total, rows.Err()
}

func (r *repository) Get(ctx context.Context, id int64) (Customer, error) {
	c, err := scanCustomer(db.Conn(ctx, r.pool).QueryRow(ctx, `SELECT `+customerColumns+` FROM customers WHERE id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Customer{}, fmt.Errorf("customer %d: %w", id, internalShared.ErrNotFound)
	}
	return c, err
}

func (r *repository) Create(ctx context.Context, c Customer) (Customer, error) {
	now := time.Now()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `INSERT INTO customers (code, first_name, last_name, customer_type, status, email, phone, company_name,
gst_tax_id, billing_address, shipping_address, city, state, zip_code, country, credit_limit, payment_terms, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $18) RETURNING id`,
		c.Code, c.FirstName, c.LastName, c.CustomerType, c.Status, c.Email, c.Phone, c.CompanyName, c.GSTTaxID,
		c.BillingAddress, c.ShippingAddress, c.City, c.State, c.ZipCode, c.Country, c.CreditLimit, c.PaymentTerms, now).Scan(&c.ID)
	if err != nil {
		return Customer{}, mapWriteError(err)
	}
	c.CreatedAt, c.UpdatedAt = now, now
	return c, nil
}

func (r *repository) Update(ctx context.Context, c Customer) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `UPDATE customers SET first_name = $1, last_name = $2, customer_type = $3, status = $4, email = $5,
phone = $6, company_name = $7, gst_tax_id = $8, billing_address = $9, shipping_address = $10, city = $11, state = $12,
zip_code = $13, country = $14, credit_limit = $15, payment_terms = $16, updated_at = NOW() WHERE id = $17`,
		c.FirstName, c.LastName, c.CustomerType, c.Status, c.Email, c.Phone, c.CompanyName, c.GSTTaxID, c.BillingAddress,
		c.ShippingAddress, c.City, c.State, c.ZipCode, c.Country, c.CreditLimit, c.PaymentTerms, c.ID)
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", c.ID, internalShared.ErrNotFound)
	}
	return nil
}

func (r *repository) Delete(ctx context.Context, id int64) error {
	tag, err := db.Conn(ctx, r.pool).Exec(ctx, `DELETE FROM customers WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("customer %d: %w", id, internalShared.ErrNotFound)
	}
	return nil
}

func scanCustomer(row pgx.Row) (Customer, error) {
	var c Customer
	err := row.Scan(&c.ID, &c.Code, &c.FirstName, &c.LastName, &c.CustomerType, &c.Status, &c.Email, &c.Phone, &c.CompanyName,
		&c.GSTTaxID, &c.BillingAddress, &c.ShippingAddress, &c.City, &c.State, &c.ZipCode, &c.Country, &c.CreditLimit,
		&c.PaymentTerms, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

func mapWriteError(err error) error {
	if db.IsUniqueViolation(err, emailConstraint) {
		return fmt.Errorf("customer email already exists: %w", internalShared.ErrDuplicate)
	}
	return err
}
