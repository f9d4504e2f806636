package documents

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/odyssey-erp/odyssey-crm/internal/platform/db"
)

// LineTable persists the priced part of document lines in a child table
// keyed by Parent. Document specific columns are written by the owning
// repository.
type LineTable struct {
	Table  string
	Parent string
}

const lineColumns = `id, product_id, product_code, product_name, uom, quantity, unit_price, discount, tax_code_id, tax_rate, total`

// Load returns the lines of parentID in insertion order.
func (t LineTable) Load(ctx context.Context, conn db.DBTX, parentID int64) ([]Line, error) {
	rows, err := conn.Query(ctx, `SELECT `+lineColumns+` FROM `+t.Table+` WHERE `+t.Parent+` = $1 ORDER BY id`, parentID)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", t.Table, err)
	}
	defer rows.Close()
	var lines []Line
	for rows.Next() {
		line, err := scanLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}
	return lines, rows.Err()
}

// Insert stores line under parentID and returns its id.
func (t LineTable) Insert(ctx context.Context, conn db.DBTX, parentID int64, line Line) (int64, error) {
	var id int64
	err := conn.QueryRow(ctx, `INSERT INTO `+t.Table+` (`+t.Parent+`, product_id, product_code, product_name, uom, quantity,
unit_price, discount, tax_code_id, tax_rate, total) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11) RETURNING id`,
		parentID, line.ProductID, line.ProductCode, line.ProductName, line.UOM, line.Quantity,
		line.UnitPrice, line.Discount, line.TaxCodeID, line.TaxRate, line.Total).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert %s: %w", t.Table, err)
	}
	return id, nil
}

// Update rewrites the priced columns of line.
func (t LineTable) Update(ctx context.Context, conn db.DBTX, parentID int64, line Line) error {
	_, err := conn.Exec(ctx, `UPDATE `+t.Table+` SET product_id = $1, product_code = $2, product_name = $3, uom = $4,
quantity = $5, unit_price = $6, discount = $7, tax_code_id = $8, tax_rate = $9, total = $10
WHERE id = $11 AND `+t.Parent+` = $12`,
		line.ProductID, line.ProductCode, line.ProductName, line.UOM, line.Quantity,
		line.UnitPrice, line.Discount, line.TaxCodeID, line.TaxRate, line.Total, line.ID, parentID)
	if err != nil {
		return fmt.Errorf("update %s: %w", t.Table, err)
	}
	return nil
}

// Delete removes the given lines of parentID.
func (t LineTable) Delete(ctx context.Context, conn db.DBTX, parentID int64, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := conn.Exec(ctx, `DELETE FROM `+t.Table+` WHERE `+t.Parent+` = $1 AND id = ANY($2)`, parentID, ids)
	if err != nil {
		return fmt.Errorf("delete %s: %w", t.Table, err)
	}
	return nil
}

// Apply executes a reconcile plan and returns the resulting lines with ids:
// updates first, then inserts.
func (t LineTable) Apply(ctx context.Context, conn db.DBTX, parentID int64, plan ReconcilePlan[Line]) ([]Line, error) {
	if err := t.Delete(ctx, conn, parentID, plan.Delete); err != nil {
		return nil, err
	}
	out := make([]Line, 0, len(plan.Update)+len(plan.Create))
	for _, line := range plan.Update {
		if err := t.Update(ctx, conn, parentID, line); err != nil {
			return nil, err
		}
		out = append(out, line)
	}
	for _, line := range plan.Create {
		id, err := t.Insert(ctx, conn, parentID, line)
		if err != nil {
			return nil, err
		}
		line.ID = id
		out = append(out, line)
	}
	return out, nil
}

func scanLine(row pgx.Row) (Line, error) {
	var l Line
	err := row.Scan(&l.ID, &l.ProductID, &l.ProductCode, &l.ProductName, &l.UOM, &l.Quantity,
		&l.UnitPrice, &l.Discount, &l.TaxCodeID, &l.TaxRate, &l.Total)
	return l, err
}
