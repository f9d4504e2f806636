package procurement

import (
	"time"
)

// Purchase order lifecycle statuses.
type POStatus string

const (
	POStatusDraft     POStatus = "Draft"
	POStatusSubmitted POStatus = "Submitted"
	POStatusCancelled POStatus = "Cancelled"
)

// PurchaseOrder domain model.
type PurchaseOrder struct {
	ID           int64     `json:"id"`
	Code         string    `json:"purchase_order_id"`
	SalesOrderID *int64    `json:"sales_order_id"`
	SupplierID   *int64    `json:"supplier_id"`
	Status       POStatus  `json:"status"`
	Note         string    `json:"note"`
	CreatedBy    int64     `json:"created_by"`
	CreatedAt    time.Time `json:"created_at"`
	Lines        []POLine  `json:"lines"`
}

// POLine represents PO lines.
type POLine struct {
	ID          int64  `json:"id"`
	POID        int64  `json:"-"`
	ProductID   int64  `json:"product"`
	ProductCode string `json:"product_id_display"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
}

// LineInput requests quantity of a product.
type LineInput struct {
	ProductID   int64
	ProductCode string
	ProductName string
	Quantity    int
}

// DeficitInput describes a purchase order raised for a sales order.
type DeficitInput struct {
	SalesOrderID int64
	Note         string
	Lines        []LineInput
}

// ListFilters narrows purchase order listings.
type ListFilters struct {
	SalesOrderID *int64
}
