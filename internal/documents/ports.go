package documents

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Inventory is the stock collaborator of sales orders, delivery notes and
// their returns. Deduct fails with shared.InsufficientStockError when stock
// would go negative.
type Inventory interface {
	Available(ctx context.Context, productID int64) (int, error)
	Deduct(ctx context.Context, productID int64, qty int) error
	Restock(ctx context.Context, productID int64, qty int) error
}

// Field is a labelled header value on a rendered document.
type Field struct {
	Label string
	Value string
}

// RenderData is the fully computed document handed to renderers.
type RenderData struct {
	Type     Type
	Title    string
	Code     string
	Status   string
	Party    string
	Date     time.Time
	Currency string
	Fields   []Field
	Lines    []Line
	Totals   Totals
	// Amounts lists extra money rows printed under the totals, such as
	// balance due or amount to refund.
	Amounts []AmountRow
}

// AmountRow is one labelled money value.
type AmountRow struct {
	Label  string
	Amount decimal.Decimal
}

// Renderer turns computed documents into PDF bytes and email bodies.
type Renderer interface {
	RenderPDF(ctx context.Context, data RenderData) ([]byte, error)
	RenderEmail(data RenderData) (subject, body string, err error)
}

// Mailer queues outbound document emails.
type Mailer interface {
	SendDocumentEmail(ctx context.Context, to, subject, body string) error
}
