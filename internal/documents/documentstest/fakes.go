// Package documentstest provides in-memory collaborators for document
// service tests.
package documentstest

import (
	"context"
	"fmt"
	"sync"

	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/masterdata/customers"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

func ptr[T any](v T) *T { return &v }

// Catalog serves fixed products and tax codes.
type Catalog struct {
	Products map[int64]documents.ProductSnapshot
	Rates    map[int64]decimal.Decimal
}

// NewCatalog returns product 7 (18% tax), product 8 (5% tax) and product 9
// (untaxed).
func NewCatalog() *Catalog {
	return &Catalog{
		Products: map[int64]documents.ProductSnapshot{
			7: {ID: 7, Code: "CVB0007", Name: "Steel bracket", UOM: "pcs", UnitPrice: decimal.NewFromInt(100), TaxCodeID: ptr(int64(1)), TaxRate: decimal.NewFromInt(18)},
			8: {ID: 8, Code: "CVB0008", Name: "Hex bolt", UOM: "box", UnitPrice: decimal.NewFromInt(50), TaxCodeID: ptr(int64(2)), TaxRate: decimal.NewFromInt(5)},
			9: {ID: 9, Code: "CVB0009", Name: "Install service", UOM: "hrs", UnitPrice: decimal.NewFromInt(250)},
		},
		Rates: map[int64]decimal.Decimal{1: decimal.NewFromInt(18), 2: decimal.NewFromInt(5)},
	}
}

func (c *Catalog) Snapshot(_ context.Context, id int64) (documents.ProductSnapshot, error) {
	p, ok := c.Products[id]
	if !ok {
		return documents.ProductSnapshot{}, fmt.Errorf("product %d: %w", id, shared.ErrNotFound)
	}
	return p, nil
}

func (c *Catalog) TaxRate(_ context.Context, id int64) (decimal.Decimal, error) {
	rate, ok := c.Rates[id]
	if !ok {
		return decimal.Zero, fmt.Errorf("tax code %d: %w", id, shared.ErrNotFound)
	}
	return rate, nil
}

// Inventory tracks stock per product.
type Inventory struct {
	mu    sync.Mutex
	stock map[int64]int
}

func NewInventory(stock map[int64]int) *Inventory {
	s := make(map[int64]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &Inventory{stock: s}
}

func (i *Inventory) Available(_ context.Context, productID int64) (int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stock[productID], nil
}

func (i *Inventory) Deduct(_ context.Context, productID int64, qty int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if i.stock[productID] < qty {
		return &shared.InsufficientStockError{Lines: []shared.StockShortfall{{ProductID: productID, Required: qty, Available: i.stock[productID]}}}
	}
	i.stock[productID] -= qty
	return nil
}

func (i *Inventory) Restock(_ context.Context, productID int64, qty int) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.stock[productID] += qty
	return nil
}

// Stock returns the current quantity of productID.
func (i *Inventory) Stock(productID int64) int {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stock[productID]
}

// Customers is a fixed customer directory.
type Customers map[int64]customers.Customer

// NewCustomers returns customer 1 (Kumar Traders).
func NewCustomers() Customers {
	return Customers{
		1: {ID: 1, Code: "CUS0001", FirstName: "Ravi", LastName: "Kumar", CustomerType: customers.CustomerTypeBusiness,
			CompanyName: "Kumar Traders", Email: "accounts@kumar.example", Status: customers.StatusActive},
	}
}

func (c Customers) Get(_ context.Context, id int64) (customers.Customer, error) {
	cust, ok := c[id]
	if !ok {
		return customers.Customer{}, fmt.Errorf("customer %d: %w", id, shared.ErrNotFound)
	}
	return cust, nil
}

// Renderer produces a fake PDF carrying the document code.
type Renderer struct {
	Err error
}

func (r Renderer) RenderPDF(_ context.Context, data documents.RenderData) ([]byte, error) {
	if r.Err != nil {
		return nil, r.Err
	}
	return []byte("%PDF " + data.Code), nil
}

func (r Renderer) RenderEmail(data documents.RenderData) (string, string, error) {
	return data.Title + " " + data.Code, "Total " + data.Totals.GrandTotal.StringFixed(2), r.Err
}

// Email is one queued message.
type Email struct {
	To, Subject, Body string
}

// Mailer records queued emails.
type Mailer struct {
	mu   sync.Mutex
	Sent []Email
}

func (m *Mailer) SendDocumentEmail(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Sent = append(m.Sent, Email{To: to, Subject: subject, Body: body})
	return nil
}

// Transition is one recorded state machine attempt.
type Transition struct {
	Document, Action string
	Failed           bool
}

// Recorder records transition attempts.
type Recorder struct {
	mu    sync.Mutex
	Calls []Transition
}

func (r *Recorder) RecordTransition(document, action string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Calls = append(r.Calls, Transition{Document: document, Action: action, Failed: err != nil})
}

// Publisher wires the fake renderer and mailer to journal.
func Publisher(journal documents.Journal, mailer *Mailer) documents.Publisher {
	return documents.Publisher{Renderer: Renderer{}, Mailer: mailer, Journal: journal}
}

// Line returns a request for qty units of productID at price with discount%.
func Line(productID int64, qty int, price, discount string) documents.LineRequest {
	return documents.LineRequest{
		ProductID: productID,
		Quantity:  qty,
		UnitPrice: decimal.RequireFromString(price),
		Discount:  decimal.RequireFromString(discount),
	}
}

// Dec parses a decimal literal.
func Dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }
