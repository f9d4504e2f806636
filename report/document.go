package report

import (
	"bytes"
	"context"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/web"
)

// PDFClient exposes the subset of the Gotenberg client used by the renderer.
type PDFClient interface {
	RenderHTML(ctx context.Context, html string) ([]byte, error)
}

// DocumentRenderer turns computed sales documents into PDFs through
// Gotenberg and into plain text email bodies.
type DocumentRenderer struct {
	page    *htmltemplate.Template
	email   *texttemplate.Template
	client  PDFClient
	printer *message.Printer
}

// NewDocumentRenderer parses the embedded templates. locale is a BCP 47 tag
// such as en-IN and decides digit grouping of amounts.
func NewDocumentRenderer(client PDFClient, locale string) (*DocumentRenderer, error) {
	if client == nil {
		return nil, fmt.Errorf("document renderer: pdf client required")
	}
	tag, err := language.Parse(locale)
	if err != nil {
		tag = language.English
	}
	funcs := map[string]any{"inc": func(i int) int { return i + 1 }}
	page, err := htmltemplate.New("document.html").Funcs(funcs).ParseFS(web.Templates, "templates/documents/document.html")
	if err != nil {
		return nil, err
	}
	email, err := texttemplate.New("email.txt").ParseFS(web.Templates, "templates/documents/email.txt")
	if err != nil {
		return nil, err
	}
	return &DocumentRenderer{page: page, email: email, client: client, printer: message.NewPrinter(tag)}, nil
}

type lineView struct {
	Code, Name, UOM                     string
	Quantity                            int
	UnitPrice, Discount, TaxRate, Total string
}

type amountView struct {
	Label, Amount string
}

type documentView struct {
	Title, Code, Status, Party, Date string
	Fields                           []documents.Field
	Lines                            []lineView
	Summary                          []amountView
}

// Money formats v with two decimals and locale grouping, prefixed with the
// currency code when one is given.
func (r *DocumentRenderer) Money(v decimal.Decimal, currency string) string {
	s := r.printer.Sprint(number.Decimal(v.InexactFloat64(), number.Scale(2)))
	if currency == "" {
		return s
	}
	return currency + " " + s
}

func (r *DocumentRenderer) percent(v decimal.Decimal) string {
	return r.printer.Sprint(number.Decimal(v.InexactFloat64(), number.MaxFractionDigits(2)))
}

func (r *DocumentRenderer) view(data documents.RenderData) documentView {
	v := documentView{
		Title:  data.Title,
		Code:   data.Code,
		Status: data.Status,
		Party:  data.Party,
		Fields: data.Fields,
	}
	if !data.Date.IsZero() {
		v.Date = data.Date.Format("02 Jan 2006")
	}
	for _, l := range data.Lines {
		v.Lines = append(v.Lines, lineView{
			Code:      l.ProductCode,
			Name:      l.ProductName,
			UOM:       l.UOM,
			Quantity:  l.Quantity,
			UnitPrice: r.Money(l.UnitPrice, ""),
			Discount:  r.percent(l.Discount),
			TaxRate:   r.percent(l.TaxRate),
			Total:     r.Money(l.Total, ""),
		})
	}
	t := data.Totals
	rows := []documents.AmountRow{{Label: "Subtotal", Amount: t.Subtotal}}
	if !t.DiscountAmount.IsZero() {
		rows = append(rows, documents.AmountRow{Label: "Discount", Amount: t.DiscountAmount.Neg()})
	}
	rows = append(rows, documents.AmountRow{Label: "Tax", Amount: t.TaxSummary})
	if !t.ShippingCharges.IsZero() {
		rows = append(rows, documents.AmountRow{Label: "Shipping", Amount: t.ShippingCharges})
	}
	if !t.RoundingAdjustment.IsZero() {
		rows = append(rows, documents.AmountRow{Label: "Rounding", Amount: t.RoundingAdjustment})
	}
	rows = append(rows, documents.AmountRow{Label: "Grand Total", Amount: t.GrandTotal})
	rows = append(rows, data.Amounts...)
	for _, row := range rows {
		v.Summary = append(v.Summary, amountView{Label: row.Label, Amount: r.Money(row.Amount, data.Currency)})
	}
	return v
}

// HTML renders the printable page of data.
func (r *DocumentRenderer) HTML(data documents.RenderData) (string, error) {
	buf := &bytes.Buffer{}
	if err := r.page.Execute(buf, r.view(data)); err != nil {
		return "", fmt.Errorf("render %s %s: %w", data.Type, data.Code, err)
	}
	return buf.String(), nil
}

// RenderPDF renders the page and converts it through Gotenberg.
func (r *DocumentRenderer) RenderPDF(ctx context.Context, data documents.RenderData) ([]byte, error) {
	html, err := r.HTML(data)
	if err != nil {
		return nil, err
	}
	return r.client.RenderHTML(ctx, html)
}

// RenderEmail returns the subject and plain text body for data.
func (r *DocumentRenderer) RenderEmail(data documents.RenderData) (string, string, error) {
	buf := &bytes.Buffer{}
	if err := r.email.Execute(buf, r.view(data)); err != nil {
		return "", "", fmt.Errorf("render email %s %s: %w", data.Type, data.Code, err)
	}
	return strings.TrimSpace(data.Title + " " + data.Code), buf.String(), nil
}
