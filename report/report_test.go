package report

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/documents/documentstest"
)

func gotenberg(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			w.WriteHeader(http.StatusOK)
		case "/forms/chromium/convert/html":
			file, _, err := r.FormFile("files")
			if err != nil {
				http.Error(w, "missing file", http.StatusBadRequest)
				return
			}
			if r.FormValue("paperWidth") != "8.27" || r.FormValue("paperHeight") != "11.7" {
				http.Error(w, "expected A4", http.StatusBadRequest)
				return
			}
			html, _ := io.ReadAll(file)
			_, _ = w.Write(append([]byte("%PDF-1.7 "), html...))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func invoiceData() documents.RenderData {
	return documents.RenderData{
		Type:     documents.TypeInvoice,
		Title:    "Tax Invoice",
		Code:     "INV-0001",
		Status:   "Sent",
		Party:    "Kumar Traders",
		Date:     time.Date(2026, 5, 4, 0, 0, 0, 0, time.UTC),
		Currency: "INR",
		Fields:   []documents.Field{{Label: "Payment Terms", Value: "Net 30"}},
		Lines: []documents.Line{{
			ProductCode: "CVB0007", ProductName: "Steel bracket", UOM: "pcs", Quantity: 2,
			UnitPrice: documentstest.Dec("100"), Discount: documentstest.Dec("10"), TaxRate: documentstest.Dec("18"),
			Total: documentstest.Dec("212.40"),
		}},
		Totals: documents.Totals{
			Subtotal:           documentstest.Dec("1212.40"),
			TaxSummary:         documentstest.Dec("38.23"),
			RoundingAdjustment: documentstest.Dec("0.37"),
			GrandTotal:         documentstest.Dec("1251"),
		},
		Amounts: []documents.AmountRow{{Label: "Balance Due", Amount: documentstest.Dec("1251")}},
	}
}

func TestDocumentRendererHTML(t *testing.T) {
	r, err := NewDocumentRenderer(NewClient("http://unused"), "en")
	require.NoError(t, err)

	html, err := r.HTML(invoiceData())
	require.NoError(t, err)
	assert.Contains(t, html, "<h1>Tax Invoice INV-0001</h1>")
	assert.Contains(t, html, "04 May 2026")
	assert.Contains(t, html, "CVB0007 Steel bracket")
	assert.Contains(t, html, "<td class=\"num\">212.40</td>")
	assert.Contains(t, html, "INR 1,212.40")
	assert.Contains(t, html, "<th>Balance Due</th><td class=\"num\">INR 1,251.00</td>")
	assert.NotContains(t, html, "Shipping")
}

func TestDocumentRendererEscapesInput(t *testing.T) {
	r, err := NewDocumentRenderer(NewClient("http://unused"), "en")
	require.NoError(t, err)
	data := invoiceData()
	data.Party = "<script>alert(1)</script>"
	html, err := r.HTML(data)
	require.NoError(t, err)
	assert.NotContains(t, html, "<script>")
}

func TestDocumentRendererPDFAndEmail(t *testing.T) {
	srv := gotenberg(t)
	client := NewClient(srv.URL + "/")
	require.NoError(t, client.Ping(context.Background()))

	r, err := NewDocumentRenderer(client, "not a locale")
	require.NoError(t, err)
	pdf, err := r.RenderPDF(context.Background(), invoiceData())
	require.NoError(t, err)
	assert.Contains(t, string(pdf), "%PDF-1.7")
	assert.Contains(t, string(pdf), "INV-0001")

	subject, body, err := r.RenderEmail(invoiceData())
	require.NoError(t, err)
	assert.Equal(t, "Tax Invoice INV-0001", subject)
	assert.Contains(t, body, "Dear Kumar Traders,")
	assert.Contains(t, body, "Grand Total: INR 1,251.00")
}

func TestClientRenderFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "chromium crashed", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).RenderHTML(context.Background(), "<html></html>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chromium crashed")
	assert.Error(t, NewClient(srv.URL).Ping(context.Background()))

	h := NewHandler(NewClient(srv.URL), nil)
	rec := httptest.NewRecorder()
	h.ping(rec, httptest.NewRequest(http.MethodGet, "/ping", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
