package observability

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/documents"
	"github.com/odyssey-erp/odyssey-crm/internal/sequence"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

var (
	_ documents.Recorder = (*Metrics)(nil)
	_ sequence.Observer  = (*Metrics)(nil)
)

func scrape(t *testing.T, m *Metrics) string {
	t.Helper()
	rr := httptest.NewRecorder()
	m.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	return rr.Body.String()
}

func TestMetricsHandlerExposesRuntime(t *testing.T) {
	body := scrape(t, NewMetrics())
	assert.Contains(t, body, "go_goroutines")
}

func TestMetricsMiddlewareRecordsRequest(t *testing.T) {
	metrics := NewMetrics()
	handler := metrics.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	routeCtx := chi.NewRouteContext()
	routeCtx.RoutePatterns = append(routeCtx.RoutePatterns, "/api/invoices/{id}")
	req := httptest.NewRequest(http.MethodGet, "/api/invoices/4", nil)
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx))

	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)
	require.Equal(t, http.StatusTeapot, rr.Code)

	body := scrape(t, metrics)
	assert.Contains(t, body, `odyssey_http_requests_total{code="418",route="/api/invoices/{id}"} 1`)
	assert.Contains(t, body, `odyssey_http_request_duration_seconds_bucket{route="/api/invoices/{id}"`)
}

func TestMetricsRecordTransitionOutcomes(t *testing.T) {
	metrics := NewMetrics()
	metrics.RecordTransition("invoice", "submit", nil)
	metrics.RecordTransition("invoice", "submit", nil)
	metrics.RecordTransition("invoice", "record_payment", &shared.IllegalTransitionError{Document: "invoice", Action: "record_payment", Status: "Draft"})
	metrics.RecordTransition("sales_order", "submit", errors.New("boom"))

	body := scrape(t, metrics)
	for _, want := range []string{
		`odyssey_document_transitions_total{action="submit",document="invoice",outcome="ok"} 2`,
		`odyssey_document_transitions_total{action="record_payment",document="invoice",outcome="illegal"} 1`,
		`odyssey_document_transitions_total{action="submit",document="sales_order",outcome="error"} 1`,
	} {
		assert.True(t, strings.Contains(body, want), want)
	}
}

func TestMetricsSequenceObserver(t *testing.T) {
	metrics := NewMetrics()
	metrics.SequenceAllocated("invoice")
	metrics.SequenceRetried("invoice")

	body := scrape(t, metrics)
	assert.Contains(t, body, `odyssey_sequence_allocations_total{kind="invoice",result="allocated"} 1`)
	assert.Contains(t, body, `odyssey_sequence_allocations_total{kind="invoice",result="retried"} 1`)
}

func TestNilMetricsAreSafe(t *testing.T) {
	var metrics *Metrics
	metrics.RecordTransition("invoice", "submit", nil)
	metrics.SequenceAllocated("invoice")

	rr := httptest.NewRecorder()
	metrics.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}
