package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/observability"
	"github.com/odyssey-erp/odyssey-crm/internal/platform/httpx"
	"github.com/odyssey-erp/odyssey-crm/internal/rbac"
	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type principals map[int64]rbac.Principal

func (p principals) LoadPrincipal(_ context.Context, userID int64) (rbac.Principal, error) {
	if principal, ok := p[userID]; ok {
		return principal, nil
	}
	return rbac.Anonymous, nil
}

type echoHandler struct {
	rbac rbac.Middleware
}

func (h echoHandler) MountRoutes(r chi.Router) {
	r.With(h.rbac.Require("quotations")).Get("/quotations", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]int64{"actor": shared.ActorFromContext(r.Context())})
	})
}

type fixture struct {
	handler  http.Handler
	sessions *shared.SessionManager
}

func newFixture(t *testing.T, limit int) fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "odyssey_session", "secret", time.Hour, false)

	mw := rbac.Middleware{Principals: principals{
		1: {UserID: 1, Authenticated: true, IsSuperuser: true},
	}}
	h := NewRouter(RouterParams{
		Config:         &Config{RateLimitPerMinute: limit, AppRequestTimeout: time.Second},
		SessionManager: sessions,
		RBACMiddleware: mw,
		Metrics:        observability.NewMetrics(),
		API:            []Mounter{echoHandler{rbac: mw}},
	})
	return fixture{handler: h, sessions: sessions}
}

func (f fixture) get(t *testing.T, path string, userID int64) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	req.RemoteAddr = "10.0.0.1:5555"
	if userID > 0 {
		token, err := f.sessions.Issue(context.Background(), userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.handler.ServeHTTP(rec, req)
	return rec
}

func TestRouterHealthAndSecureHeaders(t *testing.T) {
	f := newFixture(t, 100)
	rec := f.get(t, "/healthz", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.NotEmpty(t, rec.Header().Get("Content-Security-Policy"))
}

func TestRouterAPIRequiresPrincipal(t *testing.T) {
	f := newFixture(t, 100)

	rec := f.get(t, "/api/quotations", 0)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.get(t, "/api/quotations", 1)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"actor":1}`, rec.Body.String())

	rec = f.get(t, "/api/nothing-here", 1)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
}

func TestRouterMetricsRecordRoutes(t *testing.T) {
	f := newFixture(t, 100)
	f.get(t, "/api/quotations", 1)

	rec := f.get(t, "/metrics", 0)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `odyssey_http_requests_total{code="200",route="/api/quotations"} 1`)
}

func TestRouterRateLimit(t *testing.T) {
	f := newFixture(t, 2)
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", 0).Code)
	assert.Equal(t, http.StatusOK, f.get(t, "/healthz", 0).Code)

	rec := f.get(t, "/healthz", 0)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), "rate limit exceeded")
}
