package rbac

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/odyssey-crm/internal/shared"
)

type stubSource struct {
	principals map[int64]Principal
	calls      atomic.Int32
	err        error
}

func (s *stubSource) LoadPrincipal(_ context.Context, userID int64) (Principal, error) {
	s.calls.Add(1)
	if s.err != nil {
		return Principal{}, s.err
	}
	p, ok := s.principals[userID]
	if !ok {
		return Anonymous, nil
	}
	return p, nil
}

func newRouter(t *testing.T, source PrincipalSource) (http.Handler, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "sid", "secret", time.Hour, false)

	mw := Middleware{Principals: source}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Use(mw.Resolve)
	ok := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Actor", "set")
		if shared.ActorFromContext(r.Context()) == 0 {
			w.Header().Set("X-Actor", "none")
		}
		w.WriteHeader(http.StatusOK)
	}
	r.With(mw.Require("tasks")).Get("/tasks", ok)
	r.With(mw.Require("tasks")).Post("/tasks", ok)
	r.With(mw.RequireAction("tasks")).Post("/tasks/{id}/actions", ok)
	r.With(mw.Require("login")).Post("/login", ok)
	return r, sessions
}

func doRequest(t *testing.T, h http.Handler, sessions *shared.SessionManager, userID int64, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	if userID > 0 {
		token, err := sessions.Issue(context.Background(), userID)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddlewareRequire(t *testing.T) {
	source := &stubSource{principals: map[int64]Principal{
		10: member(Permissions{CategoryTask: {View: true, Edit: true}}),
	}}
	h, sessions := newRouter(t, source)

	rec := doRequest(t, h, sessions, 10, http.MethodGet, "/tasks")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, sessions, 10, http.MethodPost, "/tasks")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Equal(t, "Forbidden\n", rec.Body.String())

	rec = doRequest(t, h, sessions, 10, http.MethodPost, "/tasks/1/actions")
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doRequest(t, h, sessions, 0, http.MethodGet, "/tasks")
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = doRequest(t, h, sessions, 0, http.MethodPost, "/login")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "none", rec.Header().Get("X-Actor"))
}

func TestMiddlewareSourceFailure(t *testing.T) {
	source := &stubSource{err: errors.New("db down")}
	h, sessions := newRouter(t, source)
	rec := doRequest(t, h, sessions, 10, http.MethodGet, "/tasks")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestCacheCollapsesAndInvalidates(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	source := &stubSource{principals: map[int64]Principal{
		1: member(Permissions{CategoryInvoice: {View: true}}),
		2: member(nil),
	}}
	cache := NewCache(source, client, time.Minute, nil)
	ctx := context.Background()

	p, err := cache.LoadPrincipal(ctx, 1)
	require.NoError(t, err)
	assert.True(t, p.Role.Permissions.For(CategoryInvoice).View)

	_, err = cache.LoadPrincipal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.calls.Load())

	require.NoError(t, cache.Invalidate(ctx, 1))
	_, err = cache.LoadPrincipal(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int32(2), source.calls.Load())

	_, err = cache.LoadPrincipal(ctx, 2)
	require.NoError(t, err)
	require.NoError(t, cache.InvalidateAll(ctx))
	assert.Empty(t, mr.Keys())
}
