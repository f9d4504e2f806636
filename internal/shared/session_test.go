package shared

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSessions(t *testing.T) (*SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewSessionManager(client, "odyssey_session", "secret", time.Hour, false), mr
}

func TestSessionIssueAndLoadBearer(t *testing.T) {
	sm, _ := newTestSessions(t)
	ctx := context.Background()

	id, err := sm.Issue(ctx, 42)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+id)
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	userID, ok := sess.UserID()
	require.True(t, ok)
	assert.Equal(t, int64(42), userID)
}

func TestSessionCookieRoundTrip(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	sess.SetUser("7")
	sess.Set("branch", "3")

	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))
	assert.True(t, mr.Exists("session:"+sess.ID))

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	loaded, err := sm.Load(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "7", loaded.User())
	assert.Equal(t, "3", loaded.Get("branch"))
}

func TestSessionAnonymousIsNotStored(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	sess, err := sm.Load(ctx, httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	rec := httptest.NewRecorder()
	require.NoError(t, sm.Commit(ctx, rec, sess))

	assert.Empty(t, mr.Keys())
	assert.Empty(t, rec.Result().Cookies())
	_, ok := sess.UserID()
	assert.False(t, ok)
}

func TestSessionDestroy(t *testing.T) {
	sm, mr := newTestSessions(t)
	ctx := context.Background()

	id, err := sm.Issue(ctx, 1)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "odyssey_session", Value: id})
	sess, err := sm.Load(ctx, req)
	require.NoError(t, err)

	sm.Destroy(sess)
	require.NoError(t, sm.Commit(ctx, httptest.NewRecorder(), sess))
	assert.False(t, mr.Exists("session:"+id))
}
