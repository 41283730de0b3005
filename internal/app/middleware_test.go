package app_test

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

	"github.com/memberdesk/memberdesk/internal/app"
	"github.com/memberdesk/memberdesk/internal/auth"
	"github.com/memberdesk/memberdesk/internal/shared"
	_ "github.com/memberdesk/memberdesk/testing"
)

func sessionContext(t *testing.T, user *shared.SessionUser) context.Context {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sm := shared.NewSessionManager(client, "test_session", "secret", time.Hour, false)
	sess, err := sm.Load(context.Background(), httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	if user != nil {
		sess.SetUser(*user)
	}
	return shared.ContextWithSession(context.Background(), sess)
}

func TestRequireSessionRedirectsAnonymous(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil)
	res := httptest.NewRecorder()
	app.RequireSession(next).ServeHTTP(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
	assert.Equal(t, "/welcome", res.Header().Get("Location"))
}

func TestRequireSessionRedirectsEmptySession(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	})

	req := httptest.NewRequest(http.MethodGet, "/profile", nil).WithContext(sessionContext(t, nil))
	res := httptest.NewRecorder()
	app.RequireSession(next).ServeHTTP(res, req)

	assert.Equal(t, http.StatusSeeOther, res.Code)
}

func TestRequireSessionPassesAuthenticated(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})

	ctx := sessionContext(t, &shared.SessionUser{ID: 1, Email: "user@test.local", Role: auth.RoleUser})
	req := httptest.NewRequest(http.MethodGet, "/profile", nil).WithContext(ctx)
	res := httptest.NewRecorder()
	app.RequireSession(next).ServeHTTP(res, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, res.Code)
}

func TestRequireRole(t *testing.T) {
	called := false
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	})
	guard := app.RequireRole(auth.RoleAdmin)

	ctx := sessionContext(t, &shared.SessionUser{ID: 1, Email: "user@test.local", Role: auth.RoleUser})
	req := httptest.NewRequest(http.MethodGet, "/users", nil).WithContext(ctx)
	res := httptest.NewRecorder()
	guard(next).ServeHTTP(res, req)
	assert.Equal(t, http.StatusForbidden, res.Code)
	assert.False(t, called)

	ctx = sessionContext(t, &shared.SessionUser{ID: 2, Email: "admin@test.local", Role: auth.RoleAdmin})
	req = httptest.NewRequest(http.MethodGet, "/users", nil).WithContext(ctx)
	res = httptest.NewRecorder()
	guard(next).ServeHTTP(res, req)
	assert.True(t, called)
	assert.Equal(t, http.StatusOK, res.Code)
}
