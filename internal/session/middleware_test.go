package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMiddleware(t *testing.T) (*Middleware, *Manager) {
	t.Helper()
	m := NewManager(NewMemoryStore(), DefaultIdleThreshold, DefaultLifetime, testLogger())
	return NewMiddleware(m, NewCookieWriter(false), testLogger()), m
}

// capture is a terminal handler that records the session it saw.
func capture(seen **Session) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, _ := FromContext(r.Context())
		*seen = s
		w.WriteHeader(http.StatusOK)
	})
}

func TestEnsure_CreatesSessionForFirstContact(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	var seen *Session
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)

	mw.Ensure(capture(&seen)).ServeHTTP(rec, req)

	require.NotNil(t, seen, "handler ran without a session in context")
	assert.False(t, seen.Authenticated)
	assert.NotEmpty(t, seen.CSRFToken)

	// A session cookie must have been issued, and it must be locked down.
	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	c := cookies[0]
	assert.Equal(t, seen.ID, c.Value)
	assert.True(t, c.HttpOnly, "session cookie must be HttpOnly")
	assert.Equal(t, http.SameSiteStrictMode, c.SameSite, "session cookie must be SameSite=Strict")
}

func TestEnsure_ReusesLiveSession(t *testing.T) {
	mw, m := newTestMiddleware(t)

	existing, err := m.Create(context.Background())
	require.NoError(t, err)

	var seen *Session
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: insecureCookieName, Value: existing.ID})

	mw.Ensure(capture(&seen)).ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.Equal(t, existing.ID, seen.ID, "live session within threshold must keep its id")
	assert.Empty(t, rec.Result().Cookies(), "no cookie re-issue when the id is unchanged")
}

func TestEnsure_ForgedIDGetsFreshSession(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	var seen *Session
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/login", nil)
	req.AddCookie(&http.Cookie{Name: insecureCookieName, Value: "attacker-chosen-id"})

	mw.Ensure(capture(&seen)).ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotEqual(t, "attacker-chosen-id", seen.ID, "a presented id must never be adopted")
}

func TestEnsure_RotatesIdleSession(t *testing.T) {
	mw, m := newTestMiddleware(t)

	now := time.Now()
	m.now = func() time.Time { return now }

	existing, err := m.Create(context.Background())
	require.NoError(t, err)
	_, err = m.Authenticate(context.Background(), existing, "alice")
	require.NoError(t, err)

	now = now.Add(DefaultIdleThreshold + time.Minute)

	var seen *Session
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: insecureCookieName, Value: existing.ID})

	mw.Ensure(capture(&seen)).ServeHTTP(rec, req)

	require.NotNil(t, seen)
	assert.NotEqual(t, existing.ID, seen.ID, "idle session must be re-keyed")
	assert.True(t, seen.Authenticated, "rotation preserves authenticated state")
	assert.Equal(t, "alice", seen.Username)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1, "the new id must be re-issued to the browser")
	assert.Equal(t, seen.ID, cookies[0].Value)
}

func TestRequireAuthenticated_RedirectsAnonymous(t *testing.T) {
	mw, _ := newTestMiddleware(t)

	protected := mw.Ensure(mw.RequireAuthenticated(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			t.Error("protected handler ran for an anonymous request")
		},
	)))

	rec := httptest.NewRecorder()
	protected.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/dashboard", nil))

	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/login", rec.Header().Get("Location"))
}

func TestRequireAuthenticated_PassesAuthenticated(t *testing.T) {
	mw, m := newTestMiddleware(t)

	s, err := m.Create(context.Background())
	require.NoError(t, err)
	s, err = m.Authenticate(context.Background(), s, "alice")
	require.NoError(t, err)

	ran := false
	protected := mw.Ensure(mw.RequireAuthenticated(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			ran = true
			w.WriteHeader(http.StatusOK)
		},
	)))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	req.AddCookie(&http.Cookie{Name: insecureCookieName, Value: s.ID})
	protected.ServeHTTP(rec, req)

	assert.True(t, ran, "protected handler should run for an authenticated session")
	assert.Equal(t, http.StatusOK, rec.Code)
}
