package session

import (
	"context"
	"log/slog"
	"net/http"
)

// contextKey is an unexported type used for context keys in this package.
//
// WHY A CUSTOM TYPE FOR CONTEXT KEYS?
// context.WithValue uses any as the key type. With a plain string key,
// ANY package that knows the string could read or shadow the value.
// A package-private type means only this package can mint the key, so
// only this package controls what lives under it.
type contextKey string

const sessionKey contextKey = "session"

// Middleware wires the manager and cookie transport into the request
// pipeline. Ensure runs on every route; RequireAuthenticated only on
// protected ones.
type Middleware struct {
	manager *Manager
	cookies *CookieWriter
	logger  *slog.Logger
}

// NewMiddleware bundles the session manager with its cookie transport.
func NewMiddleware(manager *Manager, cookies *CookieWriter, logger *slog.Logger) *Middleware {
	return &Middleware{
		manager: manager,
		cookies: cookies,
		logger:  logger,
	}
}

// Ensure guarantees every request runs with a live session in its
// context:
//
//  1. Resolve the cookie's id against the store. A destroyed, expired,
//     or forged id simply doesn't resolve — the request proceeds as if
//     no cookie were present.
//  2. No session → create a fresh ANONYMOUS one.
//  3. Existing session → apply idle rotation (Touch) as a side effect.
//  4. If the id was created or changed, re-issue the cookie.
//
// Handlers downstream read the session with FromContext.
func (m *Middleware) Ensure(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		presentedID := m.cookies.Read(r)
		s, err := m.manager.Get(ctx, presentedID)
		if err != nil {
			m.logger.Error("session lookup failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		if s == nil {
			s, err = m.manager.Create(ctx)
		} else {
			s, err = m.manager.Touch(ctx, s)
		}
		if err != nil {
			m.logger.Error("session setup failed",
				slog.String("path", r.URL.Path),
				slog.String("error", err.Error()),
			)
			http.Error(w, "service unavailable", http.StatusServiceUnavailable)
			return
		}

		if s.ID != presentedID {
			m.cookies.Write(w, s)
		}

		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, sessionKey, s)))
	})
}

// RequireAuthenticated gates protected pages. An unauthenticated request
// is answered with a redirect to the login page — a signal, not an
// error; the anonymous session stays intact so the login form can use
// its CSRF token.
func (m *Middleware) RequireAuthenticated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s, ok := FromContext(r.Context())
		if !ok || !s.Authenticated {
			http.Redirect(w, r, "/login", http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// FromContext retrieves the request's session.
//
// Returns (nil, false) only when Ensure did not run — a programming
// error in route setup, not a runtime condition handlers should expect.
func FromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey).(*Session)
	return s, ok && s != nil
}
