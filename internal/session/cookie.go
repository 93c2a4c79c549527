package session

import (
	"net/http"
)

// CookieName is the session cookie. The __Host- prefix makes browsers
// refuse the cookie unless it is Secure, Path=/, and has no Domain —
// exactly the transport constraints the manager requires.
const CookieName = "__Host-session"

// insecureCookieName is used when Secure cannot be set (plain-HTTP dev
// environments); the __Host- prefix would make browsers drop the cookie.
const insecureCookieName = "session"

// CookieWriter issues and clears the session cookie.
//
// Three attributes are non-negotiable, whatever the deployment:
//   - HttpOnly: page scripts can never read the id
//   - SameSite=Strict: the id is never sent on a cross-site request
//   - Secure whenever the deployment offers TLS
//
// Only the Secure flag is configurable, because a local dev server has
// no TLS to require.
type CookieWriter struct {
	secure bool
}

// NewCookieWriter returns a CookieWriter. secure should be true in any
// deployment that terminates TLS.
func NewCookieWriter(secure bool) *CookieWriter {
	return &CookieWriter{secure: secure}
}

func (c *CookieWriter) name() string {
	if c.secure {
		return CookieName
	}
	return insecureCookieName
}

// Read extracts the session id from the request, or "" when the cookie
// is absent.
func (c *CookieWriter) Read(r *http.Request) string {
	cookie, err := r.Cookie(c.name())
	if err != nil {
		return ""
	}
	return cookie.Value
}

// Write sends the session id to the browser. Called whenever a session
// is created or re-keyed.
func (c *CookieWriter) Write(w http.ResponseWriter, s *Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    s.ID,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}

// Clear tells the browser to drop the session cookie. MaxAge=-1 deletes
// immediately across clients.
func (c *CookieWriter) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name(),
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteStrictMode,
	})
}
