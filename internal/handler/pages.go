package handler

import (
	"log/slog"
	"net/http"

	"github.com/securelearn/dashboard/internal/session"
)

// PageHandler serves the HTML pages. The dashboard and stats pages sit
// behind the RequireAuthenticated middleware; the login and register
// pages are public.
type PageHandler struct {
	renderer *Renderer
	logger   *slog.Logger
}

// NewPageHandler creates a PageHandler.
func NewPageHandler(renderer *Renderer, logger *slog.Logger) *PageHandler {
	return &PageHandler{renderer: renderer, logger: logger}
}

// HandleIndex routes the root URL by session state: authenticated users
// land on the dashboard, everyone else on the login page.
//
// HTTP: GET /
func (h *PageHandler) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if s, ok := session.FromContext(r.Context()); ok && s.Authenticated {
		http.Redirect(w, r, "/dashboard", http.StatusFound)
		return
	}
	http.Redirect(w, r, "/login", http.StatusFound)
}

// HandleLoginPage renders the login form with the session's current CSRF
// token in its hidden field.
//
// HTTP: GET /login
func (h *PageHandler) HandleLoginPage(w http.ResponseWriter, r *http.Request) {
	data := sessionData(r, "Sign in — SecureLearn")
	if r.URL.Query().Get("registered") == "1" {
		data.Notice = "Account created. You can sign in now."
	}
	h.renderer.render(w, http.StatusOK, "login", data)
}

// HandleRegisterPage renders the registration form.
//
// HTTP: GET /register
func (h *PageHandler) HandleRegisterPage(w http.ResponseWriter, r *http.Request) {
	h.renderer.render(w, http.StatusOK, "register", sessionData(r, "Create account — SecureLearn"))
}

// HandleDashboard renders the dashboard for the signed-in user. Reached
// only through RequireAuthenticated, so the session is guaranteed to
// carry a username.
//
// HTTP: GET /dashboard
func (h *PageHandler) HandleDashboard(w http.ResponseWriter, r *http.Request) {
	h.renderer.render(w, http.StatusOK, "dashboard", sessionData(r, "Dashboard — SecureLearn"))
}

// HandleStats renders the system stats page. Metrics collection is a
// separate collaborator; this page only asserts authentication and
// renders whatever the template shows.
//
// HTTP: GET /stats
func (h *PageHandler) HandleStats(w http.ResponseWriter, r *http.Request) {
	h.renderer.render(w, http.StatusOK, "stats", sessionData(r, "System stats — SecureLearn"))
}
