package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/securelearn/dashboard/internal/apperror"
	"github.com/securelearn/dashboard/internal/auth"
	"github.com/securelearn/dashboard/internal/model"
	"github.com/securelearn/dashboard/internal/service"
	"github.com/securelearn/dashboard/internal/session"
)

// AuthHandler serves the state-changing form submissions: login,
// registration, and logout.
//
// CSRF POLICY:
// Every POST carries a hidden csrf_token field. The guard runs before
// ANY side-effecting logic, and the session's bound token is rotated on
// every submission — pass or fail — so a captured token is dead after
// one attempt. The fresh token reaches the browser through the re-render
// (failure) or the next page load (success).
type AuthHandler struct {
	auth     *service.AuthService
	sessions *session.Manager
	cookies  *session.CookieWriter
	renderer *Renderer
	logger   *slog.Logger
}

// NewAuthHandler creates an AuthHandler. All dependencies are injected;
// the handler has no knowledge of how they're constructed.
func NewAuthHandler(
	authService *service.AuthService,
	sessions *session.Manager,
	cookies *session.CookieWriter,
	renderer *Renderer,
	logger *slog.Logger,
) *AuthHandler {
	return &AuthHandler{
		auth:     authService,
		sessions: sessions,
		cookies:  cookies,
		renderer: renderer,
		logger:   logger,
	}
}

// HandleLogin processes the login form.
//
// HTTP: POST /login (fields: username, password, csrf_token)
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderFailure(w, r, "login", "Sign in — SecureLearn", http.StatusBadRequest,
			apperror.ValidationFailed("", "Could not read the submitted form."))
		return
	}
	form := model.ParseLoginForm(r.PostForm)

	if !h.guardCSRF(r, sess, form.CSRFToken) {
		h.renderFailure(w, r, "login", "Sign in — SecureLearn", http.StatusForbidden,
			apperror.CSRFMismatch())
		return
	}

	authed, err := h.auth.Login(r.Context(), sess, form.Username, form.Password)
	if err != nil {
		h.renderFailure(w, r, "login", "Sign in — SecureLearn", http.StatusUnauthorized, err)
		return
	}

	// Login re-keyed the session; hand the new id to the browser.
	h.cookies.Write(w, authed)
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}

// HandleRegister processes the registration form. A new account is not
// signed in automatically — the browser is sent to the login page, the
// same flow the rest of the app always exercises.
//
// HTTP: POST /register (fields: username, password1, password2, csrf_token)
func (h *AuthHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if !ok {
		http.Error(w, "service unavailable", http.StatusServiceUnavailable)
		return
	}
	if err := r.ParseForm(); err != nil {
		h.renderFailure(w, r, "register", "Create account — SecureLearn", http.StatusBadRequest,
			apperror.ValidationFailed("", "Could not read the submitted form."))
		return
	}
	form := model.ParseRegisterForm(r.PostForm)

	if !h.guardCSRF(r, sess, form.CSRFToken) {
		h.renderFailure(w, r, "register", "Create account — SecureLearn", http.StatusForbidden,
			apperror.CSRFMismatch())
		return
	}

	if err := h.auth.Register(r.Context(), form); err != nil {
		status := http.StatusBadRequest
		switch {
		case errors.Is(err, apperror.ErrUsernameTaken):
			status = http.StatusConflict
		case errors.Is(err, apperror.ErrInternal):
			status = http.StatusInternalServerError
		}
		h.renderFailure(w, r, "register", "Create account — SecureLearn", status, err)
		return
	}

	http.Redirect(w, r, "/login?registered=1", http.StatusSeeOther)
}

// HandleLogout destroys the session. Idempotent: logging out twice, or
// with no session at all, lands on the login page either way.
//
// HTTP: POST /logout (field: csrf_token)
func (h *AuthHandler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	sess, ok := session.FromContext(r.Context())
	if ok {
		_ = r.ParseForm()
		if !h.guardCSRF(r, sess, r.PostForm.Get("csrf_token")) {
			h.renderFailure(w, r, "login", "Sign in — SecureLearn", http.StatusForbidden,
				apperror.CSRFMismatch())
			return
		}
		h.auth.Logout(r.Context(), sess)
	}

	h.cookies.Clear(w)
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}

// guardCSRF validates the submitted token against the session's bound
// token and rotates the bound token no matter what. A mismatch is logged
// with requester metadata; the user only ever sees the generic message.
func (h *AuthHandler) guardCSRF(r *http.Request, sess *session.Session, submitted string) bool {
	valid := auth.ValidateCSRFToken(sess.CSRFToken, submitted)

	if err := h.sessions.RotateCSRF(r.Context(), sess); err != nil {
		h.logger.Error("csrf token rotation failed",
			slog.String("error", err.Error()),
		)
		return false
	}

	if !valid {
		h.logger.Warn("csrf validation failed",
			slog.String("ip", r.RemoteAddr),
			slog.String("path", r.URL.Path),
			slog.String("userAgent", r.UserAgent()),
		)
	}
	return valid
}

// renderFailure re-renders a form page with the error's pre-sanitized
// message and the freshly rotated CSRF token.
func (h *AuthHandler) renderFailure(w http.ResponseWriter, r *http.Request, page, title string, status int, err error) {
	data := sessionData(r, title)
	data.Error = apperror.UserMessage(err)
	h.renderer.render(w, status, page, data)
}
