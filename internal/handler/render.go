// Package handler contains the HTTP request handlers — the glue between
// the browser's forms and the auth core.
//
// HANDLER RESPONSIBILITIES:
// 1. Decode raw form fields into typed input structs
// 2. Enforce the CSRF policy before any side-effecting call
// 3. Call the service layer and map its errors to rendered pages
// 4. Issue/clear the session cookie when the service re-keys a session
//
// Handlers hold NO business logic: validation rules, credential checks,
// and session transitions all live below the service boundary.
package handler

import (
	"html/template"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/securelearn/dashboard/internal/session"
)

// pageData is what every template receives. Error is always a
// pre-sanitized string from the apperror taxonomy — handlers never put
// raw error text here.
type pageData struct {
	Title     string
	Username  string
	CSRFToken string
	Error     string
	Notice    string
}

// Renderer holds the parsed page templates so they are compiled once at
// startup, not on every request.
//
// Each page is parsed together with base.html into its own template set,
// because every page defines the same "content" block that base.html
// embeds — they cannot share one set.
type Renderer struct {
	pages  map[string]*template.Template
	logger *slog.Logger
}

// pageNames lists the page templates under the template directory.
var pageNames = []string{"login", "register", "dashboard", "stats"}

// NewRenderer parses base.html plus each page template.
func NewRenderer(templateDir string, logger *slog.Logger) (*Renderer, error) {
	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		tmpl, err := template.ParseFiles(
			filepath.Join(templateDir, "base.html"),
			filepath.Join(templateDir, name+".html"),
		)
		if err != nil {
			return nil, err
		}
		pages[name] = tmpl
	}
	return &Renderer{pages: pages, logger: logger}, nil
}

// render executes a page template. The session's username and CSRF token
// are always available to the page; html/template escapes everything it
// interpolates, so user-supplied values (like a hostile username echoed
// back on a failed registration) cannot become markup.
func (rd *Renderer) render(w http.ResponseWriter, status int, page string, data pageData) {
	tmpl, ok := rd.pages[page]
	if !ok {
		rd.logger.Error("unknown page template", slog.String("page", page))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "base", data); err != nil {
		// Headers are already sent; all we can do is log.
		rd.logger.Error("rendering page failed",
			slog.String("page", page),
			slog.String("error", err.Error()),
		)
	}
}

// sessionData seeds pageData from the request's session.
func sessionData(r *http.Request, title string) pageData {
	data := pageData{Title: title}
	if s, ok := session.FromContext(r.Context()); ok {
		data.Username = s.Username
		data.CSRFToken = s.CSRFToken
	}
	return data
}
