package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"io/fs"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/eventhive/eventhive/cmd/eventhive/internal/apperr"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/auth"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/db/models"
	"github.com/eventhive/eventhive/cmd/eventhive/internal/flash"
)

//go:embed templates/*.html
var templateFS embed.FS

// EventDateLayout is the datetime-local format used by the event form.
const EventDateLayout = "2006-01-02T15:04"

const layoutTemplate = "templates/layout.html"

var templateFuncs = template.FuncMap{
	"date": func(t time.Time) string {
		return t.UTC().Format("Jan 02, 2006 15:04")
	},
	"day": func(t time.Time) string {
		return t.UTC().Format("2006-01-02")
	},
	"stars": func(rating int) string {
		return strings.Repeat("★", rating) + strings.Repeat("☆", 5-rating)
	},
	"is": func(identity *auth.Identity, role string) bool {
		return identity != nil && string(identity.Role) == role
	},
}

// page is the data handed to every template.
type page struct {
	Title   string
	User    *auth.Identity
	Flashes []flash.Message
	Errors  apperr.FieldErrors
	Form    any
	Data    any
}

// Renderer executes page templates inside the shared layout and drains
// pending flash messages into each render.
type Renderer struct {
	views   map[string]*template.Template
	flashes *flash.Store
}

// NewRenderer parses the embedded templates.
func NewRenderer(flashes *flash.Store) (*Renderer, error) {
	pages, err := fs.Glob(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}

	views := make(map[string]*template.Template, len(pages))
	for _, name := range pages {
		if name == layoutTemplate {
			continue
		}
		tmpl, err := template.New("layout.html").Funcs(templateFuncs).ParseFS(templateFS, layoutTemplate, name)
		if err != nil {
			return nil, fmt.Errorf("parse template %s: %w", name, err)
		}
		key := strings.TrimSuffix(strings.TrimPrefix(name, "templates/"), ".html")
		views[key] = tmpl
	}
	return &Renderer{views: views, flashes: flashes}, nil
}

// Flash queues a notice for the next rendered page.
func (rd *Renderer) Flash(w http.ResponseWriter, r *http.Request, category, text string) {
	rd.flashes.Add(w, r, category, text)
}

// Render writes the named view with status.
func (rd *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p page) {
	tmpl, ok := rd.views[name]
	if !ok {
		log.Printf("ERROR: unknown view %q", name)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	if identity, ok := auth.GetUserFromContext(r.Context()); ok {
		p.User = &identity
	}
	p.Flashes = append(rd.flashes.Pop(w, r), p.Flashes...)

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, p); err != nil {
		log.Printf("ERROR: render %s: %v", name, err)
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

// NotFound renders the 404 page.
func (rd *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rd.Render(w, r, http.StatusNotFound, "error", page{
		Title: "Not Found",
		Data:  errorPage{Status: http.StatusNotFound, Message: "The page you are looking for does not exist."},
	})
}

// Forbidden renders the 403 page with msg as a danger notice.
func (rd *Renderer) Forbidden(w http.ResponseWriter, r *http.Request, msg string) {
	rd.Render(w, r, http.StatusForbidden, "error", page{
		Title:   "Forbidden",
		Flashes: []flash.Message{{Category: flash.Danger, Text: msg}},
		Data:    errorPage{Status: http.StatusForbidden, Message: "You do not have access to this resource."},
	})
}

// ServerError logs err and renders the 500 page.
func (rd *Renderer) ServerError(w http.ResponseWriter, r *http.Request, err error) {
	log.Printf("ERROR: %s %s: %v", r.Method, r.URL.Path, err)
	rd.Render(w, r, http.StatusInternalServerError, "error", page{
		Title: "Server Error",
		Data:  errorPage{Status: http.StatusInternalServerError, Message: "Something went wrong. Please try again later."},
	})
}

type errorPage struct {
	Status  int
	Message string
}

// roleOptions feeds the signup role dropdown.
func roleOptions() []models.Role {
	return models.SelfServiceRoles
}
