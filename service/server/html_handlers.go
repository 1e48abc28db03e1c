package server

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/brojonat/sendsol/service/session"
)

//go:embed templates/*.html
var templatesFS embed.FS

var templateFuncs = template.FuncMap{
	"connected": func(s session.Snapshot) bool { return s.State == session.StateConnected },
}

// TemplateRenderer renders the embedded page templates.
type TemplateRenderer struct {
	templates *template.Template
	logger    *slog.Logger
}

func NewTemplateRenderer(logger *slog.Logger) (*TemplateRenderer, error) {
	tmpl, err := template.New("").Funcs(templateFuncs).ParseFS(templatesFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse templates: %w", err)
	}
	return &TemplateRenderer{templates: tmpl, logger: logger}, nil
}

// Render executes name into a buffer first so a failing template never
// leaves a half-written page behind a 200.
func (tr *TemplateRenderer) Render(w http.ResponseWriter, name string, data any) error {
	var buf bytes.Buffer
	if err := tr.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	_, err := buf.WriteTo(w)
	return err
}

// handleSessionPage serves the wallet page. The server renders the initial
// snapshot; the page script keeps it current from the SSE stream.
func handleSessionPage(renderer *TemplateRenderer, ctrl SessionController) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data := struct{ Session session.Snapshot }{Session: ctrl.Snapshot()}
		if err := renderer.Render(w, "session.html", data); err != nil {
			renderer.logger.ErrorContext(r.Context(), "failed to render session page", "error", err)
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		}
	}
}

func handleFavicon() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}
}
