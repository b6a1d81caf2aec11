// Package view отрисовывает HTML-страницы из встроенных шаблонов.
package view

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
)

//go:embed templates/*.html
var templatesFS embed.FS

// Имена страниц.
const (
	Index     = "index.html"
	Trending  = "trending.html"
	Register  = "register.html"
	Login     = "login.html"
	Upload    = "upload.html"
	Video     = "video.html"
	Subscribe = "subscribe.html"
	Payment   = "payment.html"
	Error     = "error.html"
)

var pages = []string{Index, Trending, Register, Login, Upload, Video, Subscribe, Payment, Error}

// Page данные страницы. User и Flashes заполняет Renderer.
type Page struct {
	Title   string
	User    *models.User
	Flashes []flash.Message
	Errors  map[string]string
	Form    any
	Data    any
}

// FieldError возвращает сообщение об ошибке поля field.
func (p Page) FieldError(field string) string {
	return p.Errors[field]
}

// Renderer держит разобранные шаблоны всех страниц.
type Renderer struct {
	log       *slog.Logger
	templates map[string]*template.Template
}

var funcs = template.FuncMap{
	"date": func(t time.Time) string { return t.Format("2006-01-02") },
	"join": strings.Join,
}

// New разбирает встроенные шаблоны.
func New(log *slog.Logger) (*Renderer, error) {
	const op = "view.New"
	r := &Renderer{log: log, templates: make(map[string]*template.Template, len(pages))}
	for _, name := range pages {
		t, err := template.New(name).Funcs(funcs).ParseFS(templatesFS, "templates/layout.html", "templates/"+name)
		if err != nil {
			return nil, fmt.Errorf("%s: parse %s: %w", op, name, err)
		}
		r.templates[name] = t
	}
	return r, nil
}

// Render отрисовывает страницу name со статусом status.
func (rn *Renderer) Render(w http.ResponseWriter, r *http.Request, status int, name string, p Page) {
	const op = "view.Render"
	t, ok := rn.templates[name]
	if !ok {
		rn.log.Error("unknown template", slog.String("op", op), slog.String("template", name))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	p.User = middlewarectx.UserFromContext(r.Context())
	p.Flashes = flash.Pop(w, r)

	var buf bytes.Buffer
	if err := t.ExecuteTemplate(&buf, "layout", p); err != nil {
		rn.log.Error("failed to render template",
			slog.String("op", op),
			slog.String("template", name),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.Err(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	render.Status(r, status)
	render.HTML(w, r, buf.String())
}

// NotFound отрисовывает страницу 404.
func (rn *Renderer) NotFound(w http.ResponseWriter, r *http.Request) {
	rn.Render(w, r, http.StatusNotFound, Error, Page{
		Title: "Not Found",
		Data:  "The page you are looking for does not exist.",
	})
}

// InternalError отрисовывает страницу 500 без подробностей ошибки.
func (rn *Renderer) InternalError(w http.ResponseWriter, r *http.Request) {
	rn.Render(w, r, http.StatusInternalServerError, Error, Page{
		Title: "Something went wrong",
		Data:  "Something went wrong on our side. Please try again later.",
	})
}
