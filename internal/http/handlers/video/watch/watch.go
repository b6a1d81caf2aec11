// Package watch отдаёт страницу видео и сам файл только пользователям
// с действующей подпиской.
package watch

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/payment"
	"github.com/magabrotheeeer/streamvault/internal/storage/files"
)

// SubscribePath страница выбора тарифа.
const SubscribePath = "/subscribe"

var contentTypes = map[string]string{
	"mp4": "video/mp4",
	"mov": "video/quicktime",
	"avi": "video/x-msvideo",
}

// Catalog описывает чтение видео.
type Catalog interface {
	Get(ctx context.Context, id int64) (*models.Video, error)
	Open(v *models.Video) (*os.File, error)
}

// Gate решает, можно ли пользователю смотреть видео.
type Gate interface {
	CanWatch(ctx context.Context, user *models.User) (payment.Decision, error)
}

// Handler обрабатывает GET /video/{id} и GET /media/{id}.
type Handler struct {
	log     *slog.Logger
	catalog Catalog
	gate    Gate
	view    *view.Renderer
	media   bool
}

// New создаёт обработчик страницы видео.
func New(log *slog.Logger, catalog Catalog, gate Gate, v *view.Renderer) *Handler {
	return &Handler{log: log, catalog: catalog, gate: gate, view: v}
}

// NewMedia создаёт обработчик, отдающий байты видео.
func NewMedia(log *slog.Logger, catalog Catalog, gate Gate, v *view.Renderer) *Handler {
	return &Handler{log: log, catalog: catalog, gate: gate, view: v, media: true}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.watch"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		h.view.NotFound(w, r)
		return
	}
	log = log.With(slog.Int64("video_id", id))

	v, err := h.catalog.Get(r.Context(), id)
	if errors.Is(err, apperr.ErrNotFound) {
		h.view.NotFound(w, r)
		return
	}
	if err != nil {
		log.Error("failed to get video", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}

	if !h.allowed(w, r, log) {
		return
	}

	if !h.media {
		h.view.Render(w, r, http.StatusOK, view.Video, view.Page{Title: v.Title, Data: v})
		return
	}

	f, err := h.catalog.Open(v)
	if errors.Is(err, apperr.ErrNotFound) {
		log.Error("video file is missing", slog.String("filename", v.Filename))
		h.view.NotFound(w, r)
		return
	}
	if err != nil {
		log.Error("failed to open video file", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}
	defer func() {
		if err := f.Close(); err != nil {
			log.Warn("failed to close video file", sl.Err(err))
		}
	}()

	if ct, ok := contentTypes[files.Ext(v.Filename)]; ok {
		w.Header().Set("Content-Type", ct)
	}
	http.ServeContent(w, r, v.Filename, v.CreatedAt, f)
}

// allowed применяет решение о доступе. При отказе ответ уже записан.
func (h *Handler) allowed(w http.ResponseWriter, r *http.Request, log *slog.Logger) bool {
	user := middlewarectx.UserFromContext(r.Context())
	decision, err := h.gate.CanWatch(r.Context(), user)
	if err != nil {
		log.Error("failed to check subscription", sl.Err(err))
		h.view.InternalError(w, r)
		return false
	}

	switch decision {
	case payment.Allow:
		return true
	case payment.NeedLogin:
		flash.Add(w, r, flash.Info, "You need to be logged in to watch videos.")
		http.Redirect(w, r, middlewarectx.LoginRedirect(r), http.StatusSeeOther)
	default:
		log.Info("access denied", sl.UserID(user.ID), slog.String("decision", decision.String()))
		flash.Add(w, r, flash.Info, "You need to subscribe to watch videos.")
		http.Redirect(w, r, SubscribePath, http.StatusSeeOther)
	}
	return false
}
