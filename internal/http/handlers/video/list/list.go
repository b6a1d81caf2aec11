// Package list отдаёт главную страницу каталога и страницу популярного.
package list

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
)

// Service описывает чтение каталога.
type Service interface {
	List(ctx context.Context) ([]models.Video, error)
	Trending(ctx context.Context) ([]models.Video, error)
}

// Handler отдаёт список видео.
type Handler struct {
	log      *slog.Logger
	service  Service
	view     *view.Renderer
	trending bool
}

// New создаёт обработчик главной страницы.
func New(log *slog.Logger, service Service, v *view.Renderer) *Handler {
	return &Handler{log: log, service: service, view: v}
}

// NewTrending создаёт обработчик страницы популярного.
func NewTrending(log *slog.Logger, service Service, v *view.Renderer) *Handler {
	return &Handler{log: log, service: service, view: v, trending: true}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.video.list"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	load, page, title := h.service.List, view.Index, "Home"
	if h.trending {
		load, page, title = h.service.Trending, view.Trending, "Trending"
	}

	videos, err := load(r.Context())
	if err != nil {
		log.Error("failed to load videos", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}
	h.view.Render(w, r, http.StatusOK, page, view.Page{Title: title, Data: videos})
}
