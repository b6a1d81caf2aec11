// Package logout завершает сессию пользователя.
package logout

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
)

// Handler обрабатывает POST /logout.
type Handler struct {
	log    *slog.Logger
	cookie middlewarectx.SessionCookie
}

// New создаёт Handler.
func New(log *slog.Logger, cookie middlewarectx.SessionCookie) *Handler {
	return &Handler{log: log, cookie: cookie}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.logout"

	if user := middlewarectx.UserFromContext(r.Context()); user != nil {
		h.log.Info("user logged out",
			slog.String("op", op),
			slog.String("request_id", middleware.GetReqID(r.Context())),
			sl.UserID(user.ID))
	}
	h.cookie.Clear(w)
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
