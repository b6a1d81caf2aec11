// Package login обрабатывает форму входа и выдаёт cookie сессии.
package login

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/http/view"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/auth"
)

// Request поля формы входа. Next задаёт страницу, на которую вернуть пользователя.
type Request struct {
	Email    string `form:"email"`
	Password string `form:"password"`
	Next     string `form:"next"`
}

// Service описывает вход пользователя.
type Service interface {
	Login(ctx context.Context, in auth.LoginInput) (string, *models.User, error)
	SessionTTL() time.Duration
}

// Handler обрабатывает GET и POST /login.
type Handler struct {
	log     *slog.Logger
	service Service
	view    *view.Renderer
	cookie  middlewarectx.SessionCookie
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, v *view.Renderer, cookie middlewarectx.SessionCookie) *Handler {
	return &Handler{
		log:     log,
		service: service,
		view:    v,
		cookie:  cookie,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.login"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if middlewarectx.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodPost {
		h.view.Render(w, r, http.StatusOK, view.Login, view.Page{
			Title: "Login",
			Data:  middlewarectx.SafeNext(r.URL.Query().Get("next"), ""),
		})
		return
	}

	var req Request
	if err := render.DecodeForm(r.Body, &req); err != nil {
		log.Warn("failed to decode form", sl.Err(err))
		flash.Add(w, r, flash.Danger, "Invalid form submission.")
		h.view.Render(w, r, http.StatusBadRequest, view.Login, view.Page{Title: "Login"})
		return
	}
	next := middlewarectx.SafeNext(req.Next, "")

	token, user, err := h.service.Login(r.Context(), auth.LoginInput{Email: req.Email, Password: req.Password})
	if err != nil {
		if errors.Is(err, apperr.ErrAuth) {
			flash.Add(w, r, flash.Danger, "Login Unsuccessful. Please check email and password")
			h.view.Render(w, r, http.StatusUnauthorized, view.Login, view.Page{
				Title: "Login",
				Form:  auth.LoginInput{Email: req.Email},
				Data:  next,
			})
			return
		}
		log.Error("login failed", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}

	h.cookie.Set(w, token, h.service.SessionTTL())
	log.Info("user logged in", sl.UserID(user.ID))
	http.Redirect(w, r, middlewarectx.SafeNext(next, "/"), http.StatusSeeOther)
}
