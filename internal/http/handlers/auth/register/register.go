// Package register обрабатывает форму регистрации.
package register

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

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

// Service описывает регистрацию пользователя.
type Service interface {
	Register(ctx context.Context, in auth.RegisterInput) (*models.User, error)
}

// Handler обрабатывает GET и POST /register.
type Handler struct {
	log     *slog.Logger
	service Service
	view    *view.Renderer
}

// New создаёт Handler.
func New(log *slog.Logger, service Service, v *view.Renderer) *Handler {
	return &Handler{
		log:     log,
		service: service,
		view:    v,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.auth.register"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	if middlewarectx.UserFromContext(r.Context()) != nil {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	if r.Method != http.MethodPost {
		h.view.Render(w, r, http.StatusOK, view.Register, view.Page{Title: "Register"})
		return
	}

	var in auth.RegisterInput
	if err := render.DecodeForm(r.Body, &in); err != nil {
		log.Warn("failed to decode form", sl.Err(err))
		flash.Add(w, r, flash.Danger, "Invalid form submission.")
		h.view.Render(w, r, http.StatusBadRequest, view.Register, view.Page{Title: "Register"})
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		if ve, ok := apperr.AsValidation(err); ok {
			log.Info("registration rejected", slog.String("field", ve.Field))
			in.Password, in.ConfirmPassword = "", ""
			if ve.Field == "" {
				flash.Add(w, r, flash.Danger, ve.Message)
			}
			h.view.Render(w, r, http.StatusUnprocessableEntity, view.Register, view.Page{
				Title:  "Register",
				Form:   in,
				Errors: map[string]string{ve.Field: ve.Message},
			})
			return
		}
		if errors.Is(err, context.Canceled) {
			log.Info("request canceled")
			return
		}
		log.Error("registration failed", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}

	log.Info("user registered", sl.UserID(user.ID))
	flash.Add(w, r, flash.Success, "Your account has been created! You are now able to log in")
	http.Redirect(w, r, middlewarectx.LoginPath, http.StatusSeeOther)
}
