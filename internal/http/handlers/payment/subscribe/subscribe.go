// Package subscribe отдаёт страницу тарифов и создаёт заказ на оплату.
package subscribe

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
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
)

// Service описывает тарифы и создание заказа.
type Service interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	Quote(ctx context.Context, user *models.User, planID int64) (*payment.Quote, error)
}

// PlansHandler обрабатывает GET /subscribe.
type PlansHandler struct {
	log     *slog.Logger
	service Service
	view    *view.Renderer
}

// NewPlans создаёт PlansHandler.
func NewPlans(log *slog.Logger, service Service, v *view.Renderer) *PlansHandler {
	return &PlansHandler{log: log, service: service, view: v}
}

func (h *PlansHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.subscribe"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	plans, err := h.service.ListPlans(r.Context())
	if err != nil {
		log.Error("failed to list plans", sl.Err(err))
		h.view.InternalError(w, r)
		return
	}
	h.view.Render(w, r, http.StatusOK, view.Subscribe, view.Page{Title: "Subscribe", Data: plans})
}

// PayHandler обрабатывает GET /pay/{plan_id}.
type PayHandler struct {
	log     *slog.Logger
	service Service
	view    *view.Renderer
}

// NewPay создаёт PayHandler.
func NewPay(log *slog.Logger, service Service, v *view.Renderer) *PayHandler {
	return &PayHandler{log: log, service: service, view: v}
}

func (h *PayHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.pay"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	planID, err := strconv.ParseInt(chi.URLParam(r, "plan_id"), 10, 64)
	if err != nil || planID <= 0 {
		h.view.NotFound(w, r)
		return
	}

	user := middlewarectx.UserFromContext(r.Context())
	quote, err := h.service.Quote(r.Context(), user, planID)
	switch {
	case err == nil:
	case errors.Is(err, apperr.ErrNotFound):
		h.view.NotFound(w, r)
		return
	case errors.Is(err, apperr.ErrAuth):
		http.Redirect(w, r, middlewarectx.LoginRedirect(r), http.StatusSeeOther)
		return
	case apperr.Retryable(err):
		log.Error("payment provider unavailable", sl.Err(err), slog.Int64("plan_id", planID))
		flash.Add(w, r, flash.Danger, "Payment service is unavailable right now. Please try again later.")
		http.Redirect(w, r, "/subscribe", http.StatusSeeOther)
		return
	default:
		log.Error("failed to create order", sl.Err(err), slog.Int64("plan_id", planID))
		h.view.InternalError(w, r)
		return
	}

	h.view.Render(w, r, http.StatusOK, view.Payment, view.Page{Title: "Payment", Data: quote})
}
