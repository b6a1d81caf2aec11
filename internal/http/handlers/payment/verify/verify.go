// Package verify принимает возврат браузера после оплаты и активирует подписку.
package verify

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"

	"github.com/magabrotheeeer/streamvault/internal/http/flash"
	"github.com/magabrotheeeer/streamvault/internal/http/middlewarectx"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/services/payment"
)

// Service описывает проверку callback оплаты.
type Service interface {
	Verify(ctx context.Context, user *models.User, cb payment.Callback) (*models.Subscription, error)
}

// Handler обрабатывает GET /payment_verified.
type Handler struct {
	log     *slog.Logger
	service Service
}

// New создаёт Handler.
func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.payment.verify"

	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	q := r.URL.Query()
	cb := payment.Callback{
		OrderID:   q.Get("razorpay_order_id"),
		PaymentID: q.Get("razorpay_payment_id"),
		Signature: q.Get("razorpay_signature"),
	}
	// plan_id приходит от клиента и только сверяется с заказом.
	if planID, err := strconv.ParseInt(q.Get("plan_id"), 10, 64); err == nil {
		cb.PlanID = planID
	}

	user := middlewarectx.UserFromContext(r.Context())
	sub, err := h.service.Verify(r.Context(), user, cb)
	switch {
	case err == nil:
		log.Info("payment verified", sl.UserID(sub.UserID), slog.String("order_id", cb.OrderID))
		flash.Add(w, r, flash.Success, "Payment successful! You are now subscribed.")
	case errors.Is(err, apperr.ErrAuth):
		http.Redirect(w, r, middlewarectx.LoginRedirect(r), http.StatusSeeOther)
		return
	case errors.Is(err, apperr.ErrSignatureVerification):
		log.Warn("payment verification failed", sl.Err(err), slog.String("order_id", cb.OrderID))
		flash.Add(w, r, flash.Danger, "Payment verification failed. Please contact support.")
	default:
		log.Error("failed to activate subscription", sl.Err(err), slog.String("order_id", cb.OrderID))
		flash.Add(w, r, flash.Danger, "We could not activate your subscription. Please contact support.")
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
