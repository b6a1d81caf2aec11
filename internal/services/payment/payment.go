// Package payment реализует покупку подписки: создание заказа у провайдера,
// проверку callback, атомарную активацию и решение о доступе к контенту.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/streamvault/internal/cache"
	"github.com/magabrotheeeer/streamvault/internal/lib/apperr"
	"github.com/magabrotheeeer/streamvault/internal/lib/metrics"
	"github.com/magabrotheeeer/streamvault/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/paymentprovider"
	"github.com/magabrotheeeer/streamvault/internal/storage/repository"
)

// ErrOrderNotBound заказ не создавался этим пользователем или привязка истекла.
var ErrOrderNotBound = fmt.Errorf("%w: order is not bound to the user", apperr.ErrSignatureVerification)

// PlanRepository контракт хранилища тарифов.
type PlanRepository interface {
	ListPlans(ctx context.Context) ([]models.Plan, error)
	GetPlan(ctx context.Context, id int64) (*models.Plan, error)
}

// SubscriptionRepository контракт хранилища подписок.
type SubscriptionRepository interface {
	ActivateSubscription(ctx context.Context, sub models.Subscription) (int64, error)
	GetSubscriptionByOrderID(ctx context.Context, orderID string) (*models.Subscription, error)
	HasActiveSubscription(ctx context.Context, userID int64, now time.Time) (bool, error)
}

// Provider контракт платёжного провайдера.
type Provider interface {
	CreateOrder(ctx context.Context, in paymentprovider.CreateOrderRequest) (*models.Order, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) error
	KeyID() string
}

// OrderBindings контракт хранилища привязок заказов.
type OrderBindings interface {
	Put(ctx context.Context, b models.OrderBinding) error
	Get(ctx context.Context, orderID string) (*models.OrderBinding, error)
	Delete(ctx context.Context, orderID string) error
}

// Quote результат выбора тарифа: заказ у провайдера, тариф и публичный ключ.
type Quote struct {
	Order models.Order
	Plan  models.Plan
	KeyID string
}

// Callback параметры, с которыми браузер возвращается после оплаты.
// PlanID приходит от клиента и не используется для активации.
type Callback struct {
	OrderID   string
	PaymentID string
	Signature string
	PlanID    int64
}

// Decision результат проверки доступа к контенту.
type Decision int

// Возможные решения о доступе.
const (
	NeedLogin Decision = iota
	NeedSubscription
	Allow
)

func (d Decision) String() string {
	switch d {
	case NeedLogin:
		return "need_login"
	case NeedSubscription:
		return "need_subscription"
	case Allow:
		return "allow"
	default:
		return "unknown"
	}
}

// Service платёжный сервис.
type Service struct {
	log       *slog.Logger
	plans     PlanRepository
	subs      SubscriptionRepository
	provider  Provider
	bindings  OrderBindings
	publisher rabbitmq.Publisher
	metrics   *metrics.Metrics
	now       func() time.Time
}

// New создаёт Service. publisher и m могут быть nil.
func New(
	log *slog.Logger,
	plans PlanRepository,
	subs SubscriptionRepository,
	provider Provider,
	bindings OrderBindings,
	publisher rabbitmq.Publisher,
	m *metrics.Metrics,
) *Service {
	if publisher == nil {
		publisher = rabbitmq.NoopPublisher{}
	}
	return &Service{
		log:       log,
		plans:     plans,
		subs:      subs,
		provider:  provider,
		bindings:  bindings,
		publisher: publisher,
		metrics:   m,
		now:       time.Now,
	}
}

// WithClock подменяет источник текущего времени.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// ListPlans возвращает тарифы для страницы подписки.
func (s *Service) ListPlans(ctx context.Context) ([]models.Plan, error) {
	const op = "payment.ListPlans"
	plans, err := s.plans.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return plans, nil
}

// Quote создаёт заказ на сумму тарифа и запоминает, кому и за какой тариф
// он выписан. Сбой провайдера возвращается как apperr.ErrExternalService,
// в этом случае ничего не сохраняется.
func (s *Service) Quote(ctx context.Context, user *models.User, planID int64) (*Quote, error) {
	const op = "payment.Quote"
	if user == nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}

	plan, err := s.plans.GetPlan(ctx, planID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	start := time.Now()
	order, err := s.provider.CreateOrder(ctx, paymentprovider.CreateOrderRequest{
		Amount:         plan.Price,
		Currency:       models.Currency,
		Receipt:        "rcpt_" + uuid.NewString(),
		PaymentCapture: 1,
	})
	if s.metrics != nil {
		s.metrics.ProviderDuration.Observe(time.Since(start).Seconds())
	}
	if err != nil {
		if s.metrics != nil {
			s.metrics.OrderErrors.Inc()
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = s.bindings.Put(ctx, models.OrderBinding{
		OrderID: order.ID,
		UserID:  user.ID,
		PlanID:  plan.ID,
		Amount:  plan.Price,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if s.metrics != nil {
		s.metrics.OrdersCreated.Inc()
	}
	s.log.Info("order created",
		slog.String("op", op), sl.UserID(user.ID),
		slog.Int64("plan_id", plan.ID), slog.String("order_id", order.ID))

	return &Quote{Order: *order, Plan: *plan, KeyID: s.provider.KeyID()}, nil
}

// Verify проверяет подпись callback и активирует подписку по тарифу,
// привязанному к заказу при его создании. При неверной подписи или чужом
// заказе состояние не меняется. Повторный callback по уже активированному
// заказу возвращает существующую подписку.
func (s *Service) Verify(ctx context.Context, user *models.User, cb Callback) (*models.Subscription, error) {
	const op = "payment.Verify"
	if user == nil {
		return nil, fmt.Errorf("%s: %w", op, apperr.ErrAuth)
	}
	log := s.log.With(slog.String("op", op), sl.UserID(user.ID), slog.String("order_id", cb.OrderID))

	if err := s.provider.VerifyPaymentSignature(cb.OrderID, cb.PaymentID, cb.Signature); err != nil {
		s.rejected(metrics.ReasonSignature)
		log.Warn("payment signature rejected", sl.Err(err))
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	binding, err := s.bindings.Get(ctx, cb.OrderID)
	if errors.Is(err, cache.ErrBindingNotFound) {
		if existing := s.alreadyActivated(ctx, user, cb.OrderID); existing != nil {
			return existing, nil
		}
		s.rejected(metrics.ReasonUnbound)
		log.Warn("callback for unknown order")
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotBound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if binding.UserID != user.ID {
		s.rejected(metrics.ReasonUnbound)
		log.Warn("callback for order of another user", slog.Int64("bound_user_id", binding.UserID))
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotBound)
	}
	if cb.PlanID != 0 && cb.PlanID != binding.PlanID {
		log.Warn("callback plan differs from ordered plan",
			slog.Int64("callback_plan_id", cb.PlanID), slog.Int64("plan_id", binding.PlanID))
	}

	sub := models.NewSubscription(user.ID, binding.PlanID, cb.OrderID, s.now().UTC().Truncate(time.Microsecond))
	id, err := s.subs.ActivateSubscription(ctx, sub)
	if errors.Is(err, repository.ErrAlreadyActivated) {
		if existing := s.alreadyActivated(ctx, user, cb.OrderID); existing != nil {
			return existing, nil
		}
		return nil, fmt.Errorf("%s: %w", op, ErrOrderNotBound)
	}
	if err != nil {
		s.rejected(metrics.ReasonStorage)
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	sub.ID = id

	if err := s.bindings.Delete(ctx, cb.OrderID); err != nil {
		log.Warn("failed to delete order binding", sl.Err(err))
	}
	event := rabbitmq.SubscriptionEvent{
		UserID:     user.ID,
		PlanID:     sub.PlanID,
		OrderID:    sub.RazorpaySubscriptionID,
		EndDate:    sub.EndDate,
		OccurredAt: sub.StartDate,
	}
	if err := s.publisher.Publish(ctx, rabbitmq.RoutingSubscriptionActivated, event); err != nil {
		log.Warn("failed to publish subscription event", sl.Err(err))
	}
	if s.metrics != nil {
		s.metrics.PaymentsActivated.Inc()
	}
	log.Info("subscription activated", slog.Int64("subscription_id", id), slog.Time("end_date", sub.EndDate))

	return &sub, nil
}

// CanWatch решает, может ли user смотреть контент. Проверка только читает
// состояние: нужен вход, флаг подписки и действующая подписка.
func (s *Service) CanWatch(ctx context.Context, user *models.User) (Decision, error) {
	const op = "payment.CanWatch"
	if user == nil {
		return NeedLogin, nil
	}
	if !user.IsSubscribed {
		return NeedSubscription, nil
	}
	active, err := s.subs.HasActiveSubscription(ctx, user.ID, s.now())
	if err != nil {
		return NeedSubscription, fmt.Errorf("%s: %w", op, err)
	}
	if !active {
		return NeedSubscription, nil
	}
	return Allow, nil
}

func (s *Service) alreadyActivated(ctx context.Context, user *models.User, orderID string) *models.Subscription {
	existing, err := s.subs.GetSubscriptionByOrderID(ctx, orderID)
	if err != nil || existing.UserID != user.ID {
		return nil
	}
	return existing
}

func (s *Service) rejected(reason string) {
	if s.metrics != nil {
		s.metrics.PaymentsRejected.WithLabelValues(reason).Inc()
	}
}
