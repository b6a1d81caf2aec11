// Package scheduler запускает фоновые задачи по расписанию cron.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/magabrotheeeer/streamvault/internal/lib/metrics"
	"github.com/magabrotheeeer/streamvault/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
)

const sweepTimeout = time.Minute

// SubscriptionRepository контракт хранилища для снятия истёкших подписок.
type SubscriptionRepository interface {
	RevokeLapsed(ctx context.Context, now time.Time) ([]int64, error)
}

// Scheduler снимает флаг is_subscribed у пользователей, чья подписка истекла.
type Scheduler struct {
	cron      *cron.Cron
	log       *slog.Logger
	repo      SubscriptionRepository
	publisher rabbitmq.Publisher
	metrics   *metrics.Metrics
	schedule  string
	now       func() time.Time
}

// New создаёт планировщик. publisher и m могут быть nil.
func New(log *slog.Logger, repo SubscriptionRepository, publisher rabbitmq.Publisher, m *metrics.Metrics, schedule string) *Scheduler {
	cronLogger := cron.PrintfLogger(slog.NewLogLogger(log.Handler(), slog.LevelInfo))
	if publisher == nil {
		publisher = rabbitmq.NoopPublisher{}
	}
	return &Scheduler{
		cron:      cron.New(cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger))),
		log:       log,
		repo:      repo,
		publisher: publisher,
		metrics:   m,
		schedule:  schedule,
		now:       time.Now,
	}
}

// Start регистрирует задачи и запускает cron. Задачи работают до Stop
// или отмены ctx.
func (s *Scheduler) Start(ctx context.Context) error {
	const op = "scheduler.Start"
	_, err := s.cron.AddFunc(s.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		runCtx, cancel := context.WithTimeout(ctx, sweepTimeout)
		defer cancel()
		_, _ = s.SweepLapsed(runCtx)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("scheduled lapsed subscription sweep", slog.String("schedule", s.schedule))
	s.cron.Start()
	return nil
}

// Stop останавливает cron. Возвращаемый контекст завершается, когда
// выполняющиеся задачи закончатся.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// SweepLapsed выполняет один проход и возвращает число пользователей,
// у которых снят флаг подписки.
func (s *Scheduler) SweepLapsed(ctx context.Context) (int, error) {
	const op = "scheduler.SweepLapsed"
	log := s.log.With(slog.String("op", op))

	now := s.now()
	ids, err := s.repo.RevokeLapsed(ctx, now)
	if err != nil {
		log.Error("failed to revoke lapsed subscriptions", sl.Err(err))
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if len(ids) == 0 {
		log.Debug("no lapsed subscriptions found")
		return 0, nil
	}

	for _, id := range ids {
		event := rabbitmq.SubscriptionEvent{UserID: id, OccurredAt: now}
		if err := s.publisher.Publish(ctx, rabbitmq.RoutingSubscriptionLapsed, event); err != nil {
			log.Warn("failed to publish lapsed event", sl.Err(err), sl.UserID(id))
		}
	}
	if s.metrics != nil {
		s.metrics.SubscriptionsLapsed.Add(float64(len(ids)))
	}
	log.Info("revoked lapsed subscriptions", slog.Int("count", len(ids)))
	return len(ids), nil
}
