// Package notifier собирает фоновый обработчик событий подписки.
package notifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/streamvault/internal/config"
	"github.com/magabrotheeeer/streamvault/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/lib/smtp"
	notifierservice "github.com/magabrotheeeer/streamvault/internal/services/notifier"
	"github.com/magabrotheeeer/streamvault/internal/storage/repository"
)

// App читает очередь уведомлений и рассылает письма.
type App struct {
	db      *repository.Storage
	conn    *amqp.Connection
	ch      *amqp.Channel
	service *notifierservice.Service
	queue   string
	workers int
	logger  *slog.Logger
}

func New(ctx context.Context, cfg *config.NotifierConfig, logger *slog.Logger) (*App, error) {
	const op = "notifier.New"

	db, err := repository.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	conn, err := rabbitmq.Connect(cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	ch, err := rabbitmq.SetupChannel(conn)
	if err != nil {
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	err = rabbitmq.DeclareQueue(ch, cfg.Notifier.Queue,
		rabbitmq.RoutingSubscriptionActivated, rabbitmq.RoutingSubscriptionLapsed)
	if err != nil {
		ch.Close()
		conn.Close()
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	transport := smtp.NewTransport(cfg.SMTP, logger)

	return &App{
		db:      db,
		conn:    conn,
		ch:      ch,
		service: notifierservice.New(logger, db, transport, cfg.Notifier.SiteURL),
		queue:   cfg.Notifier.Queue,
		workers: cfg.Notifier.Workers,
		logger:  logger,
	}, nil
}

// Run обрабатывает сообщения до отмены ctx и дожидается текущих отправок.
func (a *App) Run(ctx context.Context) error {
	wait, err := rabbitmq.Consume(ctx, a.logger, a.ch, a.queue, a.workers, a.service.Handle)
	if err != nil {
		a.logger.Error("failed to start consumer", slog.String("queue", a.queue), sl.Err(err))
		a.close()
		return err
	}
	a.logger.Info("notifier consuming", slog.String("queue", a.queue), slog.Int("workers", a.workers))

	<-ctx.Done()
	a.logger.Info("notifier shutting down gracefully")
	wait()
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.ch.Close(); err != nil {
		a.logger.Error("failed to close channel", sl.Err(err))
	}
	if err := a.conn.Close(); err != nil {
		a.logger.Error("failed to close connection", sl.Err(err))
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("failed to close storage", sl.Err(err))
	}
}
