// Package notifier отправляет пользователям письма о событиях подписки.
package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/streamvault/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
	"github.com/magabrotheeeer/streamvault/internal/lib/smtp"
	"github.com/magabrotheeeer/streamvault/internal/models"
	"github.com/magabrotheeeer/streamvault/internal/storage/repository"
)

// UserRepository поиск адресата письма.
type UserRepository interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// Transport открывает SMTP-сессию.
type Transport interface {
	Connect() (smtp.Client, error)
	From() string
}

// Email письмо в виде, готовом к отправке.
type Email struct {
	To      string
	Subject string
	Body    string
}

// Service формирует и отправляет письма.
type Service struct {
	log       *slog.Logger
	users     UserRepository
	transport Transport
	siteURL   string
}

// New создаёт Service. siteURL используется в ссылках в письмах.
func New(log *slog.Logger, users UserRepository, transport Transport, siteURL string) *Service {
	return &Service{
		log:       log,
		users:     users,
		transport: transport,
		siteURL:   strings.TrimRight(siteURL, "/"),
	}
}

// Handle обрабатывает событие из очереди. Неразбираемые события и события
// для неизвестных пользователей отклоняются через rabbitmq.ErrReject.
func (s *Service) Handle(ctx context.Context, routingKey string, body []byte) error {
	const op = "notifier.Handle"

	var event rabbitmq.SubscriptionEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return fmt.Errorf("%s: decode event: %w: %w", op, rabbitmq.ErrReject, err)
	}

	user, err := s.users.GetUserByID(ctx, event.UserID)
	if errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("%s: user %d: %w", op, event.UserID, rabbitmq.ErrReject)
	}
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	email, err := s.compose(routingKey, user, event)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.Send(email); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.log.Info("notification sent",
		slog.String("op", op),
		slog.String("routing_key", routingKey),
		sl.UserID(user.ID))
	return nil
}

func (s *Service) compose(routingKey string, user *models.User, event rabbitmq.SubscriptionEvent) (Email, error) {
	switch routingKey {
	case rabbitmq.RoutingSubscriptionActivated:
		return Email{
			To:      user.Email,
			Subject: "Your StreamVault subscription is active",
			Body: fmt.Sprintf("Hello, %s!\r\n\r\nThank you for subscribing. "+
				"Your subscription is active until %s.\r\n\r\nStart watching: %s/\r\n",
				user.Username, event.EndDate.UTC().Format("2006-01-02 15:04 MST"), s.siteURL),
		}, nil
	case rabbitmq.RoutingSubscriptionLapsed:
		return Email{
			To:      user.Email,
			Subject: "Your StreamVault subscription has expired",
			Body: fmt.Sprintf("Hello, %s!\r\n\r\nYour subscription has expired. "+
				"Renew it to keep watching: %s/subscribe\r\n",
				user.Username, s.siteURL),
		}, nil
	default:
		return Email{}, fmt.Errorf("unknown event %q: %w", routingKey, rabbitmq.ErrReject)
	}
}

// Send отправляет письмо через одну SMTP-сессию.
func (s *Service) Send(e Email) error {
	const op = "notifier.Send"
	from := s.transport.From()

	msg := strings.Join([]string{
		"From: " + from,
		"To: " + e.To,
		"Subject: " + e.Subject,
		"MIME-Version: 1.0",
		"Content-Type: text/plain; charset=\"UTF-8\"",
		"",
		e.Body,
	}, "\r\n")

	client, err := s.transport.Connect()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		if err := client.Close(); err != nil {
			s.log.Debug("smtp client already closed", sl.Err(err))
		}
	}()

	if err := client.Mail(from); err != nil {
		return fmt.Errorf("%s: mail from: %w", op, err)
	}
	if err := client.Rcpt(e.To); err != nil {
		return fmt.Errorf("%s: rcpt to: %w", op, err)
	}

	wc, err := client.Data()
	if err != nil {
		return fmt.Errorf("%s: data: %w", op, err)
	}
	if _, err := wc.Write([]byte(msg)); err != nil {
		return fmt.Errorf("%s: write body: %w", op, err)
	}
	if err := wc.Close(); err != nil {
		return fmt.Errorf("%s: close body: %w", op, err)
	}

	if err := client.Quit(); err != nil {
		return fmt.Errorf("%s: quit: %w", op, err)
	}
	return nil
}
