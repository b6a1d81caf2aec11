package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/streadway/amqp"
)

// Ключи маршрутизации событий.
const (
	RoutingSubscriptionActivated = "subscription.activated"
	RoutingSubscriptionLapsed    = "subscription.lapsed"
)

// SubscriptionEvent тело события об изменении подписки.
type SubscriptionEvent struct {
	UserID     int64     `json:"user_id"`
	PlanID     int64     `json:"plan_id,omitempty"`
	OrderID    string    `json:"order_id,omitempty"`
	EndDate    time.Time `json:"end_date,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}

// Publisher интерфейс публикации событий.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// ChannelPublisher публикует события в канал amqp.
// amqp.Channel не потокобезопасен для Publish, поэтому вызовы сериализуются.
type ChannelPublisher struct {
	mu       sync.Mutex
	ch       *amqp.Channel
	exchange string
}

// NewPublisher создаёт ChannelPublisher поверх открытого канала.
func NewPublisher(ch *amqp.Channel) *ChannelPublisher {
	return &ChannelPublisher{ch: ch, exchange: EventsExchange}
}

// Publish сериализует message в JSON и публикует его с ключом routingKey.
func (p *ChannelPublisher) Publish(ctx context.Context, routingKey string, message any) error {
	const op = "rabbitmq.Publish"
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.ch.Publish(
		p.exchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
		},
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Close закрывает канал.
func (p *ChannelPublisher) Close() error {
	return p.ch.Close()
}

// NoopPublisher используется, когда брокер не настроен.
type NoopPublisher struct{}

// Publish ничего не делает.
func (NoopPublisher) Publish(context.Context, string, any) error { return nil }
