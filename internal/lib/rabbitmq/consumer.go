package rabbitmq

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/streamvault/internal/lib/sl"
)

// ErrReject помечает сообщение, которое нельзя обработать повторно.
// Такое сообщение подтверждается отрицательно без возврата в очередь.
var ErrReject = errors.New("message rejected")

// Handler обрабатывает тело сообщения с ключом маршрутизации routingKey.
type Handler func(ctx context.Context, routingKey string, body []byte) error

// DeclareQueue объявляет устойчивую очередь queue и привязывает её
// к EventsExchange по каждому из ключей.
func DeclareQueue(ch *amqp.Channel, queue string, routingKeys ...string) error {
	const op = "rabbitmq.DeclareQueue"

	_, err := ch.QueueDeclare(
		queue,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	for _, key := range routingKeys {
		if err := ch.QueueBind(queue, key, EventsExchange, false, nil); err != nil {
			return fmt.Errorf("%s: bind %s: %w", op, key, err)
		}
	}
	return nil
}

// Consume читает очередь queue и вызывает handler не более чем в workers
// горутинах одновременно. Успешно обработанные сообщения подтверждаются,
// при ошибке возвращаются в очередь, кроме ошибок ErrReject.
// Возвращённая функция ждёт завершения уже запущенных обработчиков.
func Consume(ctx context.Context, log *slog.Logger, ch *amqp.Channel, queue string, workers int, handler Handler) (func(), error) {
	const op = "rabbitmq.Consume"
	if workers < 1 {
		workers = 1
	}
	if err := ch.Qos(workers, 0, false); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	deliveries, err := ch.Consume(
		queue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return dispatch(ctx, log, deliveries, workers, handler), nil
}

// dispatch раздаёт сообщения обработчикам, пока не закроется deliveries
// или не отменится ctx. Сообщение, для которого не нашлось свободного
// обработчика до отмены, возвращается в очередь.
func dispatch(ctx context.Context, log *slog.Logger, deliveries <-chan amqp.Delivery, workers int, handler Handler) func() {
	var wg sync.WaitGroup
	sem := make(chan struct{}, workers)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				select {
				case sem <- struct{}{}:
				case <-ctx.Done():
					requeue(log, d)
					return
				}
				wg.Add(1)
				go func(d amqp.Delivery) {
					defer func() {
						<-sem
						wg.Done()
					}()
					handle(ctx, log, d, handler)
				}(d)
			case <-ctx.Done():
				return
			}
		}
	}()

	return func() {
		<-done
		wg.Wait()
	}
}

func handle(ctx context.Context, log *slog.Logger, d amqp.Delivery, handler Handler) {
	log = log.With(slog.String("routing_key", d.RoutingKey))

	err := handler(ctx, d.RoutingKey, d.Body)
	if err == nil {
		if ackErr := d.Ack(false); ackErr != nil {
			log.Error("failed to ack message", sl.Err(ackErr))
		}
		return
	}

	requeue := !errors.Is(err, ErrReject)
	log.Warn("failed to handle message", sl.Err(err), slog.Bool("requeue", requeue))
	if nackErr := d.Nack(false, requeue); nackErr != nil {
		log.Error("failed to nack message", sl.Err(nackErr))
	}
}

// requeue возвращает в очередь сообщение, которое не успели взять в работу.
func requeue(log *slog.Logger, d amqp.Delivery) {
	if err := d.Nack(false, true); err != nil {
		log.Error("failed to requeue message", slog.String("routing_key", d.RoutingKey), sl.Err(err))
	}
}
