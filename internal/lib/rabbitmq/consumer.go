package rabbitmq

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

// Handler обрабатывает тело сообщения. Ошибка возвращает сообщение в очередь.
type Handler func(ctx context.Context, body []byte) error

// ConsumerMessage читает очередь queueName и обрабатывает сообщения параллельно,
// не более concurrency одновременно.
func ConsumerMessage(ctx context.Context, ch *amqp.Channel, queueName string, concurrency int, handler Handler, log *slog.Logger) error {
	const op = "rabbitmq.ConsumerMessage"
	delivery, err := ch.Consume(
		queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	go Dispatch(ctx, delivery, concurrency, handler, log.With(slog.String("queue", queueName)))
	return nil
}

// Dispatch раздаёт сообщения из deliveries обработчикам до закрытия канала или отмены ctx.
func Dispatch(ctx context.Context, deliveries <-chan amqp.Delivery, concurrency int, handler Handler, log *slog.Logger) {
	if concurrency <= 0 {
		concurrency = 1
	}
	sem := make(chan struct{}, concurrency)
	for {
		select {
		case d, ok := <-deliveries:
			if !ok {
				return
			}
			sem <- struct{}{}
			go func(d amqp.Delivery) {
				defer func() { <-sem }()
				handle(ctx, d, handler, log)
			}(d)
		case <-ctx.Done():
			return
		}
	}
}

func handle(ctx context.Context, d amqp.Delivery, handler Handler, log *slog.Logger) {
	if err := handler(ctx, d.Body); err != nil {
		log.Error("failed to handle message", sl.Err(err))
		if d.Acknowledger == nil {
			return
		}
		if nackErr := d.Nack(false, true); nackErr != nil {
			log.Error("failed to nack message", sl.Err(nackErr))
		}
		return
	}
	if d.Acknowledger == nil {
		return
	}
	if ackErr := d.Ack(false); ackErr != nil {
		log.Error("failed to ack message", sl.Err(ackErr))
	}
}
