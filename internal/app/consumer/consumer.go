// Package consumer содержит процесс, читающий входящие события внешних
// сервисов из RabbitMQ: оплаты, рефералы, одобренные вопросы и профили.
package consumer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/quizleague/internal/app/bootstrap"
	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

const (
	queuePrefix = "quizleague"
	concurrency = 4
)

// EventHandler применяет входящее событие.
type EventHandler interface {
	Handle(ctx context.Context, routingKey string, body []byte) (any, error)
	RoutingKeys() []string
}

// App представляет приложение обработчика входящих событий.
type App struct {
	infra    *bootstrap.Infra
	inbound  *amqp.Channel
	queues   []rabbitmq.QueueConfig
	dispatch EventHandler
	logger   *slog.Logger
}

// New создает новый экземпляр приложения и объявляет входящие очереди.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	infra, err := bootstrap.Open(ctx, cfg, false, logger)
	if err != nil {
		return nil, err
	}

	services, err := infra.Services(cfg, logger)
	if err != nil {
		infra.Close()
		return nil, err
	}

	queues := rabbitmq.InboundQueues(queuePrefix, services.Inbound.RoutingKeys()...)
	ch, err := rabbitmq.SetupChannel(infra.Conn, cfg.InboundExchange, queues)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("failed to setup inbound channel: %w", err)
	}

	return &App{
		infra:    infra,
		inbound:  ch,
		queues:   queues,
		dispatch: services.Inbound,
		logger:   logger,
	}, nil
}

// Handler возвращает обработчик сообщений очереди с ключом routingKey.
// Некорректные события не возвращаются в очередь: повтор их не исправит.
func Handler(dispatch EventHandler, routingKey string, log *slog.Logger) rabbitmq.Handler {
	return func(ctx context.Context, body []byte) error {
		_, err := dispatch.Handle(ctx, routingKey, body)
		if errors.Is(err, models.ErrValidation) {
			log.Warn("dropping malformed event", slog.String("routing_key", routingKey), sl.Err(err))
			return nil
		}
		return err
	}
}

// Run запускает чтение всех входящих очередей и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	for _, q := range a.queues {
		handler := Handler(a.dispatch, q.RoutingKey, a.logger)
		if err := rabbitmq.ConsumerMessage(ctx, a.inbound, q.QueueName, concurrency, handler, a.logger); err != nil {
			a.close()
			return err
		}
		a.logger.Info("consuming queue", slog.String("queue", q.QueueName))
	}

	<-ctx.Done()
	a.logger.Info("shutting down events consumer")
	a.close()
	return nil
}

func (a *App) close() {
	if err := a.inbound.Close(); err != nil {
		a.logger.Error("failed to close inbound channel", slog.Any("err", err))
	}
	a.infra.Close()
}
