// Package bootstrap поднимает общую инфраструктуру процессов движка
// (PostgreSQL, Redis, RabbitMQ) и собирает доменные сервисы.
package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/quizleague/internal/cache"
	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/cycle"
	"github.com/magabrotheeeer/quizleague/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/quizleague/internal/migrations"
	"github.com/magabrotheeeer/quizleague/internal/services/entitlement"
	"github.com/magabrotheeeer/quizleague/internal/services/inbound"
	"github.com/magabrotheeeer/quizleague/internal/services/progression"
	"github.com/magabrotheeeer/quizleague/internal/services/ranking"
	"github.com/magabrotheeeer/quizleague/internal/services/referral"
	"github.com/magabrotheeeer/quizleague/internal/services/wallet"
	"github.com/magabrotheeeer/quizleague/internal/storage/repository"
)

// Infra: открытые соединения процесса.
type Infra struct {
	DB        *repository.Storage
	Cache     *cache.Cache
	Conn      *amqp.Connection
	Channel   *amqp.Channel
	Publisher *rabbitmq.Publisher
	log       *slog.Logger
}

// Services: доменные сервисы движка.
type Services struct {
	Calendar    *cycle.Calendar
	Entitlement *entitlement.Service
	Progression *progression.Service
	Ranking     *ranking.Service
	Referral    *referral.Service
	Wallet      *wallet.Service
	Inbound     *inbound.Dispatcher
}

func waitForDB(db *repository.Storage) error {
	for range 10 {
		err := repository.CheckDatabaseReady(db)
		if err == nil {
			return nil
		}
		time.Sleep(3 * time.Second)
	}
	return fmt.Errorf("database not ready after retries")
}

// Open подключается к хранилищу, кэшу и брокеру. Если migrate, перед проверкой
// готовности базы применяются миграции; иначе процесс ждёт, пока их применит API.
// Канал публикации объявляет exchange доменных событий. При ошибке уже
// открытые соединения закрываются.
func Open(ctx context.Context, cfg *config.Config, migrate bool, log *slog.Logger) (*Infra, error) {
	infra := &Infra{log: log}

	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect storage: %w", err)
	}
	infra.DB = db
	if migrate {
		if _, err := migrations.Run(db.DB, cfg.MigrationsPath, log); err != nil {
			infra.Close()
			return nil, err
		}
	}
	if err := waitForDB(db); err != nil {
		infra.Close()
		return nil, err
	}

	infra.Cache, err = cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("cache not initialized: %w", err)
	}

	infra.Conn, err = rabbitmq.Connect(cfg.RabbitMQURL, cfg.RabbitMQMaxRetries, cfg.RabbitMQRetryDelay)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("failed to connect RabbitMQ: %w", err)
	}
	infra.Channel, err = rabbitmq.SetupChannel(infra.Conn, cfg.EventsExchange, nil)
	if err != nil {
		infra.Close()
		return nil, fmt.Errorf("failed to setup RabbitMQ channel: %w", err)
	}
	infra.Publisher = rabbitmq.NewPublisher(infra.Channel, cfg.EventsExchange)

	log.Info("infrastructure ready",
		slog.String("redis", cfg.AddressRedis),
		slog.String("exchange", cfg.EventsExchange))
	return infra, nil
}

// Services собирает сервисы поверх открытой инфраструктуры.
func (i *Infra) Services(cfg *config.Config, log *slog.Logger) (*Services, error) {
	loc, err := cfg.Rules.Competition.Location()
	if err != nil {
		return nil, fmt.Errorf("invalid competition timezone: %w", err)
	}
	calendar := cycle.NewCalendar(loc, cfg.Rules.Competition.CutoffHour)

	plans := entitlement.New(i.DB, i.Cache, i.Publisher, cfg.Rules, cfg.PlanCacheTTL, log)
	referrals := referral.New(i.DB, plans, i.Publisher, cfg.Rules, log)
	wallets := wallet.New(i.DB, i.Publisher, cfg.Rules, log)

	return &Services{
		Calendar:    calendar,
		Entitlement: plans,
		Progression: progression.New(i.DB, calendar, cfg.Rules, log),
		Ranking:     ranking.New(i.DB, i.Cache, i.Publisher, calendar, cfg.Rules, log),
		Referral:    referrals,
		Wallet:      wallets,
		Inbound:     inbound.New(plans, referrals, wallets, log),
	}, nil
}

// Close закрывает все открытые соединения.
func (i *Infra) Close() {
	if i.Channel != nil {
		if err := i.Channel.Close(); err != nil {
			i.log.Error("failed to close channel", slog.Any("err", err))
		}
	}
	if i.Conn != nil {
		if err := i.Conn.Close(); err != nil {
			i.log.Error("failed to close connection", slog.Any("err", err))
		}
	}
	if i.Cache != nil {
		if err := i.Cache.Close(); err != nil {
			i.log.Error("failed to close cache", slog.Any("err", err))
		}
	}
	if i.DB != nil {
		if err := i.DB.DB.Close(); err != nil {
			i.log.Error("failed to close storage", slog.Any("err", err))
		}
	}
}
