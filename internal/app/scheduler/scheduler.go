// Package scheduler содержит процесс, закрывающий завершившиеся месячные циклы.
package scheduler

import (
	"context"
	"log/slog"

	"github.com/magabrotheeeer/quizleague/internal/app/bootstrap"
	"github.com/magabrotheeeer/quizleague/internal/config"
	schedulerservice "github.com/magabrotheeeer/quizleague/internal/services/scheduler"
)

// App представляет приложение планировщика.
type App struct {
	schedulerService *schedulerservice.SchedulerService
	infra            *bootstrap.Infra
	logger           *slog.Logger
}

// New создает новый экземпляр приложения планировщика.
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

	schedulerService := schedulerservice.NewSchedulerService(
		infra.DB, services.Ranking, infra.Cache, services.Calendar,
		cfg.CheckInterval, cfg.LockTTL, logger)

	return &App{
		schedulerService: schedulerService,
		infra:            infra,
		logger:           logger,
	}, nil
}

// Run запускает планировщик и блокируется до отмены ctx.
func (a *App) Run(ctx context.Context) error {
	a.schedulerService.Run(ctx)

	a.logger.Info("shutting down scheduler service")
	a.infra.Close()
	return nil
}
