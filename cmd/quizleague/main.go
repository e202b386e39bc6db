// Package main Quiz League API
//
// @title           Quiz League API
// @version         1.0
// @description     Движок квиз-лиги: доступ к уровням, прогресс, месячный рейтинг с наградами, рефералы и кошелёк авторов вопросов

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.
package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	// Часовой пояс цикла должен загружаться и в образе без tzdata.
	_ "time/tzdata"

	"github.com/magabrotheeeer/quizleague/internal/app/quizleague"
	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.NewLogger(cfg.Env, os.Stdout)

	logger.Info("starting quizleague", slog.String("env", cfg.Env), slog.String("rules", cfg.Rules.Version))
	logger.Debug("config loaded", slog.String("config", cfg.String()))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := quizleague.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("app stopped with error", sl.Err(err))
		os.Exit(1)
	}

	logger.Info("quizleague stopped gracefully")
}
