package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/magabrotheeeer/quizleague/internal/app/scheduler"
	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.NewLogger(cfg.Env, os.Stdout)
	logger.Info("starting scheduler", slog.String("env", cfg.Env), slog.Duration("interval", cfg.CheckInterval))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := scheduler.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize scheduler", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("scheduler stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("scheduler stopped gracefully")
}
