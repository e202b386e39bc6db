package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	_ "time/tzdata"

	"github.com/magabrotheeeer/quizleague/internal/app/consumer"
	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

func main() {
	cfg := config.MustLoad()
	logger := sl.NewLogger(cfg.Env, os.Stdout)
	logger.Info("starting events consumer", slog.String("env", cfg.Env), slog.String("exchange", cfg.InboundExchange))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := consumer.New(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize events consumer", sl.Err(err))
		os.Exit(1)
	}

	if err := app.Run(ctx); err != nil {
		logger.Error("events consumer stopped with error", sl.Err(err))
		os.Exit(1)
	}
	logger.Info("events consumer stopped gracefully")
}
