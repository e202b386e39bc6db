package quizleague

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"

	"github.com/magabrotheeeer/quizleague/internal/app/bootstrap"
	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/health"
	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/lib/jwt"
)

type App struct {
	server *http.Server
	logger *slog.Logger
	infra  *bootstrap.Infra
}

func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg.JWTSecretKey == "" {
		return nil, fmt.Errorf("jwt secret key is not set")
	}

	infra, err := bootstrap.Open(ctx, cfg, true, logger)
	if err != nil {
		return nil, err
	}

	services, err := infra.Services(cfg, logger)
	if err != nil {
		infra.Close()
		return nil, err
	}

	router := chi.NewRouter()
	RegisterRoutes(router, logger, Deps{
		Services:      services,
		Tokens:        jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL),
		AttemptsLimit: middlewarectx.NewRateLimiter(cfg.AttemptsRPS, cfg.AttemptsBurst, 10*time.Minute),
		Health: map[string]health.Check{
			"postgres": infra.DB.DB.PingContext,
			"redis":    infra.Cache.Ping,
		},
	})

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		infra:  infra,
	}, nil
}

func (a *App) Run(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.infra.Close()
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.infra.Close()
		return err
	}
}
