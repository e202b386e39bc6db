// Package quizleague предоставляет HTTP API движка квиз-лиги.
package quizleague

import (
	"log/slog"
	"time"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/quizleague/internal/app/bootstrap"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/access/check"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/access/plan"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/admin/closecycle"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/admin/events"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/admin/withdrawalstatus"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/health"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/leaderboard/current"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/leaderboard/previous"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/leaderboard/rewards"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/progress/attempt"
	progresscurrent "github.com/magabrotheeeer/quizleague/internal/http/handlers/progress/current"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/referral/code"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/wallet/balance"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/wallet/withdraw"
	"github.com/magabrotheeeer/quizleague/internal/http/handlers/wallet/withdrawals"
	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
)

// Deps: зависимости маршрутов.
type Deps struct {
	Services      *bootstrap.Services
	Tokens        middlewarectx.TokenParser
	AttemptsLimit *middlewarectx.RateLimiter
	Health        map[string]health.Check
}

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, deps Deps) {
	s := deps.Services

	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
		middleware.Timeout(30*time.Second),
		middlewarectx.Metrics,
	)

	r.Get("/health", health.New(logger, deps.Health).ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Get("/leaderboard/current", current.New(logger, s.Ranking).ServeHTTP)
		r.Get("/leaderboard/previous", previous.New(logger, s.Ranking).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(deps.Tokens, logger))

			r.Get("/plan", plan.New(logger, s.Entitlement).ServeHTTP)
			r.Get("/levels/{level}/access", check.New(logger, s.Entitlement).ServeHTTP)
			r.Get("/progress", progresscurrent.New(logger, s.Progression).ServeHTTP)
			r.With(deps.AttemptsLimit.Middleware(logger)).
				Post("/attempts", attempt.New(logger, s.Progression).ServeHTTP)
			r.Get("/referral/code", code.New(logger, s.Referral).ServeHTTP)
			r.Get("/rewards", rewards.New(logger, s.Ranking).ServeHTTP)
			r.Get("/wallet", balance.New(logger, s.Wallet).ServeHTTP)
			r.Get("/wallet/withdrawals", withdrawals.New(logger, s.Wallet).ServeHTTP)
			r.Post("/wallet/withdrawals", withdraw.New(logger, s.Wallet).ServeHTTP)

			// Операторские конечные точки
			r.Route("/admin", func(r chi.Router) {
				r.Use(middlewarectx.RequireAdmin(logger))
				r.Post("/cycles/{cycle_key}/close", closecycle.New(logger, s.Ranking).ServeHTTP)
				r.Patch("/withdrawals/{id}", withdrawalstatus.New(logger, s.Wallet).ServeHTTP)
				r.Post("/events/{routing_key}", events.New(logger, s.Inbound).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
