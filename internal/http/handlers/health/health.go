package health

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

// Check проверяет доступность зависимости.
type Check func(ctx context.Context) error

type Handler struct {
	log    *slog.Logger
	checks map[string]Check
}

func New(log *slog.Logger, checks map[string]Check) *Handler {
	return &Handler{
		log:    log,
		checks: checks,
	}
}

// ServeHTTP godoc
// @Summary Проверка состояния
// @Tags Health
// @Produce json
// @Success 200 {object} response.Response
// @Failure 503 {object} response.Response
// @Router /health [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.health"
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	result := map[string]string{"status": "ok"}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.log.Error("dependency unavailable", slog.String("op", op), slog.String("dependency", name), sl.Err(err))
			status = http.StatusServiceUnavailable
			result["status"] = "degraded"
			result[name] = "unavailable"
			continue
		}
		result[name] = "ok"
	}

	render.Status(r, status)
	render.JSON(w, r, response.OKWithData(result))
}
