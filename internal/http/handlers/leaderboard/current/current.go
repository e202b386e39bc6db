// Package current реализует HTTP-обработчик живого рейтинга открытого цикла.
package current

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/services/ranking"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	CurrentStandings(ctx context.Context, limit int) (string, []ranking.Standing, error)
}

type Result struct {
	CycleKey  string             `json:"cycle_key" example:"2024-10"`
	Standings []ranking.Standing `json:"standings"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Текущий рейтинг
// @Description Живой рейтинг открытого цикла без наград. Порядок тот же, что при закрытии цикла.
// @Tags Leaderboard
// @Produce json
// @Param limit query int false "Размер выборки" default(50)
// @Success 200 {object} response.Response{data=Result}
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /leaderboard/current [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.leaderboard.current"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	limit := defaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxLimit {
			log.Warn("invalid limit", slog.String("limit", raw))
			response.Fail(w, r, http.StatusUnprocessableEntity, "limit must be an integer in [1, 500]")
			return
		}
		limit = v
	}

	key, standings, err := h.service.CurrentStandings(r.Context(), limit)
	if err != nil {
		log.Error("failed to get standings", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(Result{CycleKey: key, Standings: standings}))
}
