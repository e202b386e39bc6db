// Package previous реализует HTTP-обработчик получения итогов закрытого цикла.
package previous

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

// maxCyclesAgo ограничивает глубину истории, доступную через API.
const maxCyclesAgo = 24

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	GetPreviousCycleSnapshot(ctx context.Context, n int) (*models.MonthlySnapshot, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Итоги прошлого цикла
// @Description Возвращает опубликованный снимок рейтинга цикла, закрытого n циклов назад (по умолчанию 1).
// @Tags Leaderboard
// @Produce json
// @Param n query int false "Сколько циклов назад" default(1)
// @Success 200 {object} response.Response{data=response.SnapshotView}
// @Failure 404 {object} response.ErrorResponse "Снимок не опубликован"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Router /leaderboard/previous [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.leaderboard.previous"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	n := 1
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 || v > maxCyclesAgo {
			log.Warn("invalid cycles ago parameter", slog.String("n", raw))
			response.Fail(w, r, http.StatusUnprocessableEntity, "n must be an integer in [1, 24]")
			return
		}
		n = v
	}

	snapshot, err := h.service.GetPreviousCycleSnapshot(r.Context(), n)
	if err != nil {
		log.Error("failed to get snapshot", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}
	if snapshot == nil {
		response.Fail(w, r, http.StatusNotFound, "snapshot not published")
		return
	}
	render.JSON(w, r, response.OKWithData(response.Snapshot(snapshot)))
}
