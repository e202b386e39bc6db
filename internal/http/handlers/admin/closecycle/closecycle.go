// Package closecycle реализует административное закрытие месячного цикла.
//
// Обычно циклы закрывает планировщик; ручной вызов нужен для повторной
// выплаты наград, если часть начислений не записалась.
package closecycle

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	CloseMonthlyCycle(ctx context.Context, cycleKey string) (*models.MonthlySnapshot, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Закрыть цикл
// @Description Закрывает цикл, публикует снимок и начисляет награды. Повторный вызов идемпотентен.
// @Tags Admin
// @Produce json
// @Param cycle_key path string true "Ключ цикла" example(2024-10)
// @Success 200 {object} response.Response{data=response.SnapshotView}
// @Failure 403 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Цикл ещё не завершён"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /admin/cycles/{cycle_key}/close [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.closecycle"
	key := chi.URLParam(r, "cycle_key")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		sl.Cycle(key),
	)

	snap, err := h.service.CloseMonthlyCycle(r.Context(), key)
	if err != nil {
		log.Error("failed to close cycle", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("cycle closed", slog.Int("entries", len(snap.Entries)))
	render.JSON(w, r, response.OKWithData(response.Snapshot(snap)))
}
