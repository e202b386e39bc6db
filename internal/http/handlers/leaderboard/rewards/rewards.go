// Package rewards реализует HTTP-обработчик списка наград пользователя за месячные циклы.
package rewards

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	ListRewards(ctx context.Context, userID string) ([]models.RewardCredit, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Награды пользователя
// @Tags Leaderboard
// @Produce json
// @Success 200 {object} response.Response{data=[]response.RewardView}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /rewards [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.leaderboard.rewards"
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
	)

	userID, ok := middlewarectx.UserIDFrom(r.Context())
	if !ok {
		log.Error("user id not found in context")
		response.Fail(w, r, http.StatusUnauthorized, "unauthorized")
		return
	}

	credits, err := h.service.ListRewards(r.Context(), userID)
	if err != nil {
		log.Error("failed to list rewards", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	views := make([]response.RewardView, len(credits))
	for i, c := range credits {
		views[i] = response.Reward(c)
	}
	render.JSON(w, r, response.OKWithData(views))
}
