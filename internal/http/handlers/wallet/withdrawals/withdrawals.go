// Package withdrawals реализует HTTP-обработчик списка заявок на вывод пользователя.
package withdrawals

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
	ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Заявки на вывод
// @Tags Wallet
// @Produce json
// @Success 200 {object} response.Response{data=[]response.WithdrawalView}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /wallet/withdrawals [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.withdrawals"
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

	list, err := h.service.ListWithdrawals(r.Context(), userID)
	if err != nil {
		log.Error("failed to list withdrawals", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	views := make([]response.WithdrawalView, len(list))
	for i := range list {
		views[i] = response.Withdrawal(&list[i])
	}
	render.JSON(w, r, response.OKWithData(views))
}
