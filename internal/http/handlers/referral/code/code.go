// Package code реализует HTTP-обработчик выдачи реферального кода пользователя.
package code

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	GetReferralCode(ctx context.Context, userID string) (string, error)
}

type Result struct {
	ReferralCode string `json:"referral_code" example:"3F9A1C7B2E"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Реферальный код
// @Description Код выдаётся один раз и больше не меняется.
// @Tags Referral
// @Produce json
// @Success 200 {object} response.Response{data=Result}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /referral/code [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.referral.code"
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

	c, err := h.service.GetReferralCode(r.Context(), userID)
	if err != nil {
		log.Error("failed to get referral code", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}
	render.JSON(w, r, response.OKWithData(Result{ReferralCode: c}))
}
