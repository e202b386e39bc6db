// Package withdraw реализует HTTP-обработчик создания заявки на вывод средств.
//
// Сумма передаётся десятичной строкой и списывается с баланса сразу при создании заявки.
package withdraw

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

type Service interface {
	RequestWithdrawal(ctx context.Context, userID string, amount int64, payoutRef string) (*models.WithdrawalRequest, error)
}

type Request struct {
	Amount    string `json:"amount" validate:"required" example:"1000.00"`
	PayoutRef string `json:"payout_ref" validate:"required,max=255" example:"upi:author@bank"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Заявка на вывод
// @Description Доступно после 100 одобренных вопросов, сумма не меньше минимальной и не больше баланса.
// @Tags Wallet
// @Accept json
// @Produce json
// @Param request body Request true "Сумма и реквизиты"
// @Success 201 {object} response.Response{data=response.WithdrawalView}
// @Failure 400 {object} response.ErrorResponse
// @Failure 401 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Недостаточно вопросов, баланса или сумма меньше минимальной"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /wallet/withdrawals [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.wallet.withdraw"
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

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		log.Error("failed to decode request", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.validate.Struct(req); err != nil {
		log.Warn("validation failed", sl.Err(err))
		render.Status(r, http.StatusUnprocessableEntity)
		render.JSON(w, r, response.ValidationError(err.(validator.ValidationErrors)))
		return
	}

	amount, err := response.ParseMoney(req.Amount)
	if err != nil {
		log.Warn("invalid amount", slog.String("amount", req.Amount))
		response.ServiceError(w, r, err)
		return
	}

	wr, err := h.service.RequestWithdrawal(r.Context(), userID, amount, req.PayoutRef)
	if err != nil {
		log.Warn("withdrawal rejected", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("withdrawal requested", sl.User(userID), slog.String("withdrawal_id", wr.ID), slog.Int64("amount", amount))
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, response.OKWithData(response.Withdrawal(wr)))
}
