// Package withdrawalstatus реализует смену статуса заявки на вывод оператором.
package withdrawalstatus

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"
	"github.com/go-playground/validator"

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
	TransitionWithdrawal(ctx context.Context, id string, to models.WithdrawalStatus) (*models.WithdrawalRequest, error)
}

// Request: целевой статус. REJECTED возвращает сумму на баланс автора.
type Request struct {
	Status string `json:"status" validate:"required,oneof=APPROVED REJECTED PAID" example:"APPROVED"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Сменить статус заявки
// @Description Допустимые переходы: PENDING -> APPROVED | REJECTED, APPROVED -> PAID.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "ID заявки"
// @Param request body Request true "Новый статус"
// @Success 200 {object} response.Response{data=response.WithdrawalView}
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 404 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Недопустимый переход"
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /admin/withdrawals/{id} [patch]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.withdrawalstatus"
	id := chi.URLParam(r, "id")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("withdrawal_id", id),
	)

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

	wr, err := h.service.TransitionWithdrawal(r.Context(), id, models.WithdrawalStatus(req.Status))
	if err != nil {
		log.Warn("failed to transition withdrawal", slog.String("to", req.Status), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("withdrawal status changed", slog.String("status", string(wr.Status)))
	render.JSON(w, r, response.OKWithData(response.Withdrawal(wr)))
}
