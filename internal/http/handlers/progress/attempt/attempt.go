// Package attempt реализует HTTP-обработчик записи результата попытки прохождения квиза.
//
// Попытка записывается в текущий месячный цикл. Если цикл успел закрыться,
// сервис сам переносит запись в следующий цикл.
package attempt

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

// Handler управляет HTTP-запросами на запись попытки.
type Handler struct {
	log      *slog.Logger
	service  Service
	validate *validator.Validate
}

// Service описывает запись попытки.
type Service interface {
	RecordAttempt(ctx context.Context, userID string, score float64) (*models.AttemptResult, error)
}

// Request: тело запроса. Score: процент правильных ответов в диапазоне [0, 100].
type Request struct {
	Score *float64 `json:"score" validate:"required" example:"82.5"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:      log,
		service:  service,
		validate: validator.New(),
	}
}

// ServeHTTP godoc
// @Summary Записать попытку
// @Description Записывает результат квиза. Попытка с результатом от 75% считается зачётной и продвигает уровень.
// @Tags Progress
// @Accept json
// @Produce json
// @Param request body Request true "Результат попытки"
// @Success 200 {object} response.Response{data=models.AttemptResult}
// @Failure 400 {object} response.ErrorResponse "Некорректный JSON"
// @Failure 401 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse "Конкурентная запись, повторите запрос"
// @Failure 422 {object} response.ErrorResponse "Результат вне диапазона"
// @Failure 429 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /attempts [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.progress.attempt"
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

	result, err := h.service.RecordAttempt(r.Context(), userID, *req.Score)
	if err != nil {
		log.Error("failed to record attempt", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("attempt recorded",
		sl.User(userID),
		sl.Cycle(result.CycleKey),
		slog.Int("level", result.NewLevel),
		slog.Bool("leveled_up", result.LeveledUp))
	render.JSON(w, r, response.OKWithData(result))
}
