// Package check реализует HTTP-обработчик проверки доступа пользователя к уровню.
package check

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

// Handler отвечает на вопрос, открыт ли уровень текущему пользователю.
type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает проверку доступа к уровню.
type Service interface {
	CanAccessLevel(ctx context.Context, userID string, level int) (bool, error)
}

// Result: ответ проверки доступа.
type Result struct {
	Level   int  `json:"level" example:"7"`
	Allowed bool `json:"allowed" example:"false"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{
		log:     log,
		service: service,
	}
}

// ServeHTTP godoc
// @Summary Проверить доступ к уровню
// @Description Уровень доступен, если он не выше максимального уровня действующего плана пользователя.
// @Tags Access
// @Produce json
// @Param level path int true "Номер уровня"
// @Success 200 {object} response.Response{data=Result}
// @Failure 401 {object} response.ErrorResponse "Пользователь не авторизован"
// @Failure 422 {object} response.ErrorResponse "Некорректный уровень"
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /levels/{level}/access [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.access.check"
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

	level, err := strconv.Atoi(chi.URLParam(r, "level"))
	if err != nil {
		log.Warn("failed to parse level", sl.Err(err))
		response.Fail(w, r, http.StatusUnprocessableEntity, "level must be an integer")
		return
	}

	allowed, err := h.service.CanAccessLevel(r.Context(), userID, level)
	if err != nil {
		log.Error("failed to check level access", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(Result{Level: level, Allowed: allowed}))
}
