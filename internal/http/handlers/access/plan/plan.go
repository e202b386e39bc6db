// Package plan реализует HTTP-обработчик получения действующего плана пользователя.
package plan

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
	"github.com/magabrotheeeer/quizleague/internal/services/entitlement"
)

type Handler struct {
	log     *slog.Logger
	service Service
}

// Service описывает получение плана и диапазона уровней.
type Service interface {
	GetEffectivePlan(ctx context.Context, userID string) (*models.EffectivePlan, error)
	AccessibleLevels(tier models.Tier) entitlement.LevelRange
}

// Result: действующий план и открытые им уровни.
type Result struct {
	Tier      models.Tier            `json:"tier" example:"PREMIUM"`
	ExpiresAt *time.Time             `json:"expires_at,omitempty"`
	Levels    entitlement.LevelRange `json:"levels"`
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Действующий план
// @Description Возвращает самый высокий неистёкший план пользователя из всех источников и доступные уровни.
// @Tags Access
// @Produce json
// @Success 200 {object} response.Response{data=Result}
// @Failure 401 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /plan [get]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.access.plan"
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

	p, err := h.service.GetEffectivePlan(r.Context(), userID)
	if err != nil {
		log.Error("failed to get effective plan", sl.User(userID), sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	render.JSON(w, r, response.OKWithData(Result{
		Tier:      p.Tier,
		ExpiresAt: p.ExpiresAt,
		Levels:    h.service.AccessibleLevels(p.Tier),
	}))
}
