// Package events реализует ручную подачу входящего события в обход брокера.
//
// Используется для повторной обработки событий, потерянных в очереди.
// Обработка идемпотентна так же, как при чтении из RabbitMQ.
package events

import (
	"context"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/render"

	"github.com/magabrotheeeer/quizleague/internal/http/response"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
)

const maxBodyBytes = 64 << 10

type Handler struct {
	log     *slog.Logger
	service Service
}

type Service interface {
	Handle(ctx context.Context, routingKey string, body []byte) (any, error)
}

func New(log *slog.Logger, service Service) *Handler {
	return &Handler{log: log, service: service}
}

// ServeHTTP godoc
// @Summary Подать входящее событие
// @Description Ключи: payment.activated, referral.confirmed, question.approved, profile.completed.
// @Tags Admin
// @Accept json
// @Produce json
// @Param routing_key path string true "Ключ события"
// @Success 200 {object} response.Response
// @Failure 400 {object} response.ErrorResponse
// @Failure 403 {object} response.ErrorResponse
// @Failure 409 {object} response.ErrorResponse
// @Failure 422 {object} response.ErrorResponse
// @Failure 500 {object} response.ErrorResponse
// @Security BearerAuth
// @Router /admin/events/{routing_key} [post]
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	const op = "handlers.admin.events"
	key := chi.URLParam(r, "routing_key")
	log := h.log.With(
		slog.String("op", op),
		slog.String("request_id", middleware.GetReqID(r.Context())),
		slog.String("routing_key", key),
	)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		log.Error("failed to read body", sl.Err(err))
		response.Fail(w, r, http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := h.service.Handle(r.Context(), key, body)
	if err != nil {
		log.Warn("event rejected", sl.Err(err))
		response.ServiceError(w, r, err)
		return
	}

	log.Info("event applied")
	render.JSON(w, r, response.OKWithData(result))
}
