// Package response содержит вспомогательные типы и функции для формирования
// унифицированных JSON-ответов HTTP-обработчиков и отображения доменных ошибок в HTTP-статусы.
package response

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/go-chi/render"
	"github.com/go-playground/validator"
	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// Response описывает стандартную структуру JSON-ответа сервера.
type Response struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
	Data   any    `json:"data,omitempty"`
}

// ErrorResponse: структура ошибки для Swagger-документации.
type ErrorResponse struct {
	Status string `json:"status" example:"Error"`
	Error  string `json:"error" example:"invalid request body"`
	Retry  bool   `json:"retry,omitempty" example:"false"`
}

const (
	StatusOK    = "OK"
	StatusError = "Error"
)

// OKWithData возвращает успешный Response с переданными данными.
func OKWithData(data any) Response {
	return Response{
		Status: StatusOK,
		Data:   data,
	}
}

// Error возвращает ErrorResponse с переданным сообщением.
func Error(msg string) ErrorResponse {
	return ErrorResponse{
		Status: StatusError,
		Error:  msg,
	}
}

// ValidationError формирует ответ на основе ошибок валидации.
// Каждое нарушение формируется в человеко-читаемый текст, объединённый через запятую.
func ValidationError(errs validator.ValidationErrors) ErrorResponse {
	var errsMsgs []string

	for _, err := range errs {
		switch err.ActualTag() {
		case "required":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is a required field", err.Field()))
		case "gt", "gte", "min":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too small", err.Field()))
		case "lte", "max":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is too large", err.Field()))
		case "oneof":
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s must be one of [%s]", err.Field(), err.Param()))
		default:
			errsMsgs = append(errsMsgs, fmt.Sprintf("field %s is not a valid", err.Field()))
		}
	}
	return ErrorResponse{
		Status: StatusError,
		Error:  strings.Join(errsMsgs, ", "),
	}
}

// StatusFor возвращает HTTP-статус и текст ответа для ошибки сервиса.
func StatusFor(err error) (int, ErrorResponse) {
	switch {
	case errors.Is(err, models.ErrValidation):
		return http.StatusUnprocessableEntity, Error(err.Error())
	case errors.Is(err, models.ErrInsufficientApprovedCount):
		return http.StatusConflict, Error("insufficient approved question count")
	case errors.Is(err, models.ErrBelowMinimum):
		return http.StatusConflict, Error("amount below minimum withdrawal")
	case errors.Is(err, models.ErrInsufficientBalance):
		return http.StatusConflict, Error("insufficient balance")
	case errors.Is(err, models.ErrNotEligible):
		return http.StatusConflict, Error("not eligible")
	case errors.Is(err, models.ErrInvalidTransition):
		return http.StatusConflict, Error("invalid status transition")
	case errors.Is(err, models.ErrStateConflict), errors.Is(err, models.ErrCycleNotOpen):
		resp := Error("concurrent update, retry the request")
		resp.Retry = true
		return http.StatusConflict, resp
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound, Error("not found")
	default:
		return http.StatusInternalServerError, Error("internal error")
	}
}

// ServiceError пишет ответ для ошибки сервиса.
func ServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, body := StatusFor(err)
	render.Status(r, status)
	render.JSON(w, r, body)
}

// Fail пишет ответ с ошибкой и статусом status.
func Fail(w http.ResponseWriter, r *http.Request, status int, msg string) {
	render.Status(r, status)
	render.JSON(w, r, Error(msg))
}

// Money форматирует сумму в минимальных единицах как десятичную строку с двумя знаками.
func Money(minor int64) string {
	return models.MinorToMajor(minor).StringFixed(2)
}

// maxMinor: предел суммы в минимальных единицах; IntPart за ним переполняется без ошибки.
var maxMinor = decimal.NewFromInt(math.MaxInt64)

// ParseMoney разбирает десятичную строку суммы в минимальные единицы.
// Допускается не более двух знаков после запятой.
func ParseMoney(s string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("%w: invalid amount %q", models.ErrValidation, s)
	}
	minor := d.Shift(2)
	if !minor.Equal(minor.Truncate(0)) {
		return 0, fmt.Errorf("%w: amount %q has more than two decimals", models.ErrValidation, s)
	}
	if !minor.IsPositive() {
		return 0, fmt.Errorf("%w: amount must be positive", models.ErrValidation)
	}
	if minor.GreaterThan(maxMinor) {
		return 0, fmt.Errorf("%w: amount %q is too large", models.ErrValidation, s)
	}
	return minor.IntPart(), nil
}
