package check

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) CanAccessLevel(ctx context.Context, userID string, level int) (bool, error) {
	args := m.Called(ctx, userID, level)
	return args.Bool(0), args.Error(1)
}

func TestCheckHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		level          string
		userID         string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name:   "уровень доступен",
			level:  "3",
			userID: "u1",
			setupMock: func(m *MockService) {
				m.On("CanAccessLevel", mock.Anything, "u1", 3).Return(true, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"allowed":true`,
		},
		{
			name:   "уровень закрыт",
			level:  "7",
			userID: "u1",
			setupMock: func(m *MockService) {
				m.On("CanAccessLevel", mock.Anything, "u1", 7).Return(false, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"allowed":false`,
		},
		{
			name:           "уровень не число",
			level:          "seven",
			userID:         "u1",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnprocessableEntity,
			expectedBody:   `"error":"level must be an integer"`,
		},
		{
			name:   "отрицательный уровень",
			level:  "-1",
			userID: "u1",
			setupMock: func(m *MockService) {
				m.On("CanAccessLevel", mock.Anything, "u1", -1).Return(false, models.ErrValidation)
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name:           "отсутствует авторизация",
			level:          "3",
			setupMock:      func(*MockService) {},
			expectedStatus: http.StatusUnauthorized,
			expectedBody:   `"error":"unauthorized"`,
		},
		{
			name:   "ошибка сервиса",
			level:  "3",
			userID: "u1",
			setupMock: func(m *MockService) {
				m.On("CanAccessLevel", mock.Anything, "u1", 3).Return(false, errors.New("db error"))
			},
			expectedStatus: http.StatusInternalServerError,
			expectedBody:   `"error":"internal error"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockService)
			tt.setupMock(mockService)
			handler := New(logger, mockService)

			req := httptest.NewRequest(http.MethodGet, "/levels/"+tt.level+"/access", nil)
			ctx := context.WithValue(req.Context(), middlewarectx.UserID, tt.userID)
			ctx = context.WithValue(ctx, middleware.RequestIDKey, "req-id")
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("level", tt.level)
			req = req.WithContext(context.WithValue(ctx, chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			handler.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			mockService.AssertExpectations(t)
		})
	}
}
