package events

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) Handle(ctx context.Context, key string, body []byte) (any, error) {
	args := m.Called(ctx, key, string(body))
	return args.Get(0), args.Error(1)
}

func TestEventsHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		key            string
		body           string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "событие применено",
			key:  models.InboundQuestionApproved,
			body: `{"user_id":"u1","question_id":"q1"}`,
			setupMock: func(m *MockService) {
				m.On("Handle", mock.Anything, models.InboundQuestionApproved, `{"user_id":"u1","question_id":"q1"}`).
					Return(map[string]any{"approved_question_count": 1}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"approved_question_count":1`,
		},
		{
			name: "неизвестный ключ",
			key:  "foo.bar",
			body: `{}`,
			setupMock: func(m *MockService) {
				m.On("Handle", mock.Anything, "foo.bar", `{}`).
					Return(nil, fmt.Errorf("%w: unknown routing key", models.ErrValidation))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
		{
			name: "конфликт версий",
			key:  models.InboundReferralConfirmed,
			body: `{"referring_user_id":"u1","referred_user_id":"n1"}`,
			setupMock: func(m *MockService) {
				m.On("Handle", mock.Anything, models.InboundReferralConfirmed, `{"referring_user_id":"u1","referred_user_id":"n1"}`).
					Return(nil, models.ErrStateConflict)
			},
			expectedStatus: http.StatusConflict,
			expectedBody:   `"retry":true`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockService)
			tt.setupMock(m)

			req := httptest.NewRequest(http.MethodPost, "/admin/events/"+tt.key, bytes.NewBufferString(tt.body))
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("routing_key", tt.key)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			New(logger, m).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			m.AssertExpectations(t)
		})
	}
}
