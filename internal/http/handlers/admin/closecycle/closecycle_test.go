package closecycle

import (
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

func (m *MockService) CloseMonthlyCycle(ctx context.Context, key string) (*models.MonthlySnapshot, error) {
	args := m.Called(ctx, key)
	s, _ := args.Get(0).(*models.MonthlySnapshot)
	return s, args.Error(1)
}

func TestCloseCycleHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name           string
		key            string
		setupMock      func(*MockService)
		expectedStatus int
		expectedBody   string
	}{
		{
			name: "цикл закрыт",
			key:  "2024-09",
			setupMock: func(m *MockService) {
				m.On("CloseMonthlyCycle", mock.Anything, "2024-09").Return(&models.MonthlySnapshot{
					CycleKey: "2024-09", PrizePool: 1000000,
					Entries: []models.SnapshotEntry{{Rank: 1, UserID: "a", RewardAmount: 250000}},
				}, nil)
			},
			expectedStatus: http.StatusOK,
			expectedBody:   `"cycle_key":"2024-09"`,
		},
		{
			name: "цикл ещё идёт",
			key:  "2024-10",
			setupMock: func(m *MockService) {
				m.On("CloseMonthlyCycle", mock.Anything, "2024-10").
					Return(nil, fmt.Errorf("%w: cycle not ended", models.ErrNotEligible))
			},
			expectedStatus: http.StatusConflict,
		},
		{
			name: "неверный ключ",
			key:  "oct",
			setupMock: func(m *MockService) {
				m.On("CloseMonthlyCycle", mock.Anything, "oct").
					Return(nil, fmt.Errorf("%w: invalid cycle key", models.ErrValidation))
			},
			expectedStatus: http.StatusUnprocessableEntity,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := new(MockService)
			tt.setupMock(m)

			req := httptest.NewRequest(http.MethodPost, "/admin/cycles/"+tt.key+"/close", nil)
			rctx := chi.NewRouteContext()
			rctx.URLParams.Add("cycle_key", tt.key)
			req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

			w := httptest.NewRecorder()
			New(logger, m).ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Contains(t, w.Body.String(), tt.expectedBody)
			m.AssertExpectations(t)
		})
	}
}
