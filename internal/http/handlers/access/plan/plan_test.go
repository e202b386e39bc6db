package plan

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/models"
	"github.com/magabrotheeeer/quizleague/internal/services/entitlement"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) GetEffectivePlan(ctx context.Context, userID string) (*models.EffectivePlan, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.EffectivePlan)
	return p, args.Error(1)
}

func (m *MockService) AccessibleLevels(tier models.Tier) entitlement.LevelRange {
	return m.Called(tier).Get(0).(entitlement.LevelRange)
}

func TestPlanHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	expires := time.Date(2024, 11, 1, 0, 0, 0, 0, time.UTC)

	t.Run("действующий план", func(t *testing.T) {
		m := new(MockService)
		m.On("GetEffectivePlan", mock.Anything, "u1").
			Return(&models.EffectivePlan{UserID: "u1", Tier: models.TierPremium, MaxLevel: 9, ExpiresAt: &expires}, nil)
		m.On("AccessibleLevels", models.TierPremium).Return(entitlement.LevelRange{Min: 0, Max: 9})

		req := httptest.NewRequest(http.MethodGet, "/plan", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
		w := httptest.NewRecorder()
		New(logger, m).ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tier":"PREMIUM"`)
		assert.Contains(t, w.Body.String(), `"levels":{"min":0,"max":9}`)
		m.AssertExpectations(t)
	})

	t.Run("ошибка сервиса", func(t *testing.T) {
		m := new(MockService)
		m.On("GetEffectivePlan", mock.Anything, "u1").Return(nil, errors.New("redis down"))

		req := httptest.NewRequest(http.MethodGet, "/plan", nil)
		req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
		w := httptest.NewRecorder()
		New(logger, m).ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})

	t.Run("без пользователя", func(t *testing.T) {
		w := httptest.NewRecorder()
		New(logger, new(MockService)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/plan", nil))
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}
