package withdrawals

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/magabrotheeeer/quizleague/internal/http/middlewarectx"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type MockService struct {
	mock.Mock
}

func (m *MockService) ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	args := m.Called(ctx, userID)
	l, _ := args.Get(0).([]models.WithdrawalRequest)
	return l, args.Error(1)
}

func TestWithdrawalsHandler(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := new(MockService)
	m.On("ListWithdrawals", mock.Anything, "u1").Return([]models.WithdrawalRequest{
		{ID: "w2", Amount: 50000, Status: models.WithdrawalPending},
		{ID: "w1", Amount: 100000, Status: models.WithdrawalPaid},
	}, nil)

	req := httptest.NewRequest(http.MethodGet, "/wallet/withdrawals", nil)
	req = req.WithContext(context.WithValue(req.Context(), middlewarectx.UserID, "u1"))
	w := httptest.NewRecorder()
	New(logger, m).ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"amount":"500.00"`)
	assert.Contains(t, w.Body.String(), `"status":"PAID"`)
	m.AssertExpectations(t)
}

func TestWithdrawalsHandler_Unauthorized(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	w := httptest.NewRecorder()
	New(logger, new(MockService)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/wallet/withdrawals", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
