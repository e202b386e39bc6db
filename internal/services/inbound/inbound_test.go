package inbound

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

type PlansMock struct{ mock.Mock }

func (m *PlansMock) OnPaymentActivated(ctx context.Context, evt models.PaymentActivated) error {
	return m.Called(ctx, evt).Error(0)
}

func (m *PlansMock) OnProfileCompleted(ctx context.Context, userID string) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type ReferralsMock struct{ mock.Mock }

func (m *ReferralsMock) OnReferralConfirmed(ctx context.Context, referring, referred string) (*models.ReferralResult, error) {
	args := m.Called(ctx, referring, referred)
	res, _ := args.Get(0).(*models.ReferralResult)
	return res, args.Error(1)
}

type WalletsMock struct{ mock.Mock }

func (m *WalletsMock) OnQuestionApproved(ctx context.Context, userID, questionID string) (*models.WalletLedger, error) {
	args := m.Called(ctx, userID, questionID)
	w, _ := args.Get(0).(*models.WalletLedger)
	return w, args.Error(1)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestDispatcher_Handle(t *testing.T) {
	tests := []struct {
		name       string
		routingKey string
		body       string
		setup      func(p *PlansMock, r *ReferralsMock, w *WalletsMock)
		wantErr    error
	}{
		{
			name:       "payment activated",
			routingKey: models.InboundPaymentActivated,
			body:       `{"payment_id":"p1","user_id":"u1","tier":"PREMIUM","duration_days":30}`,
			setup: func(p *PlansMock, _ *ReferralsMock, _ *WalletsMock) {
				p.On("OnPaymentActivated", mock.Anything, models.PaymentActivated{
					PaymentID: "p1", UserID: "u1", Tier: models.TierPremium, DurationDays: 30,
				}).Return(nil).Once()
			},
		},
		{
			name:       "payment without duration",
			routingKey: models.InboundPaymentActivated,
			body:       `{"payment_id":"p1","user_id":"u1","tier":"PREMIUM"}`,
			setup:      func(*PlansMock, *ReferralsMock, *WalletsMock) {},
			wantErr:    models.ErrValidation,
		},
		{
			name:       "referral confirmed",
			routingKey: models.InboundReferralConfirmed,
			body:       `{"referring_user_id":"r1","referred_user_id":"n1"}`,
			setup: func(_ *PlansMock, r *ReferralsMock, _ *WalletsMock) {
				r.On("OnReferralConfirmed", mock.Anything, "r1", "n1").
					Return(&models.ReferralResult{ConfirmedReferralCount: 2}, nil).Once()
			},
		},
		{
			name:       "question approved",
			routingKey: models.InboundQuestionApproved,
			body:       `{"user_id":"a1","question_id":"q1"}`,
			setup: func(_ *PlansMock, _ *ReferralsMock, w *WalletsMock) {
				w.On("OnQuestionApproved", mock.Anything, "a1", "q1").
					Return(&models.WalletLedger{UserID: "a1"}, nil).Once()
			},
		},
		{
			name:       "profile completed",
			routingKey: models.InboundProfileCompleted,
			body:       `{"user_id":"u1"}`,
			setup: func(p *PlansMock, _ *ReferralsMock, _ *WalletsMock) {
				p.On("OnProfileCompleted", mock.Anything, "u1").Return(true, nil).Once()
			},
		},
		{
			name:       "service error is passed through",
			routingKey: models.InboundProfileCompleted,
			body:       `{"user_id":"u1"}`,
			setup: func(p *PlansMock, _ *ReferralsMock, _ *WalletsMock) {
				p.On("OnProfileCompleted", mock.Anything, "u1").Return(false, models.ErrStateConflict).Once()
			},
			wantErr: models.ErrStateConflict,
		},
		{
			name:       "referral without referred user",
			routingKey: models.InboundReferralConfirmed,
			body:       `{"referring_user_id":"r1"}`,
			setup:      func(*PlansMock, *ReferralsMock, *WalletsMock) {},
			wantErr:    models.ErrValidation,
		},
		{
			name:       "question approval without question id",
			routingKey: models.InboundQuestionApproved,
			body:       `{"user_id":"a1"}`,
			setup:      func(*PlansMock, *ReferralsMock, *WalletsMock) {},
			wantErr:    models.ErrValidation,
		},
		{
			name:       "malformed json",
			routingKey: models.InboundReferralConfirmed,
			body:       `{`,
			setup:      func(*PlansMock, *ReferralsMock, *WalletsMock) {},
			wantErr:    models.ErrValidation,
		},
		{
			name:       "unknown routing key",
			routingKey: "user.deleted",
			body:       `{}`,
			setup:      func(*PlansMock, *ReferralsMock, *WalletsMock) {},
			wantErr:    models.ErrValidation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			plans, referrals, wallets := new(PlansMock), new(ReferralsMock), new(WalletsMock)
			tt.setup(plans, referrals, wallets)
			d := New(plans, referrals, wallets, newNoopLogger())

			result, err := d.Handle(context.Background(), tt.routingKey, []byte(tt.body))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, errors.Is(err, tt.wantErr), "got %v", err)
			} else {
				require.NoError(t, err)
				assert.NotNil(t, result)
			}
			plans.AssertExpectations(t)
			referrals.AssertExpectations(t)
			wallets.AssertExpectations(t)
		})
	}
}

func TestDispatcher_RoutingKeys(t *testing.T) {
	d := New(nil, nil, nil, newNoopLogger())
	assert.ElementsMatch(t, []string{
		"payment.activated", "referral.confirmed", "question.approved", "profile.completed",
	}, d.RoutingKeys())
}
