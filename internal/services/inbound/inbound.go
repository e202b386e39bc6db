// Package inbound разбирает события внешних сервисов (оплата, рефералы,
// модерация вопросов, профиль) и передаёт их соответствующим сервисам.
package inbound

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/go-playground/validator"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// Plans: выдачи доступа по оплате и профилю.
type Plans interface {
	OnPaymentActivated(ctx context.Context, evt models.PaymentActivated) error
	OnProfileCompleted(ctx context.Context, userID string) (bool, error)
}

// Referrals: учёт подтверждённых рефералов.
type Referrals interface {
	OnReferralConfirmed(ctx context.Context, referringUserID, referredUserID string) (*models.ReferralResult, error)
}

// Wallets: начисления авторам вопросов.
type Wallets interface {
	OnQuestionApproved(ctx context.Context, userID, questionID string) (*models.WalletLedger, error)
}

// Dispatcher направляет событие обработчику по ключу маршрутизации.
type Dispatcher struct {
	plans     Plans
	referrals Referrals
	wallets   Wallets
	validate  *validator.Validate
	log       *slog.Logger
}

func New(plans Plans, referrals Referrals, wallets Wallets, log *slog.Logger) *Dispatcher {
	return &Dispatcher{
		plans:     plans,
		referrals: referrals,
		wallets:   wallets,
		validate:  validator.New(),
		log:       log,
	}
}

// RoutingKeys возвращает ключи событий, которые умеет обрабатывать Dispatcher.
func (d *Dispatcher) RoutingKeys() []string {
	return []string{
		models.InboundPaymentActivated,
		models.InboundReferralConfirmed,
		models.InboundQuestionApproved,
		models.InboundProfileCompleted,
	}
}

// Handle разбирает body и применяет событие. Некорректное событие
// возвращает ошибку, оборачивающую models.ErrValidation; повтор его не исправит.
func (d *Dispatcher) Handle(ctx context.Context, routingKey string, body []byte) (any, error) {
	log := d.log.With(slog.String("routing_key", routingKey))

	switch routingKey {
	case models.InboundPaymentActivated:
		var evt models.PaymentActivated
		if err := d.decode(body, &evt); err != nil {
			return nil, err
		}
		if err := d.plans.OnPaymentActivated(ctx, evt); err != nil {
			return nil, err
		}
		log.Info("payment applied", slog.String("payment_id", evt.PaymentID))
		return map[string]any{"payment_id": evt.PaymentID}, nil

	case models.InboundReferralConfirmed:
		var evt models.ReferralConfirmed
		if err := d.decode(body, &evt); err != nil {
			return nil, err
		}
		return d.referrals.OnReferralConfirmed(ctx, evt.ReferringUserID, evt.ReferredUserID)

	case models.InboundQuestionApproved:
		var evt models.QuestionApproved
		if err := d.decode(body, &evt); err != nil {
			return nil, err
		}
		return d.wallets.OnQuestionApproved(ctx, evt.UserID, evt.QuestionID)

	case models.InboundProfileCompleted:
		var evt models.ProfileCompleted
		if err := d.decode(body, &evt); err != nil {
			return nil, err
		}
		granted, err := d.plans.OnProfileCompleted(ctx, evt.UserID)
		if err != nil {
			return nil, err
		}
		return map[string]any{"granted": granted}, nil
	}
	return nil, fmt.Errorf("%w: unknown routing key %q", models.ErrValidation, routingKey)
}

func (d *Dispatcher) decode(body []byte, v any) error {
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: malformed event: %v", models.ErrValidation, err)
	}
	if err := d.validate.Struct(v); err != nil {
		return fmt.Errorf("%w: %v", models.ErrValidation, err)
	}
	return nil
}
