package models

import "time"

// Ключи маршрутизации исходящих доменных событий.
const (
	EventPlanGranted       = "plan.granted"
	EventCycleClosed       = "cycle.closed"
	EventRewardCredited    = "reward.credited"
	EventWithdrawalUpdated = "withdrawal.updated"
)

// PlanGrantedEvent публикуется после выдачи доступа по реферальному порогу или профилю.
type PlanGrantedEvent struct {
	EventID   string      `json:"event_id"`
	UserID    string      `json:"user_id"`
	Tier      Tier        `json:"tier"`
	Source    GrantSource `json:"source"`
	Threshold int         `json:"threshold,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// CycleClosedEvent публикуется после публикации снимка цикла.
type CycleClosedEvent struct {
	EventID     string `json:"event_id"`
	CycleKey    string `json:"cycle_key"`
	Competitors int    `json:"competitors"`
	Distributed int64  `json:"distributed"`
}

// RewardCreditedEvent публикуется для каждого победителя.
type RewardCreditedEvent struct {
	EventID  string `json:"event_id"`
	CycleKey string `json:"cycle_key"`
	UserID   string `json:"user_id"`
	Rank     int    `json:"rank"`
	Amount   int64  `json:"amount"`
}

// WithdrawalUpdatedEvent публикуется при создании заявки и смене её статуса.
type WithdrawalUpdatedEvent struct {
	EventID      string           `json:"event_id"`
	WithdrawalID string           `json:"withdrawal_id"`
	UserID       string           `json:"user_id"`
	Amount       int64            `json:"amount"`
	Status       WithdrawalStatus `json:"status"`
}

// Ключи маршрутизации входящих событий от внешних сервисов.
const (
	InboundPaymentActivated  = "payment.activated"
	InboundReferralConfirmed = "referral.confirmed"
	InboundQuestionApproved  = "question.approved"
	InboundProfileCompleted  = "profile.completed"
)

