// Package models содержит доменные структуры движка уровней, подписок,
// реферальных начислений, месячного рейтинга и кошелька авторов вопросов.
package models

import "time"

// Tier: тарифный план. Планы упорядочены: FREE < BASIC < PREMIUM < PRO.
type Tier string

const (
	TierFree    Tier = "FREE"
	TierBasic   Tier = "BASIC"
	TierPremium Tier = "PREMIUM"
	TierPro     Tier = "PRO"
)

var tierRank = map[Tier]int{
	TierFree:    0,
	TierBasic:   1,
	TierPremium: 2,
	TierPro:     3,
}

// Rank возвращает порядковый номер плана и false для неизвестного плана.
func (t Tier) Rank() (int, bool) {
	r, ok := tierRank[t]
	return r, ok
}

// Valid сообщает, известен ли план.
func (t Tier) Valid() bool {
	_, ok := tierRank[t]
	return ok
}

// Higher сообщает, что t строго выше other. Неизвестные планы считаются FREE.
func (t Tier) Higher(other Tier) bool {
	a, _ := t.Rank()
	b, _ := other.Rank()
	return a > b
}

// GrantSource: источник выдачи доступа.
type GrantSource string

const (
	SourcePaid                   GrantSource = "PAID"
	SourceReferralGrant          GrantSource = "REFERRAL_GRANT"
	SourceProfileCompletionGrant GrantSource = "PROFILE_COMPLETION_GRANT"
)

// SubscriptionGrant: одна выдача доступа к плану. Выдачи сосуществуют,
// эффективным считается самый высокий из неистёкших планов.
type SubscriptionGrant struct {
	ID        int64       `json:"id"`
	UserID    string      `json:"user_id"`
	Tier      Tier        `json:"tier"`
	Source    GrantSource `json:"source"`
	GrantKey  string      `json:"grant_key"` // ключ идемпотентности в пределах пользователя
	StartsAt  time.Time   `json:"starts_at"`
	ExpiresAt time.Time   `json:"expires_at"`
}

// Active сообщает, действует ли выдача в момент now.
func (g SubscriptionGrant) Active(now time.Time) bool {
	return !now.Before(g.StartsAt) && now.Before(g.ExpiresAt)
}

// EffectivePlan описывает текущий доступ пользователя.
type EffectivePlan struct {
	UserID    string     `json:"user_id"`
	Tier      Tier       `json:"tier"`
	MaxLevel  int        `json:"max_level"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"` // nil для FREE
}

// PaymentActivated: подтверждённое событие оплаты от платёжного сервиса.
type PaymentActivated struct {
	PaymentID    string `json:"payment_id" validate:"required"`
	UserID       string `json:"user_id" validate:"required"`
	Tier         Tier   `json:"tier" validate:"required"`
	DurationDays int    `json:"duration_days" validate:"required,gt=0"`
}
