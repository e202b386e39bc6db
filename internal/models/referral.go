package models

import "slices"

// ReferralLedger: реферальный счёт приглашающего пользователя.
type ReferralLedger struct {
	UserID                 string `json:"user_id"`
	ReferralCode           string `json:"referral_code"`
	ConfirmedReferralCount int    `json:"confirmed_referral_count"`
	GrantsIssued           []int  `json:"grants_issued"` // уже выданные пороги
	Version                int    `json:"-"`
}

// HasGrant сообщает, выдавался ли доступ за порог threshold.
func (l *ReferralLedger) HasGrant(threshold int) bool {
	return slices.Contains(l.GrantsIssued, threshold)
}

// ReferralResult: результат подтверждения реферала.
type ReferralResult struct {
	ConfirmedReferralCount int    `json:"confirmed_referral_count"`
	GrantsIssued           []Tier `json:"grants_issued"`
}

// ReferralConfirmed: подтверждённое событие реферала. Пара пользователей
// учитывается один раз, повторная доставка не меняет счётчик.
type ReferralConfirmed struct {
	ReferringUserID string `json:"referring_user_id" validate:"required"`
	ReferredUserID  string `json:"referred_user_id" validate:"required"`
}

// ProfileCompleted: событие заполнения профиля.
type ProfileCompleted struct {
	UserID string `json:"user_id" validate:"required"`
}

// QuestionApproved: событие модерации: вопрос пользователя одобрен.
type QuestionApproved struct {
	UserID     string `json:"user_id" validate:"required"`
	QuestionID string `json:"question_id" validate:"required"`
}
