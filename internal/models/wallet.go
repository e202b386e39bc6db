package models

import "time"

// WithdrawalStatus: статус заявки на вывод.
type WithdrawalStatus string

const (
	WithdrawalPending  WithdrawalStatus = "PENDING"
	WithdrawalApproved WithdrawalStatus = "APPROVED"
	WithdrawalRejected WithdrawalStatus = "REJECTED"
	WithdrawalPaid     WithdrawalStatus = "PAID"
)

var withdrawalTransitions = map[WithdrawalStatus][]WithdrawalStatus{
	WithdrawalPending:  {WithdrawalApproved, WithdrawalRejected},
	WithdrawalApproved: {WithdrawalPaid},
}

// CanTransition сообщает, допустим ли переход from → to.
func (from WithdrawalStatus) CanTransition(to WithdrawalStatus) bool {
	for _, s := range withdrawalTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// WalletLedger: кошелёк автора вопросов. Суммы в минимальных единицах валюты.
type WalletLedger struct {
	UserID                string    `json:"user_id"`
	ApprovedQuestionCount int       `json:"approved_question_count"`
	Balance               int64     `json:"balance"`
	TotalEarned           int64     `json:"total_earned"`
	Version               int       `json:"-"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// WithdrawalRequest: заявка на вывод средств.
type WithdrawalRequest struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Amount    int64            `json:"amount"`
	PayoutRef string           `json:"payout_ref"`
	Status    WithdrawalStatus `json:"status"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}
