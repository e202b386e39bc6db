package response

import (
	"time"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// Суммы во всех представлениях отдаются десятичной строкой с двумя знаками.

type SnapshotEntryView struct {
	Rank               int     `json:"rank" example:"1"`
	UserID             string  `json:"user_id" example:"u-42"`
	HighScoreQuizCount int     `json:"high_score_quiz_count" example:"131"`
	AccuracyPercent    float64 `json:"accuracy_percent" example:"88.4"`
	TotalScore         float64 `json:"total_score" example:"12044"`
	TotalAttempts      int     `json:"total_attempts" example:"140"`
	RewardAmount       string  `json:"reward_amount" example:"2500.00"`
}

type SnapshotView struct {
	CycleKey     string              `json:"cycle_key" example:"2024-10"`
	RulesVersion string              `json:"rules_version" example:"v1"`
	PrizePool    string              `json:"prize_pool" example:"10000.00"`
	Distributed  string              `json:"distributed" example:"10000.00"`
	ClosedAt     time.Time           `json:"closed_at"`
	Entries      []SnapshotEntryView `json:"entries"`
}

// Snapshot строит представление снимка цикла.
func Snapshot(s *models.MonthlySnapshot) SnapshotView {
	entries := make([]SnapshotEntryView, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = SnapshotEntryView{
			Rank:               e.Rank,
			UserID:             e.UserID,
			HighScoreQuizCount: e.HighScoreQuizCount,
			AccuracyPercent:    e.AccuracyPercent,
			TotalScore:         e.TotalScore,
			TotalAttempts:      e.TotalAttempts,
			RewardAmount:       Money(e.RewardAmount),
		}
	}
	return SnapshotView{
		CycleKey:     s.CycleKey,
		RulesVersion: s.RulesVersion,
		PrizePool:    Money(s.PrizePool),
		Distributed:  Money(s.Distributed()),
		ClosedAt:     s.ClosedAt,
		Entries:      entries,
	}
}

type WithdrawalView struct {
	ID        string                  `json:"id" example:"8b0d0f3e-2f7c-4d34-9a57-8d1c0c3f5a10"`
	Amount    string                  `json:"amount" example:"1000.00"`
	PayoutRef string                  `json:"payout_ref" example:"upi:author@bank"`
	Status    models.WithdrawalStatus `json:"status" example:"PENDING"`
	CreatedAt time.Time               `json:"created_at"`
	UpdatedAt time.Time               `json:"updated_at"`
}

func Withdrawal(w *models.WithdrawalRequest) WithdrawalView {
	return WithdrawalView{
		ID:        w.ID,
		Amount:    Money(w.Amount),
		PayoutRef: w.PayoutRef,
		Status:    w.Status,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
}

type WalletView struct {
	UserID                string `json:"user_id" example:"u-42"`
	ApprovedQuestionCount int    `json:"approved_question_count" example:"120"`
	Balance               string `json:"balance" example:"1200.00"`
	TotalEarned           string `json:"total_earned" example:"1200.00"`
}

func Wallet(w *models.WalletLedger) WalletView {
	return WalletView{
		UserID:                w.UserID,
		ApprovedQuestionCount: w.ApprovedQuestionCount,
		Balance:               Money(w.Balance),
		TotalEarned:           Money(w.TotalEarned),
	}
}

type RewardView struct {
	CycleKey  string    `json:"cycle_key" example:"2024-10"`
	Rank      int       `json:"rank" example:"3"`
	Amount    string    `json:"amount" example:"1500.00"`
	CreatedAt time.Time `json:"created_at"`
}

func Reward(c models.RewardCredit) RewardView {
	return RewardView{
		CycleKey:  c.CycleKey,
		Rank:      c.Rank,
		Amount:    Money(c.Amount),
		CreatedAt: c.CreatedAt,
	}
}
