package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Competitor: участник месячного рейтинга.
type Competitor struct {
	UserID             string  `json:"user_id"`
	Level              int     `json:"level"`
	HighScoreQuizCount int     `json:"high_score_quiz_count"`
	AccuracyPercent    float64 `json:"accuracy_percent"`
	TotalScore         float64 `json:"total_score"`
	TotalAttempts      int     `json:"total_attempts"`
}

// SnapshotEntry: строка итоговой таблицы цикла.
type SnapshotEntry struct {
	Rank               int     `json:"rank"`
	UserID             string  `json:"user_id"`
	HighScoreQuizCount int     `json:"high_score_quiz_count"`
	AccuracyPercent    float64 `json:"accuracy_percent"`
	TotalScore         float64 `json:"total_score"`
	TotalAttempts      int     `json:"total_attempts"`
	RewardAmount       int64   `json:"reward_amount"` // в минимальных единицах валюты
}

// MonthlySnapshot: неизменяемый итог закрытого цикла.
type MonthlySnapshot struct {
	CycleKey     string          `json:"cycle_key"`
	RulesVersion string          `json:"rules_version"`
	PrizePool    int64           `json:"prize_pool"`
	ClosedAt     time.Time       `json:"closed_at"`
	Entries      []SnapshotEntry `json:"entries"`
}

// Distributed возвращает сумму выплат по снимку.
func (s *MonthlySnapshot) Distributed() int64 {
	var total int64
	for _, e := range s.Entries {
		total += e.RewardAmount
	}
	return total
}

// RewardCredit: запись о начисленной награде в ledger победителя.
type RewardCredit struct {
	CycleKey  string    `json:"cycle_key"`
	UserID    string    `json:"user_id"`
	Rank      int       `json:"rank"`
	Amount    int64     `json:"amount"`
	CreatedAt time.Time `json:"created_at"`
}

// MinorToMajor переводит сумму в минимальных единицах в десятичное представление.
func MinorToMajor(amount int64) decimal.Decimal {
	return decimal.New(amount, -2)
}
