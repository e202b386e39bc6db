package models

import "time"

// UserProgression: прогресс пользователя в одном месячном цикле.
// Запись старого цикла не удаляется: новый цикл начинается с новой записи уровня 0.
type UserProgression struct {
	UserID             string    `json:"user_id"`
	CycleKey           string    `json:"cycle_key"`
	CurrentLevel       int       `json:"current_level"`
	QualifyingAttempts int       `json:"qualifying_attempts"`
	TotalAttempts      int       `json:"total_attempts"`
	TotalScore         float64   `json:"total_score"`
	HighScoreQuizCount int       `json:"high_score_quiz_count"`
	AccuracyPercent    float64   `json:"accuracy_percent"`
	Version            int       `json:"-"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// AttemptResult: результат записи попытки.
type AttemptResult struct {
	CycleKey  string `json:"cycle_key"`
	NewLevel  int    `json:"new_level"`
	LeveledUp bool   `json:"leveled_up"`
}

// CycleStatus: состояние месячного цикла.
type CycleStatus string

const (
	CycleOpen    CycleStatus = "OPEN"
	CycleClosing CycleStatus = "CLOSING"
	CycleClosed  CycleStatus = "CLOSED"
)

// Cycle: запись о месячном цикле соревнования.
type Cycle struct {
	Key       string      `json:"cycle_key"`
	Status    CycleStatus `json:"status"`
	ClosingAt *time.Time  `json:"closing_at,omitempty"`
	ClosedAt  *time.Time  `json:"closed_at,omitempty"`
}
