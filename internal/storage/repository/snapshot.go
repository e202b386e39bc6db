package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// GetSnapshot возвращает опубликованный снимок цикла с записями по местам.
func (s *Storage) GetSnapshot(ctx context.Context, cycleKey string) (*models.MonthlySnapshot, error) {
	const op = "storage.GetSnapshot"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	snap := &models.MonthlySnapshot{CycleKey: cycleKey, Entries: []models.SnapshotEntry{}}
	err := s.DB.QueryRowContext(ctx,
		`SELECT rules_version, prize_pool, closed_at FROM monthly_snapshots WHERE cycle_key = $1`, cycleKey).
		Scan(&snap.RulesVersion, &snap.PrizePool, &snap.ClosedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	snap.ClosedAt = snap.ClosedAt.UTC()

	rows, err := s.DB.QueryContext(ctx, `SELECT rank, user_id, high_score_quiz_count, accuracy_percent,
			total_score, total_attempts, reward_amount
		FROM snapshot_entries WHERE cycle_key = $1 ORDER BY rank`, cycleKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	for rows.Next() {
		var e models.SnapshotEntry
		if err := rows.Scan(&e.Rank, &e.UserID, &e.HighScoreQuizCount, &e.AccuracyPercent,
			&e.TotalScore, &e.TotalAttempts, &e.RewardAmount); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		snap.Entries = append(snap.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return snap, nil
}

// PublishSnapshot сохраняет снимок, закрывает цикл и открывает следующий в одной транзакции.
func (s *Storage) PublishSnapshot(ctx context.Context, snapshot models.MonthlySnapshot, nextCycleKey string) error {
	const op = "storage.PublishSnapshot"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO monthly_snapshots (cycle_key, rules_version, prize_pool, closed_at)
			VALUES ($1, $2, $3, $4) ON CONFLICT (cycle_key) DO NOTHING`,
			snapshot.CycleKey, snapshot.RulesVersion, snapshot.PrizePool, snapshot.ClosedAt)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		for _, e := range snapshot.Entries {
			if _, err := tx.ExecContext(ctx, `INSERT INTO snapshot_entries
				(cycle_key, rank, user_id, high_score_quiz_count, accuracy_percent, total_score, total_attempts, reward_amount)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				snapshot.CycleKey, e.Rank, e.UserID, e.HighScoreQuizCount, e.AccuracyPercent,
				e.TotalScore, e.TotalAttempts, e.RewardAmount); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx, `UPDATE cycles SET status = 'CLOSED', closed_at = $2 WHERE cycle_key = $1`,
			snapshot.CycleKey, snapshot.ClosedAt); err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO cycles (cycle_key, status) VALUES ($1, 'OPEN') ON CONFLICT (cycle_key) DO NOTHING`,
			nextCycleKey)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// CreditReward записывает награду победителю. Возвращает false, если она уже записана.
func (s *Storage) CreditReward(ctx context.Context, credit models.RewardCredit) (bool, error) {
	const op = "storage.CreditReward"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	res, err := s.DB.ExecContext(ctx, `INSERT INTO reward_ledger (cycle_key, user_id, rank, amount, created_at)
		VALUES ($1, $2, $3, $4, $5) ON CONFLICT (cycle_key, user_id) DO NOTHING`,
		credit.CycleKey, credit.UserID, credit.Rank, credit.Amount, credit.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return n > 0, nil
}

// ListRewards возвращает награды пользователя, последние циклы первыми.
func (s *Storage) ListRewards(ctx context.Context, userID string) ([]models.RewardCredit, error) {
	const op = "storage.ListRewards"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT cycle_key, user_id, rank, amount, created_at
		FROM reward_ledger WHERE user_id = $1 ORDER BY cycle_key DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := []models.RewardCredit{}
	for rows.Next() {
		var c models.RewardCredit
		if err := rows.Scan(&c.CycleKey, &c.UserID, &c.Rank, &c.Amount, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
