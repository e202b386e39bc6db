package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

const progressionColumns = `user_id, cycle_key, current_level, qualifying_attempts, total_attempts,
	total_score, high_score_quiz_count, accuracy_percent, version, updated_at`

func scanProgression(row interface{ Scan(...any) error }) (*models.UserProgression, error) {
	var p models.UserProgression
	err := row.Scan(&p.UserID, &p.CycleKey, &p.CurrentLevel, &p.QualifyingAttempts, &p.TotalAttempts,
		&p.TotalScore, &p.HighScoreQuizCount, &p.AccuracyPercent, &p.Version, &p.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// GetProgression возвращает прогресс пользователя в цикле.
func (s *Storage) GetProgression(ctx context.Context, userID, cycleKey string) (*models.UserProgression, error) {
	const op = "storage.GetProgression"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	query := `SELECT ` + progressionColumns + ` FROM user_progressions WHERE user_id = $1 AND cycle_key = $2`
	p, err := scanProgression(s.DB.QueryRowContext(ctx, query, userID, cycleKey))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return p, nil
}

// SaveProgression сохраняет прогресс, если цикл открыт и версия не изменилась.
// Строка цикла блокируется на чтение до конца транзакции, поэтому перевод цикла
// в CLOSING дожидается всех начатых записей.
func (s *Storage) SaveProgression(ctx context.Context, p models.UserProgression, expectedVersion int) error {
	const op = "storage.SaveProgression"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO cycles (cycle_key, status) VALUES ($1, 'OPEN') ON CONFLICT (cycle_key) DO NOTHING`,
			p.CycleKey); err != nil {
			return err
		}

		var status models.CycleStatus
		if err := tx.QueryRowContext(ctx,
			`SELECT status FROM cycles WHERE cycle_key = $1 FOR SHARE`, p.CycleKey).Scan(&status); err != nil {
			return err
		}
		if status != models.CycleOpen {
			return models.ErrCycleNotOpen
		}

		var res sql.Result
		var err error
		if expectedVersion == 0 {
			res, err = tx.ExecContext(ctx, `INSERT INTO user_progressions (`+progressionColumns+`)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 1, $9)
				ON CONFLICT (user_id, cycle_key) DO NOTHING`,
				p.UserID, p.CycleKey, p.CurrentLevel, p.QualifyingAttempts, p.TotalAttempts,
				p.TotalScore, p.HighScoreQuizCount, p.AccuracyPercent, p.UpdatedAt)
		} else {
			res, err = tx.ExecContext(ctx, `UPDATE user_progressions
				SET current_level = $3, qualifying_attempts = $4, total_attempts = $5, total_score = $6,
				    high_score_quiz_count = $7, accuracy_percent = $8, version = version + 1, updated_at = $9
				WHERE user_id = $1 AND cycle_key = $2 AND version = $10`,
				p.UserID, p.CycleKey, p.CurrentLevel, p.QualifyingAttempts, p.TotalAttempts,
				p.TotalScore, p.HighScoreQuizCount, p.AccuracyPercent, p.UpdatedAt, expectedVersion)
		}
		if err != nil {
			return err
		}
		return requireAffected(res)
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListProgressions возвращает прогресс всех пользователей цикла.
func (s *Storage) ListProgressions(ctx context.Context, cycleKey string) ([]models.UserProgression, error) {
	const op = "storage.ListProgressions"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx,
		`SELECT `+progressionColumns+` FROM user_progressions WHERE cycle_key = $1 ORDER BY user_id`, cycleKey)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.UserProgression
	for rows.Next() {
		p, err := scanProgression(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// MarkCycleClosing переводит открытый цикл в CLOSING. Для цикла без записей строка создаётся.
func (s *Storage) MarkCycleClosing(ctx context.Context, cycleKey string) error {
	const op = "storage.MarkCycleClosing"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	_, err := s.DB.ExecContext(ctx, `INSERT INTO cycles (cycle_key, status, closing_at)
		VALUES ($1, 'CLOSING', $2)
		ON CONFLICT (cycle_key) DO UPDATE
		SET status = 'CLOSING', closing_at = EXCLUDED.closing_at
		WHERE cycles.status = 'OPEN'`, cycleKey, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListCyclesToClose возвращает циклы раньше current, которые не закрыты или по
// которым не все награды снимка записаны в ledger.
func (s *Storage) ListCyclesToClose(ctx context.Context, current string) ([]string, error) {
	const op = "storage.ListCyclesToClose"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT c.cycle_key FROM cycles c
		WHERE c.cycle_key < $1
		  AND (c.status <> 'CLOSED' OR EXISTS (
		      SELECT 1 FROM snapshot_entries e
		      LEFT JOIN reward_ledger r ON r.cycle_key = e.cycle_key AND r.user_id = e.user_id
		      WHERE e.cycle_key = c.cycle_key AND e.reward_amount > 0 AND r.user_id IS NULL))
		ORDER BY c.cycle_key`, current)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var key string
		if err := rows.Scan(&key); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		keys = append(keys, key)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return keys, nil
}

// requireAffected возвращает models.ErrStateConflict, если запрос не изменил ни одной строки.
func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return models.ErrStateConflict
	}
	return nil
}
