package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// GetWallet возвращает кошелёк пользователя. Для пользователя без кошелька возвращается пустой кошелёк.
func (s *Storage) GetWallet(ctx context.Context, userID string) (*models.WalletLedger, error) {
	const op = "storage.GetWallet"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	w := &models.WalletLedger{UserID: userID}
	err := s.DB.QueryRowContext(ctx, `SELECT approved_question_count, balance, total_earned, version, updated_at
		FROM wallets WHERE user_id = $1`, userID).
		Scan(&w.ApprovedQuestionCount, &w.Balance, &w.TotalEarned, &w.Version, &w.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return w, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return w, nil
}

func upsertWallet(ctx context.Context, tx *sql.Tx, w models.WalletLedger, expectedVersion int) error {
	res, err := tx.ExecContext(ctx, `INSERT INTO wallets
		(user_id, approved_question_count, balance, total_earned, version, updated_at)
		VALUES ($1, $2, $3, $4, $5::int + 1, $6)
		ON CONFLICT (user_id) DO UPDATE
		SET approved_question_count = EXCLUDED.approved_question_count,
		    balance = EXCLUDED.balance,
		    total_earned = EXCLUDED.total_earned,
		    version = EXCLUDED.version,
		    updated_at = EXCLUDED.updated_at
		WHERE wallets.version = $5`,
		w.UserID, w.ApprovedQuestionCount, w.Balance, w.TotalEarned, expectedVersion, w.UpdatedAt)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

var errAlreadyApplied = errors.New("event already applied")

// ApplyQuestionApproval сохраняет кошелёк и отмечает вопрос как оплаченный.
// Возвращает false, если вопрос с таким questionID уже учтён.
func (s *Storage) ApplyQuestionApproval(ctx context.Context, w models.WalletLedger, expectedVersion int, questionID string) (bool, error) {
	const op = "storage.ApplyQuestionApproval"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := upsertWallet(ctx, tx, w, expectedVersion); err != nil {
			return err
		}
		res, err := tx.ExecContext(ctx, `INSERT INTO approved_questions (question_id, user_id)
			VALUES ($1, $2) ON CONFLICT (question_id) DO NOTHING`, questionID, w.UserID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return errAlreadyApplied
		}
		return nil
	})
	if errors.Is(err, errAlreadyApplied) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return true, nil
}

// CreateWithdrawal списывает баланс и создаёт заявку в одной транзакции.
func (s *Storage) CreateWithdrawal(ctx context.Context, w models.WalletLedger, expectedVersion int, req models.WithdrawalRequest) error {
	const op = "storage.CreateWithdrawal"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE wallets
			SET balance = $2, version = version + 1, updated_at = $3
			WHERE user_id = $1 AND version = $4`,
			w.UserID, w.Balance, w.UpdatedAt, expectedVersion)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		_, err = tx.ExecContext(ctx, `INSERT INTO withdrawal_requests
			(id, user_id, amount, payout_ref, status, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			req.ID, req.UserID, req.Amount, req.PayoutRef, string(req.Status), req.CreatedAt, req.UpdatedAt)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

const withdrawalColumns = `id, user_id, amount, payout_ref, status, created_at, updated_at`

func scanWithdrawal(row interface{ Scan(...any) error }) (*models.WithdrawalRequest, error) {
	var r models.WithdrawalRequest
	if err := row.Scan(&r.ID, &r.UserID, &r.Amount, &r.PayoutRef, &r.Status, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetWithdrawal возвращает заявку по идентификатору.
func (s *Storage) GetWithdrawal(ctx context.Context, id string) (*models.WithdrawalRequest, error) {
	const op = "storage.GetWithdrawal"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	r, err := scanWithdrawal(s.DB.QueryRowContext(ctx,
		`SELECT `+withdrawalColumns+` FROM withdrawal_requests WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return r, nil
}

// UpdateWithdrawalStatus меняет статус заявки и возвращает refund на баланс в одной транзакции.
func (s *Storage) UpdateWithdrawalStatus(ctx context.Context, id string, from, to models.WithdrawalStatus, refund int64, at time.Time) error {
	const op = "storage.UpdateWithdrawalStatus"
	if err := checkCtx(ctx, op); err != nil {
		return err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		var userID string
		err := tx.QueryRowContext(ctx, `UPDATE withdrawal_requests SET status = $3, updated_at = $4
			WHERE id = $1 AND status = $2 RETURNING user_id`,
			id, string(from), string(to), at).Scan(&userID)
		if errors.Is(err, sql.ErrNoRows) {
			return models.ErrStateConflict
		}
		if err != nil {
			return err
		}
		if refund <= 0 {
			return nil
		}
		_, err = tx.ExecContext(ctx, `UPDATE wallets SET balance = balance + $2, version = version + 1, updated_at = $3
			WHERE user_id = $1`, userID, refund, at)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// ListWithdrawals возвращает заявки пользователя, новые первыми.
func (s *Storage) ListWithdrawals(ctx context.Context, userID string) ([]models.WithdrawalRequest, error) {
	const op = "storage.ListWithdrawals"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+withdrawalColumns+`
		FROM withdrawal_requests WHERE user_id = $1 ORDER BY created_at DESC`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	result := []models.WithdrawalRequest{}
	for rows.Next() {
		r, err := scanWithdrawal(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
