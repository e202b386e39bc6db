package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// GetReferralLedger возвращает реферальный счёт. Для пользователя без счёта возвращается пустой счёт.
func (s *Storage) GetReferralLedger(ctx context.Context, userID string) (*models.ReferralLedger, error) {
	const op = "storage.GetReferralLedger"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	ledger := &models.ReferralLedger{UserID: userID, GrantsIssued: []int{}}
	var code sql.NullString
	err := s.DB.QueryRowContext(ctx,
		`SELECT referral_code, confirmed_count, version FROM referral_ledgers WHERE user_id = $1`, userID).
		Scan(&code, &ledger.ConfirmedReferralCount, &ledger.Version)
	if errors.Is(err, sql.ErrNoRows) {
		return ledger, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	ledger.ReferralCode = code.String

	rows, err := s.DB.QueryContext(ctx,
		`SELECT threshold FROM referral_milestones WHERE user_id = $1 ORDER BY threshold`, userID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()
	for rows.Next() {
		var threshold int
		if err := rows.Scan(&threshold); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ledger.GrantsIssued = append(ledger.GrantsIssued, threshold)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return ledger, nil
}

// SaveReferralLedger сохраняет подтверждение реферала, счётчик, выданные пороги
// и выдачи доступа одной транзакцией.
// Возвращает false без изменений, если пара (referrer, referred) уже учтена.
func (s *Storage) SaveReferralLedger(ctx context.Context, ledger models.ReferralLedger, expectedVersion int, referredUserID string, grants []models.SubscriptionGrant) (bool, error) {
	const op = "storage.SaveReferralLedger"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `INSERT INTO referral_confirmations (referring_user_id, referred_user_id)
			VALUES ($1, $2) ON CONFLICT (referring_user_id, referred_user_id) DO NOTHING`,
			ledger.UserID, referredUserID)
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

		res, err = tx.ExecContext(ctx, `INSERT INTO referral_ledgers (user_id, confirmed_count, version)
			VALUES ($1, $2, $3::int + 1)
			ON CONFLICT (user_id) DO UPDATE
			SET confirmed_count = EXCLUDED.confirmed_count, version = EXCLUDED.version
			WHERE referral_ledgers.version = $3`,
			ledger.UserID, ledger.ConfirmedReferralCount, expectedVersion)
		if err != nil {
			return err
		}
		if err := requireAffected(res); err != nil {
			return err
		}

		for _, threshold := range ledger.GrantsIssued {
			if _, err := tx.ExecContext(ctx, `INSERT INTO referral_milestones (user_id, threshold)
				VALUES ($1, $2) ON CONFLICT (user_id, threshold) DO NOTHING`,
				ledger.UserID, threshold); err != nil {
				return err
			}
		}
		for _, g := range grants {
			if _, err := insertGrant(ctx, tx, g); err != nil {
				return err
			}
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

// EnsureReferralCode сохраняет код, если у пользователя его ещё нет, и возвращает действующий код.
func (s *Storage) EnsureReferralCode(ctx context.Context, userID, code string) (string, error) {
	const op = "storage.EnsureReferralCode"
	if err := checkCtx(ctx, op); err != nil {
		return "", err
	}

	var result string
	err := s.DB.QueryRowContext(ctx, `INSERT INTO referral_ledgers (user_id, referral_code)
		VALUES ($1, $2)
		ON CONFLICT (user_id) DO UPDATE
		SET referral_code = COALESCE(referral_ledgers.referral_code, EXCLUDED.referral_code)
		RETURNING referral_code`, userID, code).Scan(&result)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}
