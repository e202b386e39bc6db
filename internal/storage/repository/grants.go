package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/magabrotheeeer/quizleague/internal/models"
)

// ListActiveGrants возвращает выдачи доступа, действующие в момент now.
func (s *Storage) ListActiveGrants(ctx context.Context, userID string, now time.Time) ([]models.SubscriptionGrant, error) {
	const op = "storage.ListActiveGrants"
	if err := checkCtx(ctx, op); err != nil {
		return nil, err
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT id, user_id, tier, source, grant_key, starts_at, expires_at
		FROM subscription_grants
		WHERE user_id = $1 AND starts_at <= $2 AND expires_at > $2
		ORDER BY id`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer rows.Close()

	var result []models.SubscriptionGrant
	for rows.Next() {
		var g models.SubscriptionGrant
		if err := rows.Scan(&g.ID, &g.UserID, &g.Tier, &g.Source, &g.GrantKey, &g.StartsAt, &g.ExpiresAt); err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// AddGrant сохраняет выдачу. Возвращает false, если выдача с таким ключом у пользователя уже есть.
func (s *Storage) AddGrant(ctx context.Context, grant models.SubscriptionGrant) (bool, error) {
	const op = "storage.AddGrant"
	if err := checkCtx(ctx, op); err != nil {
		return false, err
	}

	created, err := insertGrant(ctx, s.DB, grant)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return created, nil
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertGrant(ctx context.Context, db execer, g models.SubscriptionGrant) (bool, error) {
	res, err := db.ExecContext(ctx, `INSERT INTO subscription_grants
		(user_id, tier, source, grant_key, starts_at, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (user_id, grant_key) DO NOTHING`,
		g.UserID, string(g.Tier), string(g.Source), g.GrantKey, g.StartsAt, g.ExpiresAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
