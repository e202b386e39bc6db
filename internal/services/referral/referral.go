// Package referral ведёт реферальные счета и выдаёт доступ за достигнутые пороги.
package referral

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/metrics"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

// Repository определяет методы хранилища реферальных счетов.
type Repository interface {
	// GetReferralLedger возвращает счёт пользователя; для нового пользователя: пустой счёт с Version 0.
	GetReferralLedger(ctx context.Context, userID string) (*models.ReferralLedger, error)
	// SaveReferralLedger атомарно записывает подтверждение реферала referredUserID,
	// сохраняет счёт и новые выдачи доступа. Возвращает false, если подтверждение
	// уже было учтено, и models.ErrStateConflict, если версия счёта изменилась.
	SaveReferralLedger(ctx context.Context, ledger models.ReferralLedger, expectedVersion int, referredUserID string, grants []models.SubscriptionGrant) (bool, error)
	// EnsureReferralCode сохраняет код, если у пользователя его ещё нет, и возвращает действующий код.
	EnsureReferralCode(ctx context.Context, userID, code string) (string, error)
}

// PlanInvalidator сбрасывает закэшированный эффективный план.
type PlanInvalidator interface {
	InvalidatePlan(userID string)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Service реализует реферальные пороги.
type Service struct {
	repo       Repository
	plans      PlanInvalidator
	publisher  Publisher
	milestones []config.Milestone
	grantDays  int
	maxRetries int
	now        func() time.Time
	log        *slog.Logger
}

// New создает новый экземпляр Service. Пороги сортируются по возрастанию.
func New(repo Repository, plans PlanInvalidator, publisher Publisher, rules config.Rules, log *slog.Logger) *Service {
	milestones := slices.Clone(rules.Referral.Milestones)
	slices.SortFunc(milestones, func(a, b config.Milestone) int { return a.Threshold - b.Threshold })
	return &Service{
		repo:       repo,
		plans:      plans,
		publisher:  publisher,
		milestones: milestones,
		grantDays:  rules.Referral.GrantDays,
		maxRetries: rules.Progression.MaxConflictRetries,
		now:        time.Now,
		log:        log,
	}
}

// OnReferralConfirmed увеличивает счётчик подтверждённых рефералов и выдаёт
// доступ за каждый достигнутый, но ещё не выданный порог.
// Повтор события с той же парой пользователей возвращает текущий счёт без изменений.
func (s *Service) OnReferralConfirmed(ctx context.Context, referringUserID, referredUserID string) (*models.ReferralResult, error) {
	if referringUserID == "" || referredUserID == "" {
		return nil, fmt.Errorf("%w: referring and referred user ids are required", models.ErrValidation)
	}
	if referringUserID == referredUserID {
		return nil, fmt.Errorf("%w: user cannot refer themselves", models.ErrValidation)
	}

	for attempt := 0; ; attempt++ {
		ledger, grants, err := s.confirmOnce(ctx, referringUserID, referredUserID)
		if err == nil {
			s.afterCommit(ctx, ledger, grants)
			result := &models.ReferralResult{
				ConfirmedReferralCount: ledger.ConfirmedReferralCount,
				GrantsIssued:           make([]models.Tier, 0, len(grants)),
			}
			for _, g := range grants {
				result.GrantsIssued = append(result.GrantsIssued, g.Tier)
			}
			return result, nil
		}
		if !errors.Is(err, models.ErrStateConflict) || attempt >= s.maxRetries {
			return nil, err
		}
		metrics.ConflictRetries.WithLabelValues("referral").Inc()
		s.log.Debug("referral ledger conflict, retrying", sl.User(referringUserID), slog.Int("attempt", attempt+1))
	}
}

func (s *Service) confirmOnce(ctx context.Context, userID, referredUserID string) (*models.ReferralLedger, []models.SubscriptionGrant, error) {
	ledger, err := s.repo.GetReferralLedger(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get referral ledger: %w", err)
	}
	expected := ledger.Version
	prior := *ledger
	prior.GrantsIssued = slices.Clone(ledger.GrantsIssued)

	ledger.ConfirmedReferralCount++
	grants := s.dueGrants(ledger)

	applied, err := s.repo.SaveReferralLedger(ctx, *ledger, expected, referredUserID, grants)
	if err != nil {
		return nil, nil, err
	}
	if !applied {
		s.log.Info("referral already confirmed", sl.User(userID), slog.String("referred_user_id", referredUserID))
		return &prior, nil, nil
	}
	ledger.Version = expected + 1
	return ledger, grants, nil
}

// dueGrants отмечает в счёте достигнутые пороги и возвращает выдачи за них.
func (s *Service) dueGrants(ledger *models.ReferralLedger) []models.SubscriptionGrant {
	now := s.now()
	var grants []models.SubscriptionGrant
	for _, m := range s.milestones {
		if ledger.ConfirmedReferralCount < m.Threshold || ledger.HasGrant(m.Threshold) {
			continue
		}
		ledger.GrantsIssued = append(ledger.GrantsIssued, m.Threshold)
		grants = append(grants, models.SubscriptionGrant{
			UserID:    ledger.UserID,
			Tier:      models.Tier(m.Tier),
			Source:    models.SourceReferralGrant,
			GrantKey:  fmt.Sprintf("referral:%d", m.Threshold),
			StartsAt:  now,
			ExpiresAt: now.AddDate(0, 0, s.grantDays),
		})
	}
	return grants
}

// afterCommit выполняет побочные эффекты, которые не должны откатывать счётчик.
func (s *Service) afterCommit(ctx context.Context, ledger *models.ReferralLedger, grants []models.SubscriptionGrant) {
	if len(grants) == 0 {
		return
	}
	s.plans.InvalidatePlan(ledger.UserID)

	for i, g := range grants {
		metrics.GrantsIssued.WithLabelValues(string(g.Source), string(g.Tier)).Inc()
		threshold := ledger.GrantsIssued[len(ledger.GrantsIssued)-len(grants)+i]
		evt := models.PlanGrantedEvent{
			EventID:   uuid.NewString(),
			UserID:    ledger.UserID,
			Tier:      g.Tier,
			Source:    g.Source,
			Threshold: threshold,
			ExpiresAt: g.ExpiresAt,
		}
		if err := s.publisher.Publish(ctx, models.EventPlanGranted, evt); err != nil {
			s.log.Error("failed to publish plan granted event", sl.User(ledger.UserID), sl.Err(err))
		}
		s.log.Info("referral milestone reached", sl.User(ledger.UserID),
			slog.Int("threshold", threshold), slog.String("tier", string(g.Tier)))
	}
}

// GetReferralCode возвращает реферальный код пользователя, выпуская его при первом обращении.
func (s *Service) GetReferralCode(ctx context.Context, userID string) (string, error) {
	if userID == "" {
		return "", fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	ledger, err := s.repo.GetReferralLedger(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to get referral ledger: %w", err)
	}
	if ledger.ReferralCode != "" {
		return ledger.ReferralCode, nil
	}

	code, err := s.repo.EnsureReferralCode(ctx, userID, newCode())
	if err != nil {
		return "", fmt.Errorf("failed to issue referral code: %w", err)
	}
	return code, nil
}

func newCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:10])
}
