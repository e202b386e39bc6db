// Package entitlement определяет, к каким уровням у пользователя есть доступ.
//
// Эффективный план: самый высокий из неистёкших планов пользователя,
// независимо от источника выдачи (оплата, реферальный порог, профиль).
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/metrics"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

// Repository определяет методы хранилища выдач доступа.
type Repository interface {
	// ListActiveGrants возвращает выдачи, действующие в момент now.
	ListActiveGrants(ctx context.Context, userID string, now time.Time) ([]models.SubscriptionGrant, error)
	// AddGrant сохраняет выдачу; false, если выдача с таким GrantKey уже есть.
	AddGrant(ctx context.Context, grant models.SubscriptionGrant) (bool, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
	Invalidate(key string) error
	// Generation возвращает текущее поколение key; 0, если ключа нет.
	Generation(key string) (int64, error)
	// Bump увеличивает поколение key и возвращает новое значение.
	Bump(key string) (int64, error)
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// LevelRange: диапазон доступных уровней [Min, Max].
type LevelRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// Service реализует разрешение доступа к уровням.
type Service struct {
	repo         Repository
	cache        Cache
	publisher    Publisher
	levels       config.PlanLevels
	profileGrant config.ProfileGrant
	cacheTTL     time.Duration
	now          func() time.Time
	log          *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, publisher Publisher, rules config.Rules, cacheTTL time.Duration, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		cache:        cache,
		publisher:    publisher,
		levels:       rules.PlanLevels,
		profileGrant: rules.ProfileGrant,
		cacheTTL:     cacheTTL,
		now:          time.Now,
		log:          log,
	}
}

// AccessibleLevels возвращает диапазон уровней для плана. Неизвестный план
// трактуется как FREE и логируется как нарушение целостности данных.
func (s *Service) AccessibleLevels(tier models.Tier) LevelRange {
	if maxLevel, ok := s.levels[string(tier)]; ok && tier.Valid() {
		return LevelRange{Min: 0, Max: maxLevel}
	}
	s.log.Warn("unknown plan tier, treating as FREE", slog.String("tier", string(tier)))
	return LevelRange{Min: 0, Max: s.levels[string(models.TierFree)]}
}

// HighestActive выбирает самый высокий план среди выдач, действующих в момент now.
// Возвращает FREE и nil, если действующих выдач нет.
func HighestActive(grants []models.SubscriptionGrant, now time.Time) (models.Tier, *time.Time) {
	best := models.TierFree
	var expires *time.Time
	for _, g := range grants {
		if !g.Active(now) {
			continue
		}
		if !g.Tier.Valid() {
			continue
		}
		switch {
		case g.Tier.Higher(best):
			best = g.Tier
			exp := g.ExpiresAt
			expires = &exp
		case g.Tier == best && best != models.TierFree && expires != nil && g.ExpiresAt.After(*expires):
			exp := g.ExpiresAt
			expires = &exp
		}
	}
	return best, expires
}

// План кэшируется под ключом с номером поколения. InvalidatePlan увеличивает
// поколение, поэтому план, прочитанный из базы до новой выдачи и записанный
// в кэш после сброса, попадает под старый ключ и больше не читается.
func planGenKey(userID string) string {
	return fmt.Sprintf("plan:gen:%s", userID)
}

func planCacheKey(userID string, gen int64) string {
	return fmt.Sprintf("plan:%s:%d", userID, gen)
}

// GetEffectivePlan возвращает эффективный план пользователя.
func (s *Service) GetEffectivePlan(ctx context.Context, userID string) (*models.EffectivePlan, error) {
	now := s.now()

	// поколение читается до выдач из базы
	gen, err := s.cache.Generation(planGenKey(userID))
	cacheable := err == nil
	if err != nil {
		s.log.Warn("failed to read plan generation", sl.User(userID), sl.Err(err))
	}
	key := planCacheKey(userID, gen)

	if cacheable {
		var cached models.EffectivePlan
		found, err := s.cache.Get(key, &cached)
		if err != nil {
			s.log.Warn("failed to read plan from cache", slog.String("key", key), sl.Err(err))
		}
		if found && (cached.ExpiresAt == nil || now.Before(*cached.ExpiresAt)) {
			return &cached, nil
		}
	}

	grants, err := s.repo.ListActiveGrants(ctx, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list grants: %w", err)
	}
	for _, g := range grants {
		if !g.Tier.Valid() {
			s.log.Warn("grant with unknown tier ignored", sl.User(userID), slog.Int64("grant_id", g.ID),
				slog.String("tier", string(g.Tier)))
		}
	}

	tier, expires := HighestActive(grants, now)
	plan := &models.EffectivePlan{
		UserID:    userID,
		Tier:      tier,
		MaxLevel:  s.AccessibleLevels(tier).Max,
		ExpiresAt: expires,
	}

	ttl := s.cacheTTL
	if expires != nil && expires.Sub(now) < ttl {
		ttl = expires.Sub(now)
	}
	if cacheable && ttl > 0 {
		if err := s.cache.Set(key, plan, ttl); err != nil {
			s.log.Warn("failed to cache plan", slog.String("key", key), sl.Err(err))
		}
	}
	return plan, nil
}

// CanAccessLevel сообщает, доступен ли пользователю уровень level.
func (s *Service) CanAccessLevel(ctx context.Context, userID string, level int) (bool, error) {
	if level < 0 {
		return false, fmt.Errorf("%w: level must be non-negative", models.ErrValidation)
	}
	plan, err := s.GetEffectivePlan(ctx, userID)
	if err != nil {
		return false, err
	}
	return level <= plan.MaxLevel, nil
}

// InvalidatePlan сбрасывает закэшированный план пользователя.
// Вызывается после фиксации новой выдачи.
func (s *Service) InvalidatePlan(userID string) {
	gen, err := s.cache.Bump(planGenKey(userID))
	if err != nil {
		s.log.Warn("failed to bump plan generation", sl.User(userID), sl.Err(err))
		return
	}
	key := planCacheKey(userID, gen-1)
	if err := s.cache.Invalidate(key); err != nil {
		s.log.Warn("failed to invalidate plan cache", slog.String("key", key), sl.Err(err))
	}
}

// OnPaymentActivated добавляет оплаченную выдачу. Повтор события с тем же
// PaymentID ничего не меняет.
func (s *Service) OnPaymentActivated(ctx context.Context, evt models.PaymentActivated) error {
	if evt.PaymentID == "" || evt.UserID == "" {
		return fmt.Errorf("%w: payment id and user id are required", models.ErrValidation)
	}
	if !evt.Tier.Valid() {
		return fmt.Errorf("%w: unknown tier %q", models.ErrValidation, evt.Tier)
	}
	if evt.DurationDays <= 0 {
		return fmt.Errorf("%w: duration must be positive", models.ErrValidation)
	}

	now := s.now()
	grant := models.SubscriptionGrant{
		UserID:    evt.UserID,
		Tier:      evt.Tier,
		Source:    models.SourcePaid,
		GrantKey:  "payment:" + evt.PaymentID,
		StartsAt:  now,
		ExpiresAt: now.AddDate(0, 0, evt.DurationDays),
	}
	created, err := s.repo.AddGrant(ctx, grant)
	if err != nil {
		return fmt.Errorf("failed to add paid grant: %w", err)
	}
	if !created {
		s.log.Info("payment already applied", sl.User(evt.UserID), slog.String("payment_id", evt.PaymentID))
		return nil
	}
	metrics.GrantsIssued.WithLabelValues(string(models.SourcePaid), string(evt.Tier)).Inc()
	s.InvalidatePlan(evt.UserID)
	s.log.Info("paid grant added", sl.User(evt.UserID), slog.String("tier", string(evt.Tier)))
	return nil
}

// OnProfileCompleted выдаёт разовый доступ за заполненный профиль.
// Возвращает true, если выдача создана этим вызовом.
func (s *Service) OnProfileCompleted(ctx context.Context, userID string) (bool, error) {
	if userID == "" {
		return false, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	tier := models.Tier(s.profileGrant.Tier)
	if !tier.Valid() {
		return false, errors.New("profile grant tier is not configured")
	}

	now := s.now()
	grant := models.SubscriptionGrant{
		UserID:    userID,
		Tier:      tier,
		Source:    models.SourceProfileCompletionGrant,
		GrantKey:  "profile_completion",
		StartsAt:  now,
		ExpiresAt: now.AddDate(0, 0, s.profileGrant.Days),
	}
	created, err := s.repo.AddGrant(ctx, grant)
	if err != nil {
		return false, fmt.Errorf("failed to add profile grant: %w", err)
	}
	if !created {
		return false, nil
	}
	metrics.GrantsIssued.WithLabelValues(string(grant.Source), string(tier)).Inc()
	s.InvalidatePlan(userID)

	evt := models.PlanGrantedEvent{
		EventID:   uuid.NewString(),
		UserID:    userID,
		Tier:      tier,
		Source:    grant.Source,
		ExpiresAt: grant.ExpiresAt,
	}
	if err := s.publisher.Publish(ctx, models.EventPlanGranted, evt); err != nil {
		s.log.Error("failed to publish plan granted event", sl.User(userID), sl.Err(err))
	}
	return true, nil
}
