// Package ranking строит месячный рейтинг, делит призовой фонд и закрывает циклы.
//
// Закрытие цикла идёт в три шага: цикл переводится в CLOSING (после этого
// новые попытки попадают в следующий цикл), по зафиксированному прогрессу
// публикуется неизменяемый снимок, затем победителям начисляются награды.
// Повторный запуск для уже опубликованного снимка только дописывает
// недостающие начисления.
package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/cycle"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/metrics"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

const snapshotCacheTTL = 24 * time.Hour

// Repository определяет методы хранилища циклов, снимков и наград.
type Repository interface {
	// GetSnapshot возвращает models.ErrNotFound, если снимок цикла не опубликован.
	GetSnapshot(ctx context.Context, cycleKey string) (*models.MonthlySnapshot, error)
	// MarkCycleClosing переводит цикл в CLOSING. Дождавшись этого, новые записи прогресса в цикл невозможны.
	MarkCycleClosing(ctx context.Context, cycleKey string) error
	ListProgressions(ctx context.Context, cycleKey string) ([]models.UserProgression, error)
	// PublishSnapshot атомарно сохраняет снимок, закрывает цикл и открывает следующий.
	// Возвращает models.ErrStateConflict, если снимок уже опубликован.
	PublishSnapshot(ctx context.Context, snapshot models.MonthlySnapshot, nextCycleKey string) error
	// CreditReward записывает награду; false, если она уже была начислена.
	CreditReward(ctx context.Context, credit models.RewardCredit) (bool, error)
	ListRewards(ctx context.Context, userID string) ([]models.RewardCredit, error)
}

// Cache описывает методы для кэширования данных.
type Cache interface {
	Get(key string, result any) (bool, error)
	Set(key string, value any, expiration time.Duration) error
}

// Publisher публикует доменные события.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, message any) error
}

// Standing: строка текущего рейтинга открытого цикла.
type Standing struct {
	Rank               int     `json:"rank"`
	UserID             string  `json:"user_id"`
	Level              int     `json:"level"`
	HighScoreQuizCount int     `json:"high_score_quiz_count"`
	AccuracyPercent    float64 `json:"accuracy_percent"`
	TotalScore         float64 `json:"total_score"`
	TotalAttempts      int     `json:"total_attempts"`
	Eligible           bool    `json:"eligible"`
}

// Service реализует рейтинг и закрытие циклов.
type Service struct {
	repo         Repository
	cache        Cache
	publisher    Publisher
	calendar     *cycle.Calendar
	competition  config.Competition
	maxLevel     int
	rulesVersion string
	now          func() time.Time
	log          *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, cache Cache, publisher Publisher, calendar *cycle.Calendar, rules config.Rules, log *slog.Logger) *Service {
	return &Service{
		repo:         repo,
		cache:        cache,
		publisher:    publisher,
		calendar:     calendar,
		competition:  rules.Competition,
		maxLevel:     rules.Progression.MaxLevel(),
		rulesVersion: rules.Version,
		now:          time.Now,
		log:          log,
	}
}

// BuildSnapshot ранжирует допущенных участников и распределяет фонд между первыми местами.
func (s *Service) BuildSnapshot(cycleKey string, progressions []models.UserProgression, pool int64, closedAt time.Time) models.MonthlySnapshot {
	competitors := make([]models.Competitor, 0, len(progressions))
	for _, p := range progressions {
		c := CompetitorFrom(p)
		if IsEligible(c, s.competition, s.maxLevel) {
			competitors = append(competitors, c)
		}
	}
	ranked := Rank(competitors)
	rewards := SplitPool(pool, s.competition.RewardShares, len(ranked))

	entries := make([]models.SnapshotEntry, len(ranked))
	for i, c := range ranked {
		entries[i] = models.SnapshotEntry{
			Rank:               i + 1,
			UserID:             c.UserID,
			HighScoreQuizCount: c.HighScoreQuizCount,
			AccuracyPercent:    c.AccuracyPercent,
			TotalScore:         c.TotalScore,
			TotalAttempts:      c.TotalAttempts,
		}
		if i < len(rewards) {
			entries[i].RewardAmount = rewards[i]
		}
	}

	return models.MonthlySnapshot{
		CycleKey:     cycleKey,
		RulesVersion: s.rulesVersion,
		PrizePool:    pool,
		ClosedAt:     closedAt,
		Entries:      entries,
	}
}

// CloseMonthlyCycle закрывает цикл и возвращает его снимок. Повторный вызов
// возвращает уже опубликованный снимок и дописывает недостающие начисления.
func (s *Service) CloseMonthlyCycle(ctx context.Context, cycleKey string) (*models.MonthlySnapshot, error) {
	if !cycle.Valid(cycleKey) {
		return nil, fmt.Errorf("%w: invalid cycle key %q", models.ErrValidation, cycleKey)
	}
	log := s.log.With(sl.Cycle(cycleKey))

	existing, err := s.repo.GetSnapshot(ctx, cycleKey)
	switch {
	case err == nil:
		log.Info("snapshot already published, replaying reward credits")
		metrics.CyclesClosed.WithLabelValues("replayed").Inc()
		return existing, s.creditRewards(ctx, existing)
	case !errors.Is(err, models.ErrNotFound):
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}

	end, err := s.calendar.End(cycleKey)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", models.ErrValidation, err)
	}
	now := s.now()
	if now.Before(end) {
		return nil, fmt.Errorf("%w: cycle %s ends at %s", models.ErrNotEligible, cycleKey, end.Format(time.RFC3339))
	}
	pool, err := s.competition.PrizePoolMinor()
	if err != nil {
		return nil, err
	}

	if err := s.repo.MarkCycleClosing(ctx, cycleKey); err != nil {
		return nil, fmt.Errorf("failed to mark cycle closing: %w", err)
	}
	progressions, err := s.repo.ListProgressions(ctx, cycleKey)
	if err != nil {
		return nil, fmt.Errorf("failed to list progressions: %w", err)
	}

	snapshot := s.BuildSnapshot(cycleKey, progressions, pool, now.UTC().Truncate(time.Microsecond))
	err = s.repo.PublishSnapshot(ctx, snapshot, cycle.Next(cycleKey))
	if errors.Is(err, models.ErrStateConflict) {
		// цикл закрыт параллельным запуском
		published, getErr := s.repo.GetSnapshot(ctx, cycleKey)
		if getErr != nil {
			return nil, fmt.Errorf("failed to get snapshot: %w", getErr)
		}
		return published, s.creditRewards(ctx, published)
	}
	if err != nil {
		metrics.CyclesClosed.WithLabelValues("failed").Inc()
		return nil, fmt.Errorf("failed to publish snapshot: %w", err)
	}
	metrics.CyclesClosed.WithLabelValues("closed").Inc()
	log.Info("cycle closed",
		slog.Int("participants", len(progressions)),
		slog.Int("competitors", len(snapshot.Entries)),
		slog.String("distributed", models.MinorToMajor(snapshot.Distributed()).StringFixed(2)))

	if err := s.cache.Set(snapshotCacheKey(cycleKey), snapshot, snapshotCacheTTL); err != nil {
		log.Warn("failed to cache snapshot", sl.Err(err))
	}

	creditErr := s.creditRewards(ctx, &snapshot)

	evt := models.CycleClosedEvent{
		EventID:     "cycle:" + cycleKey,
		CycleKey:    cycleKey,
		Competitors: len(snapshot.Entries),
		Distributed: snapshot.Distributed(),
	}
	if err := s.publisher.Publish(ctx, models.EventCycleClosed, evt); err != nil {
		log.Error("failed to publish cycle closed event", sl.Err(err))
	}
	return &snapshot, creditErr
}

// creditRewards записывает недостающие награды по снимку. Ошибки отдельных
// начислений не прерывают остальные и возвращаются вместе.
func (s *Service) creditRewards(ctx context.Context, snapshot *models.MonthlySnapshot) error {
	var errs []error
	for _, e := range snapshot.Entries {
		if e.RewardAmount <= 0 {
			continue
		}
		credit := models.RewardCredit{
			CycleKey:  snapshot.CycleKey,
			UserID:    e.UserID,
			Rank:      e.Rank,
			Amount:    e.RewardAmount,
			CreatedAt: s.now(),
		}
		created, err := s.repo.CreditReward(ctx, credit)
		if err != nil {
			s.log.Error("failed to credit reward", sl.Cycle(snapshot.CycleKey), sl.User(e.UserID), sl.Err(err))
			errs = append(errs, fmt.Errorf("credit %s: %w", e.UserID, err))
			continue
		}
		if !created {
			continue
		}
		metrics.RewardsCredited.Inc()
		evt := models.RewardCreditedEvent{
			EventID:  fmt.Sprintf("reward:%s:%s", snapshot.CycleKey, e.UserID),
			CycleKey: snapshot.CycleKey,
			UserID:   e.UserID,
			Rank:     e.Rank,
			Amount:   e.RewardAmount,
		}
		if err := s.publisher.Publish(ctx, models.EventRewardCredited, evt); err != nil {
			s.log.Error("failed to publish reward credited event", sl.User(e.UserID), sl.Err(err))
		}
	}
	return errors.Join(errs...)
}

func snapshotCacheKey(cycleKey string) string {
	return "snapshot:" + cycleKey
}

// GetPreviousCycleSnapshot возвращает снимок цикла, закрытого n циклов назад,
// или nil, если такого снимка нет.
func (s *Service) GetPreviousCycleSnapshot(ctx context.Context, n int) (*models.MonthlySnapshot, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: cycles ago must be at least 1", models.ErrValidation)
	}
	key := s.calendar.KeyAt(s.now())
	for range n {
		key = cycle.Prev(key)
	}

	var cached models.MonthlySnapshot
	found, err := s.cache.Get(snapshotCacheKey(key), &cached)
	if err != nil {
		s.log.Warn("failed to read snapshot from cache", sl.Cycle(key), sl.Err(err))
	}
	if found {
		return &cached, nil
	}

	snapshot, err := s.repo.GetSnapshot(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot: %w", err)
	}
	if err := s.cache.Set(snapshotCacheKey(key), snapshot, snapshotCacheTTL); err != nil {
		s.log.Warn("failed to cache snapshot", sl.Cycle(key), sl.Err(err))
	}
	return snapshot, nil
}

// CurrentStandings возвращает живой рейтинг открытого цикла без наград.
// Участники с попытками упорядочены тем же правилом, что и при закрытии.
func (s *Service) CurrentStandings(ctx context.Context, limit int) (string, []Standing, error) {
	key := s.calendar.KeyAt(s.now())
	progressions, err := s.repo.ListProgressions(ctx, key)
	if err != nil {
		return key, nil, fmt.Errorf("failed to list progressions: %w", err)
	}

	competitors := make([]models.Competitor, 0, len(progressions))
	for _, p := range progressions {
		competitors = append(competitors, CompetitorFrom(p))
	}
	ranked := Rank(competitors)
	if limit > 0 && len(ranked) > limit {
		ranked = ranked[:limit]
	}

	standings := make([]Standing, len(ranked))
	for i, c := range ranked {
		standings[i] = Standing{
			Rank:               i + 1,
			UserID:             c.UserID,
			Level:              c.Level,
			HighScoreQuizCount: c.HighScoreQuizCount,
			AccuracyPercent:    c.AccuracyPercent,
			TotalScore:         c.TotalScore,
			TotalAttempts:      c.TotalAttempts,
			Eligible:           IsEligible(c, s.competition, s.maxLevel),
		}
	}
	return key, standings, nil
}

// ListRewards возвращает начисленные пользователю награды.
func (s *Service) ListRewards(ctx context.Context, userID string) ([]models.RewardCredit, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	rewards, err := s.repo.ListRewards(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list rewards: %w", err)
	}
	return rewards, nil
}
