// Package progression накапливает зачётные попытки пользователя в уровень текущего месячного цикла.
package progression

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/cycle"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/metrics"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

// maxCycleHops ограничивает переходы в следующий цикл, пока текущий закрывается.
const maxCycleHops = 2

// Repository определяет методы хранилища прогресса.
type Repository interface {
	// GetProgression возвращает models.ErrNotFound, если в цикле ещё не было попыток.
	GetProgression(ctx context.Context, userID, cycleKey string) (*models.UserProgression, error)
	// SaveProgression сохраняет прогресс при совпадении версии.
	// Возвращает models.ErrCycleNotOpen, если цикл уже закрывается, и
	// models.ErrStateConflict при конкурентной записи.
	SaveProgression(ctx context.Context, p models.UserProgression, expectedVersion int) error
}

// Service реализует учёт попыток.
type Service struct {
	repo       Repository
	calendar   *cycle.Calendar
	rules      config.Progression
	accuracy   string
	maxRetries int
	now        func() time.Time
	log        *slog.Logger
}

// New создает новый экземпляр Service.
func New(repo Repository, calendar *cycle.Calendar, rules config.Rules, log *slog.Logger) *Service {
	for i := 1; i < len(rules.Progression.LevelThresholds); i++ {
		if rules.Progression.LevelThresholds[i] <= rules.Progression.LevelThresholds[i-1] {
			log.Warn("level thresholds are not strictly increasing",
				slog.Int("level", i+1),
				slog.Int("threshold", rules.Progression.LevelThresholds[i]),
				slog.Int("previous", rules.Progression.LevelThresholds[i-1]))
		}
	}
	return &Service{
		repo:       repo,
		calendar:   calendar,
		rules:      rules.Progression,
		accuracy:   rules.Competition.AccuracyMode,
		maxRetries: rules.Progression.MaxConflictRetries,
		now:        time.Now,
		log:        log,
	}
}

// LevelFor возвращает наибольший уровень n, для которого qualifying >= thresholds[n-1].
func LevelFor(thresholds []int, qualifying int) int {
	level := 0
	for i, t := range thresholds {
		if qualifying >= t {
			level = i + 1
		}
	}
	return level
}

// Accuracy вычисляет точность в процентах с округлением до сотых.
func Accuracy(mode string, p models.UserProgression) float64 {
	if p.TotalAttempts == 0 {
		return 0
	}
	var v decimal.Decimal
	switch mode {
	case config.AccuracyQualifyingRatio:
		v = decimal.NewFromInt(int64(p.QualifyingAttempts)).
			Mul(decimal.NewFromInt(100)).
			Div(decimal.NewFromInt(int64(p.TotalAttempts)))
	default:
		v = decimal.NewFromFloat(p.TotalScore).Div(decimal.NewFromInt(int64(p.TotalAttempts)))
	}
	return v.Round(2).InexactFloat64()
}

// ValidateScore проверяет, что результат попытки лежит в [0,100].
func ValidateScore(score float64) error {
	if math.IsNaN(score) || score < 0 || score > 100 {
		return fmt.Errorf("%w: score %v is outside [0,100]", models.ErrValidation, score)
	}
	return nil
}

// Apply возвращает прогресс после ещё одной попытки. Уровень не убывает.
func (s *Service) Apply(p models.UserProgression, score float64) models.UserProgression {
	p.TotalAttempts++
	p.TotalScore += score
	if score >= s.rules.QualifyingScore {
		p.QualifyingAttempts++
		p.HighScoreQuizCount++
	}
	if level := LevelFor(s.rules.LevelThresholds, p.QualifyingAttempts); level > p.CurrentLevel {
		p.CurrentLevel = level
	}
	p.AccuracyPercent = Accuracy(s.accuracy, p)
	return p
}

// RecordAttempt записывает попытку в открытый цикл. Если цикл уже закрывается,
// попытка переносится в следующий цикл. При неверном результате состояние не меняется.
func (s *Service) RecordAttempt(ctx context.Context, userID string, score float64) (*models.AttemptResult, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	if err := ValidateScore(score); err != nil {
		return nil, err
	}

	key := s.calendar.KeyAt(s.now())
	conflicts, hops := 0, 0
	for {
		res, err := s.recordOnce(ctx, userID, key, score)
		switch {
		case err == nil:
			qualifying := score >= s.rules.QualifyingScore
			metrics.AttemptsRecorded.WithLabelValues(strconv.FormatBool(qualifying)).Inc()
			if res.LeveledUp {
				metrics.LevelUps.WithLabelValues(strconv.Itoa(res.NewLevel)).Inc()
				s.log.Info("level up", sl.User(userID), sl.Cycle(key), slog.Int("level", res.NewLevel))
			}
			return res, nil
		case errors.Is(err, models.ErrCycleNotOpen) && hops < maxCycleHops:
			hops++
			s.log.Info("cycle is closing, attempt moved to next cycle", sl.User(userID), sl.Cycle(key))
			key = cycle.Next(key)
		case errors.Is(err, models.ErrStateConflict) && conflicts < s.maxRetries:
			conflicts++
			metrics.ConflictRetries.WithLabelValues("progression").Inc()
		default:
			return nil, err
		}
	}
}

func (s *Service) recordOnce(ctx context.Context, userID, key string, score float64) (*models.AttemptResult, error) {
	current, err := s.load(ctx, userID, key)
	if err != nil {
		return nil, err
	}
	next := s.Apply(*current, score)
	next.UpdatedAt = s.now()
	if err := s.repo.SaveProgression(ctx, next, current.Version); err != nil {
		return nil, err
	}
	return &models.AttemptResult{
		CycleKey:  key,
		NewLevel:  next.CurrentLevel,
		LeveledUp: next.CurrentLevel > current.CurrentLevel,
	}, nil
}

func (s *Service) load(ctx context.Context, userID, key string) (*models.UserProgression, error) {
	p, err := s.repo.GetProgression(ctx, userID, key)
	if errors.Is(err, models.ErrNotFound) {
		return &models.UserProgression{UserID: userID, CycleKey: key}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get progression: %w", err)
	}
	return p, nil
}

// GetCurrentProgression возвращает прогресс пользователя в текущем цикле.
// Пользователь без попыток получает запись уровня 0.
func (s *Service) GetCurrentProgression(ctx context.Context, userID string) (*models.UserProgression, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", models.ErrValidation)
	}
	return s.load(ctx, userID, s.calendar.KeyAt(s.now()))
}
