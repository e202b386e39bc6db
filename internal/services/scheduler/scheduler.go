// Package scheduler запускает закрытие месячных циклов по расписанию.
package scheduler

import (
	"context"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/quizleague/internal/lib/cycle"
	"github.com/magabrotheeeer/quizleague/internal/lib/sl"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

// CycleRepository определяет методы хранилища циклов.
type CycleRepository interface {
	// ListCyclesToClose возвращает ключи циклов раньше current, которые не закрыты
	// или по которым остались незаписанные награды.
	ListCyclesToClose(ctx context.Context, current string) ([]string, error)
}

// Closer закрывает месячный цикл.
type Closer interface {
	CloseMonthlyCycle(ctx context.Context, cycleKey string) (*models.MonthlySnapshot, error)
}

// Locker описывает распределённую блокировку.
type Locker interface {
	AcquireLock(ctx context.Context, key string, ttl time.Duration) (token string, ok bool, err error)
	ReleaseLock(ctx context.Context, key, token string) error
}

// SchedulerService периодически проверяет границу цикла.
type SchedulerService struct {
	repo     CycleRepository
	closer   Closer
	locker   Locker
	calendar *cycle.Calendar
	interval time.Duration
	lockTTL  time.Duration
	now      func() time.Time
	log      *slog.Logger
}

// NewSchedulerService создает новый экземпляр SchedulerService.
func NewSchedulerService(repo CycleRepository, closer Closer, locker Locker, calendar *cycle.Calendar,
	interval, lockTTL time.Duration, log *slog.Logger) *SchedulerService {
	return &SchedulerService{
		repo:     repo,
		closer:   closer,
		locker:   locker,
		calendar: calendar,
		interval: interval,
		lockTTL:  lockTTL,
		now:      time.Now,
		log:      log,
	}
}

// Run выполняет проверку сразу и затем с интервалом, пока не отменён ctx.
func (s *SchedulerService) Run(ctx context.Context) {
	s.RunOnce(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("cycle scheduler stopped")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce закрывает все завершившиеся циклы, включая пропущенные во время простоя.
// Возвращает число успешно обработанных циклов.
func (s *SchedulerService) RunOnce(ctx context.Context) int {
	current := s.calendar.KeyAt(s.now())
	keys, err := s.repo.ListCyclesToClose(ctx, current)
	if err != nil {
		s.log.Error("failed to list cycles to close", sl.Err(err))
		return 0
	}
	if len(keys) == 0 {
		s.log.Debug("no cycles to close", slog.String("current", current))
		return 0
	}

	closed := 0
	for _, key := range keys {
		if s.closeWithLock(ctx, key) {
			closed++
		}
	}
	return closed
}

func (s *SchedulerService) closeWithLock(ctx context.Context, key string) bool {
	lockKey := "lock:cycle-close:" + key
	token, ok, err := s.locker.AcquireLock(ctx, lockKey, s.lockTTL)
	if err != nil {
		s.log.Error("failed to acquire lock", sl.Cycle(key), sl.Err(err))
		return false
	}
	if !ok {
		s.log.Info("cycle close already running elsewhere", sl.Cycle(key))
		return false
	}
	defer func() {
		if err := s.locker.ReleaseLock(context.WithoutCancel(ctx), lockKey, token); err != nil {
			s.log.Warn("failed to release lock", sl.Cycle(key), sl.Err(err))
		}
	}()

	snapshot, err := s.closer.CloseMonthlyCycle(ctx, key)
	if err != nil {
		s.log.Error("failed to close cycle", sl.Cycle(key), sl.Err(err))
		return false
	}
	s.log.Info("cycle processed", sl.Cycle(key), slog.Int("winners", len(snapshot.Entries)))
	return true
}
