package ranking

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/cycle"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type creditKey struct{ cycle, user string }

type memRepo struct {
	progressions map[string][]models.UserProgression
	snapshots    map[string]models.MonthlySnapshot
	credits      map[creditKey]models.RewardCredit
	status       map[string]models.CycleStatus
	failCredit   map[string]bool
}

func newMemRepo() *memRepo {
	return &memRepo{
		progressions: map[string][]models.UserProgression{},
		snapshots:    map[string]models.MonthlySnapshot{},
		credits:      map[creditKey]models.RewardCredit{},
		status:       map[string]models.CycleStatus{},
		failCredit:   map[string]bool{},
	}
}

func (r *memRepo) GetSnapshot(_ context.Context, cycleKey string) (*models.MonthlySnapshot, error) {
	s, ok := r.snapshots[cycleKey]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &s, nil
}

func (r *memRepo) MarkCycleClosing(_ context.Context, cycleKey string) error {
	r.status[cycleKey] = models.CycleClosing
	return nil
}

func (r *memRepo) ListProgressions(_ context.Context, cycleKey string) ([]models.UserProgression, error) {
	return r.progressions[cycleKey], nil
}

func (r *memRepo) PublishSnapshot(_ context.Context, snapshot models.MonthlySnapshot, next string) error {
	if _, ok := r.snapshots[snapshot.CycleKey]; ok {
		return models.ErrStateConflict
	}
	r.snapshots[snapshot.CycleKey] = snapshot
	r.status[snapshot.CycleKey] = models.CycleClosed
	if _, ok := r.status[next]; !ok {
		r.status[next] = models.CycleOpen
	}
	return nil
}

func (r *memRepo) CreditReward(_ context.Context, credit models.RewardCredit) (bool, error) {
	if r.failCredit[credit.UserID] {
		return false, errors.New("db down")
	}
	k := creditKey{credit.CycleKey, credit.UserID}
	if _, ok := r.credits[k]; ok {
		return false, nil
	}
	r.credits[k] = credit
	return true, nil
}

func (r *memRepo) ListRewards(_ context.Context, userID string) ([]models.RewardCredit, error) {
	var out []models.RewardCredit
	for k, c := range r.credits {
		if k.user == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

// memCache хранит значения как есть, без сериализации.
type memCache struct {
	items map[string]any
}

func (c *memCache) Get(key string, result any) (bool, error) {
	v, ok := c.items[key]
	if !ok {
		return false, nil
	}
	*result.(*models.MonthlySnapshot) = v.(models.MonthlySnapshot)
	return true, nil
}

func (c *memCache) Set(key string, value any, _ time.Duration) error {
	switch v := value.(type) {
	case *models.MonthlySnapshot:
		c.items[key] = *v
	case models.MonthlySnapshot:
		c.items[key] = v
	}
	return nil
}

type PublisherMock struct{ mock.Mock }

func (m *PublisherMock) Publish(ctx context.Context, routingKey string, message any) error {
	return m.Called(ctx, routingKey, message).Error(0)
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var afterOctober = time.Date(2024, 11, 1, 3, 0, 0, 0, time.UTC)

func newService(repo Repository, rules config.Rules) (*Service, *PublisherMock, *memCache) {
	pub := new(PublisherMock)
	pub.On("Publish", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	cache := &memCache{items: map[string]any{}}
	s := New(repo, cache, pub, cycle.NewCalendar(time.UTC, 23), rules, newNoopLogger())
	s.now = func() time.Time { return afterOctober }
	return s, pub, cache
}

func champion(userID string, highScore int) models.UserProgression {
	return models.UserProgression{
		UserID:             userID,
		CycleKey:           "2024-10",
		CurrentLevel:       10,
		QualifyingAttempts: highScore,
		HighScoreQuizCount: highScore,
		TotalAttempts:      highScore + 10,
		TotalScore:         float64(highScore) * 85,
		AccuracyPercent:    80,
	}
}

func TestService_CloseMonthlyCycle(t *testing.T) {
	repo := newMemRepo()
	progressions := []models.UserProgression{
		{UserID: "casual", CycleKey: "2024-10", CurrentLevel: 3, TotalAttempts: 40, AccuracyPercent: 60},
	}
	for i := range 12 {
		progressions = append(progressions, champion(fmt.Sprintf("user%02d", i), 220+i))
	}
	repo.progressions["2024-10"] = progressions

	s, pub, cache := newService(repo, config.DefaultRules())
	ctx := context.Background()

	snap, err := s.CloseMonthlyCycle(ctx, "2024-10")
	require.NoError(t, err)
	require.Len(t, snap.Entries, 12)
	assert.Equal(t, "user11", snap.Entries[0].UserID)
	assert.Equal(t, 1, snap.Entries[0].Rank)
	assert.Equal(t, int64(250000), snap.Entries[0].RewardAmount)
	assert.Equal(t, int64(0), snap.Entries[10].RewardAmount)
	assert.Equal(t, int64(1000000), snap.Distributed())
	assert.Equal(t, "v1", snap.RulesVersion)

	assert.Equal(t, models.CycleClosed, repo.status["2024-10"])
	assert.Equal(t, models.CycleOpen, repo.status["2024-11"])
	assert.Len(t, repo.credits, 10)
	assert.Contains(t, cache.items, "snapshot:2024-10")

	pub.AssertCalled(t, "Publish", mock.Anything, models.EventCycleClosed, mock.Anything)
	pub.AssertNumberOfCalls(t, "Publish", 11)

	again, err := s.CloseMonthlyCycle(ctx, "2024-10")
	require.NoError(t, err)
	assert.Equal(t, snap, again)
	assert.Len(t, repo.credits, 10)
	pub.AssertNumberOfCalls(t, "Publish", 11)
}

func TestService_CloseMonthlyCycle_ReplaysMissingCredits(t *testing.T) {
	repo := newMemRepo()
	repo.progressions["2024-10"] = []models.UserProgression{champion("a", 230), champion("b", 225), champion("c", 221)}
	repo.failCredit["b"] = true

	rules := config.DefaultRules()
	rules.Competition.RewardShares = []int{5000, 3000, 2000}
	rules.Competition.PrizePool = "9999.00"
	s, _, _ := newService(repo, rules)
	ctx := context.Background()

	snap, err := s.CloseMonthlyCycle(ctx, "2024-10")
	require.Error(t, err)
	require.NotNil(t, snap)
	assert.Len(t, repo.credits, 2)

	repo.failCredit["b"] = false
	again, err := s.CloseMonthlyCycle(ctx, "2024-10")
	require.NoError(t, err)
	assert.Equal(t, snap.Entries, again.Entries)
	require.Len(t, repo.credits, 3)
	assert.Equal(t, int64(299970), repo.credits[creditKey{"2024-10", "b"}].Amount)
}

func TestService_CloseMonthlyCycle_Errors(t *testing.T) {
	repo := newMemRepo()
	s, _, _ := newService(repo, config.DefaultRules())

	_, err := s.CloseMonthlyCycle(context.Background(), "2024/10")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = s.CloseMonthlyCycle(context.Background(), "2024-11")
	assert.ErrorIs(t, err, models.ErrNotEligible)
	assert.Empty(t, repo.status)
}

func TestService_CloseMonthlyCycle_NoCompetitors(t *testing.T) {
	repo := newMemRepo()
	repo.progressions["2024-10"] = []models.UserProgression{
		{UserID: "u1", CycleKey: "2024-10", CurrentLevel: 9, TotalAttempts: 300, AccuracyPercent: 90},
	}
	s, _, _ := newService(repo, config.DefaultRules())

	snap, err := s.CloseMonthlyCycle(context.Background(), "2024-10")
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
	assert.Zero(t, snap.Distributed())
	assert.Empty(t, repo.credits)
}

func TestService_GetPreviousCycleSnapshot(t *testing.T) {
	repo := newMemRepo()
	repo.snapshots["2024-09"] = models.MonthlySnapshot{CycleKey: "2024-09", PrizePool: 1000000}
	s, _, cache := newService(repo, config.DefaultRules())
	s.now = func() time.Time { return time.Date(2024, 11, 10, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	snap, err := s.GetPreviousCycleSnapshot(ctx, 1)
	require.NoError(t, err)
	assert.Nil(t, snap)

	snap, err = s.GetPreviousCycleSnapshot(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, "2024-09", snap.CycleKey)
	assert.Contains(t, cache.items, "snapshot:2024-09")

	_, err = s.GetPreviousCycleSnapshot(ctx, 0)
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestService_CurrentStandings(t *testing.T) {
	repo := newMemRepo()
	repo.progressions["2024-11"] = []models.UserProgression{
		{UserID: "low", CycleKey: "2024-11", CurrentLevel: 2, HighScoreQuizCount: 20, TotalAttempts: 30},
		champion("top", 230),
		{UserID: "mid", CycleKey: "2024-11", CurrentLevel: 5, HighScoreQuizCount: 95, TotalAttempts: 100},
	}
	s, _, _ := newService(repo, config.DefaultRules())

	key, standings, err := s.CurrentStandings(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "2024-11", key)
	require.Len(t, standings, 2)
	assert.Equal(t, "top", standings[0].UserID)
	assert.True(t, standings[0].Eligible)
	assert.Equal(t, "mid", standings[1].UserID)
	assert.False(t, standings[1].Eligible)
}

func TestService_ListRewards(t *testing.T) {
	repo := newMemRepo()
	repo.credits[creditKey{"2024-10", "u1"}] = models.RewardCredit{CycleKey: "2024-10", UserID: "u1", Rank: 1, Amount: 250000}
	s, _, _ := newService(repo, config.DefaultRules())

	rewards, err := s.ListRewards(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, rewards, 1)
	assert.Equal(t, int64(250000), rewards[0].Amount)

	_, err = s.ListRewards(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrValidation)
}
