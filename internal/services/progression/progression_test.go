package progression

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/lib/cycle"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

type progressKey struct{ user, cycle string }

type memRepo struct {
	items     map[progressKey]models.UserProgression
	closing   map[string]bool
	conflicts int
}

func newMemRepo() *memRepo {
	return &memRepo{items: map[progressKey]models.UserProgression{}, closing: map[string]bool{}}
}

func (r *memRepo) GetProgression(_ context.Context, userID, cycleKey string) (*models.UserProgression, error) {
	p, ok := r.items[progressKey{userID, cycleKey}]
	if !ok {
		return nil, models.ErrNotFound
	}
	return &p, nil
}

func (r *memRepo) SaveProgression(_ context.Context, p models.UserProgression, expectedVersion int) error {
	if r.closing[p.CycleKey] {
		return models.ErrCycleNotOpen
	}
	if r.conflicts > 0 {
		r.conflicts--
		return models.ErrStateConflict
	}
	k := progressKey{p.UserID, p.CycleKey}
	if r.items[k].Version != expectedVersion {
		return models.ErrStateConflict
	}
	p.Version = expectedVersion + 1
	r.items[k] = p
	return nil
}

func newNoopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{}))
}

var fixedNow = time.Date(2024, 10, 15, 12, 0, 0, 0, time.UTC)

func newService(repo Repository) *Service {
	s := New(repo, cycle.NewCalendar(time.UTC, 23), config.DefaultRules(), newNoopLogger())
	s.now = func() time.Time { return fixedNow }
	return s
}

func TestLevelFor(t *testing.T) {
	thresholds := config.DefaultRules().Progression.LevelThresholds

	tests := []struct {
		qualifying int
		want       int
	}{
		{0, 0},
		{5, 0},
		{6, 1},
		{17, 1},
		{18, 2},
		{59, 3},
		{60, 4},
		{61, 4},
		{89, 4},
		{90, 5},
		{219, 8},
		{220, 10},
		{270, 10},
		{1000, 10},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(thresholds, tt.qualifying), "qualifying=%d", tt.qualifying)
	}
}

func TestAccuracy(t *testing.T) {
	p := models.UserProgression{QualifyingAttempts: 2, TotalAttempts: 3, TotalScore: 250}

	assert.Equal(t, 83.33, Accuracy(config.AccuracyAverageScore, p))
	assert.Equal(t, 66.67, Accuracy(config.AccuracyQualifyingRatio, p))
	assert.Equal(t, 0.0, Accuracy(config.AccuracyAverageScore, models.UserProgression{}))
}

func TestService_RecordAttempt_LevelExample(t *testing.T) {
	repo := newMemRepo()
	repo.items[progressKey{"u1", "2024-10"}] = models.UserProgression{
		UserID: "u1", CycleKey: "2024-10", CurrentLevel: 4,
		QualifyingAttempts: 60, HighScoreQuizCount: 60, TotalAttempts: 60, TotalScore: 4800, Version: 60,
	}
	s := newService(repo)
	ctx := context.Background()

	res, err := s.RecordAttempt(ctx, "u1", 80)
	require.NoError(t, err)
	assert.Equal(t, &models.AttemptResult{CycleKey: "2024-10", NewLevel: 4, LeveledUp: false}, res)

	for range 28 {
		res, err = s.RecordAttempt(ctx, "u1", 75)
		require.NoError(t, err)
		assert.Equal(t, 4, res.NewLevel)
	}

	res, err = s.RecordAttempt(ctx, "u1", 100)
	require.NoError(t, err)
	assert.Equal(t, 5, res.NewLevel)
	assert.True(t, res.LeveledUp)

	p := repo.items[progressKey{"u1", "2024-10"}]
	assert.Equal(t, 90, p.QualifyingAttempts)
	assert.Equal(t, 90, p.TotalAttempts)
}

func TestService_RecordAttempt_LevelNeverDecreases(t *testing.T) {
	repo := newMemRepo()
	s := newService(repo)
	ctx := context.Background()

	scores := []float64{100, 10, 75, 74.99, 0, 90, 50, 80, 80, 80, 80, 30, 99}
	prev := 0
	for i := 0; i < 60; i++ {
		res, err := s.RecordAttempt(ctx, "u1", scores[i%len(scores)])
		require.NoError(t, err)
		assert.GreaterOrEqual(t, res.NewLevel, prev)
		prev = res.NewLevel
	}

	p := repo.items[progressKey{"u1", "2024-10"}]
	assert.Equal(t, 60, p.TotalAttempts)
	assert.Equal(t, p.QualifyingAttempts, p.HighScoreQuizCount)
	assert.Equal(t, LevelFor(config.DefaultRules().Progression.LevelThresholds, p.QualifyingAttempts), p.CurrentLevel)
}

func TestService_RecordAttempt_InvalidScore(t *testing.T) {
	repo := newMemRepo()
	s := newService(repo)

	for _, score := range []float64{-0.01, 100.01, -50} {
		_, err := s.RecordAttempt(context.Background(), "u1", score)
		assert.ErrorIs(t, err, models.ErrValidation)
	}
	assert.Empty(t, repo.items)
}

func TestService_RecordAttempt_ClosingCycleMovesToNext(t *testing.T) {
	repo := newMemRepo()
	repo.closing["2024-10"] = true
	s := newService(repo)

	res, err := s.RecordAttempt(context.Background(), "u1", 90)
	require.NoError(t, err)
	assert.Equal(t, "2024-11", res.CycleKey)

	_, inClosing := repo.items[progressKey{"u1", "2024-10"}]
	assert.False(t, inClosing)
	p := repo.items[progressKey{"u1", "2024-11"}]
	assert.Equal(t, 1, p.TotalAttempts)
	assert.Equal(t, 0, p.CurrentLevel)
}

func TestService_RecordAttempt_AfterCutoffUsesNextCycle(t *testing.T) {
	repo := newMemRepo()
	s := newService(repo)
	s.now = func() time.Time { return time.Date(2024, 10, 31, 23, 5, 0, 0, time.UTC) }

	res, err := s.RecordAttempt(context.Background(), "u1", 50)
	require.NoError(t, err)
	assert.Equal(t, "2024-11", res.CycleKey)
}

func TestService_RecordAttempt_Conflicts(t *testing.T) {
	repo := newMemRepo()
	repo.conflicts = 3
	s := newService(repo)

	_, err := s.RecordAttempt(context.Background(), "u1", 80)
	require.NoError(t, err)

	repo.conflicts = 4
	_, err = s.RecordAttempt(context.Background(), "u1", 80)
	assert.ErrorIs(t, err, models.ErrStateConflict)
	assert.Equal(t, 1, repo.items[progressKey{"u1", "2024-10"}].TotalAttempts)
}

func TestService_GetCurrentProgression(t *testing.T) {
	repo := newMemRepo()
	s := newService(repo)

	p, err := s.GetCurrentProgression(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, "2024-10", p.CycleKey)
	assert.Equal(t, 0, p.CurrentLevel)

	_, err = s.RecordAttempt(context.Background(), "u1", 100)
	require.NoError(t, err)

	p, err = s.GetCurrentProgression(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalAttempts)
	assert.Equal(t, 100.0, p.AccuracyPercent)
}
