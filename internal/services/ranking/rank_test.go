package ranking

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

func ids(cs []models.Competitor) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.UserID
	}
	return out
}

func TestRank_TieBreaks(t *testing.T) {
	tests := []struct {
		name        string
		competitors []models.Competitor
		want        []string
	}{
		{
			name: "high score count first",
			competitors: []models.Competitor{
				{UserID: "a", HighScoreQuizCount: 200, AccuracyPercent: 99},
				{UserID: "b", HighScoreQuizCount: 201, AccuracyPercent: 80},
			},
			want: []string{"b", "a"},
		},
		{
			name: "accuracy breaks high score tie",
			competitors: []models.Competitor{
				{UserID: "a", HighScoreQuizCount: 200, AccuracyPercent: 80.5},
				{UserID: "b", HighScoreQuizCount: 200, AccuracyPercent: 80.51},
			},
			want: []string{"b", "a"},
		},
		{
			name: "total score breaks accuracy tie",
			competitors: []models.Competitor{
				{UserID: "a", HighScoreQuizCount: 200, AccuracyPercent: 80, TotalScore: 18000},
				{UserID: "b", HighScoreQuizCount: 200, AccuracyPercent: 80, TotalScore: 18001},
			},
			want: []string{"b", "a"},
		},
		{
			name: "more attempts win when first three keys tie",
			competitors: []models.Competitor{
				{UserID: "a", HighScoreQuizCount: 200, AccuracyPercent: 80, TotalScore: 18000, TotalAttempts: 225},
				{UserID: "b", HighScoreQuizCount: 200, AccuracyPercent: 80, TotalScore: 18000, TotalAttempts: 230},
			},
			want: []string{"b", "a"},
		},
		{
			name: "full tie falls back to user id",
			competitors: []models.Competitor{
				{UserID: "c", HighScoreQuizCount: 1, AccuracyPercent: 1, TotalScore: 1, TotalAttempts: 1},
				{UserID: "a", HighScoreQuizCount: 1, AccuracyPercent: 1, TotalScore: 1, TotalAttempts: 1},
				{UserID: "b", HighScoreQuizCount: 1, AccuracyPercent: 1, TotalScore: 1, TotalAttempts: 1},
			},
			want: []string{"a", "b", "c"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ids(Rank(tt.competitors)))
		})
	}
}

func TestRank_DeterministicForAnyInputOrder(t *testing.T) {
	base := []models.Competitor{
		{UserID: "u3", HighScoreQuizCount: 230, AccuracyPercent: 85, TotalScore: 20000, TotalAttempts: 240},
		{UserID: "u1", HighScoreQuizCount: 230, AccuracyPercent: 85, TotalScore: 20000, TotalAttempts: 240},
		{UserID: "u2", HighScoreQuizCount: 231, AccuracyPercent: 76, TotalScore: 19000, TotalAttempts: 300},
		{UserID: "u4", HighScoreQuizCount: 230, AccuracyPercent: 85, TotalScore: 20000, TotalAttempts: 250},
	}
	want := []string{"u2", "u4", "u1", "u3"}

	reversed := []models.Competitor{base[3], base[2], base[1], base[0]}
	assert.Equal(t, want, ids(Rank(base)))
	assert.Equal(t, want, ids(Rank(reversed)))
	assert.Equal(t, "u3", base[0].UserID, "input must not be reordered")
}

func TestIsEligible(t *testing.T) {
	rules := config.DefaultRules().Competition

	tests := []struct {
		name string
		c    models.Competitor
		want bool
	}{
		{name: "eligible", c: models.Competitor{Level: 10, TotalAttempts: 110, AccuracyPercent: 75}, want: true},
		{name: "level below max", c: models.Competitor{Level: 9, TotalAttempts: 300, AccuracyPercent: 90}},
		{name: "too few attempts", c: models.Competitor{Level: 10, TotalAttempts: 109, AccuracyPercent: 90}},
		{name: "low accuracy", c: models.Competitor{Level: 10, TotalAttempts: 300, AccuracyPercent: 74.99}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligible(tt.c, rules, 10))
		})
	}
}

func sum(amounts []int64) int64 {
	var total int64
	for _, a := range amounts {
		total += a
	}
	return total
}

func TestSplitPool(t *testing.T) {
	top10 := []int{2500, 2000, 1500, 1000, 800, 700, 500, 400, 300, 300}
	top3 := []int{5000, 3000, 2000}

	tests := []struct {
		name   string
		pool   int64
		shares []int
		filled int
		want   []int64
	}{
		{
			name:   "even top 10",
			pool:   1000000,
			shares: top10,
			filled: 10,
			want:   []int64{250000, 200000, 150000, 100000, 80000, 70000, 50000, 40000, 30000, 30000},
		},
		{
			name:   "uneven top 3 remainder to first",
			pool:   999900,
			shares: top3,
			filled: 3,
			want:   []int64{499950, 299970, 199980},
		},
		{
			name:   "remainder after flooring goes to rank 1",
			pool:   1001,
			shares: top3,
			filled: 5,
			want:   []int64{501, 300, 200},
		},
		{
			name:   "unfilled ranks keep their share",
			pool:   1000000,
			shares: top10,
			filled: 2,
			want:   []int64{250000, 200000},
		},
		{
			name:   "no competitors",
			pool:   1000000,
			shares: top10,
			filled: 0,
			want:   []int64{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SplitPool(tt.pool, tt.shares, tt.filled))
		})
	}
}

func TestSplitPool_SumEqualsPool(t *testing.T) {
	shareTables := [][]int{
		{2500, 2000, 1500, 1000, 800, 700, 500, 400, 300, 300},
		{5000, 3000, 2000},
		{3333, 3333, 3334},
	}
	pools := []int64{1, 7, 99, 101, 999900, 1000000, 1234567, 999999999}

	for _, shares := range shareTables {
		for _, pool := range pools {
			amounts := SplitPool(pool, shares, len(shares))
			assert.Equal(t, pool, sum(amounts), "pool=%d shares=%v", pool, shares)
			for i := 1; i < len(amounts); i++ {
				assert.GreaterOrEqual(t, amounts[i], int64(0))
			}
		}
	}
}
