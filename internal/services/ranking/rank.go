package ranking

import (
	"cmp"
	"slices"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/magabrotheeeer/quizleague/internal/config"
	"github.com/magabrotheeeer/quizleague/internal/models"
)

const basisPoints = 10000

// Compare задаёт строгий порядок участников: больше зачётных квизов, выше
// точность, больше суммарный балл, больше попыток, затем меньший userID.
func Compare(a, b models.Competitor) int {
	if c := cmp.Compare(b.HighScoreQuizCount, a.HighScoreQuizCount); c != 0 {
		return c
	}
	if c := cmp.Compare(b.AccuracyPercent, a.AccuracyPercent); c != 0 {
		return c
	}
	if c := cmp.Compare(b.TotalScore, a.TotalScore); c != 0 {
		return c
	}
	if c := cmp.Compare(b.TotalAttempts, a.TotalAttempts); c != 0 {
		return c
	}
	return strings.Compare(a.UserID, b.UserID)
}

// Rank возвращает участников, упорядоченных по Compare. Исходный срез не меняется.
func Rank(competitors []models.Competitor) []models.Competitor {
	ranked := slices.Clone(competitors)
	slices.SortFunc(ranked, Compare)
	return ranked
}

// IsEligible сообщает, допущен ли участник к месячному рейтингу.
func IsEligible(c models.Competitor, rules config.Competition, maxLevel int) bool {
	return c.Level == maxLevel &&
		c.TotalAttempts >= rules.MinQuizRequirement &&
		c.AccuracyPercent >= rules.MinAccuracy
}

// CompetitorFrom строит участника рейтинга из прогресса.
func CompetitorFrom(p models.UserProgression) models.Competitor {
	return models.Competitor{
		UserID:             p.UserID,
		Level:              p.CurrentLevel,
		HighScoreQuizCount: p.HighScoreQuizCount,
		AccuracyPercent:    p.AccuracyPercent,
		TotalScore:         p.TotalScore,
		TotalAttempts:      p.TotalAttempts,
	}
}

// SplitPool делит фонд pool по долям shares (базисные пункты) между filled
// занятыми местами. Каждая доля округляется вниз до минимальной единицы,
// остаток добавляется первому месту. Доли незанятых мест не распределяются.
func SplitPool(pool int64, shares []int, filled int) []int64 {
	n := min(filled, len(shares))
	if n <= 0 || pool <= 0 {
		return make([]int64, max(n, 0))
	}

	poolDec := decimal.NewFromInt(pool)
	bp := decimal.NewFromInt(basisPoints)

	amounts := make([]int64, n)
	var sharesUsed int64
	var distributed int64
	for i := range n {
		sharesUsed += int64(shares[i])
		amounts[i] = poolDec.Mul(decimal.NewFromInt(int64(shares[i]))).Div(bp).Floor().IntPart()
		distributed += amounts[i]
	}

	target := pool
	if n < len(shares) {
		target = poolDec.Mul(decimal.NewFromInt(sharesUsed)).Div(bp).Floor().IntPart()
	}
	amounts[0] += target - distributed
	return amounts
}
