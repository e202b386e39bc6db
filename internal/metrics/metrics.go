// Package metrics содержит prometheus-метрики движка.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	AttemptsRecorded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizleague_attempts_recorded_total",
			Help: "Quiz attempts recorded, split by qualifying flag",
		},
		[]string{"qualifying"},
	)
	LevelUps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizleague_level_ups_total",
			Help: "Level changes caused by recorded attempts",
		},
		[]string{"level"},
	)
	GrantsIssued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizleague_plan_grants_total",
			Help: "Plan grants issued",
		},
		[]string{"source", "tier"},
	)
	ConflictRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizleague_state_conflict_retries_total",
			Help: "Optimistic write conflicts that triggered a retry",
		},
		[]string{"operation"},
	)
	CyclesClosed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizleague_cycles_closed_total",
			Help: "Monthly cycle close runs by outcome",
		},
		[]string{"outcome"},
	)
	RewardsCredited = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quizleague_rewards_credited_total",
			Help: "Reward ledger credits written",
		},
	)
	Withdrawals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quizleague_withdrawals_total",
			Help: "Withdrawal requests by resulting status",
		},
		[]string{"status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "quizleague_http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		AttemptsRecorded,
		LevelUps,
		GrantsIssued,
		ConflictRetries,
		CyclesClosed,
		RewardsCredited,
		Withdrawals,
		HTTPRequestDuration,
	)
}
