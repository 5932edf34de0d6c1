// Package metrics provides Prometheus metrics for PiùCane.
// Counters and histograms for XP, levels, rewards, difficulty, missions,
// badges, notifications and HTTP traffic.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── XP & Levels ────────────────────────────────────────────────────────────

// XPAwarded tracks final XP credited, by source type.
var XPAwarded = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "xp_awarded_total",
	Help:      "Total XP credited after multipliers.",
}, []string{"source"})

// XPAwardSize tracks the distribution of single awards.
var XPAwardSize = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "piucane",
	Name:      "xp_award_size",
	Help:      "Final XP of single awards.",
	Buckets:   []float64{10, 25, 50, 100, 250, 500, 1000, 5000, 10000},
})

// LevelUps tracks level-up events by the level reached.
var LevelUps = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "level_ups_total",
	Help:      "Total level-up events.",
}, []string{"band"})

// ─── Rewards ────────────────────────────────────────────────────────────────

// RewardsIssued tracks rewards written to the reward sink.
var RewardsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "rewards_issued_total",
	Help:      "Total rewards issued.",
}, []string{"type"})

// RewardsClaimed tracks successful claims.
var RewardsClaimed = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "rewards_claimed_total",
	Help:      "Total rewards claimed.",
}, []string{"type"})

// RewardsExpired tracks rewards flipped to expired.
var RewardsExpired = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "rewards_expired_total",
	Help:      "Total rewards expired before being claimed.",
})

// ─── Difficulty ─────────────────────────────────────────────────────────────

// DDAEvaluations tracks evaluations by outcome (adjusted, unchanged).
var DDAEvaluations = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "dda_evaluations_total",
	Help:      "Total difficulty evaluations.",
}, []string{"outcome"})

// DDAAdjustments tracks difficulty changes by direction.
var DDAAdjustments = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "dda_adjustments_total",
	Help:      "Total difficulty adjustments.",
}, []string{"from", "to"})

// ─── Missions, Badges, Notifications ────────────────────────────────────────

// Missions tracks mission lifecycle events (started, completed, failed).
var Missions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "missions_total",
	Help:      "Total mission lifecycle events.",
}, []string{"event", "category"})

// BadgesUnlocked tracks badge unlocks by rarity.
var BadgesUnlocked = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "badges_unlocked_total",
	Help:      "Total badges unlocked.",
}, []string{"rarity"})

// Notifications tracks notifications by type and outcome (stored, suppressed).
var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "notifications_total",
	Help:      "Total notifications considered.",
}, []string{"type", "outcome"})

// ─── Concurrency ────────────────────────────────────────────────────────────

// LockWait tracks time spent acquiring per-user locks.
var LockWait = promauto.NewHistogram(prometheus.HistogramOpts{
	Namespace: "piucane",
	Name:      "lock_wait_seconds",
	Help:      "Time spent waiting for per-user locks.",
	Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
})

// LockTimeouts tracks lock acquisitions that gave up.
var LockTimeouts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "lock_timeouts_total",
	Help:      "Total per-user lock acquisitions that timed out.",
})

// ─── HTTP ───────────────────────────────────────────────────────────────────

// HTTPRequests tracks API requests by route pattern and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "piucane",
	Name:      "http_requests_total",
	Help:      "Total HTTP requests.",
}, []string{"route", "code"})

// HTTPLatency tracks API request duration by route pattern.
var HTTPLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "piucane",
	Name:      "http_request_duration_seconds",
	Help:      "HTTP request duration in seconds.",
	Buckets:   prometheus.DefBuckets,
}, []string{"route"})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check pass/fail (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "piucane",
	Name:      "health_check_status",
	Help:      "Health check status (1=healthy, 0=unhealthy).",
}, []string{"check"})

// LevelBand returns a low-cardinality label for a level.
func LevelBand(level int) string {
	switch {
	case level >= 100:
		return "100"
	case level >= 75:
		return "75-99"
	case level >= 50:
		return "50-74"
	case level >= 25:
		return "25-49"
	case level >= 10:
		return "10-24"
	default:
		return "1-9"
	}
}
