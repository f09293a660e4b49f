// Package metrics provides Prometheus metrics for the PuzzlePup backend:
// counters for engagement triggers, reward issuance and write-path health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Engagement ─────────────────────────────────────────────────────────────

// CheckIns tracks completed daily check-ins (repeats excluded).
var CheckIns = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "checkins_total",
	Help:      "Total credited daily check-ins.",
})

// LevelClears tracks level-clear events by difficulty.
var LevelClears = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "level_clears_total",
	Help:      "Total level clears.",
}, []string{"difficulty"})

// AchievementsUnlocked tracks newly unlocked achievements.
var AchievementsUnlocked = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "achievements_unlocked_total",
	Help:      "Total achievements unlocked.",
})

// ─── Reward write path ──────────────────────────────────────────────────────

// RewardsIssued tracks applied reward grants by currency and trigger source.
var RewardsIssued = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "rewards_issued_total",
	Help:      "Total reward grants applied to balances.",
}, []string{"kind", "source"})

// RewardDedupeHits tracks grants suppressed by an existing dedupe key.
var RewardDedupeHits = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "reward_dedupe_hits_total",
	Help:      "Total reward grants skipped because the dedupe key already existed.",
})

// VersionConflicts tracks optimistic-concurrency write conflicts.
var VersionConflicts = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "version_conflicts_total",
	Help:      "Total conditional writes rejected by a stale version.",
})

// Referrals tracks credited referral signups.
var Referrals = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "puzzlepup",
	Name:      "referrals_credited_total",
	Help:      "Total referral signups credited.",
})
