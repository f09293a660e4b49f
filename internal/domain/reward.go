package domain

import "time"

// RewardKind names a currency mutated by reward grants.
type RewardKind string

const (
	RewardHints  RewardKind = "hints"
	RewardPoints RewardKind = "points"
)

// Trigger sources recorded on ledger grants.
const (
	SourceCheckIn        = "checkin"
	SourceWeekly         = "weekly_challenge"
	SourceDailyRun       = "daily_run"
	SourceComeback       = "comeback"
	SourceReferral       = "referral"
	SourceReferralSignup = "referral_signup"
	SourcePurchase       = "purchase"
)

// RewardGrant is an append-only ledger fact. DedupeKey is unique across the
// ledger and is the serialization point for retried or concurrent requests
// carrying the same logical trigger instance.
type RewardGrant struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	Kind      RewardKind `json:"kind"`
	Amount    int64      `json:"amount"` // 0 = audit-only fact
	Source    string     `json:"source"`
	DedupeKey string     `json:"dedupe_key"`
	CreatedAt time.Time  `json:"created_at"`
}

// Balance is a snapshot of a user's reward currencies.
type Balance struct {
	Hints  int64 `json:"hints"`
	Points int64 `json:"points"`
}

// ─── Notification Types ─────────────────────────────────────────────────────

// NotificationType categorizes notifications.
type NotificationType string

const (
	NotifyAchievement NotificationType = "achievement"
	NotifyMilestone   NotificationType = "milestone"
)

// Notification is a user-facing message recorded for later display.
type Notification struct {
	ID        int64            `json:"id"`
	UserID    string           `json:"user_id"`
	Type      NotificationType `json:"type"`
	Title     string           `json:"title"`
	Body      string           `json:"body"`
	CreatedAt time.Time        `json:"created_at"`
	Shown     bool             `json:"shown"`
}
