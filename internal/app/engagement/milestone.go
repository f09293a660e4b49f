package engagement

import "github.com/puzzlepup/puzzlepup/internal/domain"

// Milestone is a reward payload triggered by an engagement counter hitting an
// exact value.
type Milestone struct {
	Day    int               `json:"day"`
	Kind   domain.RewardKind `json:"kind"`
	Amount int64             `json:"amount"`
}

// streakMilestones maps exact streak lengths to rewards. Keyed on the exact
// value, not greater-or-equal: skipping day 7 forfeits the day-7 reward.
var streakMilestones = map[int]Milestone{
	7:   {Day: 7, Kind: domain.RewardHints, Amount: 10},
	30:  {Day: 30, Kind: domain.RewardPoints, Amount: 50},
	365: {Day: 365, Kind: domain.RewardHints, Amount: 1000},
}

// StreakMilestone returns the reward for reaching exactly the given streak,
// or nil if the value is not a milestone.
func StreakMilestone(streak int) *Milestone {
	if m, ok := streakMilestones[streak]; ok {
		return &m
	}
	return nil
}

// DailyRunHints returns the hint reward for a daily puppy-run score.
func DailyRunHints(score int) int64 {
	switch {
	case score >= 1001:
		return 5
	case score >= 501:
		return 2
	case score >= 1:
		return 1
	}
	return 0
}

// WeeklyChallengeHints is the reward for claiming a completed weekly challenge.
const WeeklyChallengeHints int64 = 5

// ReferralBonusHints is granted to both sides of a successful referral.
const ReferralBonusHints int64 = 25
