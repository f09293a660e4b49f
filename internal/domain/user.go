// Package domain holds the core types of the PuzzlePup backend.
// Domain types are pure — no infrastructure dependency.
package domain

import "time"

// Difficulty classifies puzzle levels.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyMedium Difficulty = "medium"
	DifficultyHard   Difficulty = "hard"
)

// ParseDifficulty validates a difficulty string from the API.
func ParseDifficulty(s string) (Difficulty, error) {
	switch Difficulty(s) {
	case DifficultyEasy, DifficultyMedium, DifficultyHard:
		return Difficulty(s), nil
	}
	return "", ErrInvalidDifficulty
}

// Progression is the per-user engagement state. Every field evolves only
// through the progression service's write path; currency fields additionally
// receive additive deltas from the reward issuer.
type Progression struct {
	LastCheckInDay   string  `json:"last_checkin_day"`   // "YYYY-MM-DD", "" = never
	CheckInStreak    int     `json:"checkin_streak"`     // consecutive days (freeze-extended)
	TotalCheckIns    int     `json:"total_checkins"`     // lifetime, monotonic
	StreakFreezeWeek string  `json:"streak_freeze_week"` // "YYYY-Www" a freeze was last consumed
	PuppyAge         int     `json:"puppy_age"`          // derived: min(streak, 7)
	PuppySize        float64 `json:"puppy_size"`         // derived: 1.0 + 0.14*age

	WeeklyChallengeWeek    string `json:"weekly_challenge_week"` // "" = never played
	WeeklyEasy             int    `json:"weekly_easy"`
	WeeklyMedium           int    `json:"weekly_medium"`
	WeeklyHard             int    `json:"weekly_hard"`
	WeeklyChallengeClaimed bool   `json:"weekly_challenge_claimed"`

	LastDailyPuzzleDay string `json:"last_daily_puzzle_day"`
	PuppyRunHighScore  int    `json:"puppy_run_high_score"`

	LastPlayedAt         time.Time `json:"last_played_at"`
	ComebackBonusClaimed bool      `json:"comeback_bonus_claimed"` // one-shot, never reset

	LevelPassedEasy   int `json:"level_passed_easy"`
	LevelPassedMedium int `json:"level_passed_medium"`
	LevelPassedHard   int `json:"level_passed_hard"`

	Hints  int64 `json:"hints"`
	Points int64 `json:"points"`
}

// LevelCounter returns the monotonic clear counter for a difficulty.
func (p Progression) LevelCounter(d Difficulty) int {
	switch d {
	case DifficultyEasy:
		return p.LevelPassedEasy
	case DifficultyMedium:
		return p.LevelPassedMedium
	case DifficultyHard:
		return p.LevelPassedHard
	}
	return 0
}

// UnlockedAchievement records when an achievement was earned.
type UnlockedAchievement struct {
	ID         string    `json:"id"`
	UnlockedAt time.Time `json:"unlocked_at"`
}

// User is a player account with its progression state.
// Version guards optimistic-concurrency writes: every committed state
// transition bumps it by one.
type User struct {
	ID         string    `json:"id"`
	Username   string    `json:"username"`
	ReferredBy string    `json:"referred_by,omitempty"` // referral code given at signup, stored verbatim
	CreatedAt  time.Time `json:"created_at"`
	Version    int64     `json:"-"`

	Progression
}
