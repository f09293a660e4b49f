package engagement

import "github.com/puzzlepup/puzzlepup/internal/domain"

// AchievementCounters is the snapshot of monotonic counters fed to
// achievement predicates. Counters never decrease, so evaluation is
// monotonic: an unlocked achievement can never be revoked.
type AchievementCounters struct {
	Easy     int `json:"easy"`
	Medium   int `json:"medium"`
	Hard     int `json:"hard"`
	Streak   int `json:"streak"`
	Referred int `json:"referred"`
}

// CountersFor builds the predicate snapshot from a user's progression plus
// the externally derived referral count.
func CountersFor(p domain.Progression, referred int) AchievementCounters {
	return AchievementCounters{
		Easy:     p.LevelPassedEasy,
		Medium:   p.LevelPassedMedium,
		Hard:     p.LevelPassedHard,
		Streak:   p.CheckInStreak,
		Referred: referred,
	}
}

// AchievementDef defines a single achievement's threshold predicate.
type AchievementDef struct {
	ID        string                         `json:"id"`
	Name      string                         `json:"name"`
	Predicate func(AchievementCounters) bool `json:"-"`
}

// AllAchievements returns the full achievement catalog.
func AllAchievements() []AchievementDef {
	return []AchievementDef{
		{
			ID: "first_level", Name: "First Steps",
			Predicate: func(c AchievementCounters) bool { return c.Easy >= 1 },
		},
		{
			ID: "easy_10", Name: "Warming Up",
			Predicate: func(c AchievementCounters) bool { return c.Easy >= 10 },
		},
		{
			ID: "easy_50", Name: "Easy Rider",
			Predicate: func(c AchievementCounters) bool { return c.Easy >= 50 },
		},
		{
			ID: "medium_10", Name: "Getting Serious",
			Predicate: func(c AchievementCounters) bool { return c.Medium >= 10 },
		},
		{
			ID: "hard_5", Name: "Brain Burner",
			Predicate: func(c AchievementCounters) bool { return c.Hard >= 5 },
		},
		{
			ID: "streak_7", Name: "Week Warrior",
			Predicate: func(c AchievementCounters) bool { return c.Streak >= 7 },
		},
		{
			ID: "streak_30", Name: "Monthly Machine",
			Predicate: func(c AchievementCounters) bool { return c.Streak >= 30 },
		},
		{
			ID: "referral_1", Name: "Ambassador",
			Predicate: func(c AchievementCounters) bool { return c.Referred >= 1 },
		},
	}
}

// Evaluate returns the achievements newly crossed by the given counters.
// Already-unlocked ids are skipped; the caller merges the result into the
// stored set (union — existing ids are never removed).
func Evaluate(c AchievementCounters, existing map[string]bool) []string {
	var unlocked []string
	for _, def := range AllAchievements() {
		if existing[def.ID] {
			continue
		}
		if def.Predicate(c) {
			unlocked = append(unlocked, def.ID)
		}
	}
	return unlocked
}

// AchievementName returns the display name for an achievement id, or the id
// itself when unknown.
func AchievementName(id string) string {
	for _, def := range AllAchievements() {
		if def.ID == id {
			return def.Name
		}
	}
	return id
}
