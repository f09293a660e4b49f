package engagement

import (
	"time"

	"github.com/puzzlepup/puzzlepup/internal/app/calendar"
	"github.com/puzzlepup/puzzlepup/internal/domain"
)

// WeeklyProgress is the weekly-challenge slice of the progression state.
// The week rolls over lazily: whenever the stored week-key differs from the
// current ISO week, counters reset to zero and the claim flag clears. No
// scheduler is involved.
type WeeklyProgress struct {
	Week    string `json:"week"`
	Easy    int    `json:"easy"`
	Medium  int    `json:"medium"`
	Hard    int    `json:"hard"`
	Claimed bool   `json:"claimed"`
}

// Total is the combined clear count for the week.
func (w WeeklyProgress) Total() int {
	return w.Easy + w.Medium + w.Hard
}

// CurrentWeekly returns the weekly progress as of now, applying the lazy
// rollover if the stored week has passed.
func CurrentWeekly(p domain.Progression, now time.Time) WeeklyProgress {
	week := calendar.ISOWeekKey(now)
	if p.WeeklyChallengeWeek != week {
		return WeeklyProgress{Week: week}
	}
	return WeeklyProgress{
		Week:    p.WeeklyChallengeWeek,
		Easy:    p.WeeklyEasy,
		Medium:  p.WeeklyMedium,
		Hard:    p.WeeklyHard,
		Claimed: p.WeeklyChallengeClaimed,
	}
}

// RecordClear increments the counter for a cleared difficulty. Each clear is
// a distinct event, so unlike check-in this is deliberately not idempotent.
func RecordClear(p domain.Progression, d domain.Difficulty, now time.Time) WeeklyProgress {
	w := CurrentWeekly(p, now)
	switch d {
	case domain.DifficultyEasy:
		w.Easy++
	case domain.DifficultyMedium:
		w.Medium++
	case domain.DifficultyHard:
		w.Hard++
	}
	return w
}

// ClaimWeekly validates a claim attempt against the current week's progress.
// On success the returned progress has Claimed set; the caller persists it
// and grants the reward. Failure returns the rolled-over progress alongside
// a business-rule error so a week change is still persisted.
func ClaimWeekly(p domain.Progression, now time.Time, target int) (WeeklyProgress, error) {
	w := CurrentWeekly(p, now)
	if w.Total() < target {
		return w, domain.ErrInsufficientProgress
	}
	if w.Claimed {
		return w, domain.ErrAlreadyClaimed
	}
	w.Claimed = true
	return w, nil
}
