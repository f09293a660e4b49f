// Package engagement implements the PuzzlePup engagement engine:
// check-in streaks, weekly challenges, achievements, daily runs and the
// comeback bonus. Everything in this package is a pure transition function
// over a Progression snapshot — persistence and reward crediting live in the
// progression service and the reward issuer.
package engagement

import (
	"time"

	"github.com/puzzlepup/puzzlepup/internal/app/calendar"
	"github.com/puzzlepup/puzzlepup/internal/domain"
)

// Puppy growth is a pure function of the streak: the puppy ages one step per
// streak day up to 7, and its render size scales linearly with age.
const (
	maxPuppyAge     = 7
	puppySizeBase   = 1.0
	puppySizePerAge = 0.14
)

// CheckInResult is the outcome of advancing the streak state machine by one
// check-in event.
type CheckInResult struct {
	Repeat     bool // same day-key as the last check-in — state unchanged
	Streak     int
	PuppyAge   int
	PuppySize  float64
	UsedFreeze bool
	FreezeWeek string // new StreakFreezeWeek value (unchanged unless a freeze fired)
	Milestone  *Milestone
}

// AdvanceStreak decides the next streak state for a check-in at now.
//
// Transitions, driven solely by the whole-day gap since the last check-in:
//   - same day-key: repeat call, nothing changes
//   - gap 1: streak extends
//   - gap 2: streak extends iff the weekly freeze is still available,
//     consuming it; otherwise reset to 1
//   - no history or gap > 2: reset to 1
func AdvanceStreak(p domain.Progression, now time.Time) CheckInResult {
	today := calendar.DayKey(now)
	if p.LastCheckInDay == today {
		return CheckInResult{
			Repeat:     true,
			Streak:     p.CheckInStreak,
			PuppyAge:   p.PuppyAge,
			PuppySize:  p.PuppySize,
			FreezeWeek: p.StreakFreezeWeek,
		}
	}

	res := CheckInResult{FreezeWeek: p.StreakFreezeWeek}

	gap := -1 // no prior check-in
	if p.LastCheckInDay != "" {
		if last, err := calendar.ParseDayKey(p.LastCheckInDay); err == nil {
			gap = calendar.DayDifference(now, last)
		}
	}

	switch {
	case gap == 1:
		res.Streak = p.CheckInStreak + 1
	case gap == 2:
		week := calendar.ISOWeekKey(now)
		if p.StreakFreezeWeek != week {
			// Freeze unused this ISO week — spend it and keep the streak.
			res.Streak = p.CheckInStreak + 1
			res.UsedFreeze = true
			res.FreezeWeek = week
		} else {
			res.Streak = 1
		}
	default:
		// No history, unparseable history, or a gap of 3+ days.
		res.Streak = 1
	}

	res.PuppyAge = res.Streak
	if res.PuppyAge > maxPuppyAge {
		res.PuppyAge = maxPuppyAge
	}
	res.PuppySize = puppySizeBase + float64(res.PuppyAge)*puppySizePerAge

	// Only the exact milestone day fires a reward. A user who lands on
	// streak 8 without ever being at exactly 7 gets nothing.
	res.Milestone = StreakMilestone(res.Streak)

	return res
}
