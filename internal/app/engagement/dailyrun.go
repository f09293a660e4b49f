package engagement

import (
	"time"

	"github.com/puzzlepup/puzzlepup/internal/app/calendar"
	"github.com/puzzlepup/puzzlepup/internal/domain"
)

// comebackAbsence is how long a player must have been away before the
// one-time comeback bonus becomes claimable.
const comebackAbsence = 7 * 24 * time.Hour

// DailyRunResult is the outcome of evaluating a daily puppy-run submission.
type DailyRunResult struct {
	Repeat    bool  // already ran today — previous result stands
	Hints     int64 // reward for this run (0 on repeat or score 0)
	HighScore int
}

// EvaluateDailyRun decides the reward and high score for a run completed at
// now. Only one run per day is credited (unless allowRepeat, a test-mode
// override). The day marker is set even for a score of 0, so a zero run
// still blocks re-crediting later the same day.
func EvaluateDailyRun(p domain.Progression, score int, now time.Time, allowRepeat bool) (DailyRunResult, error) {
	if score < 0 {
		return DailyRunResult{}, domain.ErrInvalidScore
	}

	today := calendar.DayKey(now)
	if p.LastDailyPuzzleDay == today && !allowRepeat {
		return DailyRunResult{Repeat: true, HighScore: p.PuppyRunHighScore}, nil
	}

	res := DailyRunResult{
		Hints:     DailyRunHints(score),
		HighScore: p.PuppyRunHighScore,
	}
	if score > res.HighScore {
		res.HighScore = score
	}
	return res, nil
}

// ComebackEligible checks the one-shot comeback bonus gate: claimable only
// when the player has been away at least seven days and has never claimed it.
func ComebackEligible(p domain.Progression, now time.Time) error {
	if p.ComebackBonusClaimed {
		return domain.ErrAlreadyClaimed
	}
	if p.LastPlayedAt.IsZero() || now.Sub(p.LastPlayedAt) < comebackAbsence {
		return domain.ErrNotEligible
	}
	return nil
}
