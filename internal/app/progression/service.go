// Package progression orchestrates the engagement engine: it owns the "load
// state, compute next state, write state + ledger fact" cycle for every
// triggering event (check-in, level clear, weekly claim, daily run, comeback,
// signup, purchase).
//
// Writes are optimistic: the user's version column guards each conditional
// update, and a stale version retries up to the configured budget before
// surfacing domain.ErrConflict. The reward issuer makes the state write, the
// ledger fact and the balance delta one atomic unit.
package progression

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/puzzlepup/puzzlepup/internal/app/calendar"
	"github.com/puzzlepup/puzzlepup/internal/app/engagement"
	"github.com/puzzlepup/puzzlepup/internal/app/referral"
	"github.com/puzzlepup/puzzlepup/internal/app/reward"
	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/infra/metrics"
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

// Config holds the progression tunables.
type Config struct {
	WeeklyTarget   int           // clears needed to claim the weekly challenge
	ComebackHints  int64         // one-time comeback bonus
	RetryAttempts  int           // optimistic-concurrency retry budget
	DailyRunRepeat bool          // test-mode override: credit multiple runs per day
	PurchaseWindow time.Duration // retry window for purchases without a payment ID
}

// DefaultConfig returns the production progression settings.
func DefaultConfig() Config {
	return Config{
		WeeklyTarget:   5,
		ComebackHints:  15,
		RetryAttempts:  3,
		PurchaseWindow: 10 * time.Second,
	}
}

// Service is the engagement write path.
type Service struct {
	db        *sqlite.DB
	issuer    *reward.Issuer
	referrals *referral.Service
	notify    *engagement.NotificationService // optional
	cfg       Config
}

// NewService creates a progression service.
func NewService(db *sqlite.DB, issuer *reward.Issuer, referrals *referral.Service,
	notify *engagement.NotificationService, cfg Config) *Service {
	if cfg.RetryAttempts <= 0 {
		cfg.RetryAttempts = 3
	}
	return &Service{db: db, issuer: issuer, referrals: referrals, notify: notify, cfg: cfg}
}

// ─── Check-in ───────────────────────────────────────────────────────────────

// CheckInResponse is the outcome of a check-in event.
type CheckInResponse struct {
	Repeat        bool                  `json:"repeat"`
	Streak        int                   `json:"streak"`
	TotalCheckIns int                   `json:"total_checkins"`
	PuppyAge      int                   `json:"puppy_age"`
	PuppySize     float64               `json:"puppy_size"`
	UsedFreeze    bool                  `json:"used_freeze"`
	Milestone     *engagement.Milestone `json:"milestone,omitempty"`
	HintsEarned   int64                 `json:"hints_earned"`
	PointsEarned  int64                 `json:"points_earned"`
	Balance       domain.Balance        `json:"balance"`
}

// CompleteCheckIn advances the streak for a check-in at now. Calling it again
// within the same day-key returns the already-computed state with no reward —
// idempotence is part of the contract, not an error.
func (s *Service) CompleteCheckIn(userID string, now time.Time) (*CheckInResponse, error) {
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		u, err := s.db.GetUser(userID)
		if err != nil {
			return nil, err
		}

		res := engagement.AdvanceStreak(u.Progression, now)
		if res.Repeat {
			balance := domain.Balance{Hints: u.Hints, Points: u.Points}
			return &CheckInResponse{
				Repeat:        true,
				Streak:        res.Streak,
				TotalCheckIns: u.TotalCheckIns,
				PuppyAge:      res.PuppyAge,
				PuppySize:     res.PuppySize,
				Balance:       balance,
			}, nil
		}

		var grants []domain.RewardGrant
		if m := res.Milestone; m != nil {
			key := fmt.Sprintf("%s:%s:%s", userID, domain.SourceCheckIn, calendar.DayKey(now))
			grants = append(grants, reward.NewGrant(userID, m.Kind, m.Amount, domain.SourceCheckIn, key))
		}

		out, err := s.issuer.Apply(userID, grants, func(tx *sql.Tx) (bool, error) {
			return s.db.ApplyCheckIn(tx, userID, u.Version,
				calendar.DayKey(now), res.Streak, res.PuppyAge, res.PuppySize, res.FreezeWeek, now)
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.CheckIns.Inc()
		if res.Milestone != nil && s.notify != nil {
			s.notify.NotifyMilestone(userID, *res.Milestone, now)
		}

		return &CheckInResponse{
			Streak:        res.Streak,
			TotalCheckIns: u.TotalCheckIns + 1,
			PuppyAge:      res.PuppyAge,
			PuppySize:     res.PuppySize,
			UsedFreeze:    res.UsedFreeze,
			Milestone:     res.Milestone,
			HintsEarned:   out.Earned(domain.RewardHints),
			PointsEarned:  out.Earned(domain.RewardPoints),
			Balance:       out.Balance,
		}, nil
	}
	return nil, domain.ErrConflict
}

// ─── Level clear ────────────────────────────────────────────────────────────

// LevelClearResponse reports the counters after a level-clear event.
type LevelClearResponse struct {
	LevelEasy   int                       `json:"level_easy"`
	LevelMedium int                       `json:"level_medium"`
	LevelHard   int                       `json:"level_hard"`
	Weekly      engagement.WeeklyProgress `json:"weekly"`
}

// RecordLevelClear counts a cleared level toward the monotonic difficulty
// counter and the weekly challenge. Each clear is a distinct event — this is
// deliberately not idempotent.
func (s *Service) RecordLevelClear(userID string, diff domain.Difficulty, now time.Time) (*LevelClearResponse, error) {
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		u, err := s.db.GetUser(userID)
		if err != nil {
			return nil, err
		}

		w := engagement.RecordClear(u.Progression, diff, now)

		_, err = s.issuer.Apply(userID, nil, func(tx *sql.Tx) (bool, error) {
			return s.db.ApplyLevelClear(tx, userID, u.Version, diff, weeklyRow(w), now)
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		metrics.LevelClears.WithLabelValues(string(diff)).Inc()

		resp := &LevelClearResponse{
			LevelEasy:   u.LevelPassedEasy,
			LevelMedium: u.LevelPassedMedium,
			LevelHard:   u.LevelPassedHard,
			Weekly:      w,
		}
		switch diff {
		case domain.DifficultyEasy:
			resp.LevelEasy++
		case domain.DifficultyMedium:
			resp.LevelMedium++
		case domain.DifficultyHard:
			resp.LevelHard++
		}
		return resp, nil
	}
	return nil, domain.ErrConflict
}

// ─── Weekly challenge claim ─────────────────────────────────────────────────

// ClaimResponse is the outcome of a successful claim operation.
type ClaimResponse struct {
	HintsEarned int64          `json:"hints_earned"`
	Balance     domain.Balance `json:"balance"`
}

// ClaimWeeklyChallenge claims the weekly reward once total progress reaches
// the target. A week rollover discovered during the claim is persisted even
// though the claim itself fails with ErrInsufficientProgress.
func (s *Service) ClaimWeeklyChallenge(userID string, now time.Time) (*ClaimResponse, error) {
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		u, err := s.db.GetUser(userID)
		if err != nil {
			return nil, err
		}

		w, claimErr := engagement.ClaimWeekly(u.Progression, now, s.cfg.WeeklyTarget)
		if claimErr != nil {
			if u.WeeklyChallengeWeek != w.Week {
				// Lazy rollover observed on a failing claim still resets state.
				_, err = s.issuer.Apply(userID, nil, func(tx *sql.Tx) (bool, error) {
					return s.db.ApplyWeekly(tx, userID, u.Version, weeklyRow(w))
				})
				if errors.Is(err, domain.ErrConflict) {
					continue
				}
				if err != nil {
					return nil, err
				}
			}
			return nil, claimErr
		}

		key := fmt.Sprintf("%s:%s:%s", userID, domain.SourceWeekly, w.Week)
		grant := reward.NewGrant(userID, domain.RewardHints, engagement.WeeklyChallengeHints,
			domain.SourceWeekly, key)

		out, err := s.issuer.Apply(userID, []domain.RewardGrant{grant}, func(tx *sql.Tx) (bool, error) {
			return s.db.ApplyWeekly(tx, userID, u.Version, weeklyRow(w))
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &ClaimResponse{
			HintsEarned: out.Earned(domain.RewardHints),
			Balance:     out.Balance,
		}, nil
	}
	return nil, domain.ErrConflict
}

// ─── Daily run ──────────────────────────────────────────────────────────────

// DailyRunResponse is the outcome of a daily puppy-run submission.
type DailyRunResponse struct {
	Repeat      bool           `json:"repeat"`
	HintsEarned int64          `json:"hints_earned"`
	HighScore   int            `json:"high_score"`
	Balance     domain.Balance `json:"balance"`
}

// CompleteDailyRun credits a daily-run score. Only the first run of a day is
// credited; the day marker is written even at score 0 so a later run the
// same day cannot earn.
func (s *Service) CompleteDailyRun(userID string, score int, now time.Time) (*DailyRunResponse, error) {
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		u, err := s.db.GetUser(userID)
		if err != nil {
			return nil, err
		}

		res, err := engagement.EvaluateDailyRun(u.Progression, score, now, s.cfg.DailyRunRepeat)
		if err != nil {
			return nil, err
		}
		if res.Repeat {
			return &DailyRunResponse{
				Repeat:    true,
				HighScore: res.HighScore,
				Balance:   domain.Balance{Hints: u.Hints, Points: u.Points},
			}, nil
		}

		var grants []domain.RewardGrant
		if res.Hints > 0 {
			key := fmt.Sprintf("%s:%s:%s", userID, domain.SourceDailyRun, calendar.DayKey(now))
			if s.cfg.DailyRunRepeat {
				// Test mode credits every run; a per-day key would swallow them.
				key = fmt.Sprintf("%s:%s:%s", userID, domain.SourceDailyRun, uuid.NewString())
			}
			grants = append(grants, reward.NewGrant(userID, domain.RewardHints, res.Hints,
				domain.SourceDailyRun, key))
		}

		out, err := s.issuer.Apply(userID, grants, func(tx *sql.Tx) (bool, error) {
			return s.db.ApplyDailyRun(tx, userID, u.Version, calendar.DayKey(now), res.HighScore, now)
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &DailyRunResponse{
			HintsEarned: out.Earned(domain.RewardHints),
			HighScore:   res.HighScore,
			Balance:     out.Balance,
		}, nil
	}
	return nil, domain.ErrConflict
}

// ─── Comeback bonus ─────────────────────────────────────────────────────────

// ClaimComebackBonus claims the one-time bonus for returning after seven or
// more days away. The claimed flag transitions false→true exactly once.
func (s *Service) ClaimComebackBonus(userID string, now time.Time) (*ClaimResponse, error) {
	for attempt := 0; attempt < s.cfg.RetryAttempts; attempt++ {
		u, err := s.db.GetUser(userID)
		if err != nil {
			return nil, err
		}

		if err := engagement.ComebackEligible(u.Progression, now); err != nil {
			return nil, err
		}

		key := fmt.Sprintf("%s:%s", userID, domain.SourceComeback)
		grant := reward.NewGrant(userID, domain.RewardHints, s.cfg.ComebackHints,
			domain.SourceComeback, key)

		out, err := s.issuer.Apply(userID, []domain.RewardGrant{grant}, func(tx *sql.Tx) (bool, error) {
			return s.db.ApplyComeback(tx, userID, u.Version)
		})
		if errors.Is(err, domain.ErrConflict) {
			continue
		}
		if err != nil {
			return nil, err
		}

		return &ClaimResponse{
			HintsEarned: out.Earned(domain.RewardHints),
			Balance:     out.Balance,
		}, nil
	}
	return nil, domain.ErrConflict
}

// ─── Achievements ───────────────────────────────────────────────────────────

// CheckAchievements recomputes achievement unlocks from the user's current
// counters. Idempotent and monotonic: already-unlocked ids are skipped and
// never revoked.
func (s *Service) CheckAchievements(userID string, now time.Time) ([]string, error) {
	u, err := s.db.GetUser(userID)
	if err != nil {
		return nil, err
	}

	referred, err := s.referrals.ReferredCount(u.Username)
	if err != nil {
		return nil, err
	}

	existing, err := s.db.AchievementSet(s.db.Q(), userID)
	if err != nil {
		return nil, err
	}

	newly := engagement.Evaluate(engagement.CountersFor(u.Progression, referred), existing)
	for _, id := range newly {
		isNew, err := s.db.UnlockAchievement(s.db.Q(), userID, id, now)
		if err != nil {
			return nil, err
		}
		if !isNew {
			continue // raced with another evaluator — still unlocked, not ours
		}
		metrics.AchievementsUnlocked.Inc()
		if s.notify != nil {
			s.notify.NotifyAchievement(userID, id, now)
		}
	}
	return newly, nil
}

// ─── Signup ─────────────────────────────────────────────────────────────────

// SignupResponse reports the created account and, when a referral code was
// given, the resolved referrer.
type SignupResponse struct {
	User       *domain.User `json:"user"`
	ReferrerID string       `json:"referrer_id,omitempty"`
}

// CreateUser creates an account with default progression state. A referral
// code, when present, must resolve — signup fails with ErrInvalidReferralCode
// rather than silently dropping the referral. The referred user's 25-hint
// baseline is seeded directly; the referrer is credited through the issuer.
func (s *Service) CreateUser(username, referralCode string, now time.Time) (*SignupResponse, error) {
	username = strings.TrimSpace(username)
	if username == "" {
		return nil, domain.ErrEmptyUsername
	}

	var referrer *domain.User
	if referralCode != "" {
		var err error
		referrer, err = s.referrals.ResolveCode(referralCode)
		if err != nil {
			return nil, err
		}
	}

	u := domain.User{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		Progression: domain.Progression{
			PuppySize: 1.0,
			Hints:     referral.SignupBaseline(referrer != nil),
		},
	}
	if referrer != nil {
		u.ReferredBy = referralCode // stored verbatim, unvalidated beyond resolution
	}

	if err := s.db.CreateUser(u); err != nil {
		return nil, err
	}

	resp := &SignupResponse{User: &u}
	if referrer != nil {
		if err := s.referrals.CreditSignup(&u, referrer); err != nil {
			return nil, err
		}
		resp.ReferrerID = referrer.ID
	}
	return resp, nil
}

// ─── Purchases ──────────────────────────────────────────────────────────────

// PurchaseResponse reports whether a purchase was credited or recognized as
// a retry.
type PurchaseResponse struct {
	Applied bool           `json:"applied"`
	Balance domain.Balance `json:"balance"`
}

// RecordPurchase credits a purchased hint pack. paymentID, when supplied, is
// the idempotency key; otherwise an identical purchase observed within the
// configured trailing window counts as a retry and is not re-credited.
func (s *Service) RecordPurchase(userID, pack string, hints int64, paymentID string, now time.Time) (*PurchaseResponse, error) {
	if hints <= 0 {
		return nil, fmt.Errorf("pack %q: hint amount must be positive, got %d", pack, hints)
	}
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, err
	}

	applied, balance, err := s.issuer.IssuePurchase(userID, pack, domain.RewardHints, hints,
		paymentID, s.cfg.PurchaseWindow, now)
	if err != nil {
		return nil, err
	}
	return &PurchaseResponse{Applied: applied, Balance: balance}, nil
}

// ─── Reads ──────────────────────────────────────────────────────────────────

// GetUser returns the current account snapshot.
func (s *Service) GetUser(userID string) (*domain.User, error) {
	return s.db.GetUser(userID)
}

// Weekly returns the weekly progress as of now (lazy rollover applied to the
// view; persisted on the next write).
func (s *Service) Weekly(userID string, now time.Time) (engagement.WeeklyProgress, error) {
	u, err := s.db.GetUser(userID)
	if err != nil {
		return engagement.WeeklyProgress{}, err
	}
	return engagement.CurrentWeekly(u.Progression, now), nil
}

// Achievements lists the user's unlocked achievements.
func (s *Service) Achievements(userID string) ([]domain.UnlockedAchievement, error) {
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, err
	}
	return s.db.ListAchievements(s.db.Q(), userID)
}

// RewardHistory lists the user's most recent ledger facts.
func (s *Service) RewardHistory(userID string, limit int) ([]domain.RewardGrant, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if _, err := s.db.GetUser(userID); err != nil {
		return nil, err
	}
	return s.db.GrantsForUser(s.db.Q(), userID, limit)
}

func weeklyRow(w engagement.WeeklyProgress) sqlite.WeeklyRow {
	return sqlite.WeeklyRow{
		Week:    w.Week,
		Easy:    w.Easy,
		Medium:  w.Medium,
		Hard:    w.Hard,
		Claimed: w.Claimed,
	}
}
