package progression_test

import (
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/app/engagement"
	"github.com/puzzlepup/puzzlepup/internal/app/progression"
	"github.com/puzzlepup/puzzlepup/internal/app/referral"
	"github.com/puzzlepup/puzzlepup/internal/app/reward"
	"github.com/puzzlepup/puzzlepup/internal/domain"
	"github.com/puzzlepup/puzzlepup/internal/infra/sqlite"
)

func testService(t *testing.T) (*progression.Service, *sqlite.DB) {
	t.Helper()
	db, err := sqlite.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	issuer := reward.NewIssuer(db)
	refs := referral.NewService(db, issuer)
	notify := engagement.NewNotificationService(db, 3)
	svc := progression.NewService(db, issuer, refs, notify, progression.DefaultConfig())
	return svc, db
}

func signup(t *testing.T, svc *progression.Service, username string) string {
	t.Helper()
	resp, err := svc.CreateUser(username, "", time.Now())
	if err != nil {
		t.Fatalf("signup %s: %v", username, err)
	}
	return resp.User.ID
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.Local)
}

// ═══════════════════════════════════════════════════════════════════════════
// Check-in
// ═══════════════════════════════════════════════════════════════════════════

func TestCheckIn_FirstEver(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	resp, err := svc.CompleteCheckIn(id, day(2024, 3, 1))
	if err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if resp.Repeat || resp.Streak != 1 || resp.TotalCheckIns != 1 {
		t.Errorf("expected fresh streak 1 / total 1, got %+v", resp)
	}
}

func TestCheckIn_SameDayIdempotent(t *testing.T) {
	svc, db := testService(t)
	id := signup(t, svc, "dogmom")

	first, err := svc.CompleteCheckIn(id, day(2024, 3, 1))
	if err != nil {
		t.Fatalf("first: %v", err)
	}
	second, err := svc.CompleteCheckIn(id, day(2024, 3, 1).Add(5*time.Hour))
	if err != nil {
		t.Fatalf("second: %v", err)
	}

	if !second.Repeat {
		t.Error("same-day check-in should report repeat")
	}
	if second.Streak != first.Streak || second.TotalCheckIns != first.TotalCheckIns {
		t.Errorf("repeat must return identical state: %+v vs %+v", first, second)
	}
	if second.HintsEarned != 0 {
		t.Errorf("repeat must not earn, got %d", second.HintsEarned)
	}

	u, _ := db.GetUser(id)
	if u.TotalCheckIns != 1 {
		t.Errorf("total check-ins should be 1, got %d", u.TotalCheckIns)
	}
}

func TestCheckIn_SeventhDayMilestone(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	// Six consecutive days ending 2024-03-01.
	start := day(2024, 2, 25)
	for i := 0; i < 6; i++ {
		if _, err := svc.CompleteCheckIn(id, start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
	}

	resp, err := svc.CompleteCheckIn(id, day(2024, 3, 2))
	if err != nil {
		t.Fatalf("seventh day: %v", err)
	}
	if resp.Streak != 7 {
		t.Errorf("expected streak 7, got %d", resp.Streak)
	}
	if resp.HintsEarned != 10 {
		t.Errorf("day-7 milestone should pay 10 hints, got %d", resp.HintsEarned)
	}
	if resp.PuppyAge != 7 {
		t.Errorf("expected puppy age 7, got %d", resp.PuppyAge)
	}
	if math.Abs(resp.PuppySize-1.98) > 1e-9 {
		t.Errorf("expected puppy size 1.98, got %v", resp.PuppySize)
	}
	if resp.Milestone == nil || resp.Milestone.Day != 7 {
		t.Errorf("expected day-7 milestone, got %+v", resp.Milestone)
	}
}

func TestCheckIn_MilestoneNotDoublePaid(t *testing.T) {
	svc, db := testService(t)
	id := signup(t, svc, "dogmom")

	start := day(2024, 2, 25)
	for i := 0; i < 7; i++ {
		if _, err := svc.CompleteCheckIn(id, start.AddDate(0, 0, i)); err != nil {
			t.Fatalf("day %d: %v", i, err)
		}
	}
	// Repeat on the milestone day.
	resp, err := svc.CompleteCheckIn(id, start.AddDate(0, 0, 6).Add(3*time.Hour))
	if err != nil {
		t.Fatalf("repeat: %v", err)
	}
	if resp.HintsEarned != 0 {
		t.Errorf("repeat on milestone day must not pay again, got %d", resp.HintsEarned)
	}

	balance, _ := db.Balance(db.Q(), id)
	if balance.Hints != 10 {
		t.Errorf("expected exactly 10 hints, got %d", balance.Hints)
	}
}

func TestCheckIn_ConcurrentSameDay(t *testing.T) {
	svc, db := testService(t)
	id := signup(t, svc, "dogmom")
	now := day(2024, 3, 1)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.CompleteCheckIn(id, now); err != nil {
				t.Errorf("checkin: %v", err)
			}
		}()
	}
	wg.Wait()

	u, _ := db.GetUser(id)
	if u.TotalCheckIns != 1 {
		t.Errorf("racing same-day check-ins must count once, got %d", u.TotalCheckIns)
	}
	if u.CheckInStreak != 1 {
		t.Errorf("expected streak 1, got %d", u.CheckInStreak)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Level clears and the weekly challenge
// ═══════════════════════════════════════════════════════════════════════════

func TestLevelClear_CountsBothLedgers(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")
	now := day(2024, 3, 4)

	var resp *progression.LevelClearResponse
	var err error
	for i := 0; i < 3; i++ {
		resp, err = svc.RecordLevelClear(id, domain.DifficultyEasy, now)
		if err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
	}
	if resp.LevelEasy != 3 {
		t.Errorf("expected 3 easy clears, got %d", resp.LevelEasy)
	}
	if resp.Weekly.Easy != 3 || resp.Weekly.Total() != 3 {
		t.Errorf("weekly counter should track clears, got %+v", resp.Weekly)
	}
}

func TestWeeklyClaim_FullFlow(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")
	now := day(2024, 3, 4)

	// Below target.
	if _, err := svc.ClaimWeeklyChallenge(id, now); !errors.Is(err, domain.ErrInsufficientProgress) {
		t.Fatalf("expected ErrInsufficientProgress, got %v", err)
	}

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordLevelClear(id, domain.DifficultyMedium, now); err != nil {
			t.Fatalf("clear %d: %v", i, err)
		}
	}

	resp, err := svc.ClaimWeeklyChallenge(id, now)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if resp.HintsEarned != 5 {
		t.Errorf("weekly claim should pay 5 hints, got %d", resp.HintsEarned)
	}

	// Second claim in the same week.
	if _, err := svc.ClaimWeeklyChallenge(id, now.Add(time.Hour)); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestWeeklyClaim_NextWeekStartsFresh(t *testing.T) {
	svc, db := testService(t)
	id := signup(t, svc, "dogmom")
	monday := day(2024, 3, 4)

	for i := 0; i < 5; i++ {
		if _, err := svc.RecordLevelClear(id, domain.DifficultyEasy, monday); err != nil {
			t.Fatalf("clear: %v", err)
		}
	}
	if _, err := svc.ClaimWeeklyChallenge(id, monday); err != nil {
		t.Fatalf("claim: %v", err)
	}

	// The following week: progress is gone and so is the claim flag.
	nextWeek := monday.AddDate(0, 0, 7)
	w, err := svc.Weekly(id, nextWeek)
	if err != nil {
		t.Fatalf("weekly: %v", err)
	}
	if w.Total() != 0 || w.Claimed {
		t.Errorf("new week should start clean, got %+v", w)
	}

	// A failing claim still persists the rollover.
	if _, err := svc.ClaimWeeklyChallenge(id, nextWeek); !errors.Is(err, domain.ErrInsufficientProgress) {
		t.Fatalf("expected ErrInsufficientProgress, got %v", err)
	}
	u, _ := db.GetUser(id)
	if u.WeeklyChallengeWeek != "2024-W11" {
		t.Errorf("rollover should persist on a failing claim, got %q", u.WeeklyChallengeWeek)
	}
	if u.WeeklyChallengeClaimed {
		t.Error("claim flag should reset with the new week")
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Daily run
// ═══════════════════════════════════════════════════════════════════════════

func TestDailyRun_MidTierScore(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	resp, err := svc.CompleteDailyRun(id, 750, day(2024, 3, 1))
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if resp.HintsEarned != 2 {
		t.Errorf("score 750 should pay 2 hints, got %d", resp.HintsEarned)
	}
	if resp.HighScore != 750 {
		t.Errorf("expected high score 750, got %d", resp.HighScore)
	}
}

func TestDailyRun_SecondRunSameDayNotCredited(t *testing.T) {
	svc, db := testService(t)
	id := signup(t, svc, "dogmom")
	now := day(2024, 3, 1)

	if _, err := svc.CompleteDailyRun(id, 300, now); err != nil {
		t.Fatalf("first run: %v", err)
	}
	resp, err := svc.CompleteDailyRun(id, 2000, now.Add(2*time.Hour))
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if !resp.Repeat || resp.HintsEarned != 0 {
		t.Errorf("second run should be an uncredited repeat, got %+v", resp)
	}

	balance, _ := db.Balance(db.Q(), id)
	if balance.Hints != 1 {
		t.Errorf("only the first run pays, got %d hints", balance.Hints)
	}
}

func TestDailyRun_ZeroScoreBurnsTheDay(t *testing.T) {
	svc, db := testService(t)
	id := signup(t, svc, "dogmom")
	now := day(2024, 3, 1)

	resp, err := svc.CompleteDailyRun(id, 0, now)
	if err != nil {
		t.Fatalf("zero run: %v", err)
	}
	if resp.Repeat || resp.HintsEarned != 0 {
		t.Errorf("zero score earns nothing, got %+v", resp)
	}

	u, _ := db.GetUser(id)
	if u.LastDailyPuzzleDay != "2024-03-01" {
		t.Errorf("day marker should be set even at score 0, got %q", u.LastDailyPuzzleDay)
	}

	// A great run later the same day is already burned.
	resp, _ = svc.CompleteDailyRun(id, 5000, now.Add(time.Hour))
	if !resp.Repeat {
		t.Error("the day is spent after a zero run")
	}
}

func TestDailyRun_NegativeScoreRejected(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	if _, err := svc.CompleteDailyRun(id, -5, day(2024, 3, 1)); !errors.Is(err, domain.ErrInvalidScore) {
		t.Errorf("expected ErrInvalidScore, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Comeback bonus
// ═══════════════════════════════════════════════════════════════════════════

func TestComeback_ClaimOnceAfterAbsence(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	// Establish activity, then vanish for ten days.
	if _, err := svc.CompleteCheckIn(id, day(2024, 3, 1)); err != nil {
		t.Fatalf("checkin: %v", err)
	}
	later := day(2024, 3, 11)

	resp, err := svc.ClaimComebackBonus(id, later)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if resp.HintsEarned != 15 {
		t.Errorf("comeback should pay 15 hints, got %d", resp.HintsEarned)
	}

	if _, err := svc.ClaimComebackBonus(id, later.AddDate(0, 1, 0)); !errors.Is(err, domain.ErrAlreadyClaimed) {
		t.Errorf("expected ErrAlreadyClaimed, got %v", err)
	}
}

func TestComeback_ActivePlayerRejected(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	if _, err := svc.CompleteCheckIn(id, day(2024, 3, 1)); err != nil {
		t.Fatalf("checkin: %v", err)
	}
	if _, err := svc.ClaimComebackBonus(id, day(2024, 3, 4)); !errors.Is(err, domain.ErrNotEligible) {
		t.Errorf("expected ErrNotEligible, got %v", err)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Achievements
// ═══════════════════════════════════════════════════════════════════════════

func TestAchievements_UnlockAndPersist(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")
	now := day(2024, 3, 4)

	if _, err := svc.RecordLevelClear(id, domain.DifficultyEasy, now); err != nil {
		t.Fatalf("clear: %v", err)
	}

	newly, err := svc.CheckAchievements(id, now)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(newly) != 1 || newly[0] != "first_level" {
		t.Errorf("expected first_level, got %v", newly)
	}

	// Re-check: monotonic, nothing new.
	newly, err = svc.CheckAchievements(id, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("recheck: %v", err)
	}
	if len(newly) != 0 {
		t.Errorf("second evaluation should unlock nothing, got %v", newly)
	}

	unlocked, err := svc.Achievements(id)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(unlocked) != 1 || unlocked[0].ID != "first_level" {
		t.Errorf("expected persisted first_level, got %+v", unlocked)
	}
}

func TestAchievements_ReferralCounts(t *testing.T) {
	svc, _ := testService(t)
	signup(t, svc, "dogmom")

	resp, err := svc.CreateUser("friend", "dogmom2024", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("referred signup: %v", err)
	}
	if resp.ReferrerID == "" {
		t.Fatal("expected a resolved referrer")
	}

	referrer, err := svc.GetUser(resp.ReferrerID)
	if err != nil {
		t.Fatalf("get referrer: %v", err)
	}
	newly, err := svc.CheckAchievements(referrer.ID, day(2024, 3, 1))
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(newly) != 1 || newly[0] != "referral_1" {
		t.Errorf("expected referral_1, got %v", newly)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Signup
// ═══════════════════════════════════════════════════════════════════════════

func TestSignup_Defaults(t *testing.T) {
	svc, _ := testService(t)

	resp, err := svc.CreateUser("dogmom", "", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	u := resp.User
	if u.Hints != 0 || u.Points != 0 {
		t.Errorf("unreferred signup starts empty, got %d/%d", u.Hints, u.Points)
	}
	if u.PuppySize != 1.0 {
		t.Errorf("expected puppy size 1.0, got %v", u.PuppySize)
	}
}

func TestSignup_EmptyUsername(t *testing.T) {
	svc, _ := testService(t)
	if _, err := svc.CreateUser("   ", "", time.Now()); !errors.Is(err, domain.ErrEmptyUsername) {
		t.Errorf("expected ErrEmptyUsername, got %v", err)
	}
}

func TestSignup_DuplicateUsername(t *testing.T) {
	svc, _ := testService(t)
	signup(t, svc, "dogmom")
	if _, err := svc.CreateUser("DOGMOM", "", time.Now()); !errors.Is(err, domain.ErrUsernameTaken) {
		t.Errorf("expected ErrUsernameTaken, got %v", err)
	}
}

func TestSignup_BadReferralCodeFailsLoudly(t *testing.T) {
	svc, db := testService(t)

	if _, err := svc.CreateUser("friend", "nonexistentuser2024", time.Now()); !errors.Is(err, domain.ErrInvalidReferralCode) {
		t.Fatalf("expected ErrInvalidReferralCode, got %v", err)
	}
	// Nothing was created.
	u, err := db.FindUserByUsername("friend")
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if u != nil {
		t.Error("failed signup must not create the account")
	}
}

func TestSignup_ReferredBonuses(t *testing.T) {
	svc, db := testService(t)
	refID := signup(t, svc, "dogmom")

	resp, err := svc.CreateUser("friend", "dogmom2024", day(2024, 3, 1))
	if err != nil {
		t.Fatalf("signup: %v", err)
	}
	if resp.User.Hints != 25 {
		t.Errorf("referred signup should seed 25 hints, got %d", resp.User.Hints)
	}

	refBalance, _ := db.Balance(db.Q(), refID)
	if refBalance.Hints != 25 {
		t.Errorf("referrer should earn 25 hints, got %d", refBalance.Hints)
	}
}

// ═══════════════════════════════════════════════════════════════════════════
// Purchases and reward history
// ═══════════════════════════════════════════════════════════════════════════

func TestPurchase_CreditAndHistory(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	resp, err := svc.RecordPurchase(id, "starter", 100, "pay-1", time.Now())
	if err != nil {
		t.Fatalf("purchase: %v", err)
	}
	if !resp.Applied || resp.Balance.Hints != 100 {
		t.Errorf("expected credited purchase with 100 hints, got %+v", resp)
	}

	history, err := svc.RewardHistory(id, 0)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(history) != 1 || history[0].Source != "purchase:starter" {
		t.Errorf("expected one purchase fact, got %+v", history)
	}
}

func TestPurchase_InvalidAmount(t *testing.T) {
	svc, _ := testService(t)
	id := signup(t, svc, "dogmom")

	if _, err := svc.RecordPurchase(id, "starter", 0, "", time.Now()); err == nil {
		t.Error("zero-hint purchase should be rejected")
	}
}
