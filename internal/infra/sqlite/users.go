package sqlite

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/domain"
)

const userColumns = `id, username, referred_by, created_at, version,
	last_checkin_day, checkin_streak, total_checkins, streak_freeze_week,
	puppy_age, puppy_size,
	weekly_week, weekly_easy, weekly_medium, weekly_hard, weekly_claimed,
	last_daily_day, run_high_score, last_played_at, comeback_claimed,
	level_easy, level_medium, level_hard, hints, points`

// CreateUser inserts a new account with its initial progression state.
func (d *DB) CreateUser(u domain.User) error {
	existing, err := d.FindUserByUsername(u.Username)
	if err != nil {
		return err
	}
	if existing != nil {
		return domain.ErrUsernameTaken
	}

	_, err = d.db.Exec(
		`INSERT INTO users (id, username, referred_by, created_at, version,
			puppy_size, last_played_at, hints, points)
		 VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)`,
		u.ID, u.Username, u.ReferredBy, u.CreatedAt.Unix(),
		u.PuppySize, nullableUnix(u.LastPlayedAt), u.Hints, u.Points,
	)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser retrieves a user by ID, including the version for conditional
// writes. Returns domain.ErrUserNotFound when the row is missing.
func (d *DB) GetUser(id string) (*domain.User, error) {
	row := d.db.QueryRow(`SELECT `+userColumns+` FROM users WHERE id = ?`, id)
	u, err := scanUser(row)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

// FindUserByUsername looks a user up case-insensitively.
// Returns (nil, nil) when no user matches.
func (d *DB) FindUserByUsername(name string) (*domain.User, error) {
	row := d.db.QueryRow(
		`SELECT `+userColumns+` FROM users WHERE username = ? COLLATE NOCASE`, name,
	)
	return scanUser(row)
}

// ReferredByCandidates returns the referred_by values of users whose code
// starts with the given username followed by four characters. SQLite LIKE is
// case-insensitive for ASCII, so this is a superset; the referral service
// applies the canonical case-sensitive match in Go.
func (d *DB) ReferredByCandidates(username string) ([]string, error) {
	rows, err := d.db.Query(
		`SELECT referred_by FROM users WHERE referred_by LIKE ? ESCAPE '\'`,
		likeEscape(username)+"____",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, err
		}
		codes = append(codes, code)
	}
	return codes, rows.Err()
}

// ─── Conditional state writes ───────────────────────────────────────────────
// Each ApplyXxx is one trigger's persistence step: a single UPDATE guarded on
// (id, version). A false return means another writer committed first — the
// caller reloads and retries.

// ApplyCheckIn persists the outcome of a check-in. total_checkins increments
// in the statement itself, so two same-day racers can never both bump it.
func (d *DB) ApplyCheckIn(q Querier, userID string, version int64,
	day string, streak, puppyAge int, puppySize float64, freezeWeek string, playedAt time.Time) (bool, error) {
	res, err := q.Exec(
		`UPDATE users SET last_checkin_day=?, checkin_streak=?,
			total_checkins=total_checkins+1, puppy_age=?, puppy_size=?,
			streak_freeze_week=?, last_played_at=?, version=version+1
		 WHERE id=? AND version=?`,
		day, streak, puppyAge, puppySize, freezeWeek, playedAt.Unix(), userID, version,
	)
	return oneRow(res, err)
}

// ApplyLevelClear bumps the monotonic clear counter for a difficulty and
// persists the (possibly rolled-over) weekly progress.
func (d *DB) ApplyLevelClear(q Querier, userID string, version int64,
	diff domain.Difficulty, w WeeklyRow, playedAt time.Time) (bool, error) {
	col, ok := levelColumns[diff]
	if !ok {
		return false, domain.ErrInvalidDifficulty
	}
	res, err := q.Exec(
		`UPDATE users SET `+col+`=`+col+`+1,
			weekly_week=?, weekly_easy=?, weekly_medium=?, weekly_hard=?, weekly_claimed=?,
			last_played_at=?, version=version+1
		 WHERE id=? AND version=?`,
		w.Week, w.Easy, w.Medium, w.Hard, w.Claimed,
		playedAt.Unix(), userID, version,
	)
	return oneRow(res, err)
}

// ApplyWeekly persists weekly-challenge progress alone (rollover or claim).
func (d *DB) ApplyWeekly(q Querier, userID string, version int64, w WeeklyRow) (bool, error) {
	res, err := q.Exec(
		`UPDATE users SET weekly_week=?, weekly_easy=?, weekly_medium=?,
			weekly_hard=?, weekly_claimed=?, version=version+1
		 WHERE id=? AND version=?`,
		w.Week, w.Easy, w.Medium, w.Hard, w.Claimed, userID, version,
	)
	return oneRow(res, err)
}

// ApplyDailyRun marks today's run (even at score 0) and the new high score.
func (d *DB) ApplyDailyRun(q Querier, userID string, version int64,
	day string, highScore int, playedAt time.Time) (bool, error) {
	res, err := q.Exec(
		`UPDATE users SET last_daily_day=?, run_high_score=?, last_played_at=?,
			version=version+1
		 WHERE id=? AND version=?`,
		day, highScore, playedAt.Unix(), userID, version,
	)
	return oneRow(res, err)
}

// ApplyComeback flips the one-shot comeback flag. The claimed guard sits in
// the statement as well, so the flag can transition false→true exactly once.
func (d *DB) ApplyComeback(q Querier, userID string, version int64) (bool, error) {
	res, err := q.Exec(
		`UPDATE users SET comeback_claimed=1, version=version+1
		 WHERE id=? AND version=? AND comeback_claimed=0`,
		userID, version,
	)
	return oneRow(res, err)
}

// AddCurrency applies an additive delta to a currency column. Additive, not
// read-modify-write: concurrent reward events on the same user cannot lose
// updates.
func (d *DB) AddCurrency(q Querier, userID string, kind domain.RewardKind, amount int64) error {
	col, ok := currencyColumns[kind]
	if !ok {
		return fmt.Errorf("unknown reward kind %q", kind)
	}
	res, err := q.Exec(`UPDATE users SET `+col+`=`+col+`+? WHERE id=?`, amount, userID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrUserNotFound
	}
	return nil
}

// Balance reads the current currency snapshot.
func (d *DB) Balance(q Querier, userID string) (domain.Balance, error) {
	var b domain.Balance
	err := q.QueryRow(`SELECT hints, points FROM users WHERE id=?`, userID).
		Scan(&b.Hints, &b.Points)
	if err == sql.ErrNoRows {
		return b, domain.ErrUserNotFound
	}
	return b, err
}

// NegativeBalanceCount counts users holding a negative currency balance.
// Rewards are additive and spends are validated upstream, so any hit here
// means a write-path bug; the health checker watches it.
func (d *DB) NegativeBalanceCount() (int, error) {
	var count int
	err := d.db.QueryRow(
		`SELECT COUNT(*) FROM users WHERE hints < 0 OR points < 0`,
	).Scan(&count)
	return count, err
}

// WeeklyRow is the weekly-challenge column set written by ApplyLevelClear
// and ApplyWeekly.
type WeeklyRow struct {
	Week    string
	Easy    int
	Medium  int
	Hard    int
	Claimed bool
}

var levelColumns = map[domain.Difficulty]string{
	domain.DifficultyEasy:   "level_easy",
	domain.DifficultyMedium: "level_medium",
	domain.DifficultyHard:   "level_hard",
}

var currencyColumns = map[domain.RewardKind]string{
	domain.RewardHints:  "hints",
	domain.RewardPoints: "points",
}

// ─── Helpers ────────────────────────────────────────────────────────────────

// scanner is satisfied by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(s scanner) (*domain.User, error) {
	var u domain.User
	var createdAt int64
	var lastPlayed sql.NullInt64

	err := s.Scan(&u.ID, &u.Username, &u.ReferredBy, &createdAt, &u.Version,
		&u.LastCheckInDay, &u.CheckInStreak, &u.TotalCheckIns, &u.StreakFreezeWeek,
		&u.PuppyAge, &u.PuppySize,
		&u.WeeklyChallengeWeek, &u.WeeklyEasy, &u.WeeklyMedium, &u.WeeklyHard,
		&u.WeeklyChallengeClaimed,
		&u.LastDailyPuzzleDay, &u.PuppyRunHighScore, &lastPlayed, &u.ComebackBonusClaimed,
		&u.LevelPassedEasy, &u.LevelPassedMedium, &u.LevelPassedHard,
		&u.Hints, &u.Points)
	if err == sql.ErrNoRows {
		return nil, nil // Not found, no error
	}
	if err != nil {
		return nil, err
	}

	u.CreatedAt = time.Unix(createdAt, 0)
	if lastPlayed.Valid {
		u.LastPlayedAt = time.Unix(lastPlayed.Int64, 0)
	}
	return &u, nil
}

func oneRow(res sql.Result, err error) (bool, error) {
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func nullableUnix(t time.Time) sql.NullInt64 {
	if t.IsZero() {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// likeEscape escapes LIKE wildcards in a literal prefix.
func likeEscape(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '%', '_', '\\':
			out = append(out, '\\')
		}
		out = append(out, s[i])
	}
	return string(out)
}
