// Package calendar provides the day and week keys the engagement rules are
// written against. All functions are pure.
//
// Day keys use the server's local calendar date, not a UTC-normalized one:
// a check-in at 23:59 local time belongs to that local day.
package calendar

import (
	"fmt"
	"time"
)

const dayKeyLayout = "2006-01-02"

// msPerDay is the millisecond length of a day, the divisor for DayDifference.
const msPerDay = 24 * 60 * 60 * 1000

// DayKey returns the "YYYY-MM-DD" key for the instant's local calendar date.
func DayKey(t time.Time) string {
	return t.Format(dayKeyLayout)
}

// ParseDayKey converts a day key back into the instant at local midnight.
func ParseDayKey(key string) (time.Time, error) {
	t, err := time.ParseInLocation(dayKeyLayout, key, time.Local)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse day key %q: %w", key, err)
	}
	return t, nil
}

// ISOWeekKey returns "YYYY-Www" using ISO-8601 week numbering: weeks start
// Monday, and the week containing the year's first Thursday is week 1.
func ISOWeekKey(t time.Time) string {
	year, week := t.ISOWeek()
	return fmt.Sprintf("%d-W%02d", year, week)
}

// DayDifference returns the whole days between two instants: floor division
// of elapsed milliseconds by the millisecond length of a day. Negative when
// a precedes b.
func DayDifference(a, b time.Time) int {
	ms := a.UnixMilli() - b.UnixMilli()
	d := ms / msPerDay
	if ms%msPerDay != 0 && ms < 0 {
		d--
	}
	return int(d)
}
