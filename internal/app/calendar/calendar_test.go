package calendar_test

import (
	"testing"
	"time"

	"github.com/puzzlepup/puzzlepup/internal/app/calendar"
)

func TestDayKey(t *testing.T) {
	ts := time.Date(2024, 3, 2, 23, 59, 59, 0, time.Local)
	if got := calendar.DayKey(ts); got != "2024-03-02" {
		t.Errorf("expected 2024-03-02, got %s", got)
	}
}

func TestParseDayKey_RoundTrip(t *testing.T) {
	ts, err := calendar.ParseDayKey("2024-03-02")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if calendar.DayKey(ts) != "2024-03-02" {
		t.Errorf("round trip lost the date: %v", ts)
	}
	if ts.Hour() != 0 || ts.Minute() != 0 {
		t.Errorf("expected local midnight, got %v", ts)
	}
}

func TestParseDayKey_Invalid(t *testing.T) {
	if _, err := calendar.ParseDayKey("not-a-date"); err == nil {
		t.Error("expected error for malformed key")
	}
}

func TestISOWeekKey(t *testing.T) {
	cases := []struct {
		date time.Time
		want string
	}{
		// 2024-01-01 is a Monday — week 1 of 2024.
		{time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC), "2024-W01"},
		// 2023-01-01 is a Sunday — still week 52 of 2022 under ISO numbering.
		{time.Date(2023, 1, 1, 12, 0, 0, 0, time.UTC), "2022-W52"},
		// 2021-01-01 is a Friday — week 53 of 2020.
		{time.Date(2021, 1, 1, 12, 0, 0, 0, time.UTC), "2020-W53"},
		{time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC), "2024-W29"},
	}
	for _, c := range cases {
		if got := calendar.ISOWeekKey(c.date); got != c.want {
			t.Errorf("ISOWeekKey(%v) = %s, want %s", c.date, got, c.want)
		}
	}
}

func TestDayDifference(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	cases := []struct {
		name string
		a, b time.Time
		want int
	}{
		{"same instant", base, base, 0},
		{"under one day", base.Add(23 * time.Hour), base, 0},
		{"exactly one day", base.Add(24 * time.Hour), base, 1},
		{"a day and a half", base.Add(36 * time.Hour), base, 1},
		{"two days and change", base.Add(58 * time.Hour), base, 2},
		{"negative, floor not truncate", base, base.Add(36 * time.Hour), -2},
	}
	for _, c := range cases {
		if got := calendar.DayDifference(c.a, c.b); got != c.want {
			t.Errorf("%s: DayDifference = %d, want %d", c.name, got, c.want)
		}
	}
}
