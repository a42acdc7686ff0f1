package calendar

import (
	"testing"
	"time"
)

func day(s string) time.Time {
	t, err := time.Parse(DayFormat, s)
	if err != nil {
		panic(err)
	}
	return t
}

func TestIsTradingDay(t *testing.T) {
	tests := []struct {
		date string
		want bool
	}{
		{"2024-03-15", true},  // Friday
		{"2024-03-16", false}, // Saturday
		{"2024-03-17", false}, // Sunday
		{"2024-03-18", true},  // Monday
		{"2024-07-04", false}, // Independence Day
		{"2024-12-25", false}, // Christmas
		{"2024-12-24", true},  // Christmas Eve is a (half) trading day
		{"2025-01-09", false}, // national day of mourning
		{"2026-07-03", false}, // July 4 observed on the Friday
	}

	for _, tt := range tests {
		if got := IsTradingDay(day(tt.date)); got != tt.want {
			t.Errorf("IsTradingDay(%s) = %v, want %v", tt.date, got, tt.want)
		}
	}
}

func TestTradingDaysInRange(t *testing.T) {
	// Week of 2024-11-25: Thursday the 28th is Thanksgiving.
	days := TradingDaysInRange(day("2024-11-25"), day("2024-12-01"))

	want := []string{"2024-11-25", "2024-11-26", "2024-11-27", "2024-11-29"}
	if len(days) != len(want) {
		t.Fatalf("got %d trading days, want %d", len(days), len(want))
	}
	for i, w := range want {
		if got := days[i].Format(DayFormat); got != w {
			t.Errorf("days[%d] = %s, want %s", i, got, w)
		}
	}
}

func TestTradingDaysInRange_Empty(t *testing.T) {
	if days := TradingDaysInRange(day("2024-03-18"), day("2024-03-15")); days != nil {
		t.Errorf("inverted range should yield nil, got %v", days)
	}
	// A weekend-only range has no trading days.
	if days := TradingDaysInRange(day("2024-03-16"), day("2024-03-17")); len(days) != 0 {
		t.Errorf("weekend range should be empty, got %v", days)
	}
}

func TestPreviousTradingDay(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-03-18", "2024-03-15"}, // Monday -> prior Friday
		{"2024-07-05", "2024-07-03"}, // skips Independence Day
		{"2024-12-26", "2024-12-24"}, // skips Christmas
	}

	for _, tt := range tests {
		if got := PreviousTradingDay(day(tt.date)).Format(DayFormat); got != tt.want {
			t.Errorf("PreviousTradingDay(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestNextTradingDay(t *testing.T) {
	tests := []struct {
		date string
		want string
	}{
		{"2024-03-15", "2024-03-18"}, // Friday -> Monday
		{"2024-07-03", "2024-07-05"}, // skips Independence Day
		{"2024-11-27", "2024-11-29"}, // skips Thanksgiving
	}

	for _, tt := range tests {
		if got := NextTradingDay(day(tt.date)).Format(DayFormat); got != tt.want {
			t.Errorf("NextTradingDay(%s) = %s, want %s", tt.date, got, tt.want)
		}
	}
}

func TestNormalize(t *testing.T) {
	ts := time.Date(2024, 3, 15, 17, 30, 12, 999, time.FixedZone("X", 3600))
	got := Normalize(ts)
	if got.Format(DayFormat) != "2024-03-15" || got.Hour() != 0 || got.Location() != time.UTC {
		t.Errorf("Normalize(%v) = %v", ts, got)
	}
}
