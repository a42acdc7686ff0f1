// Package calendar provides pure trading-day arithmetic for the US equity market.
//
// Holidays come from a static table rather than observance rules; the table is
// extended once a year when the exchange publishes the next calendar.
package calendar

import "time"

// holidays is the static market-closure table, keyed by "YYYY-MM-DD".
// Covers full exchange closures only (no half-days).
var holidays = map[string]struct{}{
	// 2022
	"2022-01-17": {}, // Martin Luther King Jr. Day
	"2022-02-21": {}, // Washington's Birthday
	"2022-04-15": {}, // Good Friday
	"2022-05-30": {}, // Memorial Day
	"2022-06-20": {}, // Juneteenth (observed)
	"2022-07-04": {}, // Independence Day
	"2022-09-05": {}, // Labor Day
	"2022-11-24": {}, // Thanksgiving
	"2022-12-26": {}, // Christmas (observed)
	// 2023
	"2023-01-02": {}, // New Year's Day (observed)
	"2023-01-16": {},
	"2023-02-20": {},
	"2023-04-07": {},
	"2023-05-29": {},
	"2023-06-19": {},
	"2023-07-04": {},
	"2023-09-04": {},
	"2023-11-23": {},
	"2023-12-25": {},
	// 2024
	"2024-01-01": {},
	"2024-01-15": {},
	"2024-02-19": {},
	"2024-03-29": {},
	"2024-05-27": {},
	"2024-06-19": {},
	"2024-07-04": {},
	"2024-09-02": {},
	"2024-11-28": {},
	"2024-12-25": {},
	// 2025
	"2025-01-01": {},
	"2025-01-09": {}, // National Day of Mourning (President Carter)
	"2025-01-20": {},
	"2025-02-17": {},
	"2025-04-18": {},
	"2025-05-26": {},
	"2025-06-19": {},
	"2025-07-04": {},
	"2025-09-01": {},
	"2025-11-27": {},
	"2025-12-25": {},
	// 2026
	"2026-01-01": {},
	"2026-01-19": {},
	"2026-02-16": {},
	"2026-04-03": {},
	"2026-05-25": {},
	"2026-06-19": {},
	"2026-07-03": {}, // Independence Day (observed)
	"2026-09-07": {},
	"2026-11-26": {},
	"2026-12-25": {},
}

// DayFormat is the canonical day-granularity date layout used across the pipeline.
const DayFormat = "2006-01-02"

// Normalize truncates a time to day granularity in UTC.
func Normalize(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the given date is a weekday that is not a
// recognized market holiday.
func IsTradingDay(date time.Time) bool {
	switch date.Weekday() {
	case time.Saturday, time.Sunday:
		return false
	}
	_, closed := holidays[date.Format(DayFormat)]
	return !closed
}

// TradingDaysInRange returns every trading day in [start, end] inclusive,
// ascending. Returns nil if start is after end.
func TradingDaysInRange(start, end time.Time) []time.Time {
	start = Normalize(start)
	end = Normalize(end)

	var days []time.Time
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsTradingDay(d) {
			days = append(days, d)
		}
	}
	return days
}

// PreviousTradingDay walks backward from the day before date until it finds a
// trading day.
func PreviousTradingDay(date time.Time) time.Time {
	d := Normalize(date).AddDate(0, 0, -1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, -1)
	}
	return d
}

// NextTradingDay walks forward from the day after date until it finds a
// trading day.
func NextTradingDay(date time.Time) time.Time {
	d := Normalize(date).AddDate(0, 0, 1)
	for !IsTradingDay(d) {
		d = d.AddDate(0, 0, 1)
	}
	return d
}
