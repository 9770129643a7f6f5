package util

import (
	"fmt"
	"time"
)

// AnchorHour is the UTC time of day every date is normalized to. Midday keeps
// a calendar day stable under any local offset.
const AnchorHour = 12

const (
	monthKeyLayout = "2006-01"
	dayKeyLayout   = "2006-01-02"
)

// NormalizeAnchor rewrites t to the same calendar day at 12:00 UTC. The
// calendar day is read in t's own location.
func NormalizeAnchor(t time.Time) time.Time {
	year, month, day := t.Date()
	return time.Date(year, month, day, AnchorHour, 0, 0, 0, time.UTC)
}

// DaysInMonth returns the number of days of the given month.
func DaysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// CalculateActualDate returns the anchored date for a target day in a given
// month, handling months with fewer days (e.g., day 31 in February returns
// Feb 28/29). Days below 1 are clamped to 1.
func CalculateActualDate(year int, month time.Month, targetDay int) time.Time {
	actualDay := targetDay
	if actualDay < 1 {
		actualDay = 1
	}
	if lastDay := DaysInMonth(year, month); actualDay > lastDay {
		actualDay = lastDay
	}
	return time.Date(year, month, actualDay, AnchorHour, 0, 0, 0, time.UTC)
}

// AddMonths moves date n months forward (or back for negative n) and places
// it on preferredDay, clamped to the length of the target month.
func AddMonths(date time.Time, n int, preferredDay int) time.Time {
	anchored := NormalizeAnchor(date)
	// Step from the first of the month so time.Date never overflows into the next one
	target := time.Date(anchored.Year(), anchored.Month()+time.Month(n), 1, AnchorHour, 0, 0, 0, time.UTC)
	return CalculateActualDate(target.Year(), target.Month(), preferredDay)
}

// StartOfMonth returns the anchored first day of t's month.
func StartOfMonth(t time.Time) time.Time {
	anchored := NormalizeAnchor(t)
	return time.Date(anchored.Year(), anchored.Month(), 1, AnchorHour, 0, 0, 0, time.UTC)
}

// FirstOfNextMonth returns the anchored first day of the month after t.
func FirstOfNextMonth(t time.Time) time.Time {
	return AddMonths(t, 1, 1)
}

// MonthKey formats t as YYYY-MM.
func MonthKey(t time.Time) string {
	return NormalizeAnchor(t).Format(monthKeyLayout)
}

// DayKey formats t as YYYY-MM-DD.
func DayKey(t time.Time) string {
	return NormalizeAnchor(t).Format(dayKeyLayout)
}

// ParseMonthKey parses YYYY-MM into the anchored first day of that month.
func ParseMonthKey(key string) (time.Time, error) {
	parsed, err := time.Parse(monthKeyLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month %q: %w", key, err)
	}
	return StartOfMonth(parsed), nil
}

// MonthKeys returns count consecutive month keys starting at from's month.
func MonthKeys(from time.Time, count int) []string {
	keys := make([]string, 0, count)
	start := StartOfMonth(from)
	for i := 0; i < count; i++ {
		keys = append(keys, MonthKey(AddMonths(start, i, 1)))
	}
	return keys
}

// PreviousMonth returns the year and month for the previous month
func PreviousMonth(year, month int) (int, int) {
	if month == 1 {
		return year - 1, 12
	}
	return year, month - 1
}
