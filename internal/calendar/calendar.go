// Package calendar holds the pure date arithmetic behind recurrence
// scheduling: frequency stepping with month-length clamping, weekend
// adjustment, and start-of-day normalization. Everything operates on
// civil.Date so time-of-day and timezone never leak into scheduling
// decisions.
package calendar

import (
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/fincast/fincast/internal/domain"
)

// ErrInvalidDate is returned when a date string cannot be parsed.
var ErrInvalidDate = errors.New("invalid date")

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (civil.Date, error) {
	d, err := civil.ParseDate(s)
	if err != nil || !d.IsValid() {
		return civil.Date{}, fmt.Errorf("ParseDate: %q: %w", s, ErrInvalidDate)
	}
	return d, nil
}

// StartOfDay zeroes out the time-of-day, preserving the local calendar date.
func StartOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DateOf returns the calendar date of t in t's location.
func DateOf(t time.Time) civil.Date {
	return civil.DateOf(t)
}

// DaysInMonth returns the number of days in the given month, leap years
// included.
func DaysInMonth(year int, month time.Month) int {
	// Day zero of the following month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// IsWeekend reports whether d falls on a Saturday or Sunday.
func IsWeekend(d civil.Date) bool {
	wd := d.In(time.UTC).Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// AdjustForWeekends shifts a weekend date back to the preceding Friday when
// payOnWeekends is false. The shift affects only the recorded transaction
// date; the schedule cursor always advances from the unadjusted date.
func AdjustForWeekends(d civil.Date, payOnWeekends bool) civil.Date {
	if payOnWeekends {
		return d
	}
	switch d.In(time.UTC).Weekday() {
	case time.Saturday:
		return d.AddDays(-1)
	case time.Sunday:
		return d.AddDays(-2)
	}
	return d
}

// AddFrequency advances d by one occurrence period. For month-based
// frequencies the anchor day is the day-of-month of the rule's original
// start date, reapplied at every step so a clamped occurrence (Jan 31 ->
// Feb 28) springs back in longer months (-> Mar 31) instead of drifting.
func AddFrequency(d civil.Date, f domain.Frequency, anchorDay int) civil.Date {
	switch f {
	case domain.FrequencyDaily:
		return d.AddDays(1)
	case domain.FrequencyWeekly:
		return d.AddDays(7)
	case domain.FrequencyBiweekly:
		return d.AddDays(14)
	case domain.FrequencyMonthly:
		return addMonths(d, 1, anchorDay)
	case domain.FrequencyQuarterly:
		return addMonths(d, 3, anchorDay)
	case domain.FrequencyYearly:
		return addMonths(d, 12, anchorDay)
	}
	// Unknown frequencies never advance; callers guard with Schedulable.
	return d
}

// addMonths adds n calendar months to d, landing on anchorDay clamped to
// the target month's length.
func addMonths(d civil.Date, n, anchorDay int) civil.Date {
	months := int(d.Month) - 1 + n
	year := d.Year + months/12
	month := time.Month(months%12 + 1)

	day := anchorDay
	if day < 1 {
		day = d.Day
	}
	if max := DaysInMonth(year, month); day > max {
		day = max
	}
	return civil.Date{Year: year, Month: month, Day: day}
}
