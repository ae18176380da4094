// Package timeutil provides calendar-date utilities for the Dojo Gamification Hub.
// Streaks, activity dates and the annual cycle are all calendar-day concepts,
// so the package centers on a date-only type anchored to UTC.
// No external dependencies - uses only standard library.
package timeutil

import (
	"fmt"
	"time"
)

// Date represents a calendar date (year, month, day) without a time component.
// All dates are anchored to UTC: a streak day is a UTC day.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// NewDate creates a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	// Normalize through time.Date so e.g. Feb 30 rolls over predictably.
	t := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	return Date{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

// DateOf truncates a time to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return Date{Year: u.Year(), Month: u.Month(), Day: u.Day()}
}

// Today returns the current UTC calendar date.
func Today() Date {
	return DateOf(time.Now())
}

// Time returns the start of the day (00:00:00 UTC) for the date.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// IsZero reports whether the date is the zero value.
func (d Date) IsZero() bool {
	return d.Year == 0 && d.Month == 0 && d.Day == 0
}

// AddDays returns the date shifted by the given number of days.
func (d Date) AddDays(days int) Date {
	return DateOf(d.Time().AddDate(0, 0, days))
}

// DaysUntil returns the number of calendar days from d to other.
// Positive when other is after d.
func (d Date) DaysUntil(other Date) int {
	return int(other.Time().Sub(d.Time()).Hours() / 24)
}

// Equal reports whether two dates are the same calendar day.
func (d Date) Equal(other Date) bool {
	return d.Year == other.Year && d.Month == other.Month && d.Day == other.Day
}

// Before reports whether d is earlier than other.
func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

// After reports whether d is later than other.
func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// IsYesterdayOf reports whether d is exactly one day before other.
func (d Date) IsYesterdayOf(other Date) bool {
	return d.DaysUntil(other) == 1
}

// String returns the date in YYYY-MM-DD form.
func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// ParseDate parses a YYYY-MM-DD string into a Date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(FormatDate, s)
	if err != nil {
		return Date{}, fmt.Errorf("timeutil: invalid date %q: %w", s, err)
	}
	return DateOf(t), nil
}

// StartOfDay returns the start of the UTC day containing t.
func StartOfDay(t time.Time) time.Time {
	return DateOf(t).Time()
}

// EndOfDay returns the end of the UTC day (23:59:59.999999999) containing t.
func EndOfDay(t time.Time) time.Time {
	return StartOfDay(t).Add(24*time.Hour - time.Nanosecond)
}

// StartOfYear returns January 1st 00:00:00 UTC of the year containing t.
func StartOfYear(t time.Time) time.Time {
	return time.Date(t.UTC().Year(), time.January, 1, 0, 0, 0, 0, time.UTC)
}

// DaysSince calculates the number of whole calendar days since the given time.
func DaysSince(t time.Time) int {
	return DateOf(t).DaysUntil(Today())
}

// PreviousYear returns the year before the one containing t.
// The annual close-out archives the season that just ended.
func PreviousYear(t time.Time) int {
	return t.UTC().Year() - 1
}

// Common date/time formats.
const (
	// FormatDate is the standard date format (YYYY-MM-DD).
	FormatDate = "2006-01-02"
	// FormatDateTime is the standard datetime format.
	FormatDateTime = "2006-01-02 15:04"
	// FormatHumanDate is a human-readable format.
	FormatHumanDate = "2 January 2006"
)
