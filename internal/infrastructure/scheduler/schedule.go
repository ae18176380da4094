package scheduler

import (
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// INTERVAL SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// IntervalSchedule runs a job at fixed intervals.
type IntervalSchedule struct {
	Interval time.Duration
}

// NewIntervalSchedule creates a schedule that fires every interval.
// Intervals below one second are rounded up to one second.
func NewIntervalSchedule(interval time.Duration) IntervalSchedule {
	if interval < time.Second {
		interval = time.Second
	}
	return IntervalSchedule{Interval: interval}
}

// Next returns the next run time after t.
func (s IntervalSchedule) Next(t time.Time) time.Time {
	return t.Add(s.Interval)
}

// String returns a human-readable representation.
func (s IntervalSchedule) String() string {
	return fmt.Sprintf("every %s", s.Interval)
}

// ══════════════════════════════════════════════════════════════════════════════
// DAILY SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// DailySchedule runs a job once per day at a fixed time.
type DailySchedule struct {
	Hour   int
	Minute int
}

// NewDailySchedule creates a schedule that fires daily at hour:minute.
func NewDailySchedule(hour, minute int) DailySchedule {
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return DailySchedule{Hour: hour, Minute: minute}
}

// Next returns the next run time after t.
func (s DailySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), t.Month(), t.Day(), s.Hour, s.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// String returns a human-readable representation.
func (s DailySchedule) String() string {
	return fmt.Sprintf("daily at %02d:%02d", s.Hour, s.Minute)
}

// ══════════════════════════════════════════════════════════════════════════════
// YEARLY SCHEDULE
// ══════════════════════════════════════════════════════════════════════════════

// YearlySchedule runs a job once per year at a fixed date and time.
// The season close-out uses January 1st shortly after midnight, so the
// archived year is always the one that just ended.
type YearlySchedule struct {
	Month  time.Month
	Day    int
	Hour   int
	Minute int
}

// NewYearlySchedule creates a schedule that fires yearly on month/day at hour:minute.
func NewYearlySchedule(month time.Month, day, hour, minute int) YearlySchedule {
	if month < time.January || month > time.December {
		month = time.January
	}
	if day < 1 || day > 31 {
		day = 1
	}
	if hour < 0 || hour > 23 {
		hour = 0
	}
	if minute < 0 || minute > 59 {
		minute = 0
	}
	return YearlySchedule{Month: month, Day: day, Hour: hour, Minute: minute}
}

// Next returns the next run time after t.
func (s YearlySchedule) Next(t time.Time) time.Time {
	next := time.Date(t.Year(), s.Month, s.Day, s.Hour, s.Minute, 0, 0, t.Location())
	if !next.After(t) {
		next = time.Date(t.Year()+1, s.Month, s.Day, s.Hour, s.Minute, 0, 0, t.Location())
	}
	return next
}

// String returns a human-readable representation.
func (s YearlySchedule) String() string {
	return fmt.Sprintf("yearly on %s %d at %02d:%02d", s.Month, s.Day, s.Hour, s.Minute)
}
