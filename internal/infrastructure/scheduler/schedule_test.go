package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIntervalSchedule_Next(t *testing.T) {
	s := NewIntervalSchedule(10 * time.Minute)
	now := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

	assert.Equal(t, now.Add(10*time.Minute), s.Next(now))
	assert.Equal(t, "every 10m0s", s.String())
}

func TestIntervalSchedule_MinimumInterval(t *testing.T) {
	s := NewIntervalSchedule(50 * time.Millisecond)
	assert.Equal(t, time.Second, s.Interval)
}

func TestDailySchedule_Next(t *testing.T) {
	s := NewDailySchedule(3, 30)

	// Before today's slot the run stays on the same day.
	before := time.Date(2025, time.March, 10, 1, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 10, 3, 30, 0, 0, time.UTC), s.Next(before))

	// After today's slot the run moves to tomorrow.
	after := time.Date(2025, time.March, 10, 9, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 11, 3, 30, 0, 0, time.UTC), s.Next(after))

	// Exactly at the slot the run moves to tomorrow as well.
	exact := time.Date(2025, time.March, 10, 3, 30, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2025, time.March, 11, 3, 30, 0, 0, time.UTC), s.Next(exact))
}

func TestDailySchedule_ClampsInvalidTime(t *testing.T) {
	s := NewDailySchedule(99, -5)
	assert.Equal(t, 0, s.Hour)
	assert.Equal(t, 0, s.Minute)
}

func TestYearlySchedule_Next(t *testing.T) {
	s := NewYearlySchedule(time.January, 1, 0, 15)

	// In December the close-out is due next January.
	december := time.Date(2025, time.December, 20, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 15, 0, 0, time.UTC), s.Next(december))

	// Shortly after New Year's midnight, before the slot, it is due today.
	newYear := time.Date(2026, time.January, 1, 0, 5, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2026, time.January, 1, 0, 15, 0, 0, time.UTC), s.Next(newYear))

	// Once the slot has passed, it is due next year.
	later := time.Date(2026, time.January, 1, 8, 0, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2027, time.January, 1, 0, 15, 0, 0, time.UTC), s.Next(later))
}

func TestYearlySchedule_ClampsInvalidDate(t *testing.T) {
	s := NewYearlySchedule(time.Month(13), 40, -1, 70)
	assert.Equal(t, time.January, s.Month)
	assert.Equal(t, 1, s.Day)
	assert.Equal(t, 0, s.Hour)
	assert.Equal(t, 0, s.Minute)
}

func TestYearlySchedule_String(t *testing.T) {
	s := NewYearlySchedule(time.January, 1, 0, 15)
	assert.Equal(t, "yearly on January 1 at 00:15", s.String())
}
