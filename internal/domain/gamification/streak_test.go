package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

func date(y int, m time.Month, d int) timeutil.Date {
	return timeutil.NewDate(y, m, d)
}

func TestAdvanceStreak_FirstActivity(t *testing.T) {
	update := AdvanceStreak(nil, date(2025, time.March, 10), 0, 0)

	assert.Equal(t, 1, update.Current)
	assert.Equal(t, 1, update.Longest)
	assert.False(t, update.Extended)
	assert.False(t, update.Broken)
}

func TestAdvanceStreak_ConsecutiveDay(t *testing.T) {
	last := date(2025, time.March, 9)
	update := AdvanceStreak(&last, date(2025, time.March, 10), 4, 6)

	assert.Equal(t, 5, update.Current)
	assert.Equal(t, 6, update.Longest)
	assert.True(t, update.Extended)
	assert.False(t, update.Broken)
}

func TestAdvanceStreak_SameDay(t *testing.T) {
	last := date(2025, time.March, 10)
	update := AdvanceStreak(&last, date(2025, time.March, 10), 4, 6)

	assert.Equal(t, 4, update.Current)
	assert.Equal(t, 6, update.Longest)
	assert.False(t, update.Extended)
	assert.False(t, update.Broken)
}

func TestAdvanceStreak_GapResets(t *testing.T) {
	last := date(2025, time.March, 7)
	update := AdvanceStreak(&last, date(2025, time.March, 10), 12, 12)

	assert.Equal(t, 1, update.Current)
	assert.Equal(t, 12, update.Longest, "longest streak survives the reset")
	assert.True(t, update.Broken)
	assert.Equal(t, 12, update.PreviousStreak)
}

func TestAdvanceStreak_GapFromStreakOfOne(t *testing.T) {
	// A streak of one restarting is not reported as broken
	last := date(2025, time.March, 1)
	update := AdvanceStreak(&last, date(2025, time.March, 10), 1, 3)

	assert.Equal(t, 1, update.Current)
	assert.False(t, update.Broken)
}

func TestAdvanceStreak_LongestFollowsCurrent(t *testing.T) {
	last := date(2025, time.March, 9)
	update := AdvanceStreak(&last, date(2025, time.March, 10), 6, 6)

	assert.Equal(t, 7, update.Current)
	assert.Equal(t, 7, update.Longest)
}

func TestAdvanceStreak_MonthBoundary(t *testing.T) {
	last := date(2025, time.February, 28)
	update := AdvanceStreak(&last, date(2025, time.March, 1), 9, 9)

	assert.Equal(t, 10, update.Current)
	assert.True(t, update.Extended)
}

func TestAdvanceStreak_YearBoundary(t *testing.T) {
	last := date(2024, time.December, 31)
	update := AdvanceStreak(&last, date(2025, time.January, 1), 2, 5)

	assert.Equal(t, 3, update.Current)
	assert.True(t, update.Extended)
}

func TestNewStreakPolicy_Validation(t *testing.T) {
	_, err := NewStreakPolicy([]StreakTier{{MinDays: 0, Multiplier: 1.5}})
	assert.ErrorIs(t, err, ErrInvalidStreakPolicy)

	_, err = NewStreakPolicy([]StreakTier{{MinDays: 3, Multiplier: 0.5}})
	assert.ErrorIs(t, err, ErrInvalidStreakPolicy)

	policy, err := NewStreakPolicy([]StreakTier{
		{MinDays: 7, Multiplier: 1.5},
		{MinDays: 3, Multiplier: 1.1},
	})
	require.NoError(t, err)

	// Tiers are sorted by threshold regardless of input order
	tiers := policy.Tiers()
	require.Len(t, tiers, 2)
	assert.Equal(t, 3, tiers[0].MinDays)
	assert.Equal(t, 7, tiers[1].MinDays)
}

func TestStreakPolicy_MultiplierFor(t *testing.T) {
	policy := DefaultStreakPolicy()

	tests := []struct {
		streak int
		want   float64
	}{
		{0, 1.0},
		{1, 1.0},
		{2, 1.0},
		{3, 1.1},
		{6, 1.1},
		{7, 1.5},
		{13, 1.5},
		{14, 1.75},
		{29, 1.75},
		{30, 2.0},
		{365, 2.0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, policy.MultiplierFor(tt.streak), "streak %d", tt.streak)
	}
}

func TestStreakPolicy_Empty(t *testing.T) {
	var policy StreakPolicy
	assert.True(t, policy.IsEmpty())
	assert.Equal(t, 1.0, policy.MultiplierFor(100))
}
