package gamification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

const (
	testStudentID = "6a1f9c3e-1111-4222-8333-444455556666"
	testDojoID    = "7b2e8d4f-aaaa-4bbb-8ccc-dddd11112222"
)

func newTestRecord(t *testing.T) *StudentXP {
	t.Helper()
	record, err := NewStudentXP(testStudentID, testDojoID)
	require.NoError(t, err)
	return record
}

func TestNewStudentXP(t *testing.T) {
	record := newTestRecord(t)

	assert.Equal(t, XP(0), record.TotalXP)
	assert.Equal(t, MinLevel, record.Level)
	assert.Equal(t, 0, record.CurrentStreak)
	assert.Equal(t, 0, record.LongestStreak)
	assert.Nil(t, record.LastActivityDate)
	assert.False(t, record.HasActivity())
	assert.NoError(t, record.Validate())
}

func TestNewStudentXP_Validation(t *testing.T) {
	_, err := NewStudentXP("", testDojoID)
	assert.ErrorIs(t, err, ErrInvalidStudentID)

	_, err = NewStudentXP(testStudentID, "")
	assert.ErrorIs(t, err, ErrInvalidDojoID)
}

func TestApplyGrant_FirstGrant(t *testing.T) {
	record := newTestRecord(t)
	day := timeutil.NewDate(2025, time.March, 10)

	applied, err := record.ApplyGrant(50, day, DefaultStreakPolicy())
	require.NoError(t, err)

	assert.Equal(t, XP(50), applied.XPGranted)
	assert.Equal(t, 1.0, applied.Multiplier)
	assert.Equal(t, 1, applied.NewStreak)
	assert.False(t, applied.LeveledUp())

	assert.Equal(t, XP(50), record.TotalXP)
	assert.Equal(t, MinLevel, record.Level)
	require.NotNil(t, record.LastActivityDate)
	assert.True(t, record.LastActivityDate.Equal(day))
	assert.False(t, record.FirstActivityAt.IsZero())
	assert.NoError(t, record.Validate())
}

func TestApplyGrant_NegativeAmount(t *testing.T) {
	record := newTestRecord(t)

	_, err := record.ApplyGrant(-10, timeutil.Today(), DefaultStreakPolicy())
	assert.ErrorIs(t, err, ErrNegativeGrant)
	assert.Equal(t, XP(0), record.TotalXP, "failed grant must not mutate the record")
}

func TestApplyGrant_ZeroAmount(t *testing.T) {
	record := newTestRecord(t)
	day := timeutil.NewDate(2025, time.March, 10)

	applied, err := record.ApplyGrant(0, day, DefaultStreakPolicy())
	require.NoError(t, err)

	// A zero grant still counts as activity for the streak
	assert.Equal(t, XP(0), applied.XPGranted)
	assert.Equal(t, 1, record.CurrentStreak)
	assert.True(t, record.HasActivity())
}

func TestApplyGrant_MultiplierApplied(t *testing.T) {
	record := newTestRecord(t)
	policy := DefaultStreakPolicy()

	// Build a 7-day streak, then check the multiplier on day 7
	start := timeutil.NewDate(2025, time.March, 1)
	var applied *GrantApplied
	var err error
	for i := 0; i < 7; i++ {
		applied, err = record.ApplyGrant(100, start.AddDays(i), policy)
		require.NoError(t, err)
	}

	assert.Equal(t, 7, record.CurrentStreak)
	assert.Equal(t, 1.5, applied.Multiplier)
	assert.Equal(t, XP(150), applied.XPGranted)
}

func TestApplyGrant_RoundsToNearest(t *testing.T) {
	record := newTestRecord(t)
	policy, err := NewStreakPolicy([]StreakTier{{MinDays: 1, Multiplier: 1.1}})
	require.NoError(t, err)

	// 25 * 1.1 = 27.5 rounds to 28
	applied, err := record.ApplyGrant(25, timeutil.NewDate(2025, time.March, 10), policy)
	require.NoError(t, err)
	assert.Equal(t, XP(28), applied.XPGranted)
}

func TestApplyGrant_LevelUp(t *testing.T) {
	record := newTestRecord(t)
	day := timeutil.NewDate(2025, time.March, 10)

	applied, err := record.ApplyGrant(120, day, DefaultStreakPolicy())
	require.NoError(t, err)

	assert.True(t, applied.LeveledUp())
	assert.Equal(t, Level(1), applied.PreviousLevel)
	assert.Equal(t, Level(2), applied.NewLevel)
	assert.Equal(t, Level(2), record.Level)
	assert.NoError(t, record.Validate())
}

func TestApplyGrant_StreakBrokenAfterGap(t *testing.T) {
	record := newTestRecord(t)
	policy := DefaultStreakPolicy()

	start := timeutil.NewDate(2025, time.March, 1)
	for i := 0; i < 5; i++ {
		_, err := record.ApplyGrant(10, start.AddDays(i), policy)
		require.NoError(t, err)
	}
	require.Equal(t, 5, record.CurrentStreak)

	// Two days missed
	applied, err := record.ApplyGrant(10, start.AddDays(7), policy)
	require.NoError(t, err)

	assert.True(t, applied.StreakBroken)
	assert.Equal(t, 5, applied.PreviousStreak)
	assert.Equal(t, 1, record.CurrentStreak)
	assert.Equal(t, 5, record.LongestStreak)
}

func TestApplyGrant_SameDayKeepsStreak(t *testing.T) {
	record := newTestRecord(t)
	policy := DefaultStreakPolicy()
	day := timeutil.NewDate(2025, time.March, 10)

	_, err := record.ApplyGrant(10, day, policy)
	require.NoError(t, err)
	_, err = record.ApplyGrant(10, day, policy)
	require.NoError(t, err)

	assert.Equal(t, 1, record.CurrentStreak)
	assert.Equal(t, XP(20), record.TotalXP)
}

func TestResetForNewSeason(t *testing.T) {
	record := newTestRecord(t)
	policy := DefaultStreakPolicy()

	start := timeutil.NewDate(2025, time.March, 1)
	for i := 0; i < 10; i++ {
		_, err := record.ApplyGrant(100, start.AddDays(i), policy)
		require.NoError(t, err)
	}
	require.True(t, record.TotalXP > 0)
	require.True(t, record.LongestStreak > 0)

	record.ResetForNewSeason()

	assert.Equal(t, XP(0), record.TotalXP)
	assert.Equal(t, MinLevel, record.Level)
	assert.Equal(t, 0, record.CurrentStreak)
	assert.Equal(t, 0, record.LongestStreak, "longest streak is seasonal and resets too")
	assert.Nil(t, record.LastActivityDate)
	assert.True(t, record.FirstActivityAt.IsZero())
	assert.NoError(t, record.Validate())
}

func TestValidate_DetectsCorruption(t *testing.T) {
	record := newTestRecord(t)

	record.TotalXP = 500
	record.Level = 1 // LevelFor(500) == 3
	assert.ErrorIs(t, record.Validate(), ErrLevelMismatch)

	record.Level = LevelFor(record.TotalXP)
	record.CurrentStreak = 5
	record.LongestStreak = 2
	assert.ErrorIs(t, record.Validate(), ErrStreakMismatch)
}

func TestClone(t *testing.T) {
	record := newTestRecord(t)
	_, err := record.ApplyGrant(10, timeutil.NewDate(2025, time.March, 10), DefaultStreakPolicy())
	require.NoError(t, err)

	clone := record.Clone()
	require.NotNil(t, clone)

	// Mutating the clone's date must not affect the original
	*clone.LastActivityDate = timeutil.NewDate(2030, time.January, 1)
	assert.True(t, record.LastActivityDate.Equal(timeutil.NewDate(2025, time.March, 10)))
}
