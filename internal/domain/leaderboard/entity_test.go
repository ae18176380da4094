package leaderboard

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
)

const testDojoID = "7b2e8d4f-aaaa-4bbb-8ccc-dddd11112222"

func entry(studentID string, xp int, firstActivity time.Time) *Entry {
	return &Entry{
		StudentID:       studentID,
		DisplayName:     "Student " + studentID,
		TotalXP:         gamification.XP(xp),
		FirstActivityAt: firstActivity,
	}
}

func TestRanking_Add(t *testing.T) {
	ranking := NewRanking(testDojoID)

	require.NoError(t, ranking.Add(entry("s1", 100, time.Time{})))
	assert.ErrorIs(t, ranking.Add(nil), ErrNilEntry)
	assert.ErrorIs(t, ranking.Add(&Entry{}), ErrInvalidStudentID)
	assert.ErrorIs(t, ranking.Add(entry("s1", 200, time.Time{})), ErrDuplicateStudent)
	assert.Equal(t, 1, ranking.Count())
}

func TestRanking_Sort_ByXPDescending(t *testing.T) {
	ranking := NewRanking(testDojoID)
	require.NoError(t, ranking.Add(entry("s1", 100, time.Time{})))
	require.NoError(t, ranking.Add(entry("s2", 300, time.Time{})))
	require.NoError(t, ranking.Add(entry("s3", 200, time.Time{})))

	ranking.Sort()

	all := ranking.All()
	assert.Equal(t, "s2", all[0].StudentID)
	assert.Equal(t, "s3", all[1].StudentID)
	assert.Equal(t, "s1", all[2].StudentID)
}

func TestRanking_Sort_DenseRanks(t *testing.T) {
	ranking := NewRanking(testDojoID)
	base := time.Date(2025, time.January, 10, 0, 0, 0, 0, time.UTC)

	// Three students with equal XP still get three distinct ranks
	require.NoError(t, ranking.Add(entry("s1", 500, base)))
	require.NoError(t, ranking.Add(entry("s2", 500, base)))
	require.NoError(t, ranking.Add(entry("s3", 500, base)))
	require.NoError(t, ranking.Add(entry("s4", 400, base)))

	ranking.Sort()

	seen := make(map[Rank]bool)
	for i, e := range ranking.All() {
		assert.Equal(t, Rank(i+1), e.Rank, "ranks must be dense and 1-based")
		assert.False(t, seen[e.Rank], "ranks must never be shared")
		seen[e.Rank] = true
	}
}

func TestRanking_Sort_TieBreakByFirstActivity(t *testing.T) {
	ranking := NewRanking(testDojoID)
	early := time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)
	late := time.Date(2025, time.June, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, ranking.Add(entry("s-late", 500, late)))
	require.NoError(t, ranking.Add(entry("s-early", 500, early)))

	ranking.Sort()

	assert.Equal(t, "s-early", ranking.GetByRank(1).StudentID, "earlier starter wins the tie")
	assert.Equal(t, "s-late", ranking.GetByRank(2).StudentID)
}

func TestRanking_Sort_TieBreakByStudentID(t *testing.T) {
	ranking := NewRanking(testDojoID)
	same := time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)

	require.NoError(t, ranking.Add(entry("bbb", 500, same)))
	require.NoError(t, ranking.Add(entry("aaa", 500, same)))

	ranking.Sort()

	assert.Equal(t, "aaa", ranking.GetByRank(1).StudentID)
	assert.Equal(t, "bbb", ranking.GetByRank(2).StudentID)
}

func TestRanking_Sort_NoActivityRanksLast(t *testing.T) {
	ranking := NewRanking(testDojoID)
	started := time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)

	// Zero XP with activity beats zero XP without any activity
	require.NoError(t, ranking.Add(entry("s-idle", 0, time.Time{})))
	require.NoError(t, ranking.Add(entry("s-active", 0, started)))

	ranking.Sort()

	assert.Equal(t, "s-active", ranking.GetByRank(1).StudentID)
	assert.Equal(t, "s-idle", ranking.GetByRank(2).StudentID)
}

func TestRanking_Sort_Deterministic(t *testing.T) {
	same := time.Date(2025, time.January, 5, 12, 0, 0, 0, time.UTC)

	build := func(order []string) []string {
		ranking := NewRanking(testDojoID)
		for _, id := range order {
			require.NoError(t, ranking.Add(entry(id, 100, same)))
		}
		ranking.Sort()

		out := make([]string, 0, ranking.Count())
		for _, e := range ranking.All() {
			out = append(out, e.StudentID)
		}
		return out
	}

	first := build([]string{"c", "a", "b"})
	second := build([]string{"b", "c", "a"})
	assert.Equal(t, first, second, "insertion order must not leak into ranking order")
}

func TestRanking_TopAndSlice(t *testing.T) {
	ranking := NewRanking(testDojoID)
	for i, id := range []string{"s1", "s2", "s3", "s4", "s5"} {
		require.NoError(t, ranking.Add(entry(id, 500-i*100, time.Time{})))
	}
	ranking.Sort()

	top := ranking.Top(3)
	require.Len(t, top, 3)
	assert.Equal(t, "s1", top[0].StudentID)
	assert.Equal(t, "s3", top[2].StudentID)

	assert.Len(t, ranking.Top(100), 5)
	assert.Nil(t, ranking.Top(0))

	slice := ranking.Slice(1, 3)
	require.Len(t, slice, 2)
	assert.Equal(t, "s2", slice[0].StudentID)
}

func TestRanking_GetByRank(t *testing.T) {
	ranking := NewRanking(testDojoID)
	require.NoError(t, ranking.Add(entry("s1", 100, time.Time{})))
	ranking.Sort()

	require.NotNil(t, ranking.GetByRank(1))
	assert.Nil(t, ranking.GetByRank(2))
	assert.Nil(t, ranking.GetByRank(0))
}

func TestNewHistoryEntry(t *testing.T) {
	e := entry("s1", 700, time.Date(2025, time.February, 1, 0, 0, 0, 0, time.UTC))
	e.Rank = 2
	e.AchievementCount = 4

	h, err := NewHistoryEntry("h-1", testDojoID, 2025, e, 12)
	require.NoError(t, err)

	assert.Equal(t, "s1", h.StudentID)
	assert.Equal(t, 2025, h.Year)
	assert.Equal(t, Rank(2), h.FinalRank)
	assert.Equal(t, 12, h.LongestStreak)
	assert.Equal(t, 4, h.AchievementCount)
	assert.True(t, h.IsPodium())

	_, err = NewHistoryEntry("", testDojoID, 2025, e, 0)
	assert.Error(t, err)

	unranked := entry("s2", 0, time.Time{})
	_, err = NewHistoryEntry("h-2", testDojoID, 2025, unranked, 0)
	assert.ErrorIs(t, err, ErrInvalidRank)
}
