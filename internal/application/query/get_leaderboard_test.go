package query

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

const testDojoID = "7b2e8d4f-aaaa-4bbb-8ccc-dddd11112222"

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type stubRoster struct {
	students map[string][]leaderboard.RosterStudent
	dojos    []string
	listErr  error
}

func (r *stubRoster) ListApproved(_ context.Context, dojoID string) ([]leaderboard.RosterStudent, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	return r.students[dojoID], nil
}

func (r *stubRoster) ListDojos(_ context.Context) ([]string, error) {
	return r.dojos, nil
}

type stubXPRepo struct {
	records map[string][]*gamification.StudentXP
}

func (r *stubXPRepo) Find(_ context.Context, studentID, dojoID string) (*gamification.StudentXP, error) {
	for _, rec := range r.records[dojoID] {
		if rec.StudentID == studentID {
			return rec.Clone(), nil
		}
	}
	return nil, gamification.ErrRecordNotFound
}

func (r *stubXPRepo) ListByDojo(_ context.Context, dojoID string) ([]*gamification.StudentXP, error) {
	return r.records[dojoID], nil
}

func (r *stubXPRepo) Grant(_ context.Context, _ gamification.GrantRecord, _ gamification.StreakPolicy) (*gamification.StudentXP, *gamification.GrantApplied, error) {
	return nil, nil, errors.New("not supported in this test")
}

func (r *stubXPRepo) ResetSeason(_ context.Context, _ string, _ []string) (int, error) {
	return 0, nil
}

type stubAchievementRepo struct {
	counts map[string]int
}

func (r *stubAchievementRepo) FindDefinition(_ context.Context, _ string) (*achievement.Definition, error) {
	return nil, achievement.ErrDefinitionNotFound
}

func (r *stubAchievementRepo) ListDefinitions(_ context.Context) ([]*achievement.Definition, error) {
	return nil, nil
}

func (r *stubAchievementRepo) ListAnnualDefinitions(_ context.Context, _ int) ([]*achievement.Definition, error) {
	return nil, nil
}

func (r *stubAchievementRepo) SaveDefinition(_ context.Context, _ *achievement.Definition) error {
	return nil
}

func (r *stubAchievementRepo) ListUnlocked(_ context.Context, _ string) ([]*achievement.Unlock, error) {
	return nil, nil
}

func (r *stubAchievementRepo) CountUnlockedByStudents(_ context.Context, _ string) (map[string]int, error) {
	return r.counts, nil
}

func (r *stubAchievementRepo) Unlock(_ context.Context, _ *achievement.Unlock) (bool, error) {
	return false, nil
}

type stubCache struct {
	stored   map[string]*leaderboard.Ranking
	getErr   error
	storeErr error
}

func newStubCache() *stubCache {
	return &stubCache{stored: make(map[string]*leaderboard.Ranking)}
}

func (c *stubCache) GetRanking(_ context.Context, dojoID string) (*leaderboard.Ranking, error) {
	if c.getErr != nil {
		return nil, c.getErr
	}
	return c.stored[dojoID], nil
}

func (c *stubCache) StoreRanking(_ context.Context, ranking *leaderboard.Ranking, _ time.Duration) error {
	if c.storeErr != nil {
		return c.storeErr
	}
	c.stored[ranking.DojoID()] = ranking
	return nil
}

func (c *stubCache) Invalidate(_ context.Context, dojoID string) error {
	delete(c.stored, dojoID)
	return nil
}

type stubPublisher struct {
	events []shared.Event
}

func (p *stubPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func xpRecord(studentID string, total gamification.XP, firstActivity time.Time) *gamification.StudentXP {
	return &gamification.StudentXP{
		StudentID:       studentID,
		DojoID:          testDojoID,
		TotalXP:         total,
		Level:           gamification.LevelFor(total),
		CurrentStreak:   1,
		FirstActivityAt: firstActivity,
		CreatedAt:       firstActivity,
		UpdatedAt:       firstActivity,
	}
}

func newLeaderboardFixture(students []leaderboard.RosterStudent, records []*gamification.StudentXP, counts map[string]int, cache leaderboard.Cache) (*GetLeaderboardHandler, *stubPublisher) {
	roster := &stubRoster{
		students: map[string][]leaderboard.RosterStudent{testDojoID: students},
		dojos:    []string{testDojoID},
	}
	xpRepo := &stubXPRepo{records: map[string][]*gamification.StudentXP{testDojoID: records}}
	bus := &stubPublisher{}
	handler := NewGetLeaderboardHandler(roster, xpRepo, &stubAchievementRepo{counts: counts}, cache, bus, time.Minute, nil)
	return handler, bus
}

// ══════════════════════════════════════════════════════════════════════════════
// TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestGetLeaderboard_Validation(t *testing.T) {
	handler, _ := newLeaderboardFixture(nil, nil, nil, nil)

	_, err := handler.Handle(context.Background(), GetLeaderboardQuery{})
	assert.ErrorContains(t, err, "dojo_id is required")

	_, err = handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID, Limit: -1})
	assert.ErrorContains(t, err, "limit cannot be negative")
}

func TestGetLeaderboard_BuildsSortedRanking(t *testing.T) {
	started := time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)
	students := []leaderboard.RosterStudent{
		{StudentID: "student-a", DisplayName: "Aidar"},
		{StudentID: "student-b", DisplayName: "Botagoz"},
		{StudentID: "student-c", DisplayName: "Chingiz"},
	}
	records := []*gamification.StudentXP{
		xpRecord("student-a", 300, started),
		xpRecord("student-b", 500, started),
	}
	counts := map[string]int{"student-b": 4}

	handler, bus := newLeaderboardFixture(students, records, counts, nil)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID})
	require.NoError(t, err)

	require.Len(t, result.Entries, 3)
	assert.Equal(t, "student-b", result.Entries[0].StudentID)
	assert.Equal(t, 1, result.Entries[0].Rank)
	assert.Equal(t, 500, result.Entries[0].TotalXP)
	assert.Equal(t, 4, result.Entries[0].AchievementCount)

	assert.Equal(t, "student-a", result.Entries[1].StudentID)
	assert.Equal(t, 2, result.Entries[1].Rank)

	// The student without a single grant still takes part with a zero score.
	zero := result.Entries[2]
	assert.Equal(t, "student-c", zero.StudentID)
	assert.Equal(t, 3, zero.Rank)
	assert.Equal(t, 0, zero.TotalXP)
	assert.Equal(t, gamification.MinLevel.Int(), zero.Level)
	assert.Equal(t, string(gamification.BeltWhite), zero.Belt)

	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, (300+500)/3, result.AverageXP)
	assert.False(t, result.FromCache)
	assert.False(t, result.HasMore)

	require.Len(t, bus.events, 1)
	assert.Equal(t, shared.EventLeaderboardUpdated, bus.events[0].EventType())
}

func TestGetLeaderboard_TieBreakByFirstActivity(t *testing.T) {
	early := time.Date(2025, time.January, 5, 9, 0, 0, 0, time.UTC)
	late := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	students := []leaderboard.RosterStudent{
		{StudentID: "student-late", DisplayName: "Late"},
		{StudentID: "student-early", DisplayName: "Early"},
	}
	records := []*gamification.StudentXP{
		xpRecord("student-late", 200, late),
		xpRecord("student-early", 200, early),
	}

	handler, _ := newLeaderboardFixture(students, records, nil, nil)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID})
	require.NoError(t, err)

	require.Len(t, result.Entries, 2)
	assert.Equal(t, "student-early", result.Entries[0].StudentID, "equal XP ranks the earlier starter higher")
	assert.Equal(t, "student-late", result.Entries[1].StudentID)
}

func TestGetLeaderboard_Pagination(t *testing.T) {
	started := time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)
	students := make([]leaderboard.RosterStudent, 0, 5)
	records := make([]*gamification.StudentXP, 0, 5)
	ids := []string{"s1", "s2", "s3", "s4", "s5"}
	for i, id := range ids {
		students = append(students, leaderboard.RosterStudent{StudentID: id, DisplayName: id})
		records = append(records, xpRecord(id, gamification.XP(500-i*100), started))
	}

	handler, _ := newLeaderboardFixture(students, records, nil, nil)

	page, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID, Limit: 2, Offset: 2})
	require.NoError(t, err)

	require.Len(t, page.Entries, 2)
	assert.Equal(t, 3, page.Entries[0].Rank)
	assert.Equal(t, "s3", page.Entries[0].StudentID)
	assert.Equal(t, 4, page.Entries[1].Rank)
	assert.Equal(t, 5, page.TotalCount)
	assert.True(t, page.HasMore)

	last, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID, Limit: 2, Offset: 4})
	require.NoError(t, err)
	require.Len(t, last.Entries, 1)
	assert.Equal(t, 5, last.Entries[0].Rank)
	assert.False(t, last.HasMore)
}

func TestGetLeaderboard_CacheHit(t *testing.T) {
	started := time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)
	students := []leaderboard.RosterStudent{{StudentID: "student-a", DisplayName: "Aidar"}}
	records := []*gamification.StudentXP{xpRecord("student-a", 100, started)}
	cache := newStubCache()

	handler, _ := newLeaderboardFixture(students, records, nil, cache)

	first, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID})
	require.NoError(t, err)
	assert.False(t, first.FromCache)

	second, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID})
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	require.Len(t, second.Entries, 1)
	assert.Equal(t, first.Entries[0], second.Entries[0])
}

func TestGetLeaderboard_CacheReadFailureFallsBack(t *testing.T) {
	started := time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)
	students := []leaderboard.RosterStudent{{StudentID: "student-a", DisplayName: "Aidar"}}
	records := []*gamification.StudentXP{xpRecord("student-a", 100, started)}
	cache := newStubCache()
	cache.getErr = errors.New("connection reset")

	handler, _ := newLeaderboardFixture(students, records, nil, cache)

	result, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID})
	require.NoError(t, err, "a broken cache must not break reads")
	assert.False(t, result.FromCache)
	require.Len(t, result.Entries, 1)
}

func TestGetLeaderboard_RosterFailure(t *testing.T) {
	roster := &stubRoster{listErr: errors.New("roster unavailable")}
	xpRepo := &stubXPRepo{records: map[string][]*gamification.StudentXP{}}
	handler := NewGetLeaderboardHandler(roster, xpRepo, &stubAchievementRepo{}, nil, nil, time.Minute, nil)

	_, err := handler.Handle(context.Background(), GetLeaderboardQuery{DojoID: testDojoID})
	assert.ErrorContains(t, err, "failed to load roster")
}
