package command

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

const (
	testStudentID = "6a1f9c3e-1111-4222-8333-444455556666"
	testDojoID    = "7b2e8d4f-aaaa-4bbb-8ccc-dddd11112222"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type memXPRepo struct {
	records  map[string]*gamification.StudentXP
	grantErr error
}

func newMemXPRepo() *memXPRepo {
	return &memXPRepo{records: make(map[string]*gamification.StudentXP)}
}

func xpKey(studentID, dojoID string) string {
	return studentID + "/" + dojoID
}

func (r *memXPRepo) Find(_ context.Context, studentID, dojoID string) (*gamification.StudentXP, error) {
	record, ok := r.records[xpKey(studentID, dojoID)]
	if !ok {
		return nil, gamification.ErrRecordNotFound
	}
	return record.Clone(), nil
}

func (r *memXPRepo) ListByDojo(_ context.Context, dojoID string) ([]*gamification.StudentXP, error) {
	var out []*gamification.StudentXP
	for _, record := range r.records {
		if record.DojoID == dojoID {
			out = append(out, record.Clone())
		}
	}
	return out, nil
}

func (r *memXPRepo) Grant(_ context.Context, rec gamification.GrantRecord, policy gamification.StreakPolicy) (*gamification.StudentXP, *gamification.GrantApplied, error) {
	if r.grantErr != nil {
		return nil, nil, r.grantErr
	}

	record, ok := r.records[xpKey(rec.StudentID, rec.DojoID)]
	if !ok {
		created, err := gamification.NewStudentXP(rec.StudentID, rec.DojoID)
		if err != nil {
			return nil, nil, err
		}
		record = created
		r.records[xpKey(rec.StudentID, rec.DojoID)] = record
	}

	applied, err := record.ApplyGrant(rec.BaseAmount, rec.ActivityDate, policy)
	if err != nil {
		return nil, nil, err
	}
	return record.Clone(), applied, nil
}

func (r *memXPRepo) ResetSeason(_ context.Context, dojoID string, studentIDs []string) (int, error) {
	count := 0
	for _, studentID := range studentIDs {
		if record, ok := r.records[xpKey(studentID, dojoID)]; ok {
			record.ResetForNewSeason()
			count++
		}
	}
	return count, nil
}

type memHistoryRepo struct {
	entries   []gamification.XPHistoryEntry
	recordErr error
}

func (r *memHistoryRepo) Record(_ context.Context, entry gamification.XPHistoryEntry) error {
	if r.recordErr != nil {
		return r.recordErr
	}
	r.entries = append(r.entries, entry)
	return nil
}

func (r *memHistoryRepo) ListByStudent(_ context.Context, studentID, dojoID string, _ shared.Pagination) ([]gamification.XPHistoryEntry, error) {
	var out []gamification.XPHistoryEntry
	for i := len(r.entries) - 1; i >= 0; i-- {
		entry := r.entries[i]
		if entry.StudentID == studentID && entry.DojoID == dojoID {
			out = append(out, entry)
		}
	}
	return out, nil
}

type memPublisher struct {
	events []shared.Event
}

func (p *memPublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *memPublisher) eventTypes() []shared.EventType {
	types := make([]shared.EventType, 0, len(p.events))
	for _, event := range p.events {
		types = append(types, event.EventType())
	}
	return types
}

type memAchievementRepo struct {
	definitions []*achievement.Definition
	unlocked    map[string]*achievement.Unlock
	unlockErr   error
}

func newMemAchievementRepo(defs ...*achievement.Definition) *memAchievementRepo {
	return &memAchievementRepo{
		definitions: defs,
		unlocked:    make(map[string]*achievement.Unlock),
	}
}

func unlockKey(studentID, achievementID string) string {
	return studentID + "/" + achievementID
}

func (r *memAchievementRepo) FindDefinition(_ context.Context, id string) (*achievement.Definition, error) {
	for _, def := range r.definitions {
		if def.ID == id {
			return def, nil
		}
	}
	return nil, achievement.ErrDefinitionNotFound
}

func (r *memAchievementRepo) ListDefinitions(_ context.Context) ([]*achievement.Definition, error) {
	return r.definitions, nil
}

func (r *memAchievementRepo) ListAnnualDefinitions(_ context.Context, seasonYear int) ([]*achievement.Definition, error) {
	var out []*achievement.Definition
	for _, def := range r.definitions {
		if def.IsAnnual && def.AnnualYear == seasonYear {
			out = append(out, def)
		}
	}
	return out, nil
}

func (r *memAchievementRepo) SaveDefinition(_ context.Context, def *achievement.Definition) error {
	r.definitions = append(r.definitions, def)
	return nil
}

func (r *memAchievementRepo) ListUnlocked(_ context.Context, studentID string) ([]*achievement.Unlock, error) {
	var out []*achievement.Unlock
	for _, unlock := range r.unlocked {
		if unlock.StudentID == studentID {
			out = append(out, unlock)
		}
	}
	return out, nil
}

func (r *memAchievementRepo) CountUnlockedByStudents(_ context.Context, dojoID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, unlock := range r.unlocked {
		if unlock.DojoID == dojoID {
			counts[unlock.StudentID]++
		}
	}
	return counts, nil
}

func (r *memAchievementRepo) Unlock(_ context.Context, unlock *achievement.Unlock) (bool, error) {
	if r.unlockErr != nil {
		return false, r.unlockErr
	}
	key := unlockKey(unlock.StudentID, unlock.AchievementID)
	if _, exists := r.unlocked[key]; exists {
		return false, nil
	}
	r.unlocked[key] = unlock
	return true, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GRANT XP TESTS
// ══════════════════════════════════════════════════════════════════════════════

func newGrantFixture() (*GrantXPHandler, *memXPRepo, *memHistoryRepo, *memPublisher) {
	repo := newMemXPRepo()
	history := &memHistoryRepo{}
	bus := &memPublisher{}
	handler := NewGrantXPHandler(repo, history, gamification.DefaultStreakPolicy(), bus, nil)
	return handler, repo, history, bus
}

func grantOn(t *testing.T, handler *GrantXPHandler, day timeutil.Date, amount gamification.XP) *GrantXPResult {
	t.Helper()
	result, err := handler.Handle(context.Background(), GrantXPCommand{
		StudentID:    testStudentID,
		DojoID:       testDojoID,
		BaseAmount:   amount,
		ActivityDate: day,
		Reason:       ReasonTaskCompleted,
	})
	require.NoError(t, err)
	return result
}

func TestGrantXP_Validation(t *testing.T) {
	handler, _, _, bus := newGrantFixture()

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		DojoID: testDojoID, BaseAmount: 10, Reason: ReasonTaskCompleted,
	})
	assert.ErrorContains(t, err, "student_id is required")

	_, err = handler.Handle(context.Background(), GrantXPCommand{
		StudentID: testStudentID, DojoID: testDojoID, BaseAmount: 10, Reason: "gift",
	})
	assert.ErrorContains(t, err, "unknown reason")

	_, err = handler.Handle(context.Background(), GrantXPCommand{
		StudentID: testStudentID, DojoID: testDojoID, BaseAmount: -5, Reason: ReasonBonus,
	})
	assert.ErrorContains(t, err, "must be non-negative")

	assert.Empty(t, bus.events, "rejected command must not publish events")
}

func TestGrantXP_FirstGrant(t *testing.T) {
	handler, repo, history, bus := newGrantFixture()
	day := timeutil.NewDate(2025, time.March, 10)

	result := grantOn(t, handler, day, 50)

	assert.Equal(t, gamification.XP(50), result.Granted)
	assert.Equal(t, 1.0, result.Multiplier)
	assert.Equal(t, gamification.XP(50), result.NewTotal)
	assert.Equal(t, gamification.MinLevel, result.NewLevel)
	assert.Equal(t, gamification.BeltWhite, result.NewBelt)
	assert.False(t, result.LeveledUp)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.False(t, result.StreakExtended)
	assert.False(t, result.StreakBroken)

	record, err := repo.Find(context.Background(), testStudentID, testDojoID)
	require.NoError(t, err)
	assert.Equal(t, gamification.XP(50), record.TotalXP)

	require.Len(t, history.entries, 1)
	assert.Equal(t, gamification.XP(50), history.entries[0].BaseAmount)
	assert.Equal(t, ReasonTaskCompleted, history.entries[0].Reason)

	assert.Equal(t, []shared.EventType{shared.EventXPGranted}, bus.eventTypes())
}

func TestGrantXP_DefaultsToToday(t *testing.T) {
	handler, repo, _, _ := newGrantFixture()

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		StudentID:  testStudentID,
		DojoID:     testDojoID,
		BaseAmount: 10,
		Reason:     ReasonBonus,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, result.CurrentStreak)

	record, err := repo.Find(context.Background(), testStudentID, testDojoID)
	require.NoError(t, err)
	require.NotNil(t, record.LastActivityDate)
	assert.True(t, record.LastActivityDate.Equal(timeutil.Today()))
}

func TestGrantXP_StreakMultiplier(t *testing.T) {
	handler, _, _, bus := newGrantFixture()

	grantOn(t, handler, timeutil.NewDate(2025, time.March, 10), 100)
	grantOn(t, handler, timeutil.NewDate(2025, time.March, 11), 100)
	result := grantOn(t, handler, timeutil.NewDate(2025, time.March, 12), 100)

	assert.Equal(t, 3, result.CurrentStreak)
	assert.True(t, result.StreakExtended)
	assert.Equal(t, 1.1, result.Multiplier)
	assert.Equal(t, gamification.XP(110), result.Granted, "day three carries the 1.1 multiplier")

	assert.Contains(t, bus.eventTypes(), shared.EventStreakExtended)
}

func TestGrantXP_LevelUpEvent(t *testing.T) {
	handler, _, _, bus := newGrantFixture()

	result := grantOn(t, handler, timeutil.NewDate(2025, time.March, 10), 120)

	assert.True(t, result.LeveledUp)
	assert.Equal(t, gamification.Level(2), result.NewLevel)
	assert.Contains(t, bus.eventTypes(), shared.EventLevelUp)
}

func TestGrantXP_StreakBroken(t *testing.T) {
	handler, _, _, bus := newGrantFixture()

	grantOn(t, handler, timeutil.NewDate(2025, time.March, 10), 10)
	grantOn(t, handler, timeutil.NewDate(2025, time.March, 11), 10)
	result := grantOn(t, handler, timeutil.NewDate(2025, time.March, 20), 10)

	assert.True(t, result.StreakBroken)
	assert.Equal(t, 2, result.PreviousStreak)
	assert.Equal(t, 1, result.CurrentStreak)
	assert.Contains(t, bus.eventTypes(), shared.EventStreakBroken)
}

func TestGrantXP_HistoryFailureIsNotFatal(t *testing.T) {
	repo := newMemXPRepo()
	history := &memHistoryRepo{recordErr: errors.New("journal is down")}
	bus := &memPublisher{}
	handler := NewGrantXPHandler(repo, history, gamification.DefaultStreakPolicy(), bus, nil)

	result, err := handler.Handle(context.Background(), GrantXPCommand{
		StudentID:    testStudentID,
		DojoID:       testDojoID,
		BaseAmount:   25,
		ActivityDate: timeutil.NewDate(2025, time.March, 10),
		Reason:       ReasonTaskCompleted,
	})
	require.NoError(t, err, "a failed journal append must not undo the grant")
	assert.Equal(t, gamification.XP(25), result.Granted)
	assert.Empty(t, history.entries)
}

func TestGrantXP_RepositoryFailure(t *testing.T) {
	repo := newMemXPRepo()
	repo.grantErr = errors.New("connection refused")
	bus := &memPublisher{}
	handler := NewGrantXPHandler(repo, &memHistoryRepo{}, gamification.DefaultStreakPolicy(), bus, nil)

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		StudentID:  testStudentID,
		DojoID:     testDojoID,
		BaseAmount: 25,
		Reason:     ReasonTaskCompleted,
	})
	assert.ErrorContains(t, err, "failed to apply grant")
	assert.Empty(t, bus.events)
}

func TestGrantXP_CorrelationIDPropagates(t *testing.T) {
	handler, _, _, bus := newGrantFixture()

	_, err := handler.Handle(context.Background(), GrantXPCommand{
		StudentID:     testStudentID,
		DojoID:        testDojoID,
		BaseAmount:    10,
		ActivityDate:  timeutil.NewDate(2025, time.March, 10),
		Reason:        ReasonTaskCompleted,
		CorrelationID: "req-42",
	})
	require.NoError(t, err)

	require.NotEmpty(t, bus.events)
	granted, ok := bus.events[0].(gamification.XPGrantedEvent)
	require.True(t, ok)
	assert.Equal(t, "req-42", granted.BaseEvent.CorrelationID)
}
