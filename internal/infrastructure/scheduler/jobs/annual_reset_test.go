package jobs

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/internal/application/query"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY FAKES
// ══════════════════════════════════════════════════════════════════════════════

type fakeRoster struct {
	dojos    []string
	students map[string][]leaderboard.RosterStudent
}

func (r *fakeRoster) ListApproved(_ context.Context, dojoID string) ([]leaderboard.RosterStudent, error) {
	return r.students[dojoID], nil
}

func (r *fakeRoster) ListDojos(_ context.Context) ([]string, error) {
	return r.dojos, nil
}

type fakeXPRepo struct {
	records map[string][]*gamification.StudentXP
}

func (r *fakeXPRepo) Find(_ context.Context, studentID, dojoID string) (*gamification.StudentXP, error) {
	for _, rec := range r.records[dojoID] {
		if rec.StudentID == studentID {
			return rec.Clone(), nil
		}
	}
	return nil, gamification.ErrRecordNotFound
}

func (r *fakeXPRepo) ListByDojo(_ context.Context, dojoID string) ([]*gamification.StudentXP, error) {
	return r.records[dojoID], nil
}

func (r *fakeXPRepo) Grant(_ context.Context, _ gamification.GrantRecord, _ gamification.StreakPolicy) (*gamification.StudentXP, *gamification.GrantApplied, error) {
	return nil, nil, errors.New("not supported in this test")
}

func (r *fakeXPRepo) ResetSeason(_ context.Context, dojoID string, studentIDs []string) (int, error) {
	wanted := make(map[string]bool, len(studentIDs))
	for _, id := range studentIDs {
		wanted[id] = true
	}

	count := 0
	for _, rec := range r.records[dojoID] {
		if wanted[rec.StudentID] {
			rec.ResetForNewSeason()
			count++
		}
	}
	return count, nil
}

type fakeAchievementRepo struct {
	definitions []*achievement.Definition
	unlocked    map[string]*achievement.Unlock
}

func newFakeAchievementRepo(defs ...*achievement.Definition) *fakeAchievementRepo {
	return &fakeAchievementRepo{
		definitions: defs,
		unlocked:    make(map[string]*achievement.Unlock),
	}
}

func (r *fakeAchievementRepo) FindDefinition(_ context.Context, id string) (*achievement.Definition, error) {
	for _, def := range r.definitions {
		if def.ID == id {
			return def, nil
		}
	}
	return nil, achievement.ErrDefinitionNotFound
}

func (r *fakeAchievementRepo) ListDefinitions(_ context.Context) ([]*achievement.Definition, error) {
	return r.definitions, nil
}

func (r *fakeAchievementRepo) ListAnnualDefinitions(_ context.Context, seasonYear int) ([]*achievement.Definition, error) {
	var out []*achievement.Definition
	for _, def := range r.definitions {
		if def.IsAnnual && def.AnnualYear == seasonYear {
			out = append(out, def)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) SaveDefinition(_ context.Context, def *achievement.Definition) error {
	r.definitions = append(r.definitions, def)
	return nil
}

func (r *fakeAchievementRepo) ListUnlocked(_ context.Context, studentID string) ([]*achievement.Unlock, error) {
	var out []*achievement.Unlock
	for _, unlock := range r.unlocked {
		if unlock.StudentID == studentID {
			out = append(out, unlock)
		}
	}
	return out, nil
}

func (r *fakeAchievementRepo) CountUnlockedByStudents(_ context.Context, dojoID string) (map[string]int, error) {
	counts := make(map[string]int)
	for _, unlock := range r.unlocked {
		if unlock.DojoID == dojoID {
			counts[unlock.StudentID]++
		}
	}
	return counts, nil
}

func (r *fakeAchievementRepo) Unlock(_ context.Context, unlock *achievement.Unlock) (bool, error) {
	key := unlock.StudentID + "/" + unlock.AchievementID
	if _, exists := r.unlocked[key]; exists {
		return false, nil
	}
	r.unlocked[key] = unlock
	return true, nil
}

type fakeHistoryRepo struct {
	seasons      map[string][]*leaderboard.HistoryEntry
	hasSeasonErr map[string]error
}

func newFakeHistoryRepo() *fakeHistoryRepo {
	return &fakeHistoryRepo{
		seasons:      make(map[string][]*leaderboard.HistoryEntry),
		hasSeasonErr: make(map[string]error),
	}
}

func seasonKey(dojoID string, year int) string {
	return fmt.Sprintf("%s/%d", dojoID, year)
}

func (r *fakeHistoryRepo) HasSeason(_ context.Context, dojoID string, year int) (bool, error) {
	if err := r.hasSeasonErr[dojoID]; err != nil {
		return false, err
	}
	_, ok := r.seasons[seasonKey(dojoID, year)]
	return ok, nil
}

func (r *fakeHistoryRepo) ArchiveSeason(_ context.Context, entries []*leaderboard.HistoryEntry) error {
	if len(entries) == 0 {
		return nil
	}
	key := seasonKey(entries[0].DojoID, entries[0].Year)
	if _, exists := r.seasons[key]; exists {
		return leaderboard.ErrSeasonAlreadyArchived
	}
	r.seasons[key] = entries
	return nil
}

func (r *fakeHistoryRepo) ListSeason(_ context.Context, dojoID string, year int) ([]*leaderboard.HistoryEntry, error) {
	return r.seasons[seasonKey(dojoID, year)], nil
}

func (r *fakeHistoryRepo) ListStudentSeasons(_ context.Context, studentID string) ([]*leaderboard.HistoryEntry, error) {
	var out []*leaderboard.HistoryEntry
	for _, entries := range r.seasons {
		for _, entry := range entries {
			if entry.StudentID == studentID {
				out = append(out, entry)
			}
		}
	}
	return out, nil
}

type fakeCache struct {
	stored      map[string]*leaderboard.Ranking
	invalidated []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{stored: make(map[string]*leaderboard.Ranking)}
}

func (c *fakeCache) GetRanking(_ context.Context, dojoID string) (*leaderboard.Ranking, error) {
	return c.stored[dojoID], nil
}

func (c *fakeCache) StoreRanking(_ context.Context, ranking *leaderboard.Ranking, _ time.Duration) error {
	c.stored[ranking.DojoID()] = ranking
	return nil
}

func (c *fakeCache) Invalidate(_ context.Context, dojoID string) error {
	delete(c.stored, dojoID)
	c.invalidated = append(c.invalidated, dojoID)
	return nil
}

type fakePodiumNotifier struct {
	podium []string
	resets map[string]int
}

func newFakePodiumNotifier() *fakePodiumNotifier {
	return &fakePodiumNotifier{resets: make(map[string]int)}
}

func (n *fakePodiumNotifier) AnnualPodium(_ context.Context, studentID, _ string, rank, _ int) {
	n.podium = append(n.podium, fmt.Sprintf("%s#%d", studentID, rank))
}

func (n *fakePodiumNotifier) SeasonReset(_ context.Context, studentID, _ string, newSeason int) {
	n.resets[studentID] = newSeason
}

type fakePublisher struct {
	events []shared.Event
}

func (p *fakePublisher) Publish(event shared.Event) error {
	p.events = append(p.events, event)
	return nil
}

func (p *fakePublisher) countByType(eventType shared.EventType) int {
	count := 0
	for _, event := range p.events {
		if event.EventType() == eventType {
			count++
		}
	}
	return count
}

// ══════════════════════════════════════════════════════════════════════════════
// TEST FIXTURE
// ══════════════════════════════════════════════════════════════════════════════

type closeOutFixture struct {
	roster          *fakeRoster
	xpRepo          *fakeXPRepo
	achievementRepo *fakeAchievementRepo
	historyRepo     *fakeHistoryRepo
	cache           *fakeCache
	notifier        *fakePodiumNotifier
	bus             *fakePublisher
	leaderboards    *query.GetLeaderboardHandler
}

func newCloseOutFixture(defs ...*achievement.Definition) *closeOutFixture {
	f := &closeOutFixture{
		roster: &fakeRoster{
			students: make(map[string][]leaderboard.RosterStudent),
		},
		xpRepo:          &fakeXPRepo{records: make(map[string][]*gamification.StudentXP)},
		achievementRepo: newFakeAchievementRepo(defs...),
		historyRepo:     newFakeHistoryRepo(),
		cache:           newFakeCache(),
		notifier:        newFakePodiumNotifier(),
		bus:             &fakePublisher{},
	}
	f.leaderboards = query.NewGetLeaderboardHandler(
		f.roster, f.xpRepo, f.achievementRepo, f.cache, f.bus, time.Minute, nil)
	return f
}

// addDojo seeds a dojo where student i (zero based) has total XP of xps[i].
func (f *closeOutFixture) addDojo(dojoID string, xps ...gamification.XP) {
	f.roster.dojos = append(f.roster.dojos, dojoID)

	started := time.Date(2025, time.February, 1, 10, 0, 0, 0, time.UTC)
	for i, total := range xps {
		studentID := fmt.Sprintf("%s-student-%d", dojoID, i+1)
		f.roster.students[dojoID] = append(f.roster.students[dojoID], leaderboard.RosterStudent{
			StudentID:   studentID,
			DisplayName: studentID,
		})
		f.xpRepo.records[dojoID] = append(f.xpRepo.records[dojoID], &gamification.StudentXP{
			StudentID:       studentID,
			DojoID:          dojoID,
			TotalXP:         total,
			Level:           gamification.LevelFor(total),
			CurrentStreak:   2,
			LongestStreak:   9,
			FirstActivityAt: started.Add(time.Duration(i) * time.Hour),
			CreatedAt:       started,
			UpdatedAt:       started,
		})
	}
}

func (f *closeOutFixture) newJob(config AnnualResetConfig) *AnnualResetJob {
	return NewAnnualResetJob(
		f.roster, f.leaderboards, f.xpRepo, f.achievementRepo, f.historyRepo,
		f.cache, f.notifier, f.bus, nil, config)
}

func newAnnualRankDefinition(t *testing.T, code string, maxRank, seasonYear int) *achievement.Definition {
	t.Helper()
	def, err := achievement.NewDefinition(achievement.NewDefinitionParams{
		ID:            uuid.NewString(),
		Code:          code,
		Name:          code,
		CriteriaType:  achievement.CriteriaAnnualRank,
		CriteriaValue: maxRank,
		Rarity:        achievement.RarityLegendary,
		IsAnnual:      true,
		AnnualYear:    seasonYear,
	})
	require.NoError(t, err)
	return def
}

// ══════════════════════════════════════════════════════════════════════════════
// ANNUAL RESET TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestAnnualReset_ClosesSeason(t *testing.T) {
	f := newCloseOutFixture(newAnnualRankDefinition(t, "podium_2025", 3, 2025))
	f.addDojo("dojo-1", 400, 300, 200, 100)

	job := f.newJob(AnnualResetConfig{Year: 2025, NotifySeasonReset: true})
	require.NoError(t, job.Run(context.Background()))

	// The archive holds the final standings.
	archived, err := f.historyRepo.ListSeason(context.Background(), "dojo-1", 2025)
	require.NoError(t, err)
	require.Len(t, archived, 4)
	assert.Equal(t, "dojo-1-student-1", archived[0].StudentID)
	assert.Equal(t, leaderboard.Rank(1), archived[0].FinalRank)
	assert.Equal(t, gamification.XP(400), archived[0].TotalXP)
	assert.Equal(t, 9, archived[0].LongestStreak)
	assert.Equal(t, leaderboard.Rank(4), archived[3].FinalRank)

	// The podium earns the annual achievement, fourth place does not.
	assert.Len(t, f.achievementRepo.unlocked, 3)
	_, fourth := f.achievementRepo.unlocked["dojo-1-student-4/"+f.achievementRepo.definitions[0].ID]
	assert.False(t, fourth)

	assert.Equal(t, []string{"dojo-1-student-1#1", "dojo-1-student-2#2", "dojo-1-student-3#3"}, f.notifier.podium)

	// Every record starts the new season from zero.
	for _, rec := range f.xpRepo.records["dojo-1"] {
		assert.Equal(t, gamification.XP(0), rec.TotalXP)
		assert.Equal(t, 0, rec.LongestStreak)
	}
	assert.Len(t, f.notifier.resets, 4)
	assert.Equal(t, 2026, f.notifier.resets["dojo-1-student-4"])
	assert.Contains(t, f.cache.invalidated, "dojo-1")

	stats, ok := job.LastStats()
	require.True(t, ok)
	assert.Equal(t, 2025, stats.Year)
	assert.Equal(t, 1, stats.DojosClosed)
	assert.Equal(t, 4, stats.StudentsArchived)
	assert.Equal(t, 4, stats.StudentsReset)
	assert.Zero(t, stats.DojosFailed)

	assert.Equal(t, 1, f.bus.countByType(shared.EventSeasonArchived))
	assert.Equal(t, 1, f.bus.countByType(shared.EventAnnualResetCompleted))
	assert.Equal(t, 3, f.bus.countByType(shared.EventAchievementUnlocked))
}

func TestAnnualReset_SecondRunSkips(t *testing.T) {
	f := newCloseOutFixture(newAnnualRankDefinition(t, "podium_2025", 3, 2025))
	f.addDojo("dojo-1", 400, 300, 200, 100)

	job := f.newJob(AnnualResetConfig{Year: 2025, NotifySeasonReset: true})
	require.NoError(t, job.Run(context.Background()))
	require.NoError(t, job.Run(context.Background()))

	stats, ok := job.LastStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.DojosSkipped)
	assert.Zero(t, stats.DojosClosed)

	// Replaying the close-out never duplicates awards or notifications.
	assert.Len(t, f.achievementRepo.unlocked, 3)
	assert.Len(t, f.notifier.podium, 3)

	archived, err := f.historyRepo.ListSeason(context.Background(), "dojo-1", 2025)
	require.NoError(t, err)
	assert.Len(t, archived, 4)
}

func TestAnnualReset_EmptyDojoIsSkipped(t *testing.T) {
	f := newCloseOutFixture()
	f.roster.dojos = []string{"dojo-empty"}

	job := f.newJob(AnnualResetConfig{Year: 2025})
	require.NoError(t, job.Run(context.Background()))

	stats, ok := job.LastStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.DojosSkipped)

	done, err := f.historyRepo.HasSeason(context.Background(), "dojo-empty", 2025)
	require.NoError(t, err)
	assert.False(t, done, "an empty dojo leaves no archive and is retried next season")
}

func TestAnnualReset_FailedDojoDoesNotBlockOthers(t *testing.T) {
	f := newCloseOutFixture()
	f.addDojo("dojo-broken", 100)
	f.addDojo("dojo-ok", 200, 100)
	f.historyRepo.hasSeasonErr["dojo-broken"] = errors.New("relation does not exist")

	job := f.newJob(AnnualResetConfig{Year: 2025})
	err := job.Run(context.Background())
	assert.ErrorContains(t, err, "1 of 2 dojos failed")

	stats, ok := job.LastStats()
	require.True(t, ok)
	assert.Equal(t, 1, stats.DojosFailed)
	assert.Equal(t, 1, stats.DojosClosed)
	require.Len(t, stats.Errors, 1)
	assert.Contains(t, stats.Errors[0], "dojo-broken")

	archived, err := f.historyRepo.ListSeason(context.Background(), "dojo-ok", 2025)
	require.NoError(t, err)
	assert.Len(t, archived, 2)
}

// ══════════════════════════════════════════════════════════════════════════════
// REBUILD LEADERBOARD TESTS
// ══════════════════════════════════════════════════════════════════════════════

func TestRebuildLeaderboard_WarmsEveryDojo(t *testing.T) {
	f := newCloseOutFixture()
	f.addDojo("dojo-1", 300, 200)
	f.addDojo("dojo-2", 500)

	job := NewRebuildLeaderboardJob(f.roster, f.leaderboards, nil, RebuildLeaderboardConfig{})
	require.NoError(t, job.Run(context.Background()))

	assert.Len(t, f.cache.stored, 2)
	require.NotNil(t, f.cache.stored["dojo-1"])
	assert.Equal(t, 2, f.cache.stored["dojo-1"].Count())

	stats, ok := job.LastStats()
	require.True(t, ok)
	assert.Equal(t, 2, stats.DojosTotal)
	assert.Equal(t, 2, stats.DojosRebuilt)
	assert.Zero(t, stats.DojosFailed)
	assert.Equal(t, 3, stats.Entries)
}
