package command

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

func newTestDefinition(t *testing.T, code string, criteriaType achievement.CriteriaType, value int, reward gamification.XP) *achievement.Definition {
	t.Helper()
	def, err := achievement.NewDefinition(achievement.NewDefinitionParams{
		ID:            uuid.NewString(),
		Code:          code,
		Name:          code,
		CriteriaType:  criteriaType,
		CriteriaValue: value,
		XPReward:      reward,
		Rarity:        achievement.RarityCommon,
	})
	require.NoError(t, err)
	return def
}

func newAnnualDefinition(t *testing.T, code string, maxRank, seasonYear int) *achievement.Definition {
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

func TestCheckAchievements_Validation(t *testing.T) {
	handler := NewCheckAchievementsHandler(newMemAchievementRepo(), newMemXPRepo(), nil, &memPublisher{}, nil)

	_, err := handler.Handle(context.Background(), CheckAchievementsCommand{DojoID: testDojoID})
	assert.ErrorContains(t, err, "student_id is required")

	_, err = handler.Handle(context.Background(), CheckAchievementsCommand{
		StudentID: testStudentID, DojoID: testDojoID, TasksCompleted: -1,
	})
	assert.ErrorContains(t, err, "tasks_completed must be non-negative")
}

func TestCheckAchievements_UnlocksSatisfiedCriteria(t *testing.T) {
	achievementRepo := newMemAchievementRepo(
		newTestDefinition(t, "first_steps", achievement.CriteriaTasksCompleted, 5, 20),
		newTestDefinition(t, "xp_hundred", achievement.CriteriaTotalXP, 100, 50),
		newTestDefinition(t, "streak_7", achievement.CriteriaStreakDays, 7, 100),
	)
	xpRepo := newMemXPRepo()
	bus := &memPublisher{}

	_, _, err := xpRepo.Grant(context.Background(), gamification.GrantRecord{
		StudentID:    testStudentID,
		DojoID:       testDojoID,
		BaseAmount:   150,
		ActivityDate: timeutil.NewDate(2025, time.March, 10),
		Reason:       ReasonTaskCompleted,
	}, gamification.DefaultStreakPolicy())
	require.NoError(t, err)

	handler := NewCheckAchievementsHandler(achievementRepo, xpRepo, nil, bus, nil)

	result, err := handler.Handle(context.Background(), CheckAchievementsCommand{
		StudentID:      testStudentID,
		DojoID:         testDojoID,
		TasksCompleted: 6,
	})
	require.NoError(t, err)

	// Tasks and XP thresholds are met, the seven day streak is not.
	require.Len(t, result.NewlyUnlocked, 2)
	codes := []string{result.NewlyUnlocked[0].Definition.Code, result.NewlyUnlocked[1].Definition.Code}
	assert.ElementsMatch(t, []string{"first_steps", "xp_hundred"}, codes)
	assert.Equal(t, gamification.XP(70), result.RewardXP)

	require.Len(t, bus.events, 2)
	for _, event := range bus.events {
		assert.Equal(t, shared.EventAchievementUnlocked, event.EventType())
	}
}

func TestCheckAchievements_Idempotent(t *testing.T) {
	achievementRepo := newMemAchievementRepo(
		newTestDefinition(t, "first_steps", achievement.CriteriaTasksCompleted, 5, 20),
	)
	handler := NewCheckAchievementsHandler(achievementRepo, newMemXPRepo(), nil, &memPublisher{}, nil)

	cmd := CheckAchievementsCommand{StudentID: testStudentID, DojoID: testDojoID, TasksCompleted: 10}

	first, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	require.Len(t, first.NewlyUnlocked, 1)

	second, err := handler.Handle(context.Background(), cmd)
	require.NoError(t, err)
	assert.Empty(t, second.NewlyUnlocked, "a repeated check must not unlock twice")
	assert.Equal(t, gamification.XP(0), second.RewardXP)
	assert.Empty(t, second.Events)
}

func TestCheckAchievements_AnnualNeverUnlocksHere(t *testing.T) {
	achievementRepo := newMemAchievementRepo(
		newAnnualDefinition(t, "champion_2025", 1, 2025),
	)
	handler := NewCheckAchievementsHandler(achievementRepo, newMemXPRepo(), nil, &memPublisher{}, nil)

	result, err := handler.Handle(context.Background(), CheckAchievementsCommand{
		StudentID:      testStudentID,
		DojoID:         testDojoID,
		TasksCompleted: 1000,
	})
	require.NoError(t, err)
	assert.Empty(t, result.NewlyUnlocked)
}

func TestCheckAchievements_NoXPRecordYet(t *testing.T) {
	achievementRepo := newMemAchievementRepo(
		newTestDefinition(t, "first_steps", achievement.CriteriaTasksCompleted, 1, 10),
		newTestDefinition(t, "xp_hundred", achievement.CriteriaTotalXP, 100, 50),
	)
	handler := NewCheckAchievementsHandler(achievementRepo, newMemXPRepo(), nil, &memPublisher{}, nil)

	result, err := handler.Handle(context.Background(), CheckAchievementsCommand{
		StudentID:      testStudentID,
		DojoID:         testDojoID,
		TasksCompleted: 3,
	})
	require.NoError(t, err, "a student without an xp record can still unlock task achievements")

	require.Len(t, result.NewlyUnlocked, 1)
	assert.Equal(t, "first_steps", result.NewlyUnlocked[0].Definition.Code)
}

func TestCheckAchievements_RewardGoesThroughGrantPath(t *testing.T) {
	achievementRepo := newMemAchievementRepo(
		newTestDefinition(t, "xp_hundred", achievement.CriteriaTotalXP, 100, 30),
	)
	xpRepo := newMemXPRepo()
	history := &memHistoryRepo{}
	bus := &memPublisher{}

	grantHandler := NewGrantXPHandler(xpRepo, history, gamification.DefaultStreakPolicy(), bus, nil)
	_, err := grantHandler.Handle(context.Background(), GrantXPCommand{
		StudentID:  testStudentID,
		DojoID:     testDojoID,
		BaseAmount: 120,
		Reason:     ReasonTaskCompleted,
	})
	require.NoError(t, err)

	handler := NewCheckAchievementsHandler(achievementRepo, xpRepo, grantHandler, bus, nil)

	result, err := handler.Handle(context.Background(), CheckAchievementsCommand{
		StudentID: testStudentID,
		DojoID:    testDojoID,
	})
	require.NoError(t, err)
	require.Len(t, result.NewlyUnlocked, 1)

	record, err := xpRepo.Find(context.Background(), testStudentID, testDojoID)
	require.NoError(t, err)
	assert.Equal(t, gamification.XP(150), record.TotalXP, "the reward lands on the season total")

	require.Len(t, history.entries, 2)
	reward := history.entries[1]
	assert.Equal(t, ReasonAchievement, reward.Reason)
	assert.Equal(t, result.NewlyUnlocked[0].Definition.ID, reward.SourceID)
	assert.Equal(t, gamification.XP(30), reward.Granted)
}
