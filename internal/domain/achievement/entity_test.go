package achievement

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validParams() NewDefinitionParams {
	return NewDefinitionParams{
		ID:            "3f8a1c2d-1111-4222-8333-444455556666",
		Code:          "streak_7",
		Name:          "Неделя огня",
		Description:   "7 дней подряд",
		Emoji:         "🔥",
		CriteriaType:  CriteriaStreakDays,
		CriteriaValue: 7,
		XPReward:      100,
		Rarity:        RarityRare,
	}
}

func TestNewDefinition(t *testing.T) {
	def, err := NewDefinition(validParams())
	require.NoError(t, err)

	assert.Equal(t, "streak_7", def.Code)
	assert.Equal(t, CriteriaStreakDays, def.CriteriaType)
	assert.Equal(t, 7, def.CriteriaValue)
	assert.False(t, def.IsAnnual)
	assert.False(t, def.CreatedAt.IsZero())
}

func TestNewDefinition_Validation(t *testing.T) {
	params := validParams()
	params.Name = "   "
	_, err := NewDefinition(params)
	assert.ErrorIs(t, err, ErrInvalidName)

	params = validParams()
	params.CriteriaType = "unknown"
	_, err = NewDefinition(params)
	assert.ErrorIs(t, err, ErrInvalidCriteriaType)

	params = validParams()
	params.CriteriaValue = 0
	_, err = NewDefinition(params)
	assert.ErrorIs(t, err, ErrInvalidCriteriaValue)

	params = validParams()
	params.Rarity = "mythic"
	_, err = NewDefinition(params)
	assert.ErrorIs(t, err, ErrInvalidRarity)

	params = validParams()
	params.XPReward = -5
	_, err = NewDefinition(params)
	assert.ErrorIs(t, err, ErrNegativeReward)

	// Annual achievements require a season year
	params = validParams()
	params.IsAnnual = true
	params.AnnualYear = 0
	_, err = NewDefinition(params)
	assert.ErrorIs(t, err, ErrAnnualYearRequired)

	// annual_rank criteria only makes sense on annual achievements
	params = validParams()
	params.CriteriaType = CriteriaAnnualRank
	params.IsAnnual = false
	_, err = NewDefinition(params)
	assert.Error(t, err)
}

func TestIsSatisfiedBy(t *testing.T) {
	tests := []struct {
		name     string
		criteria CriteriaType
		value    int
		stats    Stats
		want     bool
	}{
		{"tasks below threshold", CriteriaTasksCompleted, 10, Stats{TasksCompleted: 9}, false},
		{"tasks at threshold", CriteriaTasksCompleted, 10, Stats{TasksCompleted: 10}, true},
		{"tasks above threshold", CriteriaTasksCompleted, 10, Stats{TasksCompleted: 50}, true},
		{"streak below threshold", CriteriaStreakDays, 7, Stats{CurrentStreak: 6}, false},
		{"streak at threshold", CriteriaStreakDays, 7, Stats{CurrentStreak: 7}, true},
		{"xp below threshold", CriteriaTotalXP, 1000, Stats{TotalXP: 999}, false},
		{"xp at threshold", CriteriaTotalXP, 1000, Stats{TotalXP: 1000}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := validParams()
			params.CriteriaType = tt.criteria
			params.CriteriaValue = tt.value
			def, err := NewDefinition(params)
			require.NoError(t, err)

			assert.Equal(t, tt.want, def.IsSatisfiedBy(tt.stats))
		})
	}
}

func TestIsSatisfiedBy_AnnualExcluded(t *testing.T) {
	params := validParams()
	params.CriteriaType = CriteriaAnnualRank
	params.CriteriaValue = 3
	params.IsAnnual = true
	params.AnnualYear = 2025
	def, err := NewDefinition(params)
	require.NoError(t, err)

	// Annual achievements never unlock through the regular stats check
	assert.False(t, def.IsSatisfiedBy(Stats{TasksCompleted: 1000, CurrentStreak: 365, TotalXP: 99999}))
}

func TestIsSatisfiedByRank(t *testing.T) {
	params := validParams()
	params.CriteriaType = CriteriaAnnualRank
	params.CriteriaValue = 3
	params.IsAnnual = true
	params.AnnualYear = 2025
	def, err := NewDefinition(params)
	require.NoError(t, err)

	assert.True(t, def.IsSatisfiedByRank(1, 2025))
	assert.True(t, def.IsSatisfiedByRank(3, 2025))
	assert.False(t, def.IsSatisfiedByRank(4, 2025))
	assert.False(t, def.IsSatisfiedByRank(0, 2025), "unranked students never qualify")
	assert.False(t, def.IsSatisfiedByRank(1, 2024), "wrong season never qualifies")

	// Non-annual definitions never match by rank
	regular, err := NewDefinition(validParams())
	require.NoError(t, err)
	assert.False(t, regular.IsSatisfiedByRank(1, 2025))
}

func TestRarityWeight(t *testing.T) {
	assert.Less(t, RarityCommon.Weight(), RarityRare.Weight())
	assert.Less(t, RarityRare.Weight(), RarityEpic.Weight())
	assert.Less(t, RarityEpic.Weight(), RarityLegendary.Weight())
}

func TestNewUnlock(t *testing.T) {
	unlock, err := NewUnlock("u-1", "s-1", "d-1", "a-1")
	require.NoError(t, err)
	assert.False(t, unlock.UnlockedAt.IsZero())

	_, err = NewUnlock("", "s-1", "d-1", "a-1")
	assert.Error(t, err)
	_, err = NewUnlock("u-1", "", "d-1", "a-1")
	assert.Error(t, err)
	_, err = NewUnlock("u-1", "s-1", "d-1", "")
	assert.Error(t, err)
}
