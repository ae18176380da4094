package gamification

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXPForNextLevel(t *testing.T) {
	assert.Equal(t, XP(100), XPForNextLevel(1))
	assert.Equal(t, XP(200), XPForNextLevel(2))
	assert.Equal(t, XP(500), XPForNextLevel(5))
	assert.Equal(t, XP(1000), XPForNextLevel(10))

	// Levels below the minimum are clamped
	assert.Equal(t, XP(100), XPForNextLevel(0))
	assert.Equal(t, XP(100), XPForNextLevel(-3))
}

func TestXPToReachLevel(t *testing.T) {
	assert.Equal(t, XP(0), XPToReachLevel(1))
	assert.Equal(t, XP(100), XPToReachLevel(2))
	assert.Equal(t, XP(300), XPToReachLevel(3))
	assert.Equal(t, XP(600), XPToReachLevel(4))
	assert.Equal(t, XP(1000), XPToReachLevel(5))
}

func TestLevelFor(t *testing.T) {
	tests := []struct {
		totalXP XP
		want    Level
	}{
		{0, 1},
		{99, 1},
		{100, 2},
		{299, 2},
		{300, 3},
		{599, 3},
		{600, 4},
		{1000, 5},
		{-50, 1}, // negatives are treated as zero
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFor(tt.totalXP), "LevelFor(%d)", tt.totalXP)
	}
}

func TestLevelFor_Monotonic(t *testing.T) {
	prev := LevelFor(0)
	for xp := XP(1); xp <= 5000; xp++ {
		level := LevelFor(xp)
		assert.GreaterOrEqual(t, level, prev, "level curve must never decrease at %d XP", xp)
		prev = level
	}
}

func TestLevelFor_ConsistentWithThresholds(t *testing.T) {
	// Exactly at a threshold the level flips; one XP below it does not.
	for level := Level(2); level <= 20; level++ {
		threshold := XPToReachLevel(level)
		assert.Equal(t, level, LevelFor(threshold))
		assert.Equal(t, level-1, LevelFor(threshold-1))
	}
}

func TestXPProgressInLevel(t *testing.T) {
	assert.Equal(t, XP(0), XPProgressInLevel(0, 1))
	assert.Equal(t, XP(50), XPProgressInLevel(50, 1))
	assert.Equal(t, XP(99), XPProgressInLevel(99, 1))

	// Level 2 starts at 100 total XP
	assert.Equal(t, XP(0), XPProgressInLevel(100, 2))
	assert.Equal(t, XP(150), XPProgressInLevel(250, 2))

	// Progress is always below the cost of the next level
	for xp := XP(0); xp <= 3000; xp += 7 {
		level := LevelFor(xp)
		progress := XPProgressInLevel(xp, level)
		assert.GreaterOrEqual(t, progress, XP(0))
		assert.Less(t, progress, XPForNextLevel(level))
	}
}

func TestProgressPercent(t *testing.T) {
	assert.Equal(t, 0, ProgressPercent(0, 1))
	assert.Equal(t, 50, ProgressPercent(50, 1))
	assert.Equal(t, 99, ProgressPercent(99, 1))
	assert.Equal(t, 0, ProgressPercent(100, 2))
}

func TestBeltFor(t *testing.T) {
	assert.Equal(t, BeltWhite, BeltFor(1))
	assert.Equal(t, BeltWhite, BeltFor(4))
	assert.Equal(t, BeltYellow, BeltFor(5))
	assert.Equal(t, BeltOrange, BeltFor(10))
	assert.Equal(t, BeltGreen, BeltFor(15))
	assert.Equal(t, BeltBlue, BeltFor(20))
	assert.Equal(t, BeltBrown, BeltFor(30))
	assert.Equal(t, BeltBlack, BeltFor(40))
	assert.Equal(t, BeltBlack, BeltFor(99))
}
