package achievement

import (
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// AchievementUnlockedEvent - студент разблокировал достижение.
type AchievementUnlockedEvent struct {
	shared.BaseEvent
	StudentID     string `json:"student_id"`
	DojoID        string `json:"dojo_id"`
	AchievementID string `json:"achievement_id"`
	Code          string `json:"code"`
	Name          string `json:"name"`
	Rarity        Rarity `json:"rarity"`
	XPReward      int    `json:"xp_reward"`
}

// Payload реализует интерфейс shared.Event.
func (e AchievementUnlockedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"dojo_id":        e.DojoID,
		"achievement_id": e.AchievementID,
		"code":           e.Code,
		"name":           e.Name,
		"rarity":         string(e.Rarity),
		"xp_reward":      e.XPReward,
	}
}

// NewAchievementUnlockedEvent создаёт событие разблокировки достижения.
func NewAchievementUnlockedEvent(unlock *Unlock, def *Definition) AchievementUnlockedEvent {
	return AchievementUnlockedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAchievementUnlocked, unlock.StudentID),
		StudentID:     unlock.StudentID,
		DojoID:        unlock.DojoID,
		AchievementID: def.ID,
		Code:          def.Code,
		Name:          def.Name,
		Rarity:        def.Rarity,
		XPReward:      int(def.XPReward),
	}
}
