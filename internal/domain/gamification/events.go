package gamification

import (
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// События геймификации, на которые реагируют другие части системы
// (проверка достижений, инвалидация кеша лидерборда, уведомления).
// ══════════════════════════════════════════════════════════════════════════════

// XPGrantedEvent - студенту начислен XP.
type XPGrantedEvent struct {
	shared.BaseEvent
	StudentID  string  `json:"student_id"`
	DojoID     string  `json:"dojo_id"`
	BaseAmount XP      `json:"base_amount"`
	Granted    XP      `json:"granted"`
	Multiplier float64 `json:"multiplier"`
	NewTotal   XP      `json:"new_total"`
	Reason     string  `json:"reason"`
	SourceID   string  `json:"source_id,omitempty"`
}

// Payload реализует интерфейс shared.Event.
func (e XPGrantedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":  e.StudentID,
		"dojo_id":     e.DojoID,
		"base_amount": int(e.BaseAmount),
		"granted":     int(e.Granted),
		"multiplier":  e.Multiplier,
		"new_total":   int(e.NewTotal),
		"reason":      e.Reason,
		"source_id":   e.SourceID,
	}
}

// NewXPGrantedEvent создаёт событие начисления XP.
func NewXPGrantedEvent(record *StudentXP, applied *GrantApplied, base XP, reason, sourceID string) XPGrantedEvent {
	return XPGrantedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventXPGranted, record.StudentID),
		StudentID:  record.StudentID,
		DojoID:     record.DojoID,
		BaseAmount: base,
		Granted:    applied.XPGranted,
		Multiplier: applied.Multiplier,
		NewTotal:   applied.NewTotal,
		Reason:     reason,
		SourceID:   sourceID,
	}
}

// LevelUpEvent - студент поднял уровень.
type LevelUpEvent struct {
	shared.BaseEvent
	StudentID     string `json:"student_id"`
	DojoID        string `json:"dojo_id"`
	PreviousLevel Level  `json:"previous_level"`
	NewLevel      Level  `json:"new_level"`
	NewBelt       Belt   `json:"new_belt"`
}

// Payload реализует интерфейс shared.Event.
func (e LevelUpEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"dojo_id":        e.DojoID,
		"previous_level": int(e.PreviousLevel),
		"new_level":      int(e.NewLevel),
		"new_belt":       string(e.NewBelt),
	}
}

// NewLevelUpEvent создаёт событие повышения уровня.
func NewLevelUpEvent(record *StudentXP, previousLevel Level) LevelUpEvent {
	return LevelUpEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventLevelUp, record.StudentID),
		StudentID:     record.StudentID,
		DojoID:        record.DojoID,
		PreviousLevel: previousLevel,
		NewLevel:      record.Level,
		NewBelt:       record.Belt(),
	}
}

// StreakExtendedEvent - серия активных дней продолжена.
type StreakExtendedEvent struct {
	shared.BaseEvent
	StudentID     string        `json:"student_id"`
	DojoID        string        `json:"dojo_id"`
	CurrentStreak int           `json:"current_streak"`
	LongestStreak int           `json:"longest_streak"`
	ActivityDate  timeutil.Date `json:"activity_date"`
}

// Payload реализует интерфейс shared.Event.
func (e StreakExtendedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":     e.StudentID,
		"dojo_id":        e.DojoID,
		"current_streak": e.CurrentStreak,
		"longest_streak": e.LongestStreak,
		"activity_date":  e.ActivityDate.String(),
	}
}

// NewStreakExtendedEvent создаёт событие продолжения серии.
func NewStreakExtendedEvent(record *StudentXP, day timeutil.Date) StreakExtendedEvent {
	return StreakExtendedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventStreakExtended, record.StudentID),
		StudentID:     record.StudentID,
		DojoID:        record.DojoID,
		CurrentStreak: record.CurrentStreak,
		LongestStreak: record.LongestStreak,
		ActivityDate:  day,
	}
}

// StreakBrokenEvent - серия активных дней сброшена после пропуска.
type StreakBrokenEvent struct {
	shared.BaseEvent
	StudentID      string        `json:"student_id"`
	DojoID         string        `json:"dojo_id"`
	PreviousStreak int           `json:"previous_streak"`
	ActivityDate   timeutil.Date `json:"activity_date"`
}

// Payload реализует интерфейс shared.Event.
func (e StreakBrokenEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"student_id":      e.StudentID,
		"dojo_id":         e.DojoID,
		"previous_streak": e.PreviousStreak,
		"activity_date":   e.ActivityDate.String(),
	}
}

// NewStreakBrokenEvent создаёт событие сброса серии.
func NewStreakBrokenEvent(record *StudentXP, previousStreak int, day timeutil.Date) StreakBrokenEvent {
	return StreakBrokenEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventStreakBroken, record.StudentID),
		StudentID:      record.StudentID,
		DojoID:         record.DojoID,
		PreviousStreak: previousStreak,
		ActivityDate:   day,
	}
}
