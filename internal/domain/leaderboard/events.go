package leaderboard

import (
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN EVENTS
// События лидерборда и годового цикла.
// ══════════════════════════════════════════════════════════════════════════════

// LeaderboardUpdatedEvent - лидерборд додзё пересобран.
type LeaderboardUpdatedEvent struct {
	shared.BaseEvent
	DojoID     string `json:"dojo_id"`
	EntryCount int    `json:"entry_count"`
}

// Payload реализует интерфейс shared.Event.
func (e LeaderboardUpdatedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"dojo_id":     e.DojoID,
		"entry_count": e.EntryCount,
	}
}

// NewLeaderboardUpdatedEvent создаёт событие пересборки лидерборда.
func NewLeaderboardUpdatedEvent(dojoID string, entryCount int) LeaderboardUpdatedEvent {
	return LeaderboardUpdatedEvent{
		BaseEvent:  shared.NewBaseEvent(shared.EventLeaderboardUpdated, dojoID),
		DojoID:     dojoID,
		EntryCount: entryCount,
	}
}

// SeasonArchivedEvent - итоги сезона додзё зафиксированы в архиве.
type SeasonArchivedEvent struct {
	shared.BaseEvent
	DojoID        string `json:"dojo_id"`
	Year          int    `json:"year"`
	ArchivedCount int    `json:"archived_count"`
}

// Payload реализует интерфейс shared.Event.
func (e SeasonArchivedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"dojo_id":        e.DojoID,
		"year":           e.Year,
		"archived_count": e.ArchivedCount,
	}
}

// NewSeasonArchivedEvent создаёт событие архивирования сезона.
func NewSeasonArchivedEvent(dojoID string, year, archivedCount int) SeasonArchivedEvent {
	return SeasonArchivedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventSeasonArchived, dojoID),
		DojoID:        dojoID,
		Year:          year,
		ArchivedCount: archivedCount,
	}
}

// AnnualResetCompletedEvent - годовое закрытие завершено по всем додзё.
type AnnualResetCompletedEvent struct {
	shared.BaseEvent
	Year          int `json:"year"`
	DojosArchived int `json:"dojos_archived"`
	StudentsReset int `json:"students_reset"`
	FailedDojos   int `json:"failed_dojos"`
}

// Payload реализует интерфейс shared.Event.
func (e AnnualResetCompletedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"year":           e.Year,
		"dojos_archived": e.DojosArchived,
		"students_reset": e.StudentsReset,
		"failed_dojos":   e.FailedDojos,
	}
}

// NewAnnualResetCompletedEvent создаёт событие завершения годового закрытия.
func NewAnnualResetCompletedEvent(year, dojosArchived, studentsReset, failedDojos int) AnnualResetCompletedEvent {
	return AnnualResetCompletedEvent{
		BaseEvent:     shared.NewBaseEvent(shared.EventAnnualResetCompleted, "annual-reset"),
		Year:          year,
		DojosArchived: dojosArchived,
		StudentsReset: studentsReset,
		FailedDojos:   failedDojos,
	}
}
