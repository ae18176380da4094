package leaderboard

import (
	"errors"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEASON HISTORY (Годовой архив)
// ══════════════════════════════════════════════════════════════════════════════

// HistoryEntry - итог одного студента за закрытый сезон.
// Тройка (StudentID, DojoID, Year) уникальна: сезон архивируется один раз.
type HistoryEntry struct {
	// ID - уникальный идентификатор записи (UUID).
	ID string

	// StudentID - студент.
	StudentID string

	// DojoID - додзё.
	DojoID string

	// Year - закрытый сезон (календарный год).
	Year int

	// FinalRank - итоговое место в сезоне.
	FinalRank Rank

	// TotalXP - итоговый XP за сезон.
	TotalXP gamification.XP

	// Level - итоговый уровень.
	Level gamification.Level

	// LongestStreak - лучшая серия за сезон.
	LongestStreak int

	// AchievementCount - количество достижений на момент закрытия.
	AchievementCount int

	// ArchivedAt - время архивирования.
	ArchivedAt time.Time
}

// NewHistoryEntry создаёт архивную запись из строки лидерборда.
func NewHistoryEntry(id string, dojoID string, year int, entry *Entry, longestStreak int) (*HistoryEntry, error) {
	if id == "" {
		return nil, errors.New("history entry id is required")
	}
	if dojoID == "" {
		return nil, ErrInvalidDojoID
	}
	if entry == nil {
		return nil, ErrNilEntry
	}
	if !entry.Rank.IsValid() {
		return nil, ErrInvalidRank
	}

	return &HistoryEntry{
		ID:               id,
		StudentID:        entry.StudentID,
		DojoID:           dojoID,
		Year:             year,
		FinalRank:        entry.Rank,
		TotalXP:          entry.TotalXP,
		Level:            entry.Level,
		LongestStreak:    longestStreak,
		AchievementCount: entry.AchievementCount,
		ArchivedAt:       time.Now().UTC(),
	}, nil
}

// IsPodium возвращает true, если студент закончил сезон на призовом месте.
func (h *HistoryEntry) IsPodium() bool {
	return h.FinalRank.IsPodium()
}
