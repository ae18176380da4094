package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET SEASON HISTORY QUERY
// Архив закрытых сезонов: итоги додзё за год или все сезоны одного студента.
// ══════════════════════════════════════════════════════════════════════════════

// GetSeasonHistoryQuery содержит параметры запроса архива.
// Заполняется либо пара (DojoID, Year), либо StudentID.
type GetSeasonHistoryQuery struct {
	// DojoID - додзё, чей сезон запрашивается.
	DojoID string

	// Year - закрытый сезон.
	Year int

	// StudentID - студент, чьи сезоны запрашиваются (вместо DojoID+Year).
	StudentID string
}

// Validate проверяет корректность параметров.
func (q GetSeasonHistoryQuery) Validate() error {
	if q.StudentID != "" {
		return nil
	}
	if q.DojoID == "" {
		return errors.New("get_season_history: dojo_id or student_id is required")
	}
	if q.Year == 0 {
		return errors.New("get_season_history: year is required")
	}
	return nil
}

// SeasonHistoryEntryDTO - DTO одной архивной записи.
type SeasonHistoryEntryDTO struct {
	StudentID        string `json:"student_id"`
	DojoID           string `json:"dojo_id"`
	Year             int    `json:"year"`
	FinalRank        int    `json:"final_rank"`
	TotalXP          int    `json:"total_xp"`
	Level            int    `json:"level"`
	LongestStreak    int    `json:"longest_streak"`
	AchievementCount int    `json:"achievement_count"`
	Podium           bool   `json:"podium"`
}

// GetSeasonHistoryResult содержит результат запроса архива.
type GetSeasonHistoryResult struct {
	Entries     []SeasonHistoryEntryDTO `json:"entries"`
	GeneratedAt time.Time               `json:"generated_at"`
}

// GetSeasonHistoryHandler обрабатывает запросы архива сезонов.
type GetSeasonHistoryHandler struct {
	historyRepo leaderboard.HistoryRepository
}

// NewGetSeasonHistoryHandler создаёт новый обработчик.
func NewGetSeasonHistoryHandler(historyRepo leaderboard.HistoryRepository) *GetSeasonHistoryHandler {
	return &GetSeasonHistoryHandler{historyRepo: historyRepo}
}

// Handle выполняет запрос архива.
func (h *GetSeasonHistoryHandler) Handle(ctx context.Context, q GetSeasonHistoryQuery) (*GetSeasonHistoryResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	var (
		entries []*leaderboard.HistoryEntry
		err     error
	)
	if q.StudentID != "" {
		entries, err = h.historyRepo.ListStudentSeasons(ctx, q.StudentID)
	} else {
		entries, err = h.historyRepo.ListSeason(ctx, q.DojoID, q.Year)
	}
	if err != nil {
		return nil, fmt.Errorf("get_season_history: failed to load archive: %w", err)
	}

	dtos := make([]SeasonHistoryEntryDTO, len(entries))
	for i, e := range entries {
		dtos[i] = SeasonHistoryEntryDTO{
			StudentID:        e.StudentID,
			DojoID:           e.DojoID,
			Year:             e.Year,
			FinalRank:        int(e.FinalRank),
			TotalXP:          e.TotalXP.Int(),
			Level:            e.Level.Int(),
			LongestStreak:    e.LongestStreak,
			AchievementCount: e.AchievementCount,
			Podium:           e.IsPodium(),
		}
	}

	return &GetSeasonHistoryResult{
		Entries:     dtos,
		GeneratedAt: time.Now().UTC(),
	}, nil
}
