// Package query содержит операции чтения (CQRS - Queries).
// Запросы никогда не меняют состояние - только читают и возвращают данные.
package query

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/logger"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET LEADERBOARD QUERY
// Читает лидерборд додзё через кеш. Промах кеша - пересборка из базы:
// ростер одобренных студентов, их записи XP и счётчики достижений.
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardQuery содержит параметры запроса лидерборда.
type GetLeaderboardQuery struct {
	// DojoID - додзё, чей лидерборд запрашивается.
	DojoID string

	// Limit - количество записей (по умолчанию 20, максимум 100).
	Limit int

	// Offset - смещение для пагинации.
	Offset int
}

// Validate проверяет корректность параметров запроса.
func (q *GetLeaderboardQuery) Validate() error {
	if q.DojoID == "" {
		return errors.New("get_leaderboard: dojo_id is required")
	}
	if q.Limit < 0 {
		return errors.New("get_leaderboard: limit cannot be negative")
	}
	if q.Offset < 0 {
		return errors.New("get_leaderboard: offset cannot be negative")
	}
	if q.Limit == 0 {
		q.Limit = shared.DefaultPageSize
	}
	if q.Limit > shared.MaxPageSize {
		q.Limit = shared.MaxPageSize
	}
	return nil
}

// LeaderboardEntryDTO - DTO одной строки лидерборда.
type LeaderboardEntryDTO struct {
	// Rank - позиция в рейтинге (начиная с 1).
	Rank int `json:"rank"`

	// StudentID - внутренний ID студента.
	StudentID string `json:"student_id"`

	// DisplayName - отображаемое имя.
	DisplayName string `json:"display_name"`

	// TotalXP - суммарный XP за сезон.
	TotalXP int `json:"total_xp"`

	// Level - уровень студента.
	Level int `json:"level"`

	// Belt - пояс студента.
	Belt string `json:"belt"`

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int `json:"current_streak"`

	// AchievementCount - количество разблокированных достижений.
	AchievementCount int `json:"achievement_count"`
}

// GetLeaderboardResult содержит результат запроса лидерборда.
type GetLeaderboardResult struct {
	// DojoID - додзё.
	DojoID string `json:"dojo_id"`

	// Entries - записи лидерборда.
	Entries []LeaderboardEntryDTO `json:"entries"`

	// TotalCount - общее количество участников.
	TotalCount int `json:"total_count"`

	// AverageXP - средний XP по участникам.
	AverageXP int `json:"average_xp"`

	// FromCache - результат взят из кеша.
	FromCache bool `json:"from_cache"`

	// HasMore - есть ли записи после текущей страницы.
	HasMore bool `json:"has_more"`

	// GeneratedAt - время генерации результата.
	GeneratedAt time.Time `json:"generated_at"`
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GetLeaderboardHandler обрабатывает запросы лидерборда и владеет его пересборкой.
type GetLeaderboardHandler struct {
	roster          leaderboard.Roster
	xpRepo          gamification.Repository
	achievementRepo achievement.Repository
	cache           leaderboard.Cache
	eventPublisher  shared.EventPublisher
	cacheTTL        time.Duration
	cacheRetrier    *retry.Retrier
	log             *logger.Logger
}

// NewGetLeaderboardHandler создаёт новый обработчик.
// cache и eventPublisher могут быть nil: тогда лидерборд строится на каждый
// запрос и событий пересборки нет.
func NewGetLeaderboardHandler(
	roster leaderboard.Roster,
	xpRepo gamification.Repository,
	achievementRepo achievement.Repository,
	cache leaderboard.Cache,
	eventPublisher shared.EventPublisher,
	cacheTTL time.Duration,
	log *logger.Logger,
) *GetLeaderboardHandler {
	if log == nil {
		log = logger.Default()
	}

	return &GetLeaderboardHandler{
		roster:          roster,
		xpRepo:          xpRepo,
		achievementRepo: achievementRepo,
		cache:           cache,
		eventPublisher:  eventPublisher,
		cacheTTL:        cacheTTL,
		cacheRetrier:    retry.CacheRetrier(),
		log:             log,
	}
}

// Handle выполняет запрос лидерборда.
func (h *GetLeaderboardHandler) Handle(ctx context.Context, q GetLeaderboardQuery) (*GetLeaderboardResult, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	ranking, fromCache, err := h.Snapshot(ctx, q.DojoID)
	if err != nil {
		return nil, err
	}

	page := ranking.Slice(q.Offset, q.Offset+q.Limit)
	dtos := make([]LeaderboardEntryDTO, len(page))
	for i, e := range page {
		dtos[i] = toEntryDTO(e)
	}

	return &GetLeaderboardResult{
		DojoID:      q.DojoID,
		Entries:     dtos,
		TotalCount:  ranking.Count(),
		AverageXP:   ranking.AverageXP().Int(),
		FromCache:   fromCache,
		HasMore:     q.Offset+len(page) < ranking.Count(),
		GeneratedAt: time.Now().UTC(),
	}, nil
}

// Snapshot возвращает актуальный лидерборд додзё: из кеша, а при промахе -
// пересобранный и закешированный.
func (h *GetLeaderboardHandler) Snapshot(ctx context.Context, dojoID string) (*leaderboard.Ranking, bool, error) {
	if h.cache != nil {
		ranking, err := h.cache.GetRanking(ctx, dojoID)
		if err != nil {
			h.log.Warn("leaderboard cache read failed",
				logger.DojoID(dojoID),
				logger.Err(err),
			)
		} else if ranking != nil {
			return ranking, true, nil
		}
	}

	ranking, err := h.Rebuild(ctx, dojoID)
	if err != nil {
		return nil, false, err
	}

	return ranking, false, nil
}

// Rebuild строит лидерборд додзё из базы, кеширует и публикует событие
// пересборки. Используется и запросами при промахе кеша, и фоновой задачей.
func (h *GetLeaderboardHandler) Rebuild(ctx context.Context, dojoID string) (*leaderboard.Ranking, error) {
	ranking, err := h.build(ctx, dojoID)
	if err != nil {
		return nil, err
	}

	if h.cache != nil {
		err := h.cacheRetrier.Do(ctx, func(ctx context.Context) error {
			if err := h.cache.StoreRanking(ctx, ranking, h.cacheTTL); err != nil {
				return retry.Retryable(err)
			}
			return nil
		})
		if err != nil {
			// Кеш - ускорение чтения, лидерборд уже построен.
			h.log.Warn("leaderboard cache write failed",
				logger.DojoID(dojoID),
				logger.Err(err),
			)
		}
	}

	if h.eventPublisher != nil {
		event := leaderboard.NewLeaderboardUpdatedEvent(dojoID, ranking.Count())
		if err := h.eventPublisher.Publish(event); err != nil {
			h.log.Warn("failed to publish leaderboard updated event",
				logger.DojoID(dojoID),
				logger.Err(err),
			)
		}
	}

	return ranking, nil
}

// build собирает лидерборд из ростера, записей XP и счётчиков достижений.
func (h *GetLeaderboardHandler) build(ctx context.Context, dojoID string) (*leaderboard.Ranking, error) {
	students, err := h.roster.ListApproved(ctx, dojoID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to load roster: %w", err)
	}

	records, err := h.xpRepo.ListByDojo(ctx, dojoID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to load xp records: %w", err)
	}
	byStudent := make(map[string]*gamification.StudentXP, len(records))
	for _, rec := range records {
		byStudent[rec.StudentID] = rec
	}

	counts, err := h.achievementRepo.CountUnlockedByStudents(ctx, dojoID)
	if err != nil {
		return nil, fmt.Errorf("get_leaderboard: failed to load achievement counts: %w", err)
	}

	ranking := leaderboard.NewRanking(dojoID)
	now := time.Now().UTC()

	for _, s := range students {
		entry := &leaderboard.Entry{
			StudentID:        s.StudentID,
			DisplayName:      s.DisplayName,
			Level:            gamification.MinLevel,
			Belt:             gamification.BeltFor(gamification.MinLevel),
			AchievementCount: counts[s.StudentID],
			UpdatedAt:        now,
		}

		// Студент без начислений участвует с нулевым счётом.
		if rec, ok := byStudent[s.StudentID]; ok {
			entry.TotalXP = rec.TotalXP
			entry.Level = rec.Level
			entry.Belt = rec.Belt()
			entry.CurrentStreak = rec.CurrentStreak
			entry.FirstActivityAt = rec.FirstActivityAt
		}

		if err := ranking.Add(entry); err != nil {
			return nil, fmt.Errorf("get_leaderboard: failed to add entry: %w", err)
		}
	}

	ranking.Sort()
	return ranking, nil
}

// toEntryDTO конвертирует доменную запись в DTO.
func toEntryDTO(e *leaderboard.Entry) LeaderboardEntryDTO {
	return LeaderboardEntryDTO{
		Rank:             int(e.Rank),
		StudentID:        e.StudentID,
		DisplayName:      e.DisplayName,
		TotalXP:          e.TotalXP.Int(),
		Level:            e.Level.Int(),
		Belt:             string(e.Belt),
		CurrentStreak:    e.CurrentStreak,
		AchievementCount: e.AchievementCount,
	}
}
