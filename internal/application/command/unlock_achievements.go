package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// CHECK AND UNLOCK ACHIEVEMENTS COMMAND
// Сверяет метрики студента с каталогом и идемпотентно открывает достижения.
// Повторная проверка никогда не открывает достижение дважды и не дублирует
// награду: вставка разблокировки - единственный источник истины.
// ══════════════════════════════════════════════════════════════════════════════

// CheckAchievementsCommand содержит параметры проверки достижений.
type CheckAchievementsCommand struct {
	// StudentID - чьи метрики проверяются.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// TasksCompleted - количество выполненных заданий. Система заданий живёт
	// вне этого сервиса, поэтому счётчик приходит от вызывающей стороны.
	TasksCompleted int

	// CorrelationID - для трассировки.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c CheckAchievementsCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("check_achievements: student_id is required")
	}
	if c.DojoID == "" {
		return errors.New("check_achievements: dojo_id is required")
	}
	if c.TasksCompleted < 0 {
		return errors.New("check_achievements: tasks_completed must be non-negative")
	}
	return nil
}

// UnlockedAchievement - одно открытое в этой проверке достижение.
type UnlockedAchievement struct {
	Definition *achievement.Definition
	Unlock     *achievement.Unlock
}

// CheckAchievementsResult содержит результат проверки.
type CheckAchievementsResult struct {
	// StudentID - чьи метрики проверялись.
	StudentID string

	// NewlyUnlocked - достижения, открытые именно этой проверкой.
	NewlyUnlocked []UnlockedAchievement

	// RewardXP - суммарный бонус XP за открытые достижения.
	RewardXP gamification.XP

	// Events - сгенерированные доменные события.
	Events []shared.Event

	// CheckedAt - время проверки.
	CheckedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// CheckAchievementsHandler обрабатывает CheckAchievementsCommand.
type CheckAchievementsHandler struct {
	achievementRepo achievement.Repository
	xpRepo          gamification.Repository
	grantHandler    *GrantXPHandler
	eventPublisher  shared.EventPublisher
	log             *logger.Logger
}

// NewCheckAchievementsHandler создаёт новый CheckAchievementsHandler.
// grantHandler может быть nil: тогда бонусный XP за достижения не начисляется.
func NewCheckAchievementsHandler(
	achievementRepo achievement.Repository,
	xpRepo gamification.Repository,
	grantHandler *GrantXPHandler,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *CheckAchievementsHandler {
	if log == nil {
		log = logger.Default()
	}

	return &CheckAchievementsHandler{
		achievementRepo: achievementRepo,
		xpRepo:          xpRepo,
		grantHandler:    grantHandler,
		eventPublisher:  eventPublisher,
		log:             log,
	}
}

// Handle выполняет проверку достижений.
func (h *CheckAchievementsHandler) Handle(ctx context.Context, cmd CheckAchievementsCommand) (*CheckAchievementsResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("check_achievements: validation failed: %w", err)
	}

	stats, err := h.buildStats(ctx, cmd)
	if err != nil {
		return nil, err
	}

	definitions, err := h.achievementRepo.ListDefinitions(ctx)
	if err != nil {
		return nil, fmt.Errorf("check_achievements: failed to load catalog: %w", err)
	}

	result := &CheckAchievementsResult{
		StudentID:     cmd.StudentID,
		NewlyUnlocked: make([]UnlockedAchievement, 0),
		Events:        make([]shared.Event, 0),
		CheckedAt:     time.Now().UTC(),
	}

	for _, def := range definitions {
		if !def.IsSatisfiedBy(stats) {
			continue
		}

		unlock, err := achievement.NewUnlock(uuid.NewString(), cmd.StudentID, cmd.DojoID, def.ID)
		if err != nil {
			return nil, fmt.Errorf("check_achievements: failed to build unlock: %w", err)
		}

		inserted, err := h.achievementRepo.Unlock(ctx, unlock)
		if err != nil {
			return nil, fmt.Errorf("check_achievements: failed to unlock %s: %w", def.Code, err)
		}
		if !inserted {
			// Уже было открыто ранее.
			continue
		}

		result.NewlyUnlocked = append(result.NewlyUnlocked, UnlockedAchievement{Definition: def, Unlock: unlock})
		result.RewardXP += def.XPReward

		event := achievement.NewAchievementUnlockedEvent(unlock, def)
		if cmd.CorrelationID != "" {
			event.BaseEvent = event.BaseEvent.WithCorrelationID(cmd.CorrelationID)
		}
		result.Events = append(result.Events, event)
	}

	h.grantRewards(ctx, cmd, result)

	for _, event := range result.Events {
		if err := h.eventPublisher.Publish(event); err != nil {
			h.log.Warn("failed to publish event",
				logger.String("event_type", string(event.EventType())),
				logger.Err(err),
			)
		}
	}

	return result, nil
}

// buildStats собирает метрики студента для проверки критериев.
// Отсутствие записи XP - не ошибка: студент ещё не начал сезон.
func (h *CheckAchievementsHandler) buildStats(ctx context.Context, cmd CheckAchievementsCommand) (achievement.Stats, error) {
	stats := achievement.Stats{TasksCompleted: cmd.TasksCompleted}

	record, err := h.xpRepo.Find(ctx, cmd.StudentID, cmd.DojoID)
	switch {
	case err == nil:
		stats.CurrentStreak = record.CurrentStreak
		stats.TotalXP = record.TotalXP
	case errors.Is(err, gamification.ErrRecordNotFound):
	default:
		return achievement.Stats{}, fmt.Errorf("check_achievements: failed to load xp record: %w", err)
	}

	return stats, nil
}

// grantRewards начисляет бонусный XP за открытые достижения.
// Награда идёт обычным начислением, поэтому попадает в журнал и в лидерборд.
func (h *CheckAchievementsHandler) grantRewards(ctx context.Context, cmd CheckAchievementsCommand, result *CheckAchievementsResult) {
	if h.grantHandler == nil {
		return
	}

	for _, ua := range result.NewlyUnlocked {
		if ua.Definition.XPReward <= 0 {
			continue
		}

		_, err := h.grantHandler.Handle(ctx, GrantXPCommand{
			StudentID:     cmd.StudentID,
			DojoID:        cmd.DojoID,
			BaseAmount:    ua.Definition.XPReward,
			Reason:        ReasonAchievement,
			SourceID:      ua.Definition.ID,
			CorrelationID: cmd.CorrelationID,
		})
		if err != nil {
			h.log.Warn("failed to grant achievement reward",
				logger.StudentID(cmd.StudentID),
				logger.AchievementID(ua.Definition.ID),
				logger.Err(err),
			)
		}
	}
}
