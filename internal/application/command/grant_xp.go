// Package command содержит операции записи (CQRS - Commands).
package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/logger"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GRANT XP COMMAND
// Единственная точка начисления XP: серия, множитель, уровень и журнал
// обновляются здесь за одну операцию.
// ══════════════════════════════════════════════════════════════════════════════

// Причины начисления XP.
const (
	// ReasonTaskCompleted - выполнено задание.
	ReasonTaskCompleted = "task_completed"

	// ReasonBonus - ручной бонус от сенсея.
	ReasonBonus = "bonus"

	// ReasonCorrection - корректировка счёта.
	ReasonCorrection = "correction"

	// ReasonAchievement - награда за разблокированное достижение.
	ReasonAchievement = "achievement_reward"
)

// GrantXPCommand содержит параметры начисления XP.
type GrantXPCommand struct {
	// StudentID - кому начисляется.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// BaseAmount - базовая сумма до применения множителя серии.
	BaseAmount gamification.XP

	// ActivityDate - календарный день активности (нулевое значение = сегодня UTC).
	ActivityDate timeutil.Date

	// Reason - причина начисления.
	Reason string

	// SourceID - идентификатор источника (задача, достижение), если применим.
	SourceID string

	// CorrelationID - для трассировки.
	CorrelationID string
}

// Validate проверяет корректность команды.
func (c GrantXPCommand) Validate() error {
	if c.StudentID == "" {
		return errors.New("grant_xp: student_id is required")
	}
	if c.DojoID == "" {
		return errors.New("grant_xp: dojo_id is required")
	}
	if c.BaseAmount < 0 {
		return errors.New("grant_xp: base_amount must be non-negative")
	}

	switch c.Reason {
	case ReasonTaskCompleted, ReasonBonus, ReasonCorrection, ReasonAchievement:
	case "":
		return errors.New("grant_xp: reason is required")
	default:
		return fmt.Errorf("grant_xp: unknown reason: %s", c.Reason)
	}

	return nil
}

// GrantXPResult содержит результат начисления.
type GrantXPResult struct {
	// StudentID - кому начислено.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// Granted - фактически начислено с учётом множителя.
	Granted gamification.XP

	// Multiplier - применённый множитель серии.
	Multiplier float64

	// NewTotal - суммарный XP после начисления.
	NewTotal gamification.XP

	// NewLevel - уровень после начисления.
	NewLevel gamification.Level

	// NewBelt - пояс после начисления.
	NewBelt gamification.Belt

	// LeveledUp - начисление подняло уровень.
	LeveledUp bool

	// CurrentStreak - серия после начисления.
	CurrentStreak int

	// StreakExtended - серия продолжена со вчерашнего дня.
	StreakExtended bool

	// StreakBroken - прежняя серия сброшена.
	StreakBroken bool

	// PreviousStreak - длина сброшенной серии (при StreakBroken).
	PreviousStreak int

	// Events - сгенерированные доменные события.
	Events []shared.Event

	// GrantedAt - время обработки команды.
	GrantedAt time.Time
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// GrantXPHandler обрабатывает GrantXPCommand.
type GrantXPHandler struct {
	repo           gamification.Repository
	historyRepo    gamification.HistoryRepository
	policy         gamification.StreakPolicy
	eventPublisher shared.EventPublisher
	log            *logger.Logger
}

// NewGrantXPHandler создаёт новый GrantXPHandler.
func NewGrantXPHandler(
	repo gamification.Repository,
	historyRepo gamification.HistoryRepository,
	policy gamification.StreakPolicy,
	eventPublisher shared.EventPublisher,
	log *logger.Logger,
) *GrantXPHandler {
	if policy.IsEmpty() {
		policy = gamification.DefaultStreakPolicy()
	}
	if log == nil {
		log = logger.Default()
	}

	return &GrantXPHandler{
		repo:           repo,
		historyRepo:    historyRepo,
		policy:         policy,
		eventPublisher: eventPublisher,
		log:            log,
	}
}

// Handle выполняет начисление XP.
//
// Порядок: атомарное применение к записи студента (репозиторий держит
// блокировку строки), затем запись в журнал, затем публикация событий.
// Неудача журнала или событий не откатывает начисление.
func (h *GrantXPHandler) Handle(ctx context.Context, cmd GrantXPCommand) (*GrantXPResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("grant_xp: validation failed: %w", err)
	}

	day := cmd.ActivityDate
	if day.IsZero() {
		day = timeutil.Today()
	}

	rec := gamification.GrantRecord{
		StudentID:    cmd.StudentID,
		DojoID:       cmd.DojoID,
		BaseAmount:   cmd.BaseAmount,
		ActivityDate: day,
		Reason:       cmd.Reason,
		SourceID:     cmd.SourceID,
	}

	record, applied, err := h.repo.Grant(ctx, rec, h.policy)
	if err != nil {
		return nil, fmt.Errorf("grant_xp: failed to apply grant: %w", err)
	}

	now := time.Now().UTC()

	result := &GrantXPResult{
		StudentID:      record.StudentID,
		DojoID:         record.DojoID,
		Granted:        applied.XPGranted,
		Multiplier:     applied.Multiplier,
		NewTotal:       applied.NewTotal,
		NewLevel:       applied.NewLevel,
		NewBelt:        record.Belt(),
		LeveledUp:      applied.LeveledUp(),
		CurrentStreak:  applied.NewStreak,
		StreakExtended: applied.StreakExtended,
		StreakBroken:   applied.StreakBroken,
		PreviousStreak: applied.PreviousStreak,
		Events:         make([]shared.Event, 0, 4),
		GrantedAt:      now,
	}

	// Журнал - аудит, не источник истины для счёта.
	if err := h.appendHistory(ctx, rec, applied, now); err != nil {
		h.log.Warn("xp history append failed",
			logger.StudentID(cmd.StudentID),
			logger.DojoID(cmd.DojoID),
			logger.Err(err),
		)
	}

	h.collectEvents(record, applied, cmd, day, result)

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

// appendHistory добавляет запись о начислении в журнал.
func (h *GrantXPHandler) appendHistory(
	ctx context.Context,
	rec gamification.GrantRecord,
	applied *gamification.GrantApplied,
	now time.Time,
) error {
	if h.historyRepo == nil {
		return nil
	}

	return h.historyRepo.Record(ctx, gamification.XPHistoryEntry{
		ID:           uuid.NewString(),
		StudentID:    rec.StudentID,
		DojoID:       rec.DojoID,
		BaseAmount:   rec.BaseAmount,
		Granted:      applied.XPGranted,
		Multiplier:   applied.Multiplier,
		Reason:       rec.Reason,
		SourceID:     rec.SourceID,
		ActivityDate: rec.ActivityDate,
		CreatedAt:    now,
	})
}

// collectEvents собирает доменные события по результату начисления.
func (h *GrantXPHandler) collectEvents(
	record *gamification.StudentXP,
	applied *gamification.GrantApplied,
	cmd GrantXPCommand,
	day timeutil.Date,
	result *GrantXPResult,
) {
	granted := gamification.NewXPGrantedEvent(record, applied, cmd.BaseAmount, cmd.Reason, cmd.SourceID)
	if cmd.CorrelationID != "" {
		granted.BaseEvent = granted.BaseEvent.WithCorrelationID(cmd.CorrelationID)
	}
	result.Events = append(result.Events, granted)

	if applied.LeveledUp() {
		result.Events = append(result.Events, gamification.NewLevelUpEvent(record, applied.PreviousLevel))
	}
	if applied.StreakExtended {
		result.Events = append(result.Events, gamification.NewStreakExtendedEvent(record, day))
	}
	if applied.StreakBroken {
		result.Events = append(result.Events, gamification.NewStreakBrokenEvent(record, applied.PreviousStreak, day))
	}
}
