package eventhandler

import (
	"context"
	"log/slog"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON LEVEL UP HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// OnLevelUpHandler уведомляет студента о повышении уровня.
type OnLevelUpHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewOnLevelUpHandler создаёт новый обработчик.
func NewOnLevelUpHandler(notifier Notifier, logger *slog.Logger) *OnLevelUpHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnLevelUpHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_level_up"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnLevelUpHandler) Handle(event shared.Event) error {
	levelEvent, ok := event.(gamification.LevelUpEvent)
	if !ok {
		h.logger.Warn("received non-LevelUpEvent", "event_type", event.EventType())
		return nil
	}

	if h.notifier == nil {
		return nil
	}

	h.notifier.LevelUp(
		context.Background(),
		levelEvent.StudentID,
		levelEvent.DojoID,
		levelEvent.NewLevel,
		levelEvent.NewBelt,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnLevelUpHandler) EventType() shared.EventType {
	return shared.EventLevelUp
}

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK EXTENDED HANDLER
// Уведомляет только при достижении нового порога множителя, не каждый день.
// ═══════════════════════════════════════════════════════════════════════════

// OnStreakExtendedHandler уведомляет студента о вехах серии.
type OnStreakExtendedHandler struct {
	policy   gamification.StreakPolicy
	notifier Notifier
	logger   *slog.Logger
}

// NewOnStreakExtendedHandler создаёт новый обработчик.
func NewOnStreakExtendedHandler(policy gamification.StreakPolicy, notifier Notifier, logger *slog.Logger) *OnStreakExtendedHandler {
	if policy.IsEmpty() {
		policy = gamification.DefaultStreakPolicy()
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &OnStreakExtendedHandler{
		policy:   policy,
		notifier: notifier,
		logger:   logger.With("handler", "on_streak_extended"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnStreakExtendedHandler) Handle(event shared.Event) error {
	streakEvent, ok := event.(gamification.StreakExtendedEvent)
	if !ok {
		h.logger.Warn("received non-StreakExtendedEvent", "event_type", event.EventType())
		return nil
	}

	if h.notifier == nil {
		return nil
	}

	// Веха - день, в который серия впервые дотянулась до порога.
	for _, tier := range h.policy.Tiers() {
		if streakEvent.CurrentStreak == tier.MinDays {
			h.notifier.StreakMilestone(
				context.Background(),
				streakEvent.StudentID,
				streakEvent.DojoID,
				streakEvent.CurrentStreak,
				tier.Multiplier,
			)
			break
		}
	}

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnStreakExtendedHandler) EventType() shared.EventType {
	return shared.EventStreakExtended
}

// ═══════════════════════════════════════════════════════════════════════════
// ON STREAK BROKEN HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// OnStreakBrokenHandler уведомляет студента о прерванной серии.
type OnStreakBrokenHandler struct {
	notifier Notifier
	logger   *slog.Logger
}

// NewOnStreakBrokenHandler создаёт новый обработчик.
func NewOnStreakBrokenHandler(notifier Notifier, logger *slog.Logger) *OnStreakBrokenHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnStreakBrokenHandler{
		notifier: notifier,
		logger:   logger.With("handler", "on_streak_broken"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnStreakBrokenHandler) Handle(event shared.Event) error {
	streakEvent, ok := event.(gamification.StreakBrokenEvent)
	if !ok {
		h.logger.Warn("received non-StreakBrokenEvent", "event_type", event.EventType())
		return nil
	}

	if h.notifier == nil {
		return nil
	}

	h.notifier.StreakBroken(
		context.Background(),
		streakEvent.StudentID,
		streakEvent.DojoID,
		streakEvent.PreviousStreak,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnStreakBrokenHandler) EventType() shared.EventType {
	return shared.EventStreakBroken
}
