package eventhandler

import (
	"context"
	"log/slog"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/achievement"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// ═══════════════════════════════════════════════════════════════════════════
// NOTIFIER CONTRACT
// Реализуется инфраструктурой (infrastructure/notify). Обработчикам нужна
// только отправка типизированных уведомлений.
// ═══════════════════════════════════════════════════════════════════════════

// Notifier отправляет типизированные уведомления студентам.
type Notifier interface {
	AchievementUnlocked(ctx context.Context, studentID, dojoID, achievementID, name, emoji string)
	LevelUp(ctx context.Context, studentID, dojoID string, newLevel gamification.Level, belt gamification.Belt)
	StreakMilestone(ctx context.Context, studentID, dojoID string, streak int, multiplier float64)
	StreakBroken(ctx context.Context, studentID, dojoID string, previousStreak int)
}

// ═══════════════════════════════════════════════════════════════════════════
// ON ACHIEVEMENT UNLOCKED HANDLER
// ═══════════════════════════════════════════════════════════════════════════

// OnAchievementUnlockedHandler уведомляет студента о новом достижении.
type OnAchievementUnlockedHandler struct {
	achievementRepo achievement.Repository
	notifier        Notifier
	logger          *slog.Logger
}

// NewOnAchievementUnlockedHandler создаёт новый обработчик.
func NewOnAchievementUnlockedHandler(
	achievementRepo achievement.Repository,
	notifier Notifier,
	logger *slog.Logger,
) *OnAchievementUnlockedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnAchievementUnlockedHandler{
		achievementRepo: achievementRepo,
		notifier:        notifier,
		logger:          logger.With("handler", "on_achievement_unlocked"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnAchievementUnlockedHandler) Handle(event shared.Event) error {
	unlockEvent, ok := event.(achievement.AchievementUnlockedEvent)
	if !ok {
		h.logger.Warn("received non-AchievementUnlockedEvent", "event_type", event.EventType())
		return nil
	}

	if h.notifier == nil {
		return nil
	}

	ctx := context.Background()

	// Эмодзи нет в событии, подтягиваем из каталога.
	emoji := "🏅"
	if h.achievementRepo != nil {
		if def, err := h.achievementRepo.FindDefinition(ctx, unlockEvent.AchievementID); err == nil && def.Emoji != "" {
			emoji = def.Emoji
		}
	}

	h.notifier.AchievementUnlocked(
		ctx,
		unlockEvent.StudentID,
		unlockEvent.DojoID,
		unlockEvent.AchievementID,
		unlockEvent.Name,
		emoji,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnAchievementUnlockedHandler) EventType() shared.EventType {
	return shared.EventAchievementUnlocked
}
