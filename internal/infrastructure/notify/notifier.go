// Package notify implements notification dispatch for Dojo Gamification Hub.
// Delivery is best-effort: a failed notification is logged and reported on the
// event bus, but never rolls back the operation that triggered it.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/notification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/retry"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFIER
// ══════════════════════════════════════════════════════════════════════════════

// Notifier dispatches notifications through a sink with retries.
type Notifier struct {
	sink      notification.Sink
	retrier   *retry.Retrier
	publisher shared.EventPublisher
	logger    *slog.Logger
}

// NewNotifier creates a Notifier. The publisher may be nil; delivery outcomes
// are then only logged.
func NewNotifier(sink notification.Sink, publisher shared.EventPublisher, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}

	return &Notifier{
		sink:      sink,
		retrier:   retry.NotificationRetrier(),
		publisher: publisher,
		logger:    logger,
	}
}

// Send delivers a notification with retries on retryable failures.
// Returns the final delivery result; errors never propagate to callers as
// business failures.
func (n *Notifier) Send(ctx context.Context, msg *notification.Notification) notification.DeliveryResult {
	var result notification.DeliveryResult

	err := n.retrier.Do(ctx, func(ctx context.Context) error {
		result = n.sink.Send(ctx, msg)
		if result.Success {
			return nil
		}
		if result.Retryable {
			return retry.Retryable(result.Error)
		}
		return retry.Permanent(result.Error)
	})

	if err != nil {
		n.logger.Warn("notification delivery failed",
			"notification_id", msg.ID,
			"student_id", msg.StudentID,
			"type", msg.Type,
			"error", err,
		)
		n.publish(notification.NewNotificationFailedEvent(msg, err.Error()))
		return notification.NewFailureResult(err, false)
	}

	n.logger.Debug("notification delivered",
		"notification_id", msg.ID,
		"student_id", msg.StudentID,
		"type", msg.Type,
	)
	n.publish(notification.NewNotificationSentEvent(msg))

	return result
}

func (n *Notifier) publish(event shared.Event) {
	if n.publisher == nil {
		return
	}
	if err := n.publisher.Publish(event); err != nil {
		n.logger.Warn("failed to publish notification event", "error", err)
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// TYPED BUILDERS
// Message texts live here so every caller phrases the same moment identically.
// ══════════════════════════════════════════════════════════════════════════════

// AchievementUnlocked builds and sends a notification about a new achievement.
func (n *Notifier) AchievementUnlocked(ctx context.Context, studentID, dojoID, achievementID, name, emoji string) {
	msg, err := notification.NewNotification(
		uuid.NewString(), studentID, dojoID,
		notification.TypeAchievement,
		"Новое достижение",
		fmt.Sprintf("%s Новое достижение: %s!", emoji, name),
	)
	if err != nil {
		n.logger.Warn("failed to build achievement notification", "error", err)
		return
	}
	msg.WithMetadata("achievement_id", achievementID)

	n.Send(ctx, msg)
}

// LevelUp builds and sends a notification about a level increase.
func (n *Notifier) LevelUp(ctx context.Context, studentID, dojoID string, newLevel gamification.Level, belt gamification.Belt) {
	msg, err := notification.NewNotification(
		uuid.NewString(), studentID, dojoID,
		notification.TypeLevelUp,
		"Уровень повышен",
		fmt.Sprintf("⬆️ Уровень повышен! Теперь ты Level %d (%s пояс)", newLevel, belt),
	)
	if err != nil {
		n.logger.Warn("failed to build level up notification", "error", err)
		return
	}
	msg.WithMetadata("new_level", int(newLevel))

	n.Send(ctx, msg)
}

// StreakMilestone builds and sends a notification about reaching a multiplier tier.
func (n *Notifier) StreakMilestone(ctx context.Context, studentID, dojoID string, streak int, multiplier float64) {
	msg, err := notification.NewNotification(
		uuid.NewString(), studentID, dojoID,
		notification.TypeStreakMilestone,
		"Серия растёт",
		fmt.Sprintf("🔥 Серия %d дней! Множитель x%.2g", streak, multiplier),
	)
	if err != nil {
		n.logger.Warn("failed to build streak milestone notification", "error", err)
		return
	}
	msg.WithMetadata("streak", streak)

	n.Send(ctx, msg)
}

// StreakBroken builds and sends a notification about a broken streak.
func (n *Notifier) StreakBroken(ctx context.Context, studentID, dojoID string, previousStreak int) {
	msg, err := notification.NewNotification(
		uuid.NewString(), studentID, dojoID,
		notification.TypeStreakBroken,
		"Серия прервана",
		fmt.Sprintf("💔 Твоя серия в %d дней прервалась. Начни новую!", previousStreak),
	)
	if err != nil {
		n.logger.Warn("failed to build streak broken notification", "error", err)
		return
	}
	msg.WithMetadata("previous_streak", previousStreak)

	n.Send(ctx, msg)
}

// AnnualPodium builds and sends a notification about a podium finish.
// The top three always hear about it, whether or not a matching annual
// achievement exists in the catalog.
func (n *Notifier) AnnualPodium(ctx context.Context, studentID, dojoID string, rank, year int) {
	var text string
	switch rank {
	case 1:
		text = fmt.Sprintf("🥇 Ты чемпион сезона %d! Первое место в додзё.", year)
	case 2:
		text = fmt.Sprintf("🥈 Серебро сезона %d! Второе место в додзё.", year)
	case 3:
		text = fmt.Sprintf("🥉 Бронза сезона %d! Третье место в додзё.", year)
	default:
		text = fmt.Sprintf("🏆 Ты закончил сезон %d на %d месте!", year, rank)
	}

	msg, err := notification.NewNotification(
		uuid.NewString(), studentID, dojoID,
		notification.TypeAnnualPodium,
		"Итоги сезона",
		text,
	)
	if err != nil {
		n.logger.Warn("failed to build annual podium notification", "error", err)
		return
	}
	msg.WithMetadata("rank", rank)
	msg.WithMetadata("year", year)

	n.Send(ctx, msg)
}

// SeasonReset builds and sends a notification about the new season.
func (n *Notifier) SeasonReset(ctx context.Context, studentID, dojoID string, newSeason int) {
	msg, err := notification.NewNotification(
		uuid.NewString(), studentID, dojoID,
		notification.TypeSeasonReset,
		"Новый сезон",
		fmt.Sprintf("🎌 Сезон %d начался. Счёт обнулён, удачи!", newSeason),
	)
	if err != nil {
		n.logger.Warn("failed to build season reset notification", "error", err)
		return
	}
	msg.WithMetadata("season", newSeason)

	n.Send(ctx, msg)
}
