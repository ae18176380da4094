// Package eventhandler содержит обработчики доменных событий.
// Обработчики выполняют побочные эффекты начислений: инвалидацию кеша
// лидерборда и уведомления. Путь записи XP их не ждёт.
package eventhandler

import (
	"context"
	"log/slog"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/leaderboard"
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/retry"
)

// ═══════════════════════════════════════════════════════════════════════════
// ON XP GRANTED HANDLER
// Любое начисление делает закешированный лидерборд додзё устаревшим.
// Кеш сбрасывается, следующий запрос пересоберёт лидерборд из базы.
// ═══════════════════════════════════════════════════════════════════════════

// OnXPGrantedHandler обрабатывает событие начисления XP.
type OnXPGrantedHandler struct {
	cache   leaderboard.Cache
	retrier *retry.Retrier
	logger  *slog.Logger
}

// NewOnXPGrantedHandler создаёт новый обработчик.
func NewOnXPGrantedHandler(cache leaderboard.Cache, logger *slog.Logger) *OnXPGrantedHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &OnXPGrantedHandler{
		cache:   cache,
		retrier: retry.CacheRetrier(),
		logger:  logger.With("handler", "on_xp_granted"),
	}
}

// Handle реализует интерфейс shared.EventHandler.
func (h *OnXPGrantedHandler) Handle(event shared.Event) error {
	xpEvent, ok := event.(gamification.XPGrantedEvent)
	if !ok {
		h.logger.Warn("received non-XPGrantedEvent", "event_type", event.EventType())
		return nil
	}

	if h.cache == nil {
		return nil
	}

	ctx := context.Background()
	err := h.retrier.Do(ctx, func(ctx context.Context) error {
		if err := h.cache.Invalidate(ctx, xpEvent.DojoID); err != nil {
			return retry.Retryable(err)
		}
		return nil
	})
	if err != nil {
		// Кеш истечёт по TTL, лидерборд лишь отстанет на несколько минут.
		h.logger.Warn("failed to invalidate leaderboard cache",
			"dojo_id", xpEvent.DojoID,
			"error", err,
		)
		return err
	}

	h.logger.Debug("leaderboard cache invalidated",
		"dojo_id", xpEvent.DojoID,
		"student_id", xpEvent.StudentID,
	)

	return nil
}

// EventType возвращает тип события, который обрабатывает этот handler.
func (h *OnXPGrantedHandler) EventType() shared.EventType {
	return shared.EventXPGranted
}
