package notification

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// DELIVERY RESULT
// ══════════════════════════════════════════════════════════════════════════════

// DeliveryResult представляет результат доставки уведомления.
type DeliveryResult struct {
	// Success - успешно ли доставлено.
	Success bool

	// DeliveredAt - время доставки.
	DeliveredAt time.Time

	// Error - ошибка доставки (если Success = false).
	Error error

	// Retryable - можно ли повторить отправку.
	Retryable bool
}

// NewSuccessResult создаёт результат успешной доставки.
func NewSuccessResult() DeliveryResult {
	return DeliveryResult{
		Success:     true,
		DeliveredAt: time.Now().UTC(),
	}
}

// NewFailureResult создаёт результат неудачной доставки.
func NewFailureResult(err error, retryable bool) DeliveryResult {
	return DeliveryResult{
		Success:     false,
		DeliveredAt: time.Now().UTC(),
		Error:       err,
		Retryable:   retryable,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SINK (Канал доставки)
// ══════════════════════════════════════════════════════════════════════════════

// Sink - абстракция над конкретной системой доставки уведомлений.
// Доставка не критична для бизнес-операций: неудачи логируются,
// но не откатывают начисление XP или разблокировку достижения.
type Sink interface {
	// Send отправляет одно уведомление.
	Send(ctx context.Context, n *Notification) DeliveryResult

	// IsAvailable проверяет доступность канала.
	IsAvailable(ctx context.Context) bool
}
