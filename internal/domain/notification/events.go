package notification

import (
	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
)

// NotificationSentEvent - уведомление успешно доставлено.
type NotificationSentEvent struct {
	shared.BaseEvent
	NotificationID string `json:"notification_id"`
	StudentID      string `json:"student_id"`
	Kind           Type   `json:"kind"`
}

// Payload реализует интерфейс shared.Event.
func (e NotificationSentEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": e.NotificationID,
		"student_id":      e.StudentID,
		"kind":            string(e.Kind),
	}
}

// NewNotificationSentEvent создаёт событие успешной доставки.
func NewNotificationSentEvent(n *Notification) NotificationSentEvent {
	return NotificationSentEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventNotificationSent, n.StudentID),
		NotificationID: n.ID,
		StudentID:      n.StudentID,
		Kind:           n.Type,
	}
}

// NotificationFailedEvent - доставка уведомления не удалась после всех попыток.
type NotificationFailedEvent struct {
	shared.BaseEvent
	NotificationID string `json:"notification_id"`
	StudentID      string `json:"student_id"`
	Kind           Type   `json:"kind"`
	Reason         string `json:"reason"`
}

// Payload реализует интерфейс shared.Event.
func (e NotificationFailedEvent) Payload() map[string]interface{} {
	return map[string]interface{}{
		"notification_id": e.NotificationID,
		"student_id":      e.StudentID,
		"kind":            string(e.Kind),
		"reason":          e.Reason,
	}
}

// NewNotificationFailedEvent создаёт событие неудачной доставки.
func NewNotificationFailedEvent(n *Notification, reason string) NotificationFailedEvent {
	return NotificationFailedEvent{
		BaseEvent:      shared.NewBaseEvent(shared.EventNotificationFailed, n.StudentID),
		NotificationID: n.ID,
		StudentID:      n.StudentID,
		Kind:           n.Type,
		Reason:         reason,
	}
}
