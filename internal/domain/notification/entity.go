// Package notification содержит доменную модель уведомлений Dojo Hub.
// Уведомления мотивируют студентов: новые достижения, повышение уровня,
// вехи серии и итоги годового рейтинга.
package notification

import (
	"errors"
	"fmt"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// NOTIFICATION TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет тип уведомления.
type Type string

const (
	// TypeAchievement - получено достижение.
	// "🏅 Новое достижение: Неделя огня!"
	TypeAchievement Type = "achievement"

	// TypeLevelUp - повышение уровня.
	// "⬆️ Уровень повышен! Теперь ты Level 5"
	TypeLevelUp Type = "level_up"

	// TypeStreakMilestone - достигнут порог множителя серии.
	// "🔥 Серия 7 дней! Множитель x1.5"
	TypeStreakMilestone Type = "streak_milestone"

	// TypeStreakBroken - серия активных дней прервана.
	// "💔 Твоя серия в 12 дней прервалась. Начни новую!"
	TypeStreakBroken Type = "streak_broken"

	// TypeAnnualPodium - призовое место в годовом рейтинге.
	// "🏆 Ты закончил сезон на 1 месте!"
	TypeAnnualPodium Type = "annual_podium"

	// TypeSeasonReset - сезон закрыт, счёт обнулён.
	// "🎌 Новый сезон начался. Удачи!"
	TypeSeasonReset Type = "season_reset"
)

// IsValid проверяет, что тип уведомления корректен.
func (t Type) IsValid() bool {
	switch t {
	case TypeAchievement, TypeLevelUp, TypeStreakMilestone,
		TypeStreakBroken, TypeAnnualPodium, TypeSeasonReset:
		return true
	default:
		return false
	}
}

// Priority определяет приоритет доставки.
type Priority int

const (
	// PriorityLow - фоновые уведомления, можно батчить.
	PriorityLow Priority = iota
	// PriorityNormal - обычные уведомления.
	PriorityNormal
	// PriorityHigh - важные уведомления (годовые итоги).
	PriorityHigh
)

// PriorityFor возвращает приоритет по типу уведомления.
func PriorityFor(t Type) Priority {
	switch t {
	case TypeAnnualPodium, TypeSeasonReset:
		return PriorityHigh
	case TypeStreakBroken:
		return PriorityLow
	default:
		return PriorityNormal
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidType - неизвестный тип уведомления.
	ErrInvalidType = errors.New("invalid notification type")

	// ErrInvalidRecipient - пустой получатель.
	ErrInvalidRecipient = errors.New("invalid recipient: student id must not be empty")

	// ErrEmptyMessage - пустой текст уведомления.
	ErrEmptyMessage = errors.New("invalid notification: message must not be empty")

	// ErrDeliveryFailed - доставка не удалась.
	ErrDeliveryFailed = errors.New("notification delivery failed")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: NOTIFICATION
// ══════════════════════════════════════════════════════════════════════════════

// Notification - одно уведомление студенту.
type Notification struct {
	// ID - уникальный идентификатор (UUID).
	ID string

	// StudentID - получатель.
	StudentID string

	// DojoID - додзё, в контексте которого создано уведомление.
	DojoID string

	// Type - тип уведомления.
	Type Type

	// Priority - приоритет доставки.
	Priority Priority

	// Title - заголовок.
	Title string

	// Message - текст уведомления.
	Message string

	// Metadata - дополнительные данные (achievement_id, rank и т.д.).
	Metadata map[string]interface{}

	// CreatedAt - время создания.
	CreatedAt time.Time
}

// NewNotification создаёт уведомление с валидацией.
func NewNotification(id, studentID, dojoID string, t Type, title, message string) (*Notification, error) {
	if id == "" {
		return nil, errors.New("notification id is required")
	}
	if studentID == "" {
		return nil, ErrInvalidRecipient
	}
	if !t.IsValid() {
		return nil, ErrInvalidType
	}
	if message == "" {
		return nil, ErrEmptyMessage
	}

	return &Notification{
		ID:        id,
		StudentID: studentID,
		DojoID:    dojoID,
		Type:      t,
		Priority:  PriorityFor(t),
		Title:     title,
		Message:   message,
		Metadata:  make(map[string]interface{}),
		CreatedAt: time.Now().UTC(),
	}, nil
}

// WithMetadata добавляет метаданные и возвращает то же уведомление.
func (n *Notification) WithMetadata(key string, value interface{}) *Notification {
	if n.Metadata == nil {
		n.Metadata = make(map[string]interface{})
	}
	n.Metadata[key] = value
	return n
}

// String возвращает строковое представление для логирования.
func (n *Notification) String() string {
	return fmt.Sprintf(
		"Notification{ID: %s, Student: %s, Type: %s}",
		n.ID, n.StudentID, n.Type,
	)
}
