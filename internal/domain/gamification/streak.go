package gamification

import (
	"errors"
	"sort"

	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// STREAK (Серия активных дней)
// ══════════════════════════════════════════════════════════════════════════════

// StreakUpdate - результат применения активности к серии. Значение неизменяемо.
type StreakUpdate struct {
	// Current - новая длина серии.
	Current int

	// Longest - новая лучшая серия (максимум старой и текущей).
	Longest int

	// Extended - серия продолжена со вчерашнего дня.
	Extended bool

	// Broken - прежняя серия сброшена из-за пропуска дней.
	Broken bool

	// PreviousStreak - длина серии до сброса (заполняется при Broken).
	PreviousStreak int
}

// AdvanceStreak применяет активность за день к серии. Чистая функция.
//
// Правила:
//   - последняя активность была вчера - серия продолжается (+1)
//   - последняя активность сегодня - серия не меняется
//   - пропуск дней или первая активность - серия начинается заново с 1
//
// Лучшая серия никогда не уменьшается.
func AdvanceStreak(lastActivity *timeutil.Date, day timeutil.Date, current, longest int) StreakUpdate {
	if current < 0 {
		current = 0
	}

	update := StreakUpdate{}

	switch {
	case lastActivity == nil || lastActivity.IsZero():
		// Первая активность
		update.Current = 1
	case lastActivity.Equal(day):
		// Тот же день - ничего не меняем
		update.Current = current
		if update.Current == 0 {
			update.Current = 1
		}
	case lastActivity.IsYesterdayOf(day):
		// Следующий день - продолжаем серию
		update.Current = current + 1
		update.Extended = true
	default:
		// Пропущены дни (или дата ушла назад) - сбрасываем серию
		update.Current = 1
		if current > 1 {
			update.Broken = true
			update.PreviousStreak = current
		}
	}

	update.Longest = longest
	if update.Current > update.Longest {
		update.Longest = update.Current
	}

	return update
}

// ══════════════════════════════════════════════════════════════════════════════
// STREAK POLICY (Множители за серию)
// ══════════════════════════════════════════════════════════════════════════════

// ErrInvalidStreakPolicy - некорректная таблица множителей.
var ErrInvalidStreakPolicy = errors.New("invalid streak policy: thresholds must be positive and multipliers >= 1.0")

// StreakTier - один порог таблицы множителей.
type StreakTier struct {
	// MinDays - минимальная длина серии для применения множителя.
	MinDays int

	// Multiplier - множитель XP для серий от MinDays и выше.
	Multiplier float64
}

// StreakPolicy определяет таблицу множителей XP за серию активных дней.
// Применяется порог с наибольшим MinDays, не превышающим длину серии.
// Серия короче минимального порога множителя не даёт.
type StreakPolicy struct {
	tiers []StreakTier // отсортированы по MinDays по возрастанию
}

// NewStreakPolicy создаёт политику с валидацией таблицы порогов.
func NewStreakPolicy(tiers []StreakTier) (StreakPolicy, error) {
	for _, t := range tiers {
		if t.MinDays <= 0 || t.Multiplier < 1.0 {
			return StreakPolicy{}, ErrInvalidStreakPolicy
		}
	}

	sorted := make([]StreakTier, len(tiers))
	copy(sorted, tiers)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].MinDays < sorted[j].MinDays
	})

	return StreakPolicy{tiers: sorted}, nil
}

// DefaultStreakPolicy возвращает стандартную таблицу множителей.
func DefaultStreakPolicy() StreakPolicy {
	policy, _ := NewStreakPolicy([]StreakTier{
		{MinDays: 3, Multiplier: 1.1},
		{MinDays: 7, Multiplier: 1.5},
		{MinDays: 14, Multiplier: 1.75},
		{MinDays: 30, Multiplier: 2.0},
	})
	return policy
}

// MultiplierFor возвращает множитель XP для указанной длины серии.
// Серия ниже первого порога даёт множитель 1.0.
func (p StreakPolicy) MultiplierFor(streak int) float64 {
	multiplier := 1.0
	for _, t := range p.tiers {
		if streak >= t.MinDays {
			multiplier = t.Multiplier
		} else {
			break
		}
	}
	return multiplier
}

// Tiers возвращает копию таблицы порогов (для конфигурации и отображения).
func (p StreakPolicy) Tiers() []StreakTier {
	out := make([]StreakTier, len(p.tiers))
	copy(out, p.tiers)
	return out
}

// IsEmpty возвращает true, если таблица порогов пуста.
func (p StreakPolicy) IsEmpty() bool {
	return len(p.tiers) == 0
}
