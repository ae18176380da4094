// Package gamification содержит доменную модель геймификации Dojo Hub.
//
// Это ядро бизнес-логики системы: очки опыта (XP), уровни, серии активных
// дней (стрики) с множителями и правила их изменения. Пакет определяет:
//
//   - Сущности (Entities): StudentXP
//   - Value Objects: XP, Level, Belt, StreakPolicy, StreakUpdate
//   - Доменные события (Events): XPGranted, LevelUp, StreakExtended, StreakBroken
//   - Интерфейсы репозиториев: Repository, HistoryRepository
//
// # Архитектурные принципы
//
// Пакет следует принципам Clean Architecture и DDD:
//
//  1. Нулевые внешние зависимости - только стандартная библиотека Go
//  2. Dependency Inversion - определяет интерфейсы, которые реализуются в infrastructure
//  3. Rich Domain Model - бизнес-логика инкапсулирована в сущностях
//
// # Кривая уровней
//
// Стоимость перехода растёт линейно с уровнем, суммарная стоимость -
// квадратично. Переход с 1-го уровня стоит 100 XP, со 2-го - 200 XP и так далее:
//
//	level := LevelFor(totalXP)
//	cost := XPForNextLevel(level)
//	progress := XPProgressInLevel(totalXP, level)
//
// # Стрики
//
// Серия продолжается только при активности в соседние календарные дни (UTC).
// Пропуск хотя бы одного дня сбрасывает серию до 1:
//
//	update := AdvanceStreak(lastActivityDate, today, current, longest)
//	multiplier := policy.MultiplierFor(update.Current)
//
// # Начисление XP
//
// Единственные пути изменения StudentXP - начисление через ApplyGrant и
// годовой сброс через ResetForNewSeason. Начисление применяет множитель
// стрика к базовой сумме и пересчитывает уровень:
//
//	record, _ := NewStudentXP(studentID, dojoID)
//	applied, err := record.ApplyGrant(XP(50), today, policy)
//	if applied.LeveledUp() {
//	    event := NewLevelUpEvent(record, applied.PreviousLevel)
//	    eventBus.Publish(event)
//	}
package gamification
