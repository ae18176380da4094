package leaderboard

import "context"

// ══════════════════════════════════════════════════════════════════════════════
// STUDENT ROSTER (Реестр студентов)
// ══════════════════════════════════════════════════════════════════════════════

// RosterStudent - минимальная карточка студента для построения лидерборда.
type RosterStudent struct {
	// StudentID - идентификатор студента.
	StudentID string

	// DisplayName - отображаемое имя.
	DisplayName string
}

// Roster - источник списка студентов додзё.
// Лидерборд строится только по подтверждённым (approved) студентам:
// записи XP без подтверждённого студента в рейтинг не попадают.
type Roster interface {
	// ListApproved возвращает подтверждённых студентов додзё.
	ListApproved(ctx context.Context, dojoID string) ([]RosterStudent, error)

	// ListDojos возвращает идентификаторы всех активных додзё.
	// Используется годовым закрытием сезона для обхода всех додзё.
	ListDojos(ctx context.Context) ([]string, error)
}
