package gamification

import (
	"context"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/shared"
	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// GrantRecord - параметры одного начисления XP.
type GrantRecord struct {
	// StudentID - кому начисляется.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// BaseAmount - базовая сумма до применения множителя.
	BaseAmount XP

	// ActivityDate - календарный день активности (UTC).
	ActivityDate timeutil.Date

	// Reason - причина начисления (task_completed, bonus, correction).
	Reason string

	// SourceID - идентификатор источника (задача, событие), если применимо.
	SourceID string
}

// Repository - контракт хранилища записей StudentXP.
type Repository interface {
	// Find возвращает запись студента в додзё.
	// Возвращает ErrRecordNotFound, если записи ещё нет.
	Find(ctx context.Context, studentID, dojoID string) (*StudentXP, error)

	// ListByDojo возвращает все записи додзё.
	ListByDojo(ctx context.Context, dojoID string) ([]*StudentXP, error)

	// Grant атомарно применяет начисление к записи студента.
	// Запись создаётся лениво при первом начислении. Конкурентные начисления
	// не теряют обновлений: чтение и запись выполняются под блокировкой строки.
	Grant(ctx context.Context, rec GrantRecord, policy StreakPolicy) (*StudentXP, *GrantApplied, error)

	// ResetSeason обнуляет записи перечисленных студентов додзё.
	// Возвращает количество сброшенных записей.
	ResetSeason(ctx context.Context, dojoID string, studentIDs []string) (int, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// XP HISTORY (Аудит начислений)
// ══════════════════════════════════════════════════════════════════════════════

// XPHistoryEntry - одна запись в журнале начислений.
type XPHistoryEntry struct {
	// ID - уникальный идентификатор записи (UUID).
	ID string

	// StudentID - кому начислено.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// BaseAmount - базовая сумма.
	BaseAmount XP

	// Granted - фактически начислено с учётом множителя.
	Granted XP

	// Multiplier - применённый множитель стрика.
	Multiplier float64

	// Reason - причина начисления.
	Reason string

	// SourceID - идентификатор источника, если применимо.
	SourceID string

	// ActivityDate - день активности.
	ActivityDate timeutil.Date

	// CreatedAt - время записи.
	CreatedAt time.Time
}

// HistoryRepository - контракт журнала начислений.
type HistoryRepository interface {
	// Record добавляет запись в журнал.
	Record(ctx context.Context, entry XPHistoryEntry) error

	// ListByStudent возвращает записи студента от новых к старым.
	ListByStudent(ctx context.Context, studentID, dojoID string, p shared.Pagination) ([]XPHistoryEntry, error)
}
