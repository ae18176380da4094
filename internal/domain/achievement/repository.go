package achievement

import (
	"context"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// Repository - контракт хранилища каталога и разблокировок достижений.
type Repository interface {
	// FindDefinition возвращает определение по ID.
	// Возвращает ErrDefinitionNotFound, если определения нет.
	FindDefinition(ctx context.Context, id string) (*Definition, error)

	// ListDefinitions возвращает весь каталог достижений.
	ListDefinitions(ctx context.Context) ([]*Definition, error)

	// ListAnnualDefinitions возвращает годовые достижения указанного сезона.
	ListAnnualDefinitions(ctx context.Context, seasonYear int) ([]*Definition, error)

	// SaveDefinition сохраняет определение (создание или обновление каталога).
	SaveDefinition(ctx context.Context, def *Definition) error

	// ListUnlocked возвращает разблокировки студента.
	ListUnlocked(ctx context.Context, studentID string) ([]*Unlock, error)

	// CountUnlockedByStudents возвращает количество разблокировок по студентам додзё.
	CountUnlockedByStudents(ctx context.Context, dojoID string) (map[string]int, error)

	// Unlock идемпотентно фиксирует разблокировку. Повторная разблокировка
	// той же пары (студент, достижение) - успешный no-op: возвращается
	// (false, nil), без ошибки.
	Unlock(ctx context.Context, unlock *Unlock) (inserted bool, err error)
}
