package leaderboard

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Реализации находятся в infrastructure/persistence.
// ══════════════════════════════════════════════════════════════════════════════

// HistoryRepository - контракт годового архива лидербордов.
type HistoryRepository interface {
	// HasSeason возвращает true, если сезон додзё уже архивирован.
	// Наличие хотя бы одной записи (dojo, year) означает, что годовое
	// закрытие по этому додзё уже прошло целиком.
	HasSeason(ctx context.Context, dojoID string, year int) (bool, error)

	// ArchiveSeason сохраняет итоговые записи сезона.
	ArchiveSeason(ctx context.Context, entries []*HistoryEntry) error

	// ListSeason возвращает архив сезона додзё, отсортированный по месту.
	ListSeason(ctx context.Context, dojoID string, year int) ([]*HistoryEntry, error)

	// ListStudentSeasons возвращает итоги студента по всем закрытым сезонам.
	ListStudentSeasons(ctx context.Context, studentID string) ([]*HistoryEntry, error)
}

// Cache - контракт кеша лидерборда (реализуется поверх Redis).
// Кеш - ускорение чтения, не источник истины: промах кеша означает
// построение лидерборда заново из базы.
type Cache interface {
	// GetRanking возвращает закешированный лидерборд додзё.
	// Возвращает (nil, nil) при промахе кеша.
	GetRanking(ctx context.Context, dojoID string) (*Ranking, error)

	// StoreRanking сохраняет лидерборд с указанным TTL.
	StoreRanking(ctx context.Context, ranking *Ranking, ttl time.Duration) error

	// Invalidate сбрасывает кеш додзё.
	Invalidate(ctx context.Context, dojoID string) error
}
