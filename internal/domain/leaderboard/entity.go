// Package leaderboard содержит доменную модель сезонного лидерборда Dojo Hub.
// Лидерборд строится отдельно для каждого додзё и живёт один календарный год,
// после чего годовое закрытие архивирует итоги и начинает новый сезон.
package leaderboard

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// Rank представляет позицию студента в лидерборде.
// Ранги плотные и начинаются с 1: два студента никогда не делят место.
type Rank int

// IsValid проверяет, что ранг положительный.
func (r Rank) IsValid() bool {
	return r > 0
}

// IsPodium возвращает true, если место призовое (топ-3).
func (r Rank) IsPodium() bool {
	return r >= 1 && r <= 3
}

// IsTop возвращает true, если место в топ-N.
func (r Rank) IsTop(n int) bool {
	return r >= 1 && int(r) <= n
}

// String возвращает строковое представление ранга.
func (r Rank) String() string {
	return fmt.Sprintf("#%d", r)
}

// ══════════════════════════════════════════════════════════════════════════════
// LEADERBOARD ENTRY
// ══════════════════════════════════════════════════════════════════════════════

// Entry представляет одну строку лидерборда.
type Entry struct {
	// Rank - позиция в рейтинге.
	Rank Rank

	// StudentID - внутренний идентификатор студента.
	StudentID string

	// DisplayName - отображаемое имя студента.
	DisplayName string

	// TotalXP - суммарный XP за сезон.
	TotalXP gamification.XP

	// Level - уровень студента.
	Level gamification.Level

	// Belt - пояс, соответствующий уровню.
	Belt gamification.Belt

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int

	// AchievementCount - количество разблокированных достижений.
	AchievementCount int

	// FirstActivityAt - время первого начисления за сезон.
	// Вторичный ключ сортировки: при равном XP выше тот, кто начал раньше.
	FirstActivityAt time.Time

	// UpdatedAt - время последнего обновления записи.
	UpdatedAt time.Time
}

// Clone создаёт копию записи.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	return &clone
}

// String возвращает строковое представление для логирования.
func (e *Entry) String() string {
	return fmt.Sprintf(
		"Entry{Rank: %d, Student: %s, XP: %d, Level: %d}",
		e.Rank, e.StudentID, e.TotalXP, e.Level,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// RANKING (Ranked List)
// ══════════════════════════════════════════════════════════════════════════════

// Ranking представляет полный отсортированный лидерборд одного додзё.
type Ranking struct {
	dojoID  string
	entries []*Entry
	byID    map[string]*Entry
}

// NewRanking создаёт пустой Ranking для додзё.
func NewRanking(dojoID string) *Ranking {
	return &Ranking{
		dojoID:  dojoID,
		entries: make([]*Entry, 0),
		byID:    make(map[string]*Entry),
	}
}

// DojoID возвращает идентификатор додзё.
func (r *Ranking) DojoID() string {
	return r.dojoID
}

// Add добавляет запись в рейтинг (без автоматической сортировки).
func (r *Ranking) Add(entry *Entry) error {
	if entry == nil {
		return ErrNilEntry
	}
	if entry.StudentID == "" {
		return ErrInvalidStudentID
	}
	if _, exists := r.byID[entry.StudentID]; exists {
		return ErrDuplicateStudent
	}

	r.entries = append(r.entries, entry)
	r.byID[entry.StudentID] = entry
	return nil
}

// Sort сортирует записи и присваивает плотные ранги начиная с 1.
//
// Порядок сортировки:
//  1. XP по убыванию
//  2. при равном XP - раньше начавший сезон (FirstActivityAt)
//  3. при полном равенстве - по StudentID
//
// Нулевое FirstActivityAt (студент без активности) считается самым поздним.
// Ранги строго возрастают: места не делятся даже при равном XP.
func (r *Ranking) Sort() {
	sort.Slice(r.entries, func(i, j int) bool {
		a, b := r.entries[i], r.entries[j]

		if a.TotalXP != b.TotalXP {
			return a.TotalXP > b.TotalXP
		}

		aStarted := !a.FirstActivityAt.IsZero()
		bStarted := !b.FirstActivityAt.IsZero()
		switch {
		case aStarted && bStarted && !a.FirstActivityAt.Equal(b.FirstActivityAt):
			return a.FirstActivityAt.Before(b.FirstActivityAt)
		case aStarted != bStarted:
			return aStarted
		}

		return a.StudentID < b.StudentID
	})

	for i, entry := range r.entries {
		entry.Rank = Rank(i + 1)
	}
}

// GetByID возвращает запись по ID студента.
func (r *Ranking) GetByID(studentID string) *Entry {
	return r.byID[studentID]
}

// GetByRank возвращает запись по рангу.
func (r *Ranking) GetByRank(rank Rank) *Entry {
	idx := int(rank) - 1
	if idx < 0 || idx >= len(r.entries) {
		return nil
	}
	return r.entries[idx]
}

// Top возвращает топ-N записей.
func (r *Ranking) Top(n int) []*Entry {
	if n <= 0 {
		return nil
	}
	if n > len(r.entries) {
		n = len(r.entries)
	}
	result := make([]*Entry, n)
	copy(result, r.entries[:n])
	return result
}

// Slice возвращает срез записей [from:to).
func (r *Ranking) Slice(from, to int) []*Entry {
	if from < 0 {
		from = 0
	}
	if to > len(r.entries) {
		to = len(r.entries)
	}
	if from >= to {
		return nil
	}
	result := make([]*Entry, to-from)
	copy(result, r.entries[from:to])
	return result
}

// Count возвращает общее количество записей.
func (r *Ranking) Count() int {
	return len(r.entries)
}

// IsEmpty возвращает true, если лидерборд пуст.
func (r *Ranking) IsEmpty() bool {
	return len(r.entries) == 0
}

// All возвращает все записи.
func (r *Ranking) All() []*Entry {
	result := make([]*Entry, len(r.entries))
	copy(result, r.entries)
	return result
}

// AverageXP возвращает средний XP по всем участникам.
func (r *Ranking) AverageXP() gamification.XP {
	if len(r.entries) == 0 {
		return 0
	}

	var total int
	for _, entry := range r.entries {
		total += int(entry.TotalXP)
	}

	return gamification.XP(total / len(r.entries))
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidRank - невалидный ранг (должен быть положительным).
	ErrInvalidRank = errors.New("invalid rank: must be positive")

	// ErrInvalidStudentID - невалидный ID студента.
	ErrInvalidStudentID = errors.New("invalid student id: cannot be empty")

	// ErrInvalidDojoID - невалидный ID додзё.
	ErrInvalidDojoID = errors.New("invalid dojo id: cannot be empty")

	// ErrNilEntry - попытка добавить nil запись.
	ErrNilEntry = errors.New("cannot add nil entry")

	// ErrDuplicateStudent - студент уже есть в рейтинге.
	ErrDuplicateStudent = errors.New("student already exists in ranking")

	// ErrEmptyLeaderboard - лидерборд пуст.
	ErrEmptyLeaderboard = errors.New("leaderboard is empty")

	// ErrSeasonAlreadyArchived - итоги сезона уже архивированы.
	ErrSeasonAlreadyArchived = errors.New("season already archived for this dojo")
)
