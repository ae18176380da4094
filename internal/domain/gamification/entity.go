package gamification

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidStudentID - пустой или некорректный идентификатор студента.
	ErrInvalidStudentID = errors.New("invalid student id: must not be empty")

	// ErrInvalidDojoID - пустой или некорректный идентификатор додзё.
	ErrInvalidDojoID = errors.New("invalid dojo id: must not be empty")

	// ErrNegativeGrant - отрицательная сумма начисления.
	ErrNegativeGrant = errors.New("invalid grant: base amount must be non-negative")

	// ErrInvalidXP - невалидное значение XP.
	ErrInvalidXP = errors.New("invalid xp: must be non-negative")

	// ErrLevelMismatch - уровень не соответствует суммарному XP.
	ErrLevelMismatch = errors.New("invalid record: level does not match total xp")

	// ErrStreakMismatch - лучшая серия меньше текущей.
	ErrStreakMismatch = errors.New("invalid record: longest streak below current streak")

	// ErrRecordNotFound - запись XP не найдена.
	ErrRecordNotFound = errors.New("student xp record not found")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: STUDENT XP
// ══════════════════════════════════════════════════════════════════════════════

// StudentXP - агрегат геймификации одного студента в одном додзё.
// Единственные пути изменения: ApplyGrant и ResetForNewSeason.
type StudentXP struct {
	// StudentID - идентификатор студента (UUID в строковом формате).
	StudentID string

	// DojoID - идентификатор додзё. Вся геймификация изолирована по додзё.
	DojoID string

	// TotalXP - суммарный заработанный XP за текущий сезон.
	TotalXP XP

	// Level - текущий уровень. Инвариант: Level == LevelFor(TotalXP).
	Level Level

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int

	// LongestStreak - лучшая серия за сезон. Инвариант: >= CurrentStreak.
	LongestStreak int

	// LastActivityDate - дата последней засчитанной активности (nil до первого начисления).
	LastActivityDate *timeutil.Date

	// FirstActivityAt - время первого начисления за сезон.
	// Используется как вторичный ключ сортировки лидерборда.
	FirstActivityAt time.Time

	// CreatedAt - время создания записи.
	CreatedAt time.Time

	// UpdatedAt - время последнего обновления.
	UpdatedAt time.Time
}

// NewStudentXP создаёт нулевую запись геймификации для студента.
// Запись создаётся лениво при первом начислении XP.
func NewStudentXP(studentID, dojoID string) (*StudentXP, error) {
	if studentID == "" {
		return nil, ErrInvalidStudentID
	}
	if dojoID == "" {
		return nil, ErrInvalidDojoID
	}

	now := time.Now().UTC()

	return &StudentXP{
		StudentID:        studentID,
		DojoID:           dojoID,
		TotalXP:          0,
		Level:            MinLevel,
		CurrentStreak:    0,
		LongestStreak:    0,
		LastActivityDate: nil,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

// Validate проверяет инварианты записи.
func (s *StudentXP) Validate() error {
	if s.StudentID == "" {
		return ErrInvalidStudentID
	}
	if s.DojoID == "" {
		return ErrInvalidDojoID
	}
	if !s.TotalXP.IsValid() {
		return ErrInvalidXP
	}
	if s.Level != LevelFor(s.TotalXP) {
		return ErrLevelMismatch
	}
	if s.LongestStreak < s.CurrentStreak {
		return ErrStreakMismatch
	}
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN METHODS (Business Logic)
// ══════════════════════════════════════════════════════════════════════════════

// GrantApplied - результат применения одного начисления XP.
type GrantApplied struct {
	// XPGranted - фактически начислено (база с учётом множителя, округлено).
	XPGranted XP

	// Multiplier - применённый множитель стрика.
	Multiplier float64

	// PreviousLevel - уровень до начисления.
	PreviousLevel Level

	// NewLevel - уровень после начисления.
	NewLevel Level

	// NewTotal - суммарный XP после начисления.
	NewTotal XP

	// NewStreak - серия после начисления.
	NewStreak int

	// LongestStreak - лучшая серия после начисления.
	LongestStreak int

	// StreakExtended - серия продолжена со вчерашнего дня.
	StreakExtended bool

	// StreakBroken - прежняя серия была сброшена.
	StreakBroken bool

	// PreviousStreak - длина сброшенной серии (заполняется при StreakBroken).
	PreviousStreak int
}

// LeveledUp возвращает true, если начисление подняло уровень.
func (g GrantApplied) LeveledUp() bool {
	return g.NewLevel > g.PreviousLevel
}

// ApplyGrant применяет начисление XP к записи.
//
// Порядок фиксирован: сначала обновляется серия по дате активности, затем
// множитель новой серии применяется к базовой сумме, затем пересчитывается
// уровень. Дробный результат округляется до ближайшего целого.
func (s *StudentXP) ApplyGrant(base XP, day timeutil.Date, policy StreakPolicy) (*GrantApplied, error) {
	if base < 0 {
		return nil, ErrNegativeGrant
	}

	streak := AdvanceStreak(s.LastActivityDate, day, s.CurrentStreak, s.LongestStreak)
	multiplier := policy.MultiplierFor(streak.Current)
	granted := XP(math.Round(float64(base) * multiplier))

	applied := &GrantApplied{
		XPGranted:      granted,
		Multiplier:     multiplier,
		PreviousLevel:  s.Level,
		NewTotal:       s.TotalXP + granted,
		NewStreak:      streak.Current,
		LongestStreak:  streak.Longest,
		StreakExtended: streak.Extended,
		StreakBroken:   streak.Broken,
		PreviousStreak: streak.PreviousStreak,
	}
	applied.NewLevel = LevelFor(applied.NewTotal)

	now := time.Now().UTC()

	s.TotalXP = applied.NewTotal
	s.Level = applied.NewLevel
	s.CurrentStreak = streak.Current
	s.LongestStreak = streak.Longest
	s.LastActivityDate = &day
	if s.FirstActivityAt.IsZero() {
		s.FirstActivityAt = now
	}
	s.UpdatedAt = now

	return applied, nil
}

// ResetForNewSeason обнуляет запись после годового архивирования.
// Сбрасывается всё, включая лучшую серию: новый сезон начинается с чистого листа.
func (s *StudentXP) ResetForNewSeason() {
	s.TotalXP = 0
	s.Level = MinLevel
	s.CurrentStreak = 0
	s.LongestStreak = 0
	s.LastActivityDate = nil
	s.FirstActivityAt = time.Time{}
	s.UpdatedAt = time.Now().UTC()
}

// Belt возвращает текущий пояс студента.
func (s *StudentXP) Belt() Belt {
	return BeltFor(s.Level)
}

// HasActivity возвращает true, если за сезон было хотя бы одно начисление.
func (s *StudentXP) HasActivity() bool {
	return s.LastActivityDate != nil && !s.LastActivityDate.IsZero()
}

// String возвращает строковое представление записи для логирования.
func (s *StudentXP) String() string {
	return fmt.Sprintf(
		"StudentXP{Student: %s, Dojo: %s, XP: %d, Level: %d, Streak: %d/%d}",
		s.StudentID, s.DojoID, s.TotalXP, s.Level, s.CurrentStreak, s.LongestStreak,
	)
}

// Clone создаёт глубокую копию записи.
func (s *StudentXP) Clone() *StudentXP {
	if s == nil {
		return nil
	}

	clone := *s
	if s.LastActivityDate != nil {
		date := *s.LastActivityDate
		clone.LastActivityDate = &date
	}
	return &clone
}
