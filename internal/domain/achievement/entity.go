// Package achievement содержит доменную модель достижений Dojo Hub.
// Это ядро бизнес-логики - здесь нет внешних зависимостей.
package achievement

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dojo-hub/dojo-gamification-hub/internal/domain/gamification"
)

// ══════════════════════════════════════════════════════════════════════════════
// VALUE OBJECTS
// ══════════════════════════════════════════════════════════════════════════════

// CriteriaType определяет, какая метрика студента сравнивается с порогом.
type CriteriaType string

const (
	// CriteriaTasksCompleted - количество выполненных заданий.
	CriteriaTasksCompleted CriteriaType = "tasks_completed"
	// CriteriaStreakDays - текущая серия активных дней.
	CriteriaStreakDays CriteriaType = "streak_days"
	// CriteriaTotalXP - суммарный XP за сезон.
	CriteriaTotalXP CriteriaType = "total_xp"
	// CriteriaAnnualRank - место в годовом рейтинге. Проверяется только
	// годовым закрытием сезона, не обычной проверкой достижений.
	CriteriaAnnualRank CriteriaType = "annual_rank"
)

// IsValid проверяет, что тип критерия известен.
func (c CriteriaType) IsValid() bool {
	switch c {
	case CriteriaTasksCompleted, CriteriaStreakDays, CriteriaTotalXP, CriteriaAnnualRank:
		return true
	default:
		return false
	}
}

// Rarity определяет редкость достижения.
type Rarity string

const (
	RarityCommon    Rarity = "common"
	RarityRare      Rarity = "rare"
	RarityEpic      Rarity = "epic"
	RarityLegendary Rarity = "legendary"
)

// IsValid проверяет, что редкость известна.
func (r Rarity) IsValid() bool {
	switch r {
	case RarityCommon, RarityRare, RarityEpic, RarityLegendary:
		return true
	default:
		return false
	}
}

// Weight возвращает числовой вес редкости для сортировки.
func (r Rarity) Weight() int {
	switch r {
	case RarityCommon:
		return 1
	case RarityRare:
		return 2
	case RarityEpic:
		return 3
	case RarityLegendary:
		return 4
	default:
		return 0
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// DOMAIN ERRORS
// ══════════════════════════════════════════════════════════════════════════════

var (
	// ErrInvalidCriteriaType - неизвестный тип критерия.
	ErrInvalidCriteriaType = errors.New("invalid criteria type")

	// ErrInvalidCriteriaValue - порог критерия должен быть положительным.
	ErrInvalidCriteriaValue = errors.New("invalid criteria value: must be positive")

	// ErrInvalidRarity - неизвестная редкость.
	ErrInvalidRarity = errors.New("invalid rarity")

	// ErrInvalidName - пустое название достижения.
	ErrInvalidName = errors.New("invalid achievement name: must not be empty")

	// ErrNegativeReward - отрицательная награда XP.
	ErrNegativeReward = errors.New("invalid xp reward: must be non-negative")

	// ErrAnnualYearRequired - годовое достижение без указания года.
	ErrAnnualYearRequired = errors.New("annual achievement requires a season year")

	// ErrDefinitionNotFound - определение достижения не найдено.
	ErrDefinitionNotFound = errors.New("achievement definition not found")

	// ErrAlreadyUnlocked - достижение уже разблокировано студентом.
	ErrAlreadyUnlocked = errors.New("achievement already unlocked")
)

// ══════════════════════════════════════════════════════════════════════════════
// MAIN ENTITY: ACHIEVEMENT DEFINITION
// ══════════════════════════════════════════════════════════════════════════════

// Definition описывает одно достижение из каталога.
type Definition struct {
	// ID - уникальный идентификатор (UUID в строковом формате).
	ID string

	// Code - машинное имя достижения (например, "streak_30").
	Code string

	// Name - отображаемое название.
	Name string

	// Description - описание условия получения.
	Description string

	// Emoji - значок достижения.
	Emoji string

	// CriteriaType - какая метрика сравнивается с порогом.
	CriteriaType CriteriaType

	// CriteriaValue - порог. Достижение открывается при метрике >= порога.
	// Для annual_rank наоборот: место должно быть <= порога.
	CriteriaValue int

	// XPReward - бонус XP за разблокировку.
	XPReward gamification.XP

	// Rarity - редкость достижения.
	Rarity Rarity

	// IsAnnual - годовое достижение, присуждается только закрытием сезона.
	IsAnnual bool

	// AnnualYear - сезон, к которому относится годовое достижение.
	AnnualYear int

	// CreatedAt - время создания определения.
	CreatedAt time.Time
}

// NewDefinitionParams содержит параметры для создания определения.
type NewDefinitionParams struct {
	ID            string
	Code          string
	Name          string
	Description   string
	Emoji         string
	CriteriaType  CriteriaType
	CriteriaValue int
	XPReward      gamification.XP
	Rarity        Rarity
	IsAnnual      bool
	AnnualYear    int
}

// NewDefinition создаёт определение достижения с валидацией всех полей.
func NewDefinition(params NewDefinitionParams) (*Definition, error) {
	if params.ID == "" {
		return nil, errors.New("achievement id is required")
	}

	name := strings.TrimSpace(params.Name)
	if name == "" {
		return nil, ErrInvalidName
	}

	if !params.CriteriaType.IsValid() {
		return nil, ErrInvalidCriteriaType
	}

	if params.CriteriaValue <= 0 {
		return nil, ErrInvalidCriteriaValue
	}

	if !params.Rarity.IsValid() {
		return nil, ErrInvalidRarity
	}

	if params.XPReward < 0 {
		return nil, ErrNegativeReward
	}

	if params.CriteriaType == CriteriaAnnualRank && !params.IsAnnual {
		return nil, errors.New("annual_rank criteria is only valid for annual achievements")
	}

	if params.IsAnnual && params.AnnualYear == 0 {
		return nil, ErrAnnualYearRequired
	}

	return &Definition{
		ID:            params.ID,
		Code:          params.Code,
		Name:          name,
		Description:   params.Description,
		Emoji:         params.Emoji,
		CriteriaType:  params.CriteriaType,
		CriteriaValue: params.CriteriaValue,
		XPReward:      params.XPReward,
		Rarity:        params.Rarity,
		IsAnnual:      params.IsAnnual,
		AnnualYear:    params.AnnualYear,
		CreatedAt:     time.Now().UTC(),
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// CRITERIA EVALUATION
// ══════════════════════════════════════════════════════════════════════════════

// Stats - срез метрик студента для проверки критериев.
type Stats struct {
	// TasksCompleted - количество выполненных заданий.
	TasksCompleted int

	// CurrentStreak - текущая серия активных дней.
	CurrentStreak int

	// TotalXP - суммарный XP за сезон.
	TotalXP gamification.XP
}

// IsSatisfiedBy проверяет, выполняет ли студент критерий достижения.
// Годовые достижения обычной проверкой не открываются.
func (d *Definition) IsSatisfiedBy(stats Stats) bool {
	if d.IsAnnual {
		return false
	}

	switch d.CriteriaType {
	case CriteriaTasksCompleted:
		return stats.TasksCompleted >= d.CriteriaValue
	case CriteriaStreakDays:
		return stats.CurrentStreak >= d.CriteriaValue
	case CriteriaTotalXP:
		return int(stats.TotalXP) >= d.CriteriaValue
	default:
		return false
	}
}

// IsSatisfiedByRank проверяет годовой критерий по месту в рейтинге.
// Место 1 - лучшее, поэтому сравнение обратное: rank <= порога.
func (d *Definition) IsSatisfiedByRank(rank int, seasonYear int) bool {
	if !d.IsAnnual || d.CriteriaType != CriteriaAnnualRank {
		return false
	}
	if d.AnnualYear != seasonYear {
		return false
	}
	return rank >= 1 && rank <= d.CriteriaValue
}

// String возвращает строковое представление определения для логирования.
func (d *Definition) String() string {
	return fmt.Sprintf(
		"Definition{ID: %s, Code: %s, Criteria: %s >= %d, Rarity: %s}",
		d.ID, d.Code, d.CriteriaType, d.CriteriaValue, d.Rarity,
	)
}

// ══════════════════════════════════════════════════════════════════════════════
// UNLOCK RECORD
// ══════════════════════════════════════════════════════════════════════════════

// Unlock - факт разблокировки достижения студентом.
// Пара (StudentID, AchievementID) уникальна: достижение открывается один раз.
type Unlock struct {
	// ID - уникальный идентификатор записи (UUID).
	ID string

	// StudentID - кто разблокировал.
	StudentID string

	// DojoID - в каком додзё.
	DojoID string

	// AchievementID - какое достижение.
	AchievementID string

	// UnlockedAt - когда разблокировано.
	UnlockedAt time.Time
}

// NewUnlock создаёт запись разблокировки.
func NewUnlock(id, studentID, dojoID, achievementID string) (*Unlock, error) {
	if id == "" {
		return nil, errors.New("unlock id is required")
	}
	if studentID == "" {
		return nil, errors.New("student id is required")
	}
	if dojoID == "" {
		return nil, errors.New("dojo id is required")
	}
	if achievementID == "" {
		return nil, errors.New("achievement id is required")
	}

	return &Unlock{
		ID:            id,
		StudentID:     studentID,
		DojoID:        dojoID,
		AchievementID: achievementID,
		UnlockedAt:    time.Now().UTC(),
	}, nil
}
